package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"vnpay"}, cfg.PaymentProviders)
	assert.Equal(t, 30*time.Minute, cfg.OrderPendingTTL)
	assert.Equal(t, "@every 5m", cfg.OrderExpirySchedule)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 10*time.Second, cfg.VNPay.APITimeout)
	assert.False(t, cfg.IsDevelopment())

	policy, err := cfg.Withdrawal.Policy()
	require.NoError(t, err)
	assert.Equal(t, "100000", policy.MinAmount.String())
	assert.Equal(t, "0.1", policy.TaxRate.String())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("APP_ENV", "development")
	t.Setenv("MYSQL_HOST", "db")
	t.Setenv("MYSQL_DATABASE", "shop")
	t.Setenv("PAYMENT_PROVIDERS", "vnpay, VNPAY")
	t.Setenv("VNPAY_TMN_CODE", "TMN01")
	t.Setenv("WITHDRAWAL_FEE", "5000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Contains(t, cfg.MySQL.DSN(), "@tcp(db:3306)/shop?")
	assert.Equal(t, []string{"vnpay", " VNPAY"}, cfg.PaymentProviders)
	assert.Equal(t, "TMN01", cfg.VNPay.TmnCode)

	policy, err := cfg.Withdrawal.Policy()
	require.NoError(t, err)
	assert.Equal(t, "5000", policy.Fee.String())
}

func TestWithdrawalPolicy_InvalidValue(t *testing.T) {
	_, err := Withdrawal{MinAmount: "abc", TaxThreshold: "1", TaxRate: "1", Fee: "1"}.Policy()
	assert.ErrorContains(t, err, "WITHDRAWAL_MIN_AMOUNT")
}
