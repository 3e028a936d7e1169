package services

import (
	"context"
	"testing"
	"time"

	"marketplace-service/internal/domain"
	"marketplace-service/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	empty, err := f.carts.GetCart(ctx, TestBuyerID)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
	assert.Zero(t, empty.ID)

	_, err = f.carts.AddItem(ctx, TestBuyerID, TestHiddenContentID, 1)
	assert.ErrorIs(t, err, domain.ErrContentNotFound)
	_, err = f.carts.AddItem(ctx, TestBuyerID, 999, 1)
	assert.ErrorIs(t, err, domain.ErrContentNotFound)
	_, err = f.carts.AddItem(ctx, TestBuyerID, TestContentID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.carts.RemoveItem(ctx, TestBuyerID, TestContentID)
	assert.ErrorIs(t, err, domain.ErrCartNotFound)

	_, err = f.carts.AddItem(ctx, TestBuyerID, TestContentID, 1)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&domain.Content{}).Where("id = ?", TestContentID).
		Update("price", decimal.NewFromInt(120000)).Error)
	cart, err := f.carts.AddItem(ctx, TestBuyerID, TestContentID, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	requireDecimal(t, "100000", cart.Items[0].Price)

	_, err = f.carts.AddItem(ctx, TestBuyerID, TestSecondContentID, 1)
	require.NoError(t, err)
	stored, err := f.carts.GetCart(ctx, TestBuyerID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
	requireDecimal(t, "350000", stored.CalculateTotal())

	_, err = f.carts.RemoveItem(ctx, TestBuyerID, TestFreeContentID)
	assert.ErrorIs(t, err, domain.ErrCartItemNotFound)

	cart, err = f.carts.RemoveItem(ctx, TestBuyerID, TestContentID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)

	require.NoError(t, f.carts.Clear(ctx, TestBuyerID))
	stored, err = f.carts.GetCart(ctx, TestBuyerID)
	require.NoError(t, err)
	assert.True(t, stored.IsEmpty())
	assert.NotZero(t, stored.ID)
}

func TestCouponService_PreviewDiscount(t *testing.T) {
	tests := []struct {
		name          string
		code          string
		amount        int64
		expectedError error
		discount      string
		total         string
	}{
		{name: "percent under cap", code: "SAVE10", amount: 100000, discount: "10000", total: "90000"},
		{name: "percent capped", code: "SAVE10", amount: 500000, discount: "15000", total: "485000"},
		{name: "fixed capped at amount", code: "FREE", amount: 40000, discount: "40000", total: "0"},
		{name: "surrounding spaces", code: " SAVE10 ", amount: 100000, discount: "10000", total: "90000"},
		{name: "unknown", code: "NOPE", amount: 100000, expectedError: domain.ErrCouponNotFound},
		{name: "expired", code: "EXPIRED", amount: 100000, expectedError: domain.ErrCouponInvalid},
		{name: "usage exhausted", code: "ONCE", amount: 100000, expectedError: domain.ErrCouponInvalid},
		{name: "negative amount", code: "SAVE10", amount: -1, expectedError: domain.ErrInvalidAmount},
	}

	f := newFixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewCouponService(f.store).PreviewDiscount(context.Background(), tt.code, decimal.NewFromInt(tt.amount))
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
			requireDecimal(t, tt.discount, got.Discount)
			requireDecimal(t, tt.total, got.Total)
		})
	}
}

func TestCouponService_NotYetStarted(t *testing.T) {
	f := newFixture(t)
	svc := NewCouponService(f.store)
	svc.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }

	// EXPIRED ended a day ago, so it was still valid two days ago.
	got, err := svc.PreviewDiscount(context.Background(), "EXPIRED", decimal.NewFromInt(100000))
	require.NoError(t, err)
	requireDecimal(t, "50000", got.Discount)
}

func TestDownloadService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.acceptPayments()

	_, err := f.downloads.ConsumeDownload(ctx, TestBuyerID, TestContentID)
	assert.ErrorIs(t, err, domain.ErrDownloadNotFound)

	first := f.pendingOrder(t, TestContentID, 1)
	_, err = f.payments.ProcessNotification(ctx, f.notification(first, "00", "1"))
	require.NoError(t, err)
	second := f.pendingOrder(t, TestContentID, 1)
	_, err = f.payments.ProcessNotification(ctx, f.notification(second, "00", "2"))
	require.NoError(t, err)

	// A repeat purchase tops up the same counter.
	list, err := f.downloads.ListDownloads(ctx, TestBuyerID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2*domain.DownloadsPerUnit, list[0].DownloadCount)

	// Granting an already fulfilled order is a no-op.
	paid := f.reloadOrder(t, first.ID)
	require.NoError(t, f.store.WithinTx(ctx, func(tx repository.Store) error {
		return f.downloads.Grant(ctx, tx, paid)
	}))

	for i := 0; i < 2*domain.DownloadsPerUnit; i++ {
		d, err := f.downloads.ConsumeDownload(ctx, TestBuyerID, TestContentID)
		require.NoError(t, err)
		assert.Equal(t, 2*domain.DownloadsPerUnit-i-1, d.DownloadCount)
	}
	_, err = f.downloads.ConsumeDownload(ctx, TestBuyerID, TestContentID)
	assert.ErrorIs(t, err, domain.ErrDownloadsExhausted)

	list, err = f.downloads.ListDownloads(ctx, TestBuyerID)
	require.NoError(t, err)
	assert.Zero(t, list[0].DownloadCount)
}
