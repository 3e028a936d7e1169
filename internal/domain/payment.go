package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentSuccess || s == PaymentFailed
}

type PaymentMethod string

const (
	MethodVNPay        PaymentMethod = "vnpay"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

// ParsePaymentMethod normalizes a client-supplied method name.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(s))) {
	case MethodVNPay, "":
		return MethodVNPay, nil
	case MethodBankTransfer:
		return MethodBankTransfer, nil
	}
	return "", ErrUnsupportedMethod.WithDetail("%q", s)
}

// IsOnline reports whether the method redirects through a hosted gateway.
func (m PaymentMethod) IsOnline() bool { return m == MethodVNPay }

// OnlineMethods lists the methods settled by a provider notification.
func OnlineMethods() []PaymentMethod { return []PaymentMethod{MethodVNPay} }

type Payment struct {
	ID            uint64               `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID       uint64               `json:"orderId" gorm:"uniqueIndex;not null"`
	Amount        decimal.Decimal      `json:"amount" gorm:"type:decimal(18,2);not null"`
	PaymentMethod PaymentMethod        `json:"paymentMethod" gorm:"size:32;not null"`
	Status        PaymentStatus        `json:"status" gorm:"size:16;not null;default:'pending'"`
	PaidAt        *time.Time           `json:"paidAt,omitempty"`
	Transactions  []PaymentTransaction `json:"transactions,omitempty" gorm:"foreignKey:PaymentID"`
	CreatedAt     time.Time            `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// PaymentTransaction is an append-only record of one gateway interaction.
// RequestedAt is set on checkout records to the creation time the provider signed.
type PaymentTransaction struct {
	ID            uint64     `json:"id" gorm:"primaryKey;autoIncrement"`
	PaymentID     uint64     `json:"paymentId" gorm:"not null;index:idx_payment_tx_lookup,priority:1"`
	Provider      string     `json:"provider" gorm:"size:32;not null;index:idx_payment_tx_lookup,priority:2"`
	TransactionID string     `json:"transactionId" gorm:"size:64;index:idx_payment_tx_lookup,priority:3"`
	RawResponse   string     `json:"rawResponse,omitempty" gorm:"type:text"`
	PaymentURL    string     `json:"paymentUrl,omitempty" gorm:"type:text"`
	RequestedAt   *time.Time `json:"requestedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt" gorm:"autoCreateTime"`
}
