package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated   = "order.created"
	EventOrderPaid      = "order.paid"
	EventOrderFailed    = "order.failed"
	EventOrderCancelled = "order.cancelled"

	EventPaymentRefunded = "payment.refunded"

	EventWithdrawalApproved = "withdrawal.approved"
	EventWithdrawalRejected = "withdrawal.rejected"
	EventWithdrawalPaid     = "withdrawal.paid"
)

type OrderEvent struct {
	OrderID     uint64          `json:"orderId"`
	Reference   string          `json:"reference"`
	UserID      uint64          `json:"userId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    string          `json:"currency"`
	Status      OrderStatus     `json:"status"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

func NewOrderEvent(o *Order) OrderEvent {
	return OrderEvent{
		OrderID:     o.ID,
		Reference:   o.Reference,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		Currency:    o.Currency,
		Status:      o.Status,
		OccurredAt:  time.Now(),
	}
}

type RefundEvent struct {
	OrderID    uint64          `json:"orderId"`
	PaymentID  uint64          `json:"paymentId"`
	Amount     decimal.Decimal `json:"amount"`
	Full       bool            `json:"full"`
	OccurredAt time.Time       `json:"occurredAt"`
}

type WithdrawalEvent struct {
	WithdrawalID   uint64           `json:"withdrawalId"`
	CollaboratorID uint64           `json:"collaboratorId"`
	Amount         decimal.Decimal  `json:"amount"`
	FinalAmount    decimal.Decimal  `json:"finalAmount"`
	Status         WithdrawalStatus `json:"status"`
	OccurredAt     time.Time        `json:"occurredAt"`
}

func NewWithdrawalEvent(w *Withdrawal) WithdrawalEvent {
	return WithdrawalEvent{
		WithdrawalID:   w.ID,
		CollaboratorID: w.CollaboratorID,
		Amount:         w.Amount,
		FinalAmount:    w.FinalAmount,
		Status:         w.Status,
		OccurredAt:     time.Now(),
	}
}
