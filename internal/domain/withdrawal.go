package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
	WithdrawalPaid     WithdrawalStatus = "paid"
)

func (s WithdrawalStatus) CanTransitionTo(next WithdrawalStatus) bool {
	switch s {
	case WithdrawalPending:
		return next == WithdrawalApproved || next == WithdrawalRejected
	case WithdrawalApproved:
		return next == WithdrawalPaid
	}
	return false
}

// WithdrawalPolicy holds the amounts applied when a request is created.
type WithdrawalPolicy struct {
	MinAmount    decimal.Decimal
	TaxThreshold decimal.Decimal
	TaxRate      decimal.Decimal
	Fee          decimal.Decimal
}

func DefaultWithdrawalPolicy() WithdrawalPolicy {
	return WithdrawalPolicy{
		MinAmount:    decimal.NewFromInt(100_000),
		TaxThreshold: decimal.NewFromInt(2_000_000),
		TaxRate:      decimal.NewFromFloat(0.10),
		Fee:          decimal.NewFromInt(11_000),
	}
}

// Charges returns tax, fee and the informational final amount for amount.
// The wallet is always debited the full amount on approval.
func (p WithdrawalPolicy) Charges(amount decimal.Decimal) (tax, fee, final decimal.Decimal) {
	tax = decimal.Zero
	if amount.GreaterThanOrEqual(p.TaxThreshold) {
		tax = amount.Mul(p.TaxRate).Round(2)
	}
	fee = p.Fee
	final = amount.Sub(tax).Sub(fee)
	return tax, fee, final
}

type Withdrawal struct {
	ID             uint64           `json:"id" gorm:"primaryKey;autoIncrement"`
	CollaboratorID uint64           `json:"collaboratorId" gorm:"not null;index"`
	BankID         uint64           `json:"bankId" gorm:"not null"`
	Amount         decimal.Decimal  `json:"amount" gorm:"type:decimal(18,2);not null"`
	Tax            decimal.Decimal  `json:"tax" gorm:"type:decimal(18,2);not null"`
	Fee            decimal.Decimal  `json:"fee" gorm:"type:decimal(18,2);not null"`
	FinalAmount    decimal.Decimal  `json:"finalAmount" gorm:"type:decimal(18,2);not null"`
	Status         WithdrawalStatus `json:"status" gorm:"size:16;not null;default:'pending';index"`
	RejectReason   string           `json:"rejectReason,omitempty" gorm:"size:500"`
	ProcessedAt    *time.Time       `json:"processedAt,omitempty"`
	ProcessedBy    *uint64          `json:"processedBy,omitempty"`
	PaidAt         *time.Time       `json:"paidAt,omitempty"`
	CreatedAt      time.Time        `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

func (w *Withdrawal) transition(next WithdrawalStatus) error {
	if !w.Status.CanTransitionTo(next) {
		return ErrAlreadyProcessed.WithDetail("withdrawal %d is %s", w.ID, w.Status)
	}
	w.Status = next
	w.UpdatedAt = time.Now()
	return nil
}

func (w *Withdrawal) Approve(adminID uint64, now time.Time) error {
	if err := w.transition(WithdrawalApproved); err != nil {
		return err
	}
	w.ProcessedAt = &now
	w.ProcessedBy = &adminID
	return nil
}

func (w *Withdrawal) Reject(adminID uint64, reason string, now time.Time) error {
	if err := w.transition(WithdrawalRejected); err != nil {
		return err
	}
	w.RejectReason = reason
	w.ProcessedAt = &now
	w.ProcessedBy = &adminID
	return nil
}

func (w *Withdrawal) MarkPaid(now time.Time) error {
	if err := w.transition(WithdrawalPaid); err != nil {
		return err
	}
	w.PaidAt = &now
	return nil
}
