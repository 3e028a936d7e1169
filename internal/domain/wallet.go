package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OwnerType string

const (
	OwnerUser         OwnerType = "user"
	OwnerCollaborator OwnerType = "collaborator"
)

type WalletTxType string

const (
	TxCredit     WalletTxType = "credit"
	TxDebit      WalletTxType = "debit"
	TxCommission WalletTxType = "commission"
	TxWithdrawal WalletTxType = "withdrawal"
)

// Wallet balance always equals the sum of its transaction amounts. Mutate it
// only through Credit and Debit, which return the ledger row to append.
type Wallet struct {
	ID        uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerType OwnerType       `json:"ownerType" gorm:"size:16;not null;uniqueIndex:idx_wallet_owner,priority:1"`
	OwnerID   uint64          `json:"ownerId" gorm:"not null;uniqueIndex:idx_wallet_owner,priority:2"`
	Balance   decimal.Decimal `json:"balance" gorm:"type:decimal(18,2);not null;default:0"`
	CreatedAt time.Time       `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type WalletTransaction struct {
	ID          uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	WalletID    uint64          `json:"walletId" gorm:"not null;index"`
	Type        WalletTxType    `json:"type" gorm:"size:16;not null"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(18,2);not null"`
	ReferenceID string          `json:"referenceId" gorm:"size:64;index"`
	Description string          `json:"description,omitempty" gorm:"size:255"`
	CreatedAt   time.Time       `json:"createdAt" gorm:"autoCreateTime"`
}

func NewWallet(ownerType OwnerType, ownerID uint64) *Wallet {
	return &Wallet{OwnerType: ownerType, OwnerID: ownerID, Balance: decimal.Zero, UpdatedAt: time.Now()}
}

func (w *Wallet) Credit(amount decimal.Decimal, txType WalletTxType, ref, desc string) (*WalletTransaction, error) {
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount.WithDetail("credit amount must be positive")
	}
	w.Balance = w.Balance.Add(amount)
	w.UpdatedAt = time.Now()
	return &WalletTransaction{WalletID: w.ID, Type: txType, Amount: amount, ReferenceID: ref, Description: desc}, nil
}

// Debit removes amount and records it as a negative ledger row.
func (w *Wallet) Debit(amount decimal.Decimal, txType WalletTxType, ref, desc string) (*WalletTransaction, error) {
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount.WithDetail("debit amount must be positive")
	}
	if w.Balance.LessThan(amount) {
		return nil, ErrInsufficientFunds.WithDetail("balance %s, requested %s", w.Balance.StringFixed(2), amount.StringFixed(2))
	}
	w.Balance = w.Balance.Sub(amount)
	w.UpdatedAt = time.Now()
	return &WalletTransaction{WalletID: w.ID, Type: txType, Amount: amount.Neg(), ReferenceID: ref, Description: desc}, nil
}

// Commission is price * quantity * rate / 100, rounded to the currency unit.
func Commission(item OrderItem, ratePercent decimal.Decimal) decimal.Decimal {
	return item.LineTotal().Mul(ratePercent).Div(hundred).Round(2)
}
