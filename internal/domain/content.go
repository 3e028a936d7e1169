package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCommissionRate is the percentage used when a collaborator has no
// negotiated rate.
var DefaultCommissionRate = decimal.NewFromInt(10)

type Content struct {
	ID             uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Title          string          `json:"title" gorm:"size:255;not null"`
	Price          decimal.Decimal `json:"price" gorm:"type:decimal(18,2);not null"`
	CollaboratorID *uint64         `json:"collaboratorId,omitempty" gorm:"index"`
	IsPublished    bool            `json:"isPublished" gorm:"not null"`
	CreatedAt      time.Time       `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `json:"updatedAt" gorm:"autoUpdateTime"`
}

type Collaborator struct {
	ID             uint64           `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID         uint64           `json:"userId" gorm:"uniqueIndex;not null"`
	DisplayName    string           `json:"displayName" gorm:"size:255"`
	CommissionRate *decimal.Decimal `json:"commissionRate,omitempty" gorm:"type:decimal(5,2)"`
	CreatedAt      time.Time        `json:"createdAt" gorm:"autoCreateTime"`
}

// EffectiveCommissionRate returns the rate in percent, falling back to the default.
func (c *Collaborator) EffectiveCommissionRate() decimal.Decimal {
	if c == nil || c.CommissionRate == nil {
		return DefaultCommissionRate
	}
	return *c.CommissionRate
}

type CollaboratorBank struct {
	ID             uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	CollaboratorID uint64    `json:"collaboratorId" gorm:"index;not null"`
	BankName       string    `json:"bankName" gorm:"size:128;not null"`
	AccountNumber  string    `json:"accountNumber" gorm:"size:64;not null"`
	AccountHolder  string    `json:"accountHolder" gorm:"size:255;not null"`
	CreatedAt      time.Time `json:"createdAt" gorm:"autoCreateTime"`
}
