package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CouponType string

const (
	CouponPercent CouponType = "percent"
	CouponFixed   CouponType = "fixed"
)

var hundred = decimal.NewFromInt(100)

type Coupon struct {
	ID             uint64           `json:"id" gorm:"primaryKey;autoIncrement"`
	Code           string           `json:"code" gorm:"size:64;uniqueIndex;not null"`
	Type           CouponType       `json:"type" gorm:"size:16;not null"`
	Value          decimal.Decimal  `json:"value" gorm:"type:decimal(18,2);not null"`
	MaxDiscount    *decimal.Decimal `json:"maxDiscount,omitempty" gorm:"type:decimal(18,2)"`
	MinOrderAmount *decimal.Decimal `json:"minOrderAmount,omitempty" gorm:"type:decimal(18,2)"`
	UsageLimit     *int             `json:"usageLimit,omitempty"`
	UsedCount      int              `json:"usedCount" gorm:"not null;default:0"`
	StartsAt       *time.Time       `json:"startsAt,omitempty"`
	ExpiresAt      *time.Time       `json:"expiresAt,omitempty"`
	IsActive       bool             `json:"isActive" gorm:"not null"`
	CreatedAt      time.Time        `json:"createdAt" gorm:"autoCreateTime"`
}

// CalculateDiscount never returns more than subtotal, nor more than
// MaxDiscount when it is set.
func (c *Coupon) CalculateDiscount(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.Sign() <= 0 {
		return decimal.Zero
	}
	var discount decimal.Decimal
	switch c.Type {
	case CouponPercent:
		discount = subtotal.Mul(c.Value).Div(hundred).Round(2)
		if c.MaxDiscount != nil && discount.GreaterThan(*c.MaxDiscount) {
			discount = *c.MaxDiscount
		}
	case CouponFixed:
		discount = c.Value
	default:
		return decimal.Zero
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		return subtotal
	}
	return discount
}

// Validate checks that the coupon may be applied to subtotal at now.
func (c *Coupon) Validate(subtotal decimal.Decimal, now time.Time) error {
	if !c.IsActive {
		return ErrCouponInvalid.WithDetail("coupon %s is not active", c.Code)
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return ErrCouponInvalid.WithDetail("coupon %s is not valid yet", c.Code)
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return ErrCouponInvalid.WithDetail("coupon %s has expired", c.Code)
	}
	if c.MinOrderAmount != nil && subtotal.LessThan(*c.MinOrderAmount) {
		return ErrCouponInvalid.WithDetail("order amount must be at least %s", c.MinOrderAmount.StringFixed(0))
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return ErrCouponInvalid.WithDetail("coupon %s has reached its usage limit", c.Code)
	}
	return nil
}
