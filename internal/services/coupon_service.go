package services

import (
	"context"
	"strings"
	"time"

	"marketplace-service/internal/domain"
	"marketplace-service/internal/repository"

	"github.com/shopspring/decimal"
)

type CouponPreview struct {
	Code     string          `json:"code"`
	Amount   decimal.Decimal `json:"amount"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

type CouponService struct {
	store repository.Store
	now   func() time.Time
}

func NewCouponService(store repository.Store) *CouponService {
	return &CouponService{store: store, now: time.Now}
}

// PreviewDiscount validates code against amount and reports the discount
// checkout would apply.
func (s *CouponService) PreviewDiscount(ctx context.Context, code string, amount decimal.Decimal) (*CouponPreview, error) {
	if amount.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}
	coupon, err := s.store.Coupons().FindByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, domain.ErrCouponNotFound.WithDetail("%s", code)
	}
	if err := coupon.Validate(amount, s.now()); err != nil {
		return nil, err
	}
	discount := coupon.CalculateDiscount(amount)
	return &CouponPreview{
		Code:     coupon.Code,
		Amount:   amount,
		Discount: discount,
		Total:    amount.Sub(discount),
	}, nil
}
