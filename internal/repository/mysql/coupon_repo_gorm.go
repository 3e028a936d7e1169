package mysql

import (
	"context"

	"marketplace-service/internal/domain"

	"gorm.io/gorm"
)

type couponRepo struct {
	db *gorm.DB
}

func (r *couponRepo) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var c domain.Coupon
	ok, err := first(r.db.WithContext(ctx).Where("code = ?", code), &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

func (r *couponRepo) FindByCodeForUpdate(ctx context.Context, code string) (*domain.Coupon, error) {
	var c domain.Coupon
	ok, err := first(forUpdate(r.db.WithContext(ctx)).Where("code = ?", code), &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

func (r *couponRepo) IncrementUsage(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Model(&domain.Coupon{}).
		Where("id = ?", id).
		UpdateColumn("used_count", gorm.Expr("used_count + ?", 1)).Error
}

func (r *couponRepo) ReleaseUsage(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Model(&domain.Coupon{}).
		Where("id = ? AND used_count > 0", id).
		UpdateColumn("used_count", gorm.Expr("used_count - ?", 1)).Error
}

func (r *couponRepo) FindByOrder(ctx context.Context, orderID uint64) (*domain.OrderCoupon, error) {
	var oc domain.OrderCoupon
	ok, err := first(r.db.WithContext(ctx).Where("order_id = ?", orderID), &oc)
	if err != nil || !ok {
		return nil, err
	}
	return &oc, nil
}
