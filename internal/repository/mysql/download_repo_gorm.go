package mysql

import (
	"context"

	"marketplace-service/internal/domain"

	"gorm.io/gorm"
)

type downloadRepo struct {
	db *gorm.DB
}

func (r *downloadRepo) FindFulfillment(ctx context.Context, orderID uint64) (*domain.OrderFulfillment, error) {
	var f domain.OrderFulfillment
	ok, err := first(r.db.WithContext(ctx).Where("order_id = ?", orderID), &f)
	if err != nil || !ok {
		return nil, err
	}
	return &f, nil
}

func (r *downloadRepo) CreateFulfillment(ctx context.Context, f *domain.OrderFulfillment) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *downloadRepo) FindForUpdate(ctx context.Context, userID, contentID uint64) (*domain.Download, error) {
	var d domain.Download
	q := forUpdate(r.db.WithContext(ctx)).Where("user_id = ? AND content_id = ?", userID, contentID)
	ok, err := first(q, &d)
	if err != nil || !ok {
		return nil, err
	}
	return &d, nil
}

func (r *downloadRepo) Create(ctx context.Context, d *domain.Download) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *downloadRepo) Save(ctx context.Context, d *domain.Download) error {
	return r.db.WithContext(ctx).Model(d).
		Select("download_count", "updated_at").
		Updates(d).Error
}

func (r *downloadRepo) ListByUser(ctx context.Context, userID uint64) ([]domain.Download, error) {
	var out []domain.Download
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&out).Error
	return out, err
}
