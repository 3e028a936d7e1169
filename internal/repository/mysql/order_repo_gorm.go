package mysql

import (
	"context"
	"errors"
	"time"

	"marketplace-service/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type orderRepo struct {
	db *gorm.DB
}

func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(order).Error; err != nil {
		logger.Error(err, "create order")
		return err
	}
	if order.ID == 0 {
		return errors.New("failed to assign order ID")
	}

	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	if len(order.Items) > 0 {
		if err := db.Create(&order.Items).Error; err != nil {
			logger.Error(err, "create order items", "orderId", order.ID)
			return err
		}
	}

	if order.Coupon != nil {
		order.Coupon.OrderID = order.ID
		if err := db.Create(order.Coupon).Error; err != nil {
			return err
		}
	}

	if order.Payment != nil {
		order.Payment.OrderID = order.ID
		if err := db.Omit(clause.Associations).Create(order.Payment).Error; err != nil {
			logger.Error(err, "create payment", "orderId", order.ID)
			return err
		}
	}

	logger.V(1).Info("order saved", "orderId", order.ID, "reference", order.Reference)
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	var o domain.Order
	q := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Coupon").
		Preload("Payment").
		Preload("Payment.Transactions", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
	ok, err := first(q, &o, id)
	if err != nil {
		logger.Error(err, "find order", "orderId", id)
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r *orderRepo) FindByIDForUpdate(ctx context.Context, id uint64) (*domain.Order, error) {
	var o domain.Order
	ok, err := first(forUpdate(r.db.WithContext(ctx)), &o, id)
	if err != nil || !ok {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Find(&o.Items).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID uint64, limit, offset int) ([]domain.Order, error) {
	var out []domain.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Coupon").
		Preload("Payment").
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&out).Error
	if err != nil {
		logger.Error(err, "list orders", "userId", userID)
		return nil, err
	}
	return out, nil
}

func (r *orderRepo) ListPendingBefore(ctx context.Context, before time.Time, methods []domain.PaymentMethod, limit int) ([]domain.Order, error) {
	var out []domain.Order
	byMethod := r.db.Model(&domain.Payment{}).Select("order_id").Where("payment_method IN ?", methods)
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ? AND id IN (?)", domain.OrderPending, before, byMethod).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id uint64, from, to domain.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		logger.Error(res.Error, "update order status", "orderId", id, "to", to)
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
