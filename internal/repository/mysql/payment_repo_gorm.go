package mysql

import (
	"context"
	"time"

	"marketplace-service/internal/domain"

	"gorm.io/gorm"
)

type paymentRepo struct {
	db *gorm.DB
}

func (r *paymentRepo) FindByID(ctx context.Context, id uint64) (*domain.Payment, error) {
	var p domain.Payment
	ok, err := first(r.db.WithContext(ctx), &p, id)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) FindByIDForUpdate(ctx context.Context, id uint64) (*domain.Payment, error) {
	var p domain.Payment
	ok, err := first(forUpdate(r.db.WithContext(ctx)), &p, id)
	if err != nil {
		logger.Error(err, "lock payment", "paymentId", id)
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, orderID uint64) (*domain.Payment, error) {
	var p domain.Payment
	ok, err := first(r.db.WithContext(ctx).Where("order_id = ?", orderID), &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// TransitionStatus is the exactly-once gate for settlement: only the caller
// that moves the row out of from sees true.
func (r *paymentRepo) TransitionStatus(ctx context.Context, id uint64, from, to domain.PaymentStatus, paidAt *time.Time) (bool, error) {
	fields := map[string]any{"status": to, "updated_at": time.Now()}
	if paidAt != nil {
		fields["paid_at"] = *paidAt
	}
	res := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if res.Error != nil {
		logger.Error(res.Error, "transition payment", "paymentId", id, "to", to)
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *paymentRepo) AddTransaction(ctx context.Context, tx *domain.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *paymentRepo) FindTransaction(ctx context.Context, paymentID uint64, provider, transactionID string) (*domain.PaymentTransaction, error) {
	var t domain.PaymentTransaction
	q := r.db.WithContext(ctx).Where("payment_id = ? AND provider = ? AND transaction_id = ?", paymentID, provider, transactionID)
	ok, err := first(q, &t)
	if err != nil || !ok {
		return nil, err
	}
	return &t, nil
}
