package mysql

import (
	"context"

	"marketplace-service/internal/domain"

	"gorm.io/gorm"
)

type withdrawalRepo struct {
	db *gorm.DB
}

func (r *withdrawalRepo) Create(ctx context.Context, w *domain.Withdrawal) error {
	if err := r.db.WithContext(ctx).Create(w).Error; err != nil {
		logger.Error(err, "create withdrawal", "collaboratorId", w.CollaboratorID)
		return err
	}
	return nil
}

func (r *withdrawalRepo) FindByID(ctx context.Context, id uint64) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	ok, err := first(r.db.WithContext(ctx), &w, id)
	if err != nil || !ok {
		return nil, err
	}
	return &w, nil
}

func (r *withdrawalRepo) FindByIDForUpdate(ctx context.Context, id uint64) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	ok, err := first(forUpdate(r.db.WithContext(ctx)), &w, id)
	if err != nil || !ok {
		return nil, err
	}
	return &w, nil
}

func (r *withdrawalRepo) Save(ctx context.Context, w *domain.Withdrawal) error {
	return r.db.WithContext(ctx).Save(w).Error
}

func (r *withdrawalRepo) ListByCollaborator(ctx context.Context, collaboratorID uint64) ([]domain.Withdrawal, error) {
	var out []domain.Withdrawal
	err := r.db.WithContext(ctx).
		Where("collaborator_id = ?", collaboratorID).
		Order("created_at DESC").Order("id DESC").
		Find(&out).Error
	return out, err
}
