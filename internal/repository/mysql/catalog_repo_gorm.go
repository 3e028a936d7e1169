package mysql

import (
	"context"

	"marketplace-service/internal/domain"

	"gorm.io/gorm"
)

type catalogRepo struct {
	db *gorm.DB
}

func (r *catalogRepo) FindContent(ctx context.Context, id uint64) (*domain.Content, error) {
	var c domain.Content
	ok, err := first(r.db.WithContext(ctx), &c, id)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

func (r *catalogRepo) FindContents(ctx context.Context, ids []uint64) ([]domain.Content, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []domain.Content
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

func (r *catalogRepo) FindCollaborators(ctx context.Context, ids []uint64) ([]domain.Collaborator, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []domain.Collaborator
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

func (r *catalogRepo) FindCollaboratorByUser(ctx context.Context, userID uint64) (*domain.Collaborator, error) {
	var c domain.Collaborator
	ok, err := first(r.db.WithContext(ctx).Where("user_id = ?", userID), &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

func (r *catalogRepo) FindBank(ctx context.Context, id uint64) (*domain.CollaboratorBank, error) {
	var b domain.CollaboratorBank
	ok, err := first(r.db.WithContext(ctx), &b, id)
	if err != nil || !ok {
		return nil, err
	}
	return &b, nil
}
