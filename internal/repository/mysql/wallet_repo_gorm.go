package mysql

import (
	"context"

	"marketplace-service/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type walletRepo struct {
	db *gorm.DB
}

func (r *walletRepo) FindByOwner(ctx context.Context, ownerType domain.OwnerType, ownerID uint64) (*domain.Wallet, error) {
	return r.findByOwner(r.db.WithContext(ctx), ownerType, ownerID)
}

// FindByOwnerForUpdate locks the wallet row for a read-modify-write of the balance.
func (r *walletRepo) FindByOwnerForUpdate(ctx context.Context, ownerType domain.OwnerType, ownerID uint64) (*domain.Wallet, error) {
	return r.findByOwner(forUpdate(r.db.WithContext(ctx)), ownerType, ownerID)
}

func (r *walletRepo) findByOwner(q *gorm.DB, ownerType domain.OwnerType, ownerID uint64) (*domain.Wallet, error) {
	var w domain.Wallet
	ok, err := first(q.Where("owner_type = ? AND owner_id = ?", ownerType, ownerID), &w)
	if err != nil {
		logger.Error(err, "find wallet", "ownerType", ownerType, "ownerId", ownerID)
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *walletRepo) FindByIDForUpdate(ctx context.Context, id uint64) (*domain.Wallet, error) {
	var w domain.Wallet
	ok, err := first(forUpdate(r.db.WithContext(ctx)), &w, id)
	if err != nil || !ok {
		return nil, err
	}
	return &w, nil
}

func (r *walletRepo) Create(ctx context.Context, wallet *domain.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *walletRepo) Save(ctx context.Context, wallet *domain.Wallet) error {
	return r.db.WithContext(ctx).Model(wallet).
		Select("balance", "updated_at").
		Updates(wallet).Error
}

func (r *walletRepo) AddTransaction(ctx context.Context, tx *domain.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *walletRepo) ListTransactions(ctx context.Context, walletID uint64, limit, offset int) ([]domain.WalletTransaction, error) {
	var out []domain.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&out).Error
	return out, err
}

func (r *walletRepo) ListTransactionsByReference(ctx context.Context, ref string, types ...domain.WalletTxType) ([]domain.WalletTransaction, error) {
	var out []domain.WalletTransaction
	q := r.db.WithContext(ctx).Where("reference_id = ?", ref)
	if len(types) > 0 {
		q = q.Where("type IN ?", types)
	}
	err := q.Order("id ASC").Find(&out).Error
	return out, err
}

func (r *walletRepo) SumTransactions(ctx context.Context, walletID uint64) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&domain.WalletTransaction{}).
		Select("SUM(amount)").
		Where("wallet_id = ?", walletID).
		Row().Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}
