package mysql

import (
	"context"
	"errors"

	"marketplace-service/internal/infra/logging"
	"marketplace-service/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var logger = logging.New("mysql_repo")

type store struct {
	db *gorm.DB
}

// NewStore returns a gorm backed unit of work.
func NewStore(db *gorm.DB) repository.Store {
	return &store{db: db}
}

func (s *store) Orders() repository.OrderRepository           { return &orderRepo{db: s.db} }
func (s *store) Payments() repository.PaymentRepository       { return &paymentRepo{db: s.db} }
func (s *store) Carts() repository.CartRepository             { return &cartRepo{db: s.db} }
func (s *store) Catalog() repository.CatalogRepository        { return &catalogRepo{db: s.db} }
func (s *store) Coupons() repository.CouponRepository         { return &couponRepo{db: s.db} }
func (s *store) Wallets() repository.WalletRepository         { return &walletRepo{db: s.db} }
func (s *store) Downloads() repository.DownloadRepository     { return &downloadRepo{db: s.db} }
func (s *store) Withdrawals() repository.WithdrawalRepository { return &withdrawalRepo{db: s.db} }

func (s *store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&store{db: tx})
	})
}

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// first runs a First query and maps a missing row to (false, nil).
func first(q *gorm.DB, dest any, conds ...any) (bool, error) {
	if err := q.First(dest, conds...).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
