package services

import (
	"context"

	"marketplace-service/internal/domain"
	"marketplace-service/internal/infra/logging"
	"marketplace-service/internal/repository"

	"github.com/go-logr/logr"
	"github.com/shopspring/decimal"
)

type Reconciliation struct {
	WalletID  uint64          `json:"walletId"`
	Balance   decimal.Decimal `json:"balance"`
	LedgerSum decimal.Decimal `json:"ledgerSum"`
	Balanced  bool            `json:"balanced"`
}

type WalletService struct {
	store  repository.Store
	logger logr.Logger
}

func NewWalletService(store repository.Store) *WalletService {
	return &WalletService{store: store, logger: logging.New("wallet")}
}

func (s *WalletService) collaborator(ctx context.Context, actor domain.Actor) (*domain.Collaborator, error) {
	c, err := s.store.Catalog().FindCollaboratorByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrForbidden.WithDetail("user %d is not a collaborator", actor.UserID)
	}
	return c, nil
}

// GetWallet returns the caller's collaborator wallet. A collaborator who has
// never earned anything gets an empty, unsaved wallet.
func (s *WalletService) GetWallet(ctx context.Context, actor domain.Actor) (*domain.Wallet, error) {
	c, err := s.collaborator(ctx, actor)
	if err != nil {
		return nil, err
	}
	w, err := s.store.Wallets().FindByOwner(ctx, domain.OwnerCollaborator, c.ID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return domain.NewWallet(domain.OwnerCollaborator, c.ID), nil
	}
	return w, nil
}

func (s *WalletService) ListWalletTransactions(ctx context.Context, actor domain.Actor, page, size int) ([]domain.WalletTransaction, error) {
	w, err := s.GetWallet(ctx, actor)
	if err != nil {
		return nil, err
	}
	if w.ID == 0 {
		return []domain.WalletTransaction{}, nil
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return s.store.Wallets().ListTransactions(ctx, w.ID, size, (page-1)*size)
}

// Reconcile compares a wallet's balance with the sum of its ledger.
func (s *WalletService) Reconcile(ctx context.Context, walletID uint64) (*Reconciliation, error) {
	var out *Reconciliation
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		w, err := tx.Wallets().FindByIDForUpdate(ctx, walletID)
		if err != nil {
			return err
		}
		if w == nil {
			return domain.ErrWalletNotFound
		}
		sum, err := tx.Wallets().SumTransactions(ctx, walletID)
		if err != nil {
			return err
		}
		out = &Reconciliation{
			WalletID:  w.ID,
			Balance:   w.Balance,
			LedgerSum: sum,
			Balanced:  w.Balance.Equal(sum),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !out.Balanced {
		s.logger.Error(nil, "wallet out of balance", "walletId", walletID,
			"balance", out.Balance.String(), "ledgerSum", out.LedgerSum.String())
	}
	return out, nil
}
