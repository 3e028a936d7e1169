package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"marketplace-service/internal/domain"
	"marketplace-service/internal/infra/logging"
	"marketplace-service/internal/repository"

	"github.com/go-logr/logr"
	"github.com/shopspring/decimal"
)

// CommissionService credits collaborators for paid orders and can reverse
// those credits as a compensating action.
type CommissionService struct {
	store  repository.Store
	logger logr.Logger
}

func NewCommissionService(store repository.Store) *CommissionService {
	return &CommissionService{store: store, logger: logging.New("commission")}
}

func orderRef(orderID uint64) string { return strconv.FormatUint(orderID, 10) }

// Settle credits every collaborator on order. It must run inside the
// transaction that marked the order paid.
func (s *CommissionService) Settle(ctx context.Context, tx repository.Store, order *domain.Order) error {
	ids := collaboratorIDs(order.Items)
	if len(ids) == 0 {
		return nil
	}
	collaborators, err := tx.Catalog().FindCollaborators(ctx, ids)
	if err != nil {
		return err
	}
	rates := make(map[uint64]decimal.Decimal, len(collaborators))
	for i := range collaborators {
		rates[collaborators[i].ID] = collaborators[i].EffectiveCommissionRate()
	}

	wallets := make(map[uint64]*domain.Wallet, len(ids))
	ref := orderRef(order.ID)
	for _, item := range order.Items {
		if item.CollaboratorID == nil {
			continue
		}
		collabID := *item.CollaboratorID
		rate, ok := rates[collabID]
		if !ok {
			rate = domain.DefaultCommissionRate
		}
		amount := domain.Commission(item, rate)
		if amount.Sign() <= 0 {
			continue
		}

		wallet, ok := wallets[collabID]
		if !ok {
			if wallet, err = lockOrCreateWallet(ctx, tx, domain.OwnerCollaborator, collabID); err != nil {
				return err
			}
			wallets[collabID] = wallet
		}
		entry, err := wallet.Credit(amount, domain.TxCommission, ref, fmt.Sprintf("commission for content %d", item.ContentID))
		if err != nil {
			return err
		}
		if err := tx.Wallets().AddTransaction(ctx, entry); err != nil {
			return err
		}
		s.logger.Info("commission credited", "orderId", order.ID, "collaboratorId", collabID,
			"contentId", item.ContentID, "amount", amount.String())
	}

	for _, id := range ids {
		if w, ok := wallets[id]; ok {
			if err := tx.Wallets().Save(ctx, w); err != nil {
				return err
			}
		}
	}
	return nil
}

// RollbackCommission debits back every commission credited for orderID.
func (s *CommissionService) RollbackCommission(ctx context.Context, orderID uint64) error {
	return s.store.WithinTx(ctx, func(tx repository.Store) error {
		order, err := tx.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}

		ref := orderRef(orderID)
		entries, err := tx.Wallets().ListTransactionsByReference(ctx, ref, domain.TxCommission, domain.TxDebit)
		if err != nil {
			return err
		}
		var credits []domain.WalletTransaction
		for _, e := range entries {
			if e.Type == domain.TxDebit {
				return domain.ErrAlreadyRolledBack.WithDetail("order %d", orderID)
			}
			credits = append(credits, e)
		}
		if len(credits) == 0 {
			return domain.ErrCommissionNotFound.WithDetail("order %d", orderID)
		}

		wallets := map[uint64]*domain.Wallet{}
		for _, credit := range credits {
			wallet, ok := wallets[credit.WalletID]
			if !ok {
				if wallet, err = tx.Wallets().FindByIDForUpdate(ctx, credit.WalletID); err != nil {
					return err
				}
				if wallet == nil {
					return domain.ErrWalletNotFound
				}
				wallets[credit.WalletID] = wallet
			}
			entry, err := wallet.Debit(credit.Amount, domain.TxDebit, ref, "commission rollback")
			if err != nil {
				return err
			}
			if err := tx.Wallets().AddTransaction(ctx, entry); err != nil {
				return err
			}
		}
		for _, w := range wallets {
			if err := tx.Wallets().Save(ctx, w); err != nil {
				return err
			}
		}
		s.logger.Info("commission rolled back", "orderId", orderID, "entries", len(credits))
		return nil
	})
}

// lockOrCreateWallet returns the owner's wallet locked for update.
func lockOrCreateWallet(ctx context.Context, tx repository.Store, ownerType domain.OwnerType, ownerID uint64) (*domain.Wallet, error) {
	wallet, err := tx.Wallets().FindByOwnerForUpdate(ctx, ownerType, ownerID)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		return wallet, nil
	}
	wallet = domain.NewWallet(ownerType, ownerID)
	if err := tx.Wallets().Create(ctx, wallet); err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	return wallet, nil
}

// collaboratorIDs returns the distinct collaborators in ascending order so
// concurrent settlements lock wallets in the same order.
func collaboratorIDs(items []domain.OrderItem) []uint64 {
	seen := map[uint64]bool{}
	var ids []uint64
	for _, item := range items {
		if item.CollaboratorID != nil && !seen[*item.CollaboratorID] {
			seen[*item.CollaboratorID] = true
			ids = append(ids, *item.CollaboratorID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
