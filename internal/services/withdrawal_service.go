package services

import (
	"context"
	"fmt"
	"time"

	"marketplace-service/internal/domain"
	"marketplace-service/internal/infra/logging"
	rabbit "marketplace-service/internal/infra/rabbitmq"
	"marketplace-service/internal/repository"

	"github.com/go-logr/logr"
	"github.com/shopspring/decimal"
)

type CreateWithdrawalInput struct {
	BankID uint64
	Amount decimal.Decimal
}

type WithdrawalService struct {
	store     repository.Store
	publisher rabbit.PublisherInterface
	policy    domain.WithdrawalPolicy
	logger    logr.Logger
	now       func() time.Time
}

func NewWithdrawalService(store repository.Store, pub rabbit.PublisherInterface, policy domain.WithdrawalPolicy) *WithdrawalService {
	return &WithdrawalService{
		store:     store,
		publisher: pub,
		policy:    policy,
		logger:    logging.New("withdrawal"),
		now:       time.Now,
	}
}

func withdrawalRef(id uint64) string { return fmt.Sprintf("withdrawal:%d", id) }

// Create files a withdrawal request against one of the caller's bank
// accounts. Tax and fee are computed for display; nothing is debited yet.
func (s *WithdrawalService) Create(ctx context.Context, actor domain.Actor, in CreateWithdrawalInput) (*domain.Withdrawal, error) {
	if in.Amount.LessThan(s.policy.MinAmount) {
		return nil, domain.ErrInvalidAmount.WithDetail("minimum withdrawal is %s", s.policy.MinAmount.StringFixed(0))
	}

	bank, err := s.store.Catalog().FindBank(ctx, in.BankID)
	if err != nil {
		return nil, err
	}
	if bank == nil {
		return nil, domain.ErrBankNotFound.WithDetail("bank %d", in.BankID)
	}
	collab, err := s.store.Catalog().FindCollaboratorByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if collab == nil || collab.ID != bank.CollaboratorID {
		return nil, domain.ErrForbidden.WithDetail("bank %d does not belong to the caller", in.BankID)
	}

	wallet, err := s.store.Wallets().FindByOwner(ctx, domain.OwnerCollaborator, collab.ID)
	if err != nil {
		return nil, err
	}
	if wallet == nil || wallet.Balance.LessThan(in.Amount) {
		balance := decimal.Zero
		if wallet != nil {
			balance = wallet.Balance
		}
		return nil, domain.ErrInsufficientFunds.WithDetail("balance %s, requested %s", balance.StringFixed(2), in.Amount.StringFixed(2))
	}

	tax, fee, final := s.policy.Charges(in.Amount)
	w := &domain.Withdrawal{
		CollaboratorID: collab.ID,
		BankID:         bank.ID,
		Amount:         in.Amount,
		Tax:            tax,
		Fee:            fee,
		FinalAmount:    final,
		Status:         domain.WithdrawalPending,
		UpdatedAt:      s.now(),
	}
	if err := s.store.Withdrawals().Create(ctx, w); err != nil {
		return nil, err
	}
	s.logger.Info("withdrawal requested", "withdrawalId", w.ID, "collaboratorId", collab.ID, "amount", in.Amount.String())
	return w, nil
}

func (s *WithdrawalService) List(ctx context.Context, actor domain.Actor) ([]domain.Withdrawal, error) {
	collab, err := s.store.Catalog().FindCollaboratorByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if collab == nil {
		return nil, domain.ErrForbidden.WithDetail("user %d is not a collaborator", actor.UserID)
	}
	return s.store.Withdrawals().ListByCollaborator(ctx, collab.ID)
}

// Approve debits the full requested amount from the collaborator wallet and
// marks the request approved. Insufficient funds at this point fails the
// whole approval.
func (s *WithdrawalService) Approve(ctx context.Context, admin domain.Actor, id uint64) (*domain.Withdrawal, error) {
	return s.process(ctx, id, domain.EventWithdrawalApproved, func(tx repository.Store, w *domain.Withdrawal) error {
		if err := w.Approve(admin.UserID, s.now()); err != nil {
			return err
		}
		wallet, err := tx.Wallets().FindByOwnerForUpdate(ctx, domain.OwnerCollaborator, w.CollaboratorID)
		if err != nil {
			return err
		}
		if wallet == nil {
			return domain.ErrInsufficientFunds.WithDetail("collaborator %d has no wallet", w.CollaboratorID)
		}
		entry, err := wallet.Debit(w.Amount, domain.TxWithdrawal, withdrawalRef(w.ID), "withdrawal")
		if err != nil {
			return err
		}
		if err := tx.Wallets().AddTransaction(ctx, entry); err != nil {
			return err
		}
		return tx.Wallets().Save(ctx, wallet)
	})
}

func (s *WithdrawalService) Reject(ctx context.Context, admin domain.Actor, id uint64, reason string) (*domain.Withdrawal, error) {
	return s.process(ctx, id, domain.EventWithdrawalRejected, func(_ repository.Store, w *domain.Withdrawal) error {
		return w.Reject(admin.UserID, reason, s.now())
	})
}

// MarkPaid records that an approved withdrawal was transferred off-platform.
func (s *WithdrawalService) MarkPaid(ctx context.Context, id uint64) (*domain.Withdrawal, error) {
	return s.process(ctx, id, domain.EventWithdrawalPaid, func(_ repository.Store, w *domain.Withdrawal) error {
		return w.MarkPaid(s.now())
	})
}

func (s *WithdrawalService) process(ctx context.Context, id uint64, event string, apply func(tx repository.Store, w *domain.Withdrawal) error) (*domain.Withdrawal, error) {
	var out *domain.Withdrawal
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		w, err := tx.Withdrawals().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if w == nil {
			return domain.ErrWithdrawalNotFound.WithDetail("withdrawal %d", id)
		}
		if err := apply(tx, w); err != nil {
			return err
		}
		if err := tx.Withdrawals().Save(ctx, w); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	publishAll(ctx, s.publisher, s.logger, []pendingEvent{{event, domain.NewWithdrawalEvent(out)}})
	s.logger.Info("withdrawal processed", "withdrawalId", out.ID, "status", out.Status)
	return out, nil
}
