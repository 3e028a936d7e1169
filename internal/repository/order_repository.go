package repository

import (
	"context"
	"time"

	"marketplace-service/internal/domain"

	"github.com/shopspring/decimal"
)

// Store is the unit of work over every aggregate. Repositories obtained from
// the Store passed to WithinTx share that transaction.
//
// Finders return (nil, nil) when the row does not exist.
type Store interface {
	Orders() OrderRepository
	Payments() PaymentRepository
	Carts() CartRepository
	Catalog() CatalogRepository
	Coupons() CouponRepository
	Wallets() WalletRepository
	Downloads() DownloadRepository
	Withdrawals() WithdrawalRepository

	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type OrderRepository interface {
	// Create persists the order with its items, coupon and payment.
	Create(ctx context.Context, order *domain.Order) error
	// FindByID loads the order with items, coupon, payment and payment transactions.
	FindByID(ctx context.Context, id uint64) (*domain.Order, error)
	// FindByIDForUpdate locks the order row and loads its items.
	FindByIDForUpdate(ctx context.Context, id uint64) (*domain.Order, error)
	ListByUser(ctx context.Context, userID uint64, limit, offset int) ([]domain.Order, error)
	// ListPendingBefore returns pending orders created before the cutoff
	// whose payment uses one of methods.
	ListPendingBefore(ctx context.Context, before time.Time, methods []domain.PaymentMethod, limit int) ([]domain.Order, error)
	// UpdateStatus moves the order from one status to another and reports
	// whether a row matched.
	UpdateStatus(ctx context.Context, id uint64, from, to domain.OrderStatus) (bool, error)
}

type PaymentRepository interface {
	FindByID(ctx context.Context, id uint64) (*domain.Payment, error)
	FindByIDForUpdate(ctx context.Context, id uint64) (*domain.Payment, error)
	FindByOrderID(ctx context.Context, orderID uint64) (*domain.Payment, error)
	// TransitionStatus updates a payment only while it is still in from.
	TransitionStatus(ctx context.Context, id uint64, from, to domain.PaymentStatus, paidAt *time.Time) (bool, error)
	AddTransaction(ctx context.Context, tx *domain.PaymentTransaction) error
	FindTransaction(ctx context.Context, paymentID uint64, provider, transactionID string) (*domain.PaymentTransaction, error)
}

type CartRepository interface {
	FindByUser(ctx context.Context, userID uint64) (*domain.Cart, error)
	// Save creates or updates the cart and replaces its items.
	Save(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, cartID uint64) error
}

type CatalogRepository interface {
	FindContent(ctx context.Context, id uint64) (*domain.Content, error)
	FindContents(ctx context.Context, ids []uint64) ([]domain.Content, error)
	FindCollaborators(ctx context.Context, ids []uint64) ([]domain.Collaborator, error)
	FindCollaboratorByUser(ctx context.Context, userID uint64) (*domain.Collaborator, error)
	FindBank(ctx context.Context, id uint64) (*domain.CollaboratorBank, error)
}

type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (*domain.Coupon, error)
	FindByCodeForUpdate(ctx context.Context, code string) (*domain.Coupon, error)
	IncrementUsage(ctx context.Context, id uint64) error
	// ReleaseUsage decrements the usage count, never below zero.
	ReleaseUsage(ctx context.Context, id uint64) error
	// FindByOrder returns the coupon applied to an order, or nil.
	FindByOrder(ctx context.Context, orderID uint64) (*domain.OrderCoupon, error)
}

type WalletRepository interface {
	FindByOwner(ctx context.Context, ownerType domain.OwnerType, ownerID uint64) (*domain.Wallet, error)
	FindByOwnerForUpdate(ctx context.Context, ownerType domain.OwnerType, ownerID uint64) (*domain.Wallet, error)
	FindByIDForUpdate(ctx context.Context, id uint64) (*domain.Wallet, error)
	Create(ctx context.Context, wallet *domain.Wallet) error
	Save(ctx context.Context, wallet *domain.Wallet) error
	AddTransaction(ctx context.Context, tx *domain.WalletTransaction) error
	ListTransactions(ctx context.Context, walletID uint64, limit, offset int) ([]domain.WalletTransaction, error)
	ListTransactionsByReference(ctx context.Context, ref string, types ...domain.WalletTxType) ([]domain.WalletTransaction, error)
	SumTransactions(ctx context.Context, walletID uint64) (decimal.Decimal, error)
}

type DownloadRepository interface {
	FindFulfillment(ctx context.Context, orderID uint64) (*domain.OrderFulfillment, error)
	CreateFulfillment(ctx context.Context, f *domain.OrderFulfillment) error
	FindForUpdate(ctx context.Context, userID, contentID uint64) (*domain.Download, error)
	Create(ctx context.Context, d *domain.Download) error
	Save(ctx context.Context, d *domain.Download) error
	ListByUser(ctx context.Context, userID uint64) ([]domain.Download, error)
}

type WithdrawalRepository interface {
	Create(ctx context.Context, w *domain.Withdrawal) error
	FindByID(ctx context.Context, id uint64) (*domain.Withdrawal, error)
	FindByIDForUpdate(ctx context.Context, id uint64) (*domain.Withdrawal, error)
	Save(ctx context.Context, w *domain.Withdrawal) error
	ListByCollaborator(ctx context.Context, collaboratorID uint64) ([]domain.Withdrawal, error)
}
