package services

import (
	"context"
	"testing"
	"time"

	"marketplace-service/internal/config"
	"marketplace-service/internal/domain"
	"marketplace-service/internal/infra/lock"
	"marketplace-service/internal/infra/payment"
	"marketplace-service/internal/mocks"
	"marketplace-service/internal/repository"
	"marketplace-service/internal/repository/mysql"
	"marketplace-service/internal/testsuite"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	TestBuyerID         = uint64(1)
	TestOtherUserID     = uint64(2)
	TestAdminID         = uint64(9)
	TestCollabUserID    = uint64(100)
	TestCollabID        = uint64(1)
	TestSecondCollabID  = uint64(2)
	TestContentID       = uint64(10)
	TestSecondContentID = uint64(11)
	TestFreeContentID   = uint64(12)
	TestHiddenContentID = uint64(13)
	TestPaymentURL      = "https://sandbox.vnpayment.vn/pay?token=abc"
)

var (
	buyer = domain.Actor{UserID: TestBuyerID, Role: domain.RoleUser}
	admin = domain.Actor{UserID: TestAdminID, Role: domain.RoleAdmin}

	// testCheckoutTime is the creation time the mock gateway reports signing.
	testCheckoutTime = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
)

type fixture struct {
	db          *gorm.DB
	store       repository.Store
	gateway     *mocks.MockGateway
	publisher   *mocks.MockPublisher
	vnpay       *payment.VNPay
	commissions *CommissionService
	downloads   *DownloadService
	orders      *OrderService
	payments    *PaymentService
	carts       *CartService
	wallets     *WalletService
	withdrawals *WithdrawalService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testsuite.NewDB(t)
	seedCatalog(t, db)
	store := mysql.NewStore(db)

	gw := new(mocks.MockGateway)
	pub := new(mocks.MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	vnp := payment.NewVNPay(config.VNPay{
		TmnCode:    "TESTTMN1",
		HashSecret: "SECRETKEY",
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "http://localhost:8080/payments/vnpay/return",
		Version:    "2.1.0",
		Locale:     "vn",
		OrderType:  "other",
		APITimeout: time.Second,
	})

	commissions := NewCommissionService(store)
	downloads := NewDownloadService(store)

	return &fixture{
		db:          db,
		store:       store,
		gateway:     gw,
		publisher:   pub,
		vnpay:       vnp,
		commissions: commissions,
		downloads:   downloads,
		orders:      NewOrderService(store, payment.NewRegistry(gw), pub, nil, commissions, downloads, 30*time.Minute),
		payments:    NewPaymentService(store, payment.NewRegistry(vnp), lock.Noop{}, nil, pub, commissions, downloads),
		carts:       NewCartService(store),
		wallets:     NewWalletService(store),
		withdrawals: NewWithdrawalService(store, pub, domain.DefaultWithdrawalPolicy()),
	}
}

func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()

	rate := decimal.NewFromInt(20)
	collab, second := TestCollabID, TestSecondCollabID
	maxDiscount := decimal.NewFromInt(15000)
	expired := time.Now().Add(-24 * time.Hour)
	limit := 1

	testsuite.MustCreate(t, db,
		&domain.Collaborator{ID: TestCollabID, UserID: TestCollabUserID, DisplayName: "Alice", CommissionRate: &rate},
		&domain.Collaborator{ID: TestSecondCollabID, UserID: 200, DisplayName: "Bob"},
		&domain.CollaboratorBank{ID: 1, CollaboratorID: TestCollabID, BankName: "VCB", AccountNumber: "0011", AccountHolder: "ALICE"},
		&domain.CollaboratorBank{ID: 2, CollaboratorID: TestSecondCollabID, BankName: "ACB", AccountNumber: "0022", AccountHolder: "BOB"},
		&domain.Content{ID: TestContentID, Title: "Go in practice", Price: decimal.NewFromInt(100000), CollaboratorID: &collab, IsPublished: true},
		&domain.Content{ID: TestSecondContentID, Title: "SQL basics", Price: decimal.NewFromInt(50000), CollaboratorID: &second, IsPublished: true},
		&domain.Content{ID: TestFreeContentID, Title: "House notes", Price: decimal.NewFromInt(30000), IsPublished: true},
		&domain.Content{ID: TestHiddenContentID, Title: "Draft", Price: decimal.NewFromInt(70000), CollaboratorID: &collab},
		&domain.Coupon{Code: "SAVE10", Type: domain.CouponPercent, Value: decimal.NewFromInt(10), MaxDiscount: &maxDiscount, IsActive: true},
		&domain.Coupon{Code: "FREE", Type: domain.CouponFixed, Value: decimal.NewFromInt(1000000), IsActive: true},
		&domain.Coupon{Code: "EXPIRED", Type: domain.CouponPercent, Value: decimal.NewFromInt(50), ExpiresAt: &expired, IsActive: true},
		&domain.Coupon{Code: "ONCE", Type: domain.CouponFixed, Value: decimal.NewFromInt(10000), UsageLimit: &limit, UsedCount: 1, IsActive: true},
	)
}

// acceptPayments makes the mock gateway hand out a payment URL.
func (f *fixture) acceptPayments() {
	f.gateway.On("CreatePayment", mock.Anything, mock.AnythingOfType("payment.CreatePaymentRequest")).
		Return(&payment.CreatePaymentResult{Success: true, PaymentURL: TestPaymentURL, TransactionID: "txn-ref", CreatedAt: testCheckoutTime}, nil)
}

// pendingOrder checks out quantity of contentID through the online gateway.
func (f *fixture) pendingOrder(t *testing.T, contentID uint64, quantity int) *domain.Order {
	t.Helper()
	res, err := f.orders.CreateOrder(context.Background(), CreateOrderInput{
		UserID:        TestBuyerID,
		ContentID:     &contentID,
		Quantity:      quantity,
		PaymentMethod: "vnpay",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Order.Payment)
	return res.Order
}

// bankTransferOrder checks out quantity of contentID for offline payment.
func (f *fixture) bankTransferOrder(t *testing.T, contentID uint64, quantity int) *domain.Order {
	t.Helper()
	res, err := f.orders.CreateOrder(context.Background(), CreateOrderInput{
		UserID:        TestBuyerID,
		ContentID:     &contentID,
		Quantity:      quantity,
		PaymentMethod: "bank_transfer",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Order.Payment)
	return res.Order
}

func (f *fixture) notification(o *domain.Order, code, txNo string) *payment.Notification {
	return &payment.Notification{
		Provider:      payment.ProviderVNPay,
		PaymentID:     o.Payment.ID,
		ResponseCode:  code,
		TransactionNo: txNo,
		Amount:        o.TotalAmount,
		HasAmount:     true,
		Raw:           "vnp_ResponseCode=" + code,
	}
}

func (f *fixture) reloadOrder(t *testing.T, id uint64) *domain.Order {
	t.Helper()
	o, err := f.store.Orders().FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, o)
	return o
}

func (f *fixture) collaboratorWallet(t *testing.T, collabID uint64) *domain.Wallet {
	t.Helper()
	w, err := f.store.Wallets().FindByOwner(context.Background(), domain.OwnerCollaborator, collabID)
	require.NoError(t, err)
	return w
}

// fundWallet credits collabID through the ledger so balance and history agree.
func (f *fixture) fundWallet(t *testing.T, collabID uint64, amount int64) *domain.Wallet {
	t.Helper()
	ctx := context.Background()
	var out *domain.Wallet
	require.NoError(t, f.store.WithinTx(ctx, func(tx repository.Store) error {
		w, err := lockOrCreateWallet(ctx, tx, domain.OwnerCollaborator, collabID)
		if err != nil {
			return err
		}
		entry, err := w.Credit(decimal.NewFromInt(amount), domain.TxCredit, "seed", "opening balance")
		if err != nil {
			return err
		}
		if err := tx.Wallets().AddTransaction(ctx, entry); err != nil {
			return err
		}
		out = w
		return tx.Wallets().Save(ctx, w)
	}))
	return out
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got.String())
}

// lockRecorder notes every row lock taken on orders and payments, in order.
type lockRecorder struct {
	repository.Store
	locks *[]string
}

func (r lockRecorder) Orders() repository.OrderRepository {
	return orderLocks{OrderRepository: r.Store.Orders(), locks: r.locks}
}

func (r lockRecorder) Payments() repository.PaymentRepository {
	return paymentLocks{PaymentRepository: r.Store.Payments(), locks: r.locks}
}

func (r lockRecorder) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return r.Store.WithinTx(ctx, func(tx repository.Store) error {
		return fn(lockRecorder{Store: tx, locks: r.locks})
	})
}

type orderLocks struct {
	repository.OrderRepository
	locks *[]string
}

func (o orderLocks) FindByIDForUpdate(ctx context.Context, id uint64) (*domain.Order, error) {
	*o.locks = append(*o.locks, "order")
	return o.OrderRepository.FindByIDForUpdate(ctx, id)
}

type paymentLocks struct {
	repository.PaymentRepository
	locks *[]string
}

func (p paymentLocks) FindByIDForUpdate(ctx context.Context, id uint64) (*domain.Payment, error) {
	*p.locks = append(*p.locks, "payment")
	return p.PaymentRepository.FindByIDForUpdate(ctx, id)
}
