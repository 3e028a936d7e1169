package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace-service/internal/domain"
	"marketplace-service/internal/infra/cache"
	"marketplace-service/internal/infra/payment"
	"marketplace-service/internal/mocks"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestOrderService_CreateOrder(t *testing.T) {
	tests := []struct {
		name          string
		input         CreateOrderInput
		setupMocks    func(*mocks.MockGateway)
		expectedError error
		check         func(t *testing.T, f *fixture, res *CheckoutResult)
	}{
		{
			name:  "direct buy through vnpay",
			input: CreateOrderInput{UserID: TestBuyerID, ContentID: ptr(TestContentID), Quantity: 2, PaymentMethod: "vnpay", ClientIP: "10.0.0.1"},
			setupMocks: func(gw *mocks.MockGateway) {
				gw.On("CreatePayment", mock.Anything, mock.MatchedBy(func(req payment.CreatePaymentRequest) bool {
					return req.Amount.Equal(decimal.NewFromInt(200000)) && req.ClientIP == "10.0.0.1" && req.PaymentID != 0
				})).Return(&payment.CreatePaymentResult{Success: true, PaymentURL: TestPaymentURL, TransactionID: "1"}, nil)
			},
			check: func(t *testing.T, f *fixture, res *CheckoutResult) {
				assert.Equal(t, TestPaymentURL, res.PaymentURL)
				assert.Equal(t, domain.OrderPending, res.Order.Status)
				assert.NotEmpty(t, res.Order.Reference)
				requireDecimal(t, "200000", res.Order.TotalAmount)
				require.Len(t, res.Order.Items, 1)
				assert.Equal(t, TestCollabID, *res.Order.Items[0].CollaboratorID)
				require.NotNil(t, res.Order.Payment)
				assert.Equal(t, domain.PaymentPending, res.Order.Payment.Status)
				requireDecimal(t, "200000", res.Order.Payment.Amount)
				require.Len(t, res.Order.Payment.Transactions, 1)
				assert.Equal(t, TestPaymentURL, res.Order.Payment.Transactions[0].PaymentURL)
				f.publisher.AssertCalled(t, "Publish", mock.Anything, domain.EventOrderCreated, mock.Anything)
			},
		},
		{
			name:  "bank transfer skips the gateway",
			input: CreateOrderInput{UserID: TestBuyerID, ContentID: ptr(TestFreeContentID), PaymentMethod: "bank_transfer"},
			check: func(t *testing.T, f *fixture, res *CheckoutResult) {
				assert.Empty(t, res.PaymentURL)
				assert.Equal(t, domain.MethodBankTransfer, res.Order.Payment.PaymentMethod)
				assert.Equal(t, 1, res.Order.Items[0].Quantity)
				assert.Nil(t, res.Order.Items[0].CollaboratorID)
			},
		},
		{
			name:          "unknown content",
			input:         CreateOrderInput{UserID: TestBuyerID, ContentID: ptr(uint64(999))},
			expectedError: domain.ErrContentNotFound,
		},
		{
			name:          "unpublished content",
			input:         CreateOrderInput{UserID: TestBuyerID, ContentID: ptr(TestHiddenContentID)},
			expectedError: domain.ErrContentNotFound,
		},
		{
			name:          "negative quantity",
			input:         CreateOrderInput{UserID: TestBuyerID, ContentID: ptr(TestContentID), Quantity: -1},
			expectedError: domain.ErrInvalidQuantity,
		},
		{
			name:          "unsupported payment method",
			input:         CreateOrderInput{UserID: TestBuyerID, ContentID: ptr(TestContentID), PaymentMethod: "momo"},
			expectedError: domain.ErrUnsupportedMethod,
		},
		{
			name:          "no cart",
			input:         CreateOrderInput{UserID: TestBuyerID},
			expectedError: domain.ErrCartNotFound,
		},
		{
			name:  "gateway error rolls back",
			input: CreateOrderInput{UserID: TestBuyerID, ContentID: ptr(TestContentID)},
			setupMocks: func(gw *mocks.MockGateway) {
				gw.On("CreatePayment", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))
			},
			expectedError: domain.ErrGatewayFailed,
		},
		{
			name:  "gateway refusal rolls back",
			input: CreateOrderInput{UserID: TestBuyerID, ContentID: ptr(TestContentID)},
			setupMocks: func(gw *mocks.MockGateway) {
				gw.On("CreatePayment", mock.Anything, mock.Anything).
					Return(&payment.CreatePaymentResult{Success: false, Error: "merchant locked"}, nil)
			},
			expectedError: domain.ErrGatewayFailed,
		},
		{
			name:          "invalid coupon",
			input:         CreateOrderInput{UserID: TestBuyerID, ContentID: ptr(TestContentID), CouponCode: "EXPIRED"},
			expectedError: domain.ErrCouponInvalid,
		},
		{
			name:          "unknown coupon",
			input:         CreateOrderInput{UserID: TestBuyerID, ContentID: ptr(TestContentID), CouponCode: "NOPE"},
			expectedError: domain.ErrCouponInvalid,
		},
		{
			name:          "coupon usage exhausted",
			input:         CreateOrderInput{UserID: TestBuyerID, ContentID: ptr(TestContentID), CouponCode: "ONCE"},
			expectedError: domain.ErrCouponInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setupMocks != nil {
				tt.setupMocks(f.gateway)
			}

			result, err := f.orders.CreateOrder(context.Background(), tt.input)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, result)

				var orders int64
				require.NoError(t, f.db.Model(&domain.Order{}).Count(&orders).Error)
				assert.Zero(t, orders, "failed checkout must not leave an order behind")
				var payments int64
				require.NoError(t, f.db.Model(&domain.Payment{}).Count(&payments).Error)
				assert.Zero(t, payments)
			} else {
				require.NoError(t, err)
				require.NotNil(t, result)
				tt.check(t, f, result)
			}

			f.gateway.AssertExpectations(t)
		})
	}
}

func TestOrderService_CreateOrderFromCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.acceptPayments()

	_, err := f.carts.AddItem(ctx, TestBuyerID, TestContentID, 1)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, TestBuyerID, TestSecondContentID, 2)
	require.NoError(t, err)

	// A later catalog change must not affect the price captured in the cart.
	require.NoError(t, f.db.Model(&domain.Content{}).Where("id = ?", TestContentID).
		Update("price", decimal.NewFromInt(999000)).Error)

	res, err := f.orders.CreateOrder(ctx, CreateOrderInput{UserID: TestBuyerID, CouponCode: "SAVE10"})
	require.NoError(t, err)

	o := res.Order
	require.Len(t, o.Items, 2)
	assert.Equal(t, TestContentID, o.Items[0].ContentID)
	requireDecimal(t, "100000", o.Items[0].Price)
	assert.Equal(t, TestSecondCollabID, *o.Items[1].CollaboratorID)
	requireDecimal(t, "200000", o.Subtotal())

	// 10% of 200000 is 20000, capped at 15000.
	require.NotNil(t, o.Coupon)
	requireDecimal(t, "15000", o.Coupon.DiscountAmount)
	requireDecimal(t, "185000", o.TotalAmount)
	requireDecimal(t, "185000", o.Payment.Amount)

	cart, err := f.store.Carts().FindByUser(ctx, TestBuyerID)
	require.NoError(t, err)
	assert.Nil(t, cart, "checkout consumes the cart")

	coupon, err := f.store.Coupons().FindByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 1, coupon.UsedCount)

	_, err = f.orders.CreateOrder(ctx, CreateOrderInput{UserID: TestBuyerID})
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
}

func TestOrderService_CreateOrderEmptyCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.carts.AddItem(ctx, TestBuyerID, TestContentID, 1)
	require.NoError(t, err)
	_, err = f.carts.RemoveItem(ctx, TestBuyerID, TestContentID)
	require.NoError(t, err)

	_, err = f.orders.CreateOrder(ctx, CreateOrderInput{UserID: TestBuyerID})
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestOrderService_ZeroTotalSettlesImmediately(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.orders.CreateOrder(ctx, CreateOrderInput{
		UserID: TestBuyerID, ContentID: ptr(TestContentID), Quantity: 1, CouponCode: "FREE",
	})
	require.NoError(t, err)

	assert.Empty(t, res.PaymentURL)
	assert.True(t, res.Order.TotalAmount.IsZero())
	assert.Equal(t, domain.OrderPaid, res.Order.Status)
	assert.Equal(t, domain.PaymentSuccess, res.Order.Payment.Status)
	assert.NotNil(t, res.Order.Payment.PaidAt)

	// Commission is earned on the item value, not on what the buyer paid.
	w := f.collaboratorWallet(t, TestCollabID)
	require.NotNil(t, w)
	requireDecimal(t, "20000", w.Balance)

	downloads, err := f.downloads.ListDownloads(ctx, TestBuyerID)
	require.NoError(t, err)
	require.Len(t, downloads, 1)
	assert.Equal(t, domain.DownloadsPerUnit, downloads[0].DownloadCount)

	f.gateway.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything)
	f.publisher.AssertCalled(t, "Publish", mock.Anything, domain.EventOrderCreated, mock.Anything)
	f.publisher.AssertCalled(t, "Publish", mock.Anything, domain.EventOrderPaid, mock.Anything)
}

func TestOrderService_GetOrder(t *testing.T) {
	f := newFixture(t)
	f.acceptPayments()
	o := f.pendingOrder(t, TestContentID, 1)

	tests := []struct {
		name          string
		actor         domain.Actor
		orderID       uint64
		expectedError error
	}{
		{name: "owner", actor: buyer, orderID: o.ID},
		{name: "admin", actor: admin, orderID: o.ID},
		{name: "other user", actor: domain.Actor{UserID: TestOtherUserID, Role: domain.RoleUser}, orderID: o.ID, expectedError: domain.ErrForbidden},
		{name: "missing", actor: admin, orderID: 4242, expectedError: domain.ErrOrderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.orders.GetOrder(context.Background(), tt.actor, tt.orderID)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, o.ID, got.ID)
			assert.NotNil(t, got.Payment)
		})
	}
}

func TestOrderService_GetOrderCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.acceptPayments()
	o := f.pendingOrder(t, TestContentID, 1)

	t.Run("miss loads and fills", func(t *testing.T) {
		c := new(mocks.MockOrderCache)
		c.On("Get", mock.Anything, o.ID).Return(nil, cache.ErrCacheMiss).Once()
		c.On("Set", mock.Anything, mock.MatchedBy(func(got *domain.Order) bool { return got.ID == o.ID })).Return(nil).Once()
		f.orders.cache = c

		got, err := f.orders.GetOrder(ctx, buyer, o.ID)
		require.NoError(t, err)
		assert.Equal(t, o.Reference, got.Reference)
		c.AssertExpectations(t)
	})

	t.Run("hit skips the database", func(t *testing.T) {
		cached := &domain.Order{ID: 777, UserID: TestBuyerID, Status: domain.OrderPaid}
		c := new(mocks.MockOrderCache)
		c.On("Get", mock.Anything, uint64(777)).Return(cached, nil).Once()
		f.orders.cache = c

		got, err := f.orders.GetOrder(ctx, buyer, 777)
		require.NoError(t, err)
		assert.Same(t, cached, got)
		c.AssertExpectations(t)
	})

	t.Run("cache failure falls back to the database", func(t *testing.T) {
		c := new(mocks.MockOrderCache)
		c.On("Get", mock.Anything, o.ID).Return(nil, errors.New("redis down"))
		c.On("Set", mock.Anything, mock.Anything).Return(errors.New("redis down"))
		f.orders.cache = c

		got, err := f.orders.GetOrder(ctx, buyer, o.ID)
		require.NoError(t, err)
		assert.Equal(t, o.ID, got.ID)
	})
}

func TestOrderService_ListOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.acceptPayments()
	first := f.pendingOrder(t, TestContentID, 1)
	second := f.pendingOrder(t, TestSecondContentID, 1)

	list, err := f.orders.ListOrders(ctx, TestBuyerID, 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	page, err := f.orders.ListOrders(ctx, TestBuyerID, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)

	none, err := f.orders.ListOrders(ctx, TestOtherUserID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOrderService_CancelOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.acceptPayments()
	o := f.pendingOrder(t, TestContentID, 1)

	_, err := f.orders.CancelOrder(ctx, domain.Actor{UserID: TestOtherUserID, Role: domain.RoleUser}, o.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	cancelled, err := f.orders.CancelOrder(ctx, buyer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, cancelled.Status)

	got := f.reloadOrder(t, o.ID)
	assert.Equal(t, domain.OrderCancelled, got.Status)
	assert.Equal(t, domain.PaymentFailed, got.Payment.Status)
	f.publisher.AssertCalled(t, "Publish", mock.Anything, domain.EventOrderCancelled, mock.Anything)

	_, err = f.orders.CancelOrder(ctx, buyer, o.ID)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	_, err = f.orders.CancelOrder(ctx, buyer, 4242)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderService_ExpirePendingOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.acceptPayments()
	stale := f.pendingOrder(t, TestContentID, 1)
	paid := f.pendingOrder(t, TestSecondContentID, 1)

	_, err := f.payments.ProcessNotification(ctx, f.notification(paid, "00", "9001"))
	require.NoError(t, err)

	n, err := f.orders.ExpirePendingOrders(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "fresh orders are kept")

	f.gateway.On("CheckPaymentStatus", mock.Anything, mock.MatchedBy(func(r payment.StatusRequest) bool {
		return r.PaymentID == stale.Payment.ID
	})).Return(&payment.StatusResult{ResponseCode: "00", TransactionStatus: "01"}, nil).Once()

	f.orders.now = func() time.Time { return time.Now().Add(time.Hour) }
	n, err = f.orders.ExpirePendingOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, domain.OrderCancelled, f.reloadOrder(t, stale.ID).Status)
	assert.Equal(t, domain.OrderPaid, f.reloadOrder(t, paid.ID).Status)
	f.gateway.AssertExpectations(t)
}

func TestOrderService_ExpirePendingOrdersChecksProvider(t *testing.T) {
	tests := []struct {
		name          string
		setupMocks    func(f *fixture, o *domain.Order)
		expectedCount int
		orderStatus   domain.OrderStatus
		paymentStatus domain.PaymentStatus
	}{
		{
			name: "provider reports paid",
			setupMocks: func(f *fixture, o *domain.Order) {
				f.gateway.On("CheckPaymentStatus", mock.Anything, mock.Anything).
					Return(&payment.StatusResult{Success: true, ResponseCode: "00", TransactionStatus: "00",
						TransactionNo: "14009999", Amount: o.TotalAmount, Raw: `{"vnp_ResponseCode":"00"}`}, nil)
			},
			expectedCount: 0,
			orderStatus:   domain.OrderPaid,
			paymentStatus: domain.PaymentSuccess,
		},
		{
			name: "provider reports paid with another amount",
			setupMocks: func(f *fixture, o *domain.Order) {
				f.gateway.On("CheckPaymentStatus", mock.Anything, mock.Anything).
					Return(&payment.StatusResult{Success: true, TransactionNo: "14009999", Amount: decimal.NewFromInt(1)}, nil)
			},
			expectedCount: 1,
			orderStatus:   domain.OrderCancelled,
			paymentStatus: domain.PaymentFailed,
		},
		{
			name: "provider unreachable",
			setupMocks: func(f *fixture, o *domain.Order) {
				f.gateway.On("CheckPaymentStatus", mock.Anything, mock.Anything).
					Return(nil, errors.New("connection refused"))
			},
			expectedCount: 0,
			orderStatus:   domain.OrderPending,
			paymentStatus: domain.PaymentPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			f.acceptPayments()
			o := f.pendingOrder(t, TestContentID, 1)
			tt.setupMocks(f, o)

			f.orders.now = func() time.Time { return time.Now().Add(time.Hour) }
			n, err := f.orders.ExpirePendingOrders(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCount, n)

			got := f.reloadOrder(t, o.ID)
			assert.Equal(t, tt.orderStatus, got.Status)
			require.NotNil(t, got.Payment)
			assert.Equal(t, tt.paymentStatus, got.Payment.Status)
		})
	}
}

func TestOrderService_ExpireLatePaymentSettlesCommission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.acceptPayments()
	o := f.pendingOrder(t, TestContentID, 2)
	f.gateway.On("CheckPaymentStatus", mock.Anything, mock.Anything).
		Return(&payment.StatusResult{Success: true, TransactionNo: "14001234", Amount: o.TotalAmount}, nil)

	f.orders.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err := f.orders.ExpirePendingOrders(ctx)
	require.NoError(t, err)

	requireDecimal(t, "40000", f.collaboratorWallet(t, TestCollabID).Balance)
	d, err := f.store.Downloads().FindForUpdate(ctx, TestBuyerID, TestContentID)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 10, d.DownloadCount)

	// a notification arriving afterwards is a duplicate
	res, err := f.payments.ProcessNotification(ctx, f.notification(o, "00", "14001234"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, res.Outcome)
}

func TestOrderService_ConfirmPayment(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(t *testing.T, f *fixture) uint64
		expectedError error
	}{
		{
			name: "bank transfer",
			setup: func(t *testing.T, f *fixture) uint64 {
				return f.bankTransferOrder(t, TestContentID, 2).ID
			},
		},
		{
			name: "online payment waits for the provider",
			setup: func(t *testing.T, f *fixture) uint64 {
				f.acceptPayments()
				return f.pendingOrder(t, TestContentID, 2).ID
			},
			expectedError: domain.ErrIllegalTransition,
		},
		{
			name: "already confirmed",
			setup: func(t *testing.T, f *fixture) uint64 {
				o := f.bankTransferOrder(t, TestContentID, 2)
				_, err := f.orders.ConfirmPayment(context.Background(), admin, o.ID, "")
				require.NoError(t, err)
				return o.ID
			},
			expectedError: domain.ErrIllegalTransition,
		},
		{
			name: "cancelled order",
			setup: func(t *testing.T, f *fixture) uint64 {
				o := f.bankTransferOrder(t, TestContentID, 2)
				_, err := f.orders.CancelOrder(context.Background(), buyer, o.ID)
				require.NoError(t, err)
				return o.ID
			},
			expectedError: domain.ErrIllegalTransition,
		},
		{
			name:          "unknown order",
			setup:         func(t *testing.T, f *fixture) uint64 { return 4242 },
			expectedError: domain.ErrOrderNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			id := tt.setup(t, f)

			order, err := f.orders.ConfirmPayment(ctx, admin, id, "FT2501020001")
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.OrderPaid, order.Status)

			got := f.reloadOrder(t, id)
			assert.Equal(t, domain.OrderPaid, got.Status)
			require.NotNil(t, got.Payment)
			assert.Equal(t, domain.PaymentSuccess, got.Payment.Status)
			assert.NotNil(t, got.Payment.PaidAt)
			require.Len(t, got.Payment.Transactions, 1)
			assert.Equal(t, "FT2501020001", got.Payment.Transactions[0].TransactionID)

			requireDecimal(t, "40000", f.collaboratorWallet(t, TestCollabID).Balance)
			d, err := f.store.Downloads().FindForUpdate(ctx, TestBuyerID, TestContentID)
			require.NoError(t, err)
			require.NotNil(t, d)
			assert.Equal(t, 10, d.DownloadCount)
			f.publisher.AssertCalled(t, "Publish", mock.Anything, domain.EventOrderPaid, mock.Anything)
			f.gateway.AssertNotCalled(t, "CheckPaymentStatus", mock.Anything, mock.Anything)
		})
	}
}

func TestOrderService_ExpireKeepsBankTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.bankTransferOrder(t, TestContentID, 1)

	f.orders.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	n, err := f.orders.ExpirePendingOrders(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got := f.reloadOrder(t, o.ID)
	assert.Equal(t, domain.OrderPending, got.Status)
	assert.Equal(t, domain.PaymentPending, got.Payment.Status)
	f.gateway.AssertNotCalled(t, "CheckPaymentStatus", mock.Anything, mock.Anything)

	_, err = f.orders.ConfirmPayment(ctx, admin, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, f.reloadOrder(t, o.ID).Status)
}

func TestOrderService_ExpireQuotesCheckoutTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.acceptPayments()
	o := f.pendingOrder(t, TestContentID, 1)

	got := f.reloadOrder(t, o.ID)
	require.Len(t, got.Payment.Transactions, 1)
	require.NotNil(t, got.Payment.Transactions[0].RequestedAt)
	assert.True(t, got.Payment.Transactions[0].RequestedAt.Equal(testCheckoutTime))

	f.gateway.On("CheckPaymentStatus", mock.Anything, mock.MatchedBy(func(r payment.StatusRequest) bool {
		return r.PaymentID == o.Payment.ID && r.TransactionDate.Equal(testCheckoutTime)
	})).Return(&payment.StatusResult{ResponseCode: "00", TransactionStatus: "01"}, nil).Once()

	f.orders.now = func() time.Time { return time.Now().Add(time.Hour) }
	n, err := f.orders.ExpirePendingOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	f.gateway.AssertExpectations(t)
}

func TestOrderService_ClosingOrderReleasesCoupon(t *testing.T) {
	tests := []struct {
		name        string
		setupMocks  func(f *fixture)
		close       func(t *testing.T, f *fixture, o *domain.Order)
		orderStatus domain.OrderStatus
		usedCount   int
	}{
		{
			name: "buyer cancels",
			close: func(t *testing.T, f *fixture, o *domain.Order) {
				_, err := f.orders.CancelOrder(context.Background(), buyer, o.ID)
				require.NoError(t, err)
			},
			orderStatus: domain.OrderCancelled,
		},
		{
			name: "order expires",
			setupMocks: func(f *fixture) {
				f.gateway.On("CheckPaymentStatus", mock.Anything, mock.Anything).
					Return(&payment.StatusResult{ResponseCode: "00", TransactionStatus: "01"}, nil)
			},
			close: func(t *testing.T, f *fixture, o *domain.Order) {
				f.orders.now = func() time.Time { return time.Now().Add(time.Hour) }
				_, err := f.orders.ExpirePendingOrders(context.Background())
				require.NoError(t, err)
			},
			orderStatus: domain.OrderCancelled,
		},
		{
			name: "payment declined",
			close: func(t *testing.T, f *fixture, o *domain.Order) {
				_, err := f.payments.ProcessNotification(context.Background(), f.notification(o, "24", "14005555"))
				require.NoError(t, err)
			},
			orderStatus: domain.OrderFailed,
		},
		{
			name: "declined twice releases once",
			close: func(t *testing.T, f *fixture, o *domain.Order) {
				for _, txNo := range []string{"14005555", "14005556"} {
					_, err := f.payments.ProcessNotification(context.Background(), f.notification(o, "24", txNo))
					require.NoError(t, err)
				}
			},
			orderStatus: domain.OrderFailed,
		},
		{
			name: "payment succeeds",
			close: func(t *testing.T, f *fixture, o *domain.Order) {
				_, err := f.payments.ProcessNotification(context.Background(), f.notification(o, "00", "14005557"))
				require.NoError(t, err)
			},
			orderStatus: domain.OrderPaid,
			usedCount:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			f.acceptPayments()
			if tt.setupMocks != nil {
				tt.setupMocks(f)
			}
			res, err := f.orders.CreateOrder(ctx, CreateOrderInput{
				UserID:        TestBuyerID,
				ContentID:     ptr(TestContentID),
				Quantity:      1,
				CouponCode:    "SAVE10",
				PaymentMethod: "vnpay",
			})
			require.NoError(t, err)
			coupon, err := f.store.Coupons().FindByCode(ctx, "SAVE10")
			require.NoError(t, err)
			require.Equal(t, 1, coupon.UsedCount)

			tt.close(t, f, res.Order)

			assert.Equal(t, tt.orderStatus, f.reloadOrder(t, res.Order.ID).Status)
			coupon, err = f.store.Coupons().FindByCode(ctx, "SAVE10")
			require.NoError(t, err)
			assert.Equal(t, tt.usedCount, coupon.UsedCount)
		})
	}
}
