package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"marketplace-service/internal/domain"
	"marketplace-service/internal/infra/cache"
	"marketplace-service/internal/infra/logging"
	"marketplace-service/internal/infra/payment"
	rabbit "marketplace-service/internal/infra/rabbitmq"
	"marketplace-service/internal/repository"

	"github.com/go-logr/logr"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	expiryBatchSize = 200
)

// CreateOrderInput selects between a direct buy (ContentID set) and a
// checkout of the caller's whole cart.
type CreateOrderInput struct {
	UserID        uint64
	ContentID     *uint64
	Quantity      int
	CouponCode    string
	PaymentMethod string
	ClientIP      string
}

type CheckoutResult struct {
	Order      *domain.Order `json:"order"`
	PaymentURL string        `json:"paymentUrl,omitempty"`
}

type OrderService struct {
	store       repository.Store
	gateways    *payment.Registry
	publisher   rabbit.PublisherInterface
	cache       cache.OrderCache
	commissions *CommissionService
	downloads   *DownloadService
	logger      logr.Logger
	now         func() time.Time
	pendingTTL  time.Duration
	sf          singleflight.Group
}

func NewOrderService(
	store repository.Store,
	gateways *payment.Registry,
	pub rabbit.PublisherInterface,
	orderCache cache.OrderCache,
	commissions *CommissionService,
	downloads *DownloadService,
	pendingTTL time.Duration,
) *OrderService {
	if orderCache == nil {
		orderCache = cache.Noop{}
	}
	return &OrderService{
		store:       store,
		gateways:    gateways,
		publisher:   pub,
		cache:       orderCache,
		commissions: commissions,
		downloads:   downloads,
		logger:      logging.New("order"),
		now:         time.Now,
		pendingTTL:  pendingTTL,
	}
}

// CreateOrder assembles an order, its payment and an optional coupon in one
// transaction. For online methods the hosted payment URL is requested before
// commit so a gateway failure leaves nothing behind.
func (u *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*CheckoutResult, error) {
	method, err := domain.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return nil, err
	}

	var (
		orderID    uint64
		paymentURL string
		settled    bool
	)
	err = u.store.WithinTx(ctx, func(tx repository.Store) error {
		settled = false
		items, err := u.resolveItems(ctx, tx, in)
		if err != nil {
			return err
		}

		subtotal := decimal.Zero
		for _, item := range items {
			subtotal = subtotal.Add(item.LineTotal())
		}

		coupon, discount, err := u.applyCoupon(ctx, tx, in.CouponCode, subtotal)
		if err != nil {
			return err
		}

		order := domain.NewOrder(in.UserID, items, discount)
		if coupon != nil {
			order.Coupon = &domain.OrderCoupon{
				CouponID:       coupon.ID,
				Code:           coupon.Code,
				DiscountAmount: discount,
				AppliedAt:      u.now(),
			}
		}
		order.Payment = &domain.Payment{
			Amount:        order.TotalAmount,
			PaymentMethod: method,
			Status:        domain.PaymentPending,
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		orderID = order.ID

		if order.TotalAmount.IsZero() {
			won, err := settlePayment(ctx, tx, order.Payment, order, u.now(), u.commissions, u.downloads)
			if err != nil {
				return err
			}
			settled = won
			return nil
		}

		if !method.IsOnline() {
			return nil
		}
		paymentURL, err = u.requestPaymentURL(ctx, tx, order, method, in.ClientIP)
		return err
	})
	if err != nil {
		return nil, err
	}

	order, err := u.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	events := []pendingEvent{{domain.EventOrderCreated, domain.NewOrderEvent(order)}}
	if settled {
		events = append(events, pendingEvent{domain.EventOrderPaid, domain.NewOrderEvent(order)})
	}
	publishAll(ctx, u.publisher, u.logger, events)

	u.logger.Info("order created", "orderId", order.ID, "reference", order.Reference, "userId", order.UserID,
		"total", order.TotalAmount.String(), "method", method, "settled", settled)
	return &CheckoutResult{Order: order, PaymentURL: paymentURL}, nil
}

// resolveItems snapshots the lines to buy. A direct buy reads the current
// catalog price; a cart checkout keeps the price captured when the line was
// added and consumes the cart.
func (u *OrderService) resolveItems(ctx context.Context, tx repository.Store, in CreateOrderInput) ([]domain.OrderItem, error) {
	if in.ContentID != nil {
		qty := in.Quantity
		if qty == 0 {
			qty = 1
		}
		if qty < 1 {
			return nil, domain.ErrInvalidQuantity
		}
		content, err := tx.Catalog().FindContent(ctx, *in.ContentID)
		if err != nil {
			return nil, err
		}
		if content == nil || !content.IsPublished {
			return nil, domain.ErrContentNotFound.WithDetail("content %d", *in.ContentID)
		}
		return []domain.OrderItem{{
			ContentID:      content.ID,
			Price:          content.Price,
			Quantity:       qty,
			CollaboratorID: content.CollaboratorID,
		}}, nil
	}

	cart, err := tx.Carts().FindByUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, domain.ErrCartNotFound
	}
	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	contents, err := tx.Catalog().FindContents(ctx, cart.ContentIDs())
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]domain.Content, len(contents))
	for _, c := range contents {
		byID[c.ID] = c
	}

	items := make([]domain.OrderItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		content, ok := byID[line.ContentID]
		if !ok {
			return nil, domain.ErrContentNotFound.WithDetail("content %d", line.ContentID)
		}
		items = append(items, domain.OrderItem{
			ContentID:      line.ContentID,
			Price:          line.Price,
			Quantity:       line.Quantity,
			CollaboratorID: content.CollaboratorID,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ContentID < items[j].ContentID })

	if err := tx.Carts().Delete(ctx, cart.ID); err != nil {
		return nil, fmt.Errorf("delete cart: %w", err)
	}
	return items, nil
}

func (u *OrderService) applyCoupon(ctx context.Context, tx repository.Store, code string, subtotal decimal.Decimal) (*domain.Coupon, decimal.Decimal, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, decimal.Zero, nil
	}
	coupon, err := tx.Coupons().FindByCodeForUpdate(ctx, code)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if coupon == nil {
		return nil, decimal.Zero, domain.ErrCouponInvalid.WithDetail("unknown code %q", code)
	}
	if err := coupon.Validate(subtotal, u.now()); err != nil {
		return nil, decimal.Zero, err
	}
	if err := tx.Coupons().IncrementUsage(ctx, coupon.ID); err != nil {
		return nil, decimal.Zero, err
	}
	return coupon, coupon.CalculateDiscount(subtotal), nil
}

// releaseCoupon gives back the usage an order consumed at checkout. Callers
// invoke it once, after moving the order out of pending.
func releaseCoupon(ctx context.Context, tx repository.Store, orderID uint64) error {
	applied, err := tx.Coupons().FindByOrder(ctx, orderID)
	if err != nil || applied == nil {
		return err
	}
	return tx.Coupons().ReleaseUsage(ctx, applied.CouponID)
}

func (u *OrderService) requestPaymentURL(ctx context.Context, tx repository.Store, order *domain.Order, method domain.PaymentMethod, clientIP string) (string, error) {
	gw, err := u.gateways.Get(payment.Provider(method))
	if err != nil {
		return "", domain.ErrUnsupportedMethod.WithDetail("%s", method)
	}
	res, err := gw.CreatePayment(ctx, payment.CreatePaymentRequest{
		PaymentID: order.Payment.ID,
		OrderID:   order.ID,
		Amount:    order.TotalAmount,
		OrderInfo: "Thanh toan don hang " + order.Reference,
		ClientIP:  clientIP,
	})
	if err != nil {
		return "", domain.ErrGatewayFailed.WithDetail("%v", err)
	}
	if !res.Success || res.PaymentURL == "" {
		return "", domain.ErrGatewayFailed.WithDetail("%s", res.Error)
	}
	rec := &domain.PaymentTransaction{
		PaymentID:     order.Payment.ID,
		Provider:      string(gw.Provider()),
		TransactionID: res.TransactionID,
		PaymentURL:    res.PaymentURL,
	}
	if !res.CreatedAt.IsZero() {
		requested := res.CreatedAt.UTC()
		rec.RequestedAt = &requested
	}
	err = tx.Payments().AddTransaction(ctx, rec)
	if err != nil {
		return "", err
	}
	return res.PaymentURL, nil
}

// GetOrder returns a hydrated order readable by its owner or an admin.
func (u *OrderService) GetOrder(ctx context.Context, actor domain.Actor, id uint64) (*domain.Order, error) {
	order, err := u.cache.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			u.logger.Error(err, "order cache read", "orderId", id)
		}
		v, err, _ := u.sf.Do(strconv.FormatUint(id, 10), func() (any, error) {
			o, err := u.store.Orders().FindByID(ctx, id)
			if err != nil || o == nil {
				return o, err
			}
			if err := u.cache.Set(ctx, o); err != nil {
				u.logger.Error(err, "order cache write", "orderId", id)
			}
			return o, nil
		})
		if err != nil {
			return nil, err
		}
		order, _ = v.(*domain.Order)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	if !actor.CanAccess(order.UserID) {
		return nil, domain.ErrForbidden
	}
	return order, nil
}

func (u *OrderService) ListOrders(ctx context.Context, userID uint64, page, size int) ([]domain.Order, error) {
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return u.store.Orders().ListByUser(ctx, userID, size, (page-1)*size)
}

// CancelOrder cancels a pending order on behalf of its owner or an admin.
func (u *OrderService) CancelOrder(ctx context.Context, actor domain.Actor, id uint64) (*domain.Order, error) {
	var order *domain.Order
	err := u.store.WithinTx(ctx, func(tx repository.Store) error {
		o, err := tx.Orders().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.ErrOrderNotFound
		}
		if !actor.CanAccess(o.UserID) {
			return domain.ErrForbidden
		}
		if err := u.cancel(ctx, tx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.afterCancel(ctx, order, "cancelled by user")
	return order, nil
}

// ConfirmPayment settles an offline payment after an admin has matched the
// incoming transfer. reference is the bank's transfer reference, if known.
func (u *OrderService) ConfirmPayment(ctx context.Context, admin domain.Actor, id uint64, reference string) (*domain.Order, error) {
	var order *domain.Order
	err := u.store.WithinTx(ctx, func(tx repository.Store) error {
		o, err := tx.Orders().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.ErrOrderNotFound
		}
		ref, err := tx.Payments().FindByOrderID(ctx, o.ID)
		if err != nil {
			return err
		}
		if ref == nil {
			return domain.ErrPaymentNotFound
		}
		p, err := tx.Payments().FindByIDForUpdate(ctx, ref.ID)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.ErrPaymentNotFound
		}
		if p.PaymentMethod.IsOnline() {
			return domain.ErrIllegalTransition.WithDetail("order %d is paid through %s", o.ID, p.PaymentMethod)
		}
		if o.Status != domain.OrderPending || p.Status != domain.PaymentPending {
			return domain.ErrIllegalTransition.WithDetail("order %d is %s", o.ID, o.Status)
		}

		err = tx.Payments().AddTransaction(ctx, &domain.PaymentTransaction{
			PaymentID:     p.ID,
			Provider:      string(p.PaymentMethod),
			TransactionID: reference,
			RawResponse:   fmt.Sprintf("confirmed by admin %d", admin.UserID),
		})
		if err != nil {
			return err
		}
		won, err := settlePayment(ctx, tx, p, o, u.now(), u.commissions, u.downloads)
		if err != nil {
			return err
		}
		if !won {
			return domain.ErrAlreadyProcessed
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := u.cache.Delete(ctx, order.ID); err != nil {
		u.logger.Error(err, "invalidate order cache", "orderId", order.ID)
	}
	publishAll(ctx, u.publisher, u.logger, []pendingEvent{{domain.EventOrderPaid, domain.NewOrderEvent(order)}})
	u.logger.Info("offline payment confirmed", "orderId", order.ID, "adminId", admin.UserID, "reference", reference)
	return order, nil
}

// ExpirePendingOrders closes pending online-payment orders older than the
// configured TTL and reports how many were cancelled. Each payment is checked
// with the provider first: one the provider reports as paid is settled
// instead, and an order whose provider cannot be reached is left for the next
// run. Offline payments wait for ConfirmPayment or an explicit cancel.
func (u *OrderService) ExpirePendingOrders(ctx context.Context) (int, error) {
	cutoff := u.now().Add(-u.pendingTTL)
	stale, err := u.store.Orders().ListPendingBefore(ctx, cutoff, domain.OnlineMethods(), expiryBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		status, err := u.providerStatus(ctx, stale[i].ID)
		if err != nil {
			u.logger.Error(err, "payment status check failed, keeping order", "orderId", stale[i].ID)
			continue
		}

		var (
			order   *domain.Order
			settled bool
		)
		err = u.store.WithinTx(ctx, func(tx repository.Store) error {
			o, err := tx.Orders().FindByIDForUpdate(ctx, stale[i].ID)
			if err != nil || o == nil || o.Status != domain.OrderPending {
				return err
			}
			if status != nil && status.Success {
				ok, err := u.settleLate(ctx, tx, o, status)
				if err != nil {
					return err
				}
				if ok {
					order, settled = o, true
					return nil
				}
			}
			if err := u.cancel(ctx, tx, o); err != nil {
				return err
			}
			order = o
			return nil
		})
		if err != nil {
			u.logger.Error(err, "expire order", "orderId", stale[i].ID)
			continue
		}
		switch {
		case order == nil:
		case settled:
			if err := u.cache.Delete(ctx, order.ID); err != nil {
				u.logger.Error(err, "invalidate order cache", "orderId", order.ID)
			}
			publishAll(ctx, u.publisher, u.logger, []pendingEvent{{domain.EventOrderPaid, domain.NewOrderEvent(order)}})
			u.logger.Info("late payment settled", "orderId", order.ID, "transactionNo", status.TransactionNo)
		default:
			expired++
			u.afterCancel(ctx, order, "expired")
		}
	}
	return expired, nil
}

// providerStatus queries the gateway for the order's pending online payment.
// It returns nil when there is nothing to ask.
func (u *OrderService) providerStatus(ctx context.Context, orderID uint64) (*payment.StatusResult, error) {
	o, err := u.store.Orders().FindByID(ctx, orderID)
	if err != nil || o == nil {
		return nil, err
	}
	p := o.Payment
	if p == nil || p.Status != domain.PaymentPending || !p.PaymentMethod.IsOnline() {
		return nil, nil
	}
	gw, err := u.gateways.Get(payment.Provider(p.PaymentMethod))
	if err != nil {
		u.logger.Info("provider disabled, skipping status check", "orderId", orderID, "method", p.PaymentMethod)
		return nil, nil
	}
	return gw.CheckPaymentStatus(ctx, payment.StatusRequest{PaymentID: p.ID, TransactionDate: checkoutTime(p)})
}

// checkoutTime is the creation time the provider signed for p. Payments
// without a recorded checkout request fall back to their own CreatedAt.
func checkoutTime(p *domain.Payment) time.Time {
	for i := len(p.Transactions) - 1; i >= 0; i-- {
		if t := p.Transactions[i].RequestedAt; t != nil {
			return *t
		}
	}
	return p.CreatedAt
}

// settleLate completes an order whose payment notification never arrived but
// which the provider reports as paid. A mismatched amount is not settled.
func (u *OrderService) settleLate(ctx context.Context, tx repository.Store, o *domain.Order, status *payment.StatusResult) (bool, error) {
	ref, err := tx.Payments().FindByOrderID(ctx, o.ID)
	if err != nil || ref == nil {
		return false, err
	}
	p, err := tx.Payments().FindByIDForUpdate(ctx, ref.ID)
	if err != nil || p == nil || p.Status != domain.PaymentPending {
		return false, err
	}
	if !status.Amount.Equal(p.Amount) {
		u.logger.Error(errors.New("amount mismatch"), "provider status does not match payment",
			"orderId", o.ID, "expected", p.Amount.String(), "got", status.Amount.String())
		return false, nil
	}
	err = tx.Payments().AddTransaction(ctx, &domain.PaymentTransaction{
		PaymentID:     p.ID,
		Provider:      string(p.PaymentMethod),
		TransactionID: status.TransactionNo,
		RawResponse:   status.Raw,
	})
	if err != nil {
		return false, err
	}
	return settlePayment(ctx, tx, p, o, u.now(), u.commissions, u.downloads)
}

func (u *OrderService) cancel(ctx context.Context, tx repository.Store, o *domain.Order) error {
	if err := o.TransitionTo(domain.OrderCancelled); err != nil {
		return err
	}
	ok, err := tx.Orders().UpdateStatus(ctx, o.ID, domain.OrderPending, domain.OrderCancelled)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrIllegalTransition.WithDetail("order %d is no longer pending", o.ID)
	}
	p, err := tx.Payments().FindByOrderID(ctx, o.ID)
	if err != nil {
		return err
	}
	if p != nil {
		if _, err := tx.Payments().TransitionStatus(ctx, p.ID, domain.PaymentPending, domain.PaymentFailed, nil); err != nil {
			return err
		}
	}
	return releaseCoupon(ctx, tx, o.ID)
}

func (u *OrderService) afterCancel(ctx context.Context, order *domain.Order, reason string) {
	if err := u.cache.Delete(ctx, order.ID); err != nil {
		u.logger.Error(err, "invalidate order cache", "orderId", order.ID)
	}
	publishAll(ctx, u.publisher, u.logger, []pendingEvent{{domain.EventOrderCancelled, domain.NewOrderEvent(order)}})
	u.logger.Info("order cancelled", "orderId", order.ID, "reason", reason)
}
