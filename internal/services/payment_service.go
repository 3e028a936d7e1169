package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"marketplace-service/internal/domain"
	"marketplace-service/internal/infra/cache"
	"marketplace-service/internal/infra/lock"
	"marketplace-service/internal/infra/logging"
	"marketplace-service/internal/infra/payment"
	rabbit "marketplace-service/internal/infra/rabbitmq"
	"marketplace-service/internal/repository"

	"github.com/go-logr/logr"
	"github.com/shopspring/decimal"
)

type Outcome string

const (
	OutcomeProcessed        Outcome = "processed"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomePaymentNotFound  Outcome = "payment_not_found"
	OutcomeAmountMismatch   Outcome = "amount_mismatch"
	OutcomeInvalidSignature Outcome = "invalid_signature"
)

// CallbackResult is the state of a payment after a notification was handled.
type CallbackResult struct {
	Outcome       Outcome              `json:"outcome"`
	PaymentID     uint64               `json:"paymentId,omitempty"`
	OrderID       uint64               `json:"orderId,omitempty"`
	PaymentStatus domain.PaymentStatus `json:"paymentStatus,omitempty"`
	OrderStatus   domain.OrderStatus   `json:"orderStatus,omitempty"`
}

// PaymentService drives the payment and order state machines from provider
// notifications.
type PaymentService struct {
	store       repository.Store
	gateways    *payment.Registry
	locker      lock.Locker
	cache       cache.OrderCache
	publisher   rabbit.PublisherInterface
	commissions *CommissionService
	downloads   *DownloadService
	logger      logr.Logger
	now         func() time.Time
}

func NewPaymentService(
	store repository.Store,
	gateways *payment.Registry,
	locker lock.Locker,
	orderCache cache.OrderCache,
	pub rabbit.PublisherInterface,
	commissions *CommissionService,
	downloads *DownloadService,
) *PaymentService {
	if locker == nil {
		locker = lock.Noop{}
	}
	if orderCache == nil {
		orderCache = cache.Noop{}
	}
	return &PaymentService{
		store:       store,
		gateways:    gateways,
		locker:      locker,
		cache:       orderCache,
		publisher:   pub,
		commissions: commissions,
		downloads:   downloads,
		logger:      logging.New("payment"),
		now:         time.Now,
	}
}

// HandleCallback verifies a return or IPN query string and applies it. A
// non-nil error means the notification could not be processed and the
// provider should retry.
func (s *PaymentService) HandleCallback(ctx context.Context, provider payment.Provider, params url.Values) (*CallbackResult, error) {
	gw, err := s.gateways.Get(provider)
	if err != nil {
		return nil, err
	}
	n, err := gw.ParseCallback(params)
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		s.logger.Error(err, "dropping notification", "provider", provider, "payload", params.Encode())
		return &CallbackResult{Outcome: OutcomeInvalidSignature}, nil
	case errors.Is(err, payment.ErrMalformed):
		s.logger.Error(err, "dropping notification", "provider", provider, "payload", params.Encode())
		return &CallbackResult{Outcome: OutcomePaymentNotFound}, nil
	case err != nil:
		return nil, err
	}
	return s.ProcessNotification(ctx, n)
}

// ProcessNotification applies a verified notification exactly once. The
// order and payment row locks plus the conditional pending->success update
// guarantee that commissions and downloads are settled a single time even
// under concurrent duplicate deliveries.
func (s *PaymentService) ProcessNotification(ctx context.Context, n *payment.Notification) (*CallbackResult, error) {
	unlock, err := s.locker.Lock(ctx, fmt.Sprintf("ipn:payment:%d", n.PaymentID))
	if err != nil {
		return nil, fmt.Errorf("lock payment %d: %w", n.PaymentID, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error(err, "release payment lock", "paymentId", n.PaymentID)
		}
	}()

	res := &CallbackResult{PaymentID: n.PaymentID}
	var events []pendingEvent

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		events = nil
		ref, err := tx.Payments().FindByID(ctx, n.PaymentID)
		if err != nil {
			return err
		}
		if ref == nil {
			s.logger.Error(domain.ErrPaymentNotFound, "dropping notification", "paymentId", n.PaymentID, "payload", n.Raw)
			res.Outcome = OutcomePaymentNotFound
			return nil
		}
		// Order first, then payment: every path that touches both locks them
		// in this order.
		order, err := tx.Orders().FindByIDForUpdate(ctx, ref.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			s.logger.Error(domain.ErrOrderNotFound, "dropping notification", "paymentId", ref.ID, "orderId", ref.OrderID)
			res.Outcome = OutcomePaymentNotFound
			return nil
		}
		p, err := tx.Payments().FindByIDForUpdate(ctx, ref.ID)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.ErrPaymentNotFound
		}
		res.OrderID = order.ID

		if p.Status.IsTerminal() {
			res.Outcome = OutcomeAlreadyProcessed
			res.PaymentStatus, res.OrderStatus = p.Status, order.Status
			if p.Status == domain.PaymentFailed && n.Succeeded() {
				recorded, err := s.recordTransaction(ctx, tx, p, n)
				if err != nil {
					return err
				}
				if recorded {
					s.logger.Error(domain.ErrIllegalTransition, "provider captured a payment on a closed order, manual refund required",
						"paymentId", p.ID, "orderId", order.ID, "orderStatus", order.Status, "transactionNo", n.TransactionNo)
				}
			}
			return nil
		}

		if _, err := s.recordTransaction(ctx, tx, p, n); err != nil {
			return err
		}

		now := s.now()
		switch {
		case n.HasAmount && !n.Amount.Equal(p.Amount):
			s.logger.Error(errors.New("amount mismatch"), "failing payment",
				"paymentId", p.ID, "expected", p.Amount.String(), "reported", n.Amount.String(), "payload", n.Raw)
			if err := s.fail(ctx, tx, p, order); err != nil {
				return err
			}
			res.Outcome = OutcomeAmountMismatch
			events = append(events, pendingEvent{domain.EventOrderFailed, domain.NewOrderEvent(order)})

		case n.Succeeded():
			won, err := s.complete(ctx, tx, p, order, now)
			if err != nil {
				return err
			}
			if !won {
				res.Outcome = OutcomeAlreadyProcessed
				break
			}
			res.Outcome = OutcomeProcessed
			events = append(events, pendingEvent{domain.EventOrderPaid, domain.NewOrderEvent(order)})

		default:
			if err := s.fail(ctx, tx, p, order); err != nil {
				return err
			}
			res.Outcome = OutcomeProcessed
			events = append(events, pendingEvent{domain.EventOrderFailed, domain.NewOrderEvent(order)})
		}
		res.PaymentStatus, res.OrderStatus = p.Status, order.Status
		return nil
	})
	if err != nil {
		s.logger.Error(err, "notification processing failed", "paymentId", n.PaymentID)
		return nil, err
	}

	if res.OrderID != 0 && len(events) > 0 {
		if err := s.cache.Delete(ctx, res.OrderID); err != nil {
			s.logger.Error(err, "invalidate order cache", "orderId", res.OrderID)
		}
	}
	publishAll(ctx, s.publisher, s.logger, events)
	s.logger.Info("notification handled", "paymentId", n.PaymentID, "outcome", res.Outcome,
		"responseCode", n.ResponseCode, "transactionNo", n.TransactionNo)
	return res, nil
}

// recordTransaction appends the notification to the payment log unless the
// same provider transaction was already recorded.
func (s *PaymentService) recordTransaction(ctx context.Context, tx repository.Store, p *domain.Payment, n *payment.Notification) (bool, error) {
	provider := string(n.Provider)
	if n.TransactionNo != "" {
		existing, err := tx.Payments().FindTransaction(ctx, p.ID, provider, n.TransactionNo)
		if err != nil {
			return false, err
		}
		if existing != nil {
			return false, nil
		}
	}
	err := tx.Payments().AddTransaction(ctx, &domain.PaymentTransaction{
		PaymentID:     p.ID,
		Provider:      provider,
		TransactionID: n.TransactionNo,
		RawResponse:   n.Raw,
	})
	return err == nil, err
}

// complete marks the payment successful and the order paid, then settles
// commissions and grants downloads in the same transaction. It reports false
// when another caller already moved the payment out of pending.
func (s *PaymentService) complete(ctx context.Context, tx repository.Store, p *domain.Payment, order *domain.Order, now time.Time) (bool, error) {
	return settlePayment(ctx, tx, p, order, now, s.commissions, s.downloads)
}

func (s *PaymentService) fail(ctx context.Context, tx repository.Store, p *domain.Payment, order *domain.Order) error {
	if _, err := tx.Payments().TransitionStatus(ctx, p.ID, domain.PaymentPending, domain.PaymentFailed, nil); err != nil {
		return err
	}
	p.Status = domain.PaymentFailed
	if order.Status.CanTransitionTo(domain.OrderFailed) {
		ok, err := tx.Orders().UpdateStatus(ctx, order.ID, domain.OrderPending, domain.OrderFailed)
		if err != nil {
			return err
		}
		order.Status = domain.OrderFailed
		if ok {
			return releaseCoupon(ctx, tx, order.ID)
		}
	}
	return nil
}

// settlePayment is the single path that turns a pending payment into a paid
// order. Callers hold the order lock and then the payment lock, in that order.
func settlePayment(
	ctx context.Context,
	tx repository.Store,
	p *domain.Payment,
	order *domain.Order,
	now time.Time,
	commissions *CommissionService,
	downloads *DownloadService,
) (bool, error) {
	won, err := tx.Payments().TransitionStatus(ctx, p.ID, domain.PaymentPending, domain.PaymentSuccess, &now)
	if err != nil || !won {
		return false, err
	}
	p.Status = domain.PaymentSuccess
	p.PaidAt = &now

	if err := order.TransitionTo(domain.OrderPaid); err != nil {
		return false, err
	}
	if ok, err := tx.Orders().UpdateStatus(ctx, order.ID, domain.OrderPending, domain.OrderPaid); err != nil {
		return false, err
	} else if !ok {
		return false, domain.ErrIllegalTransition.WithDetail("order %d is no longer pending", order.ID)
	}

	if err := commissions.Settle(ctx, tx, order); err != nil {
		return false, fmt.Errorf("settle commissions: %w", err)
	}
	if err := downloads.Grant(ctx, tx, order); err != nil {
		return false, fmt.Errorf("grant downloads: %w", err)
	}
	return true, nil
}

// RefundInput asks for a refund of a settled order. A zero Amount refunds
// the whole payment.
type RefundInput struct {
	OrderID  uint64
	Amount   decimal.Decimal
	Reason   string
	ClientIP string
}

// RefundPayment sends a refund for a settled payment to its provider and
// appends the provider's answer to the payment log. Commissions are not
// touched; reversing them is a separate admin action.
func (s *PaymentService) RefundPayment(ctx context.Context, admin domain.Actor, in RefundInput) (*payment.RefundResult, error) {
	order, err := s.store.Orders().FindByID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	p := order.Payment
	if p == nil {
		return nil, domain.ErrPaymentNotFound
	}
	if p.Status != domain.PaymentSuccess {
		return nil, domain.ErrIllegalTransition.WithDetail("payment %d is %s, only settled payments can be refunded", p.ID, p.Status)
	}

	amount := in.Amount
	if amount.IsZero() {
		amount = p.Amount
	}
	if amount.Sign() < 0 || amount.GreaterThan(p.Amount) {
		return nil, domain.ErrInvalidAmount.WithDetail("refund must be between 0 and %s", p.Amount.String())
	}

	gw, err := s.gateways.Get(payment.Provider(p.PaymentMethod))
	if err != nil {
		return nil, domain.ErrUnsupportedMethod.WithDetail("%s", p.PaymentMethod)
	}
	paidAt := p.UpdatedAt
	if p.PaidAt != nil {
		paidAt = *p.PaidAt
	}
	full := amount.Equal(p.Amount)

	res, err := gw.Refund(ctx, payment.RefundRequest{
		PaymentID:       p.ID,
		TransactionNo:   providerTransactionNo(p),
		Amount:          amount,
		Full:            full,
		TransactionDate: paidAt,
		Reason:          in.Reason,
		CreatedBy:       fmt.Sprintf("admin-%d", admin.UserID),
		ClientIP:        in.ClientIP,
	})
	if err != nil {
		return nil, domain.ErrRefundFailed.WithDetail("%v", err)
	}

	err = s.store.Payments().AddTransaction(ctx, &domain.PaymentTransaction{
		PaymentID:   p.ID,
		Provider:    string(gw.Provider()),
		RawResponse: res.Raw,
	})
	if err != nil {
		s.logger.Error(err, "record refund response", "paymentId", p.ID, "responseCode", res.ResponseCode)
	}
	if !res.Success {
		return res, domain.ErrRefundFailed.WithDetail("code %s: %s", res.ResponseCode, res.Message)
	}

	publishAll(ctx, s.publisher, s.logger, []pendingEvent{{domain.EventPaymentRefunded, domain.RefundEvent{
		OrderID:    order.ID,
		PaymentID:  p.ID,
		Amount:     amount,
		Full:       full,
		OccurredAt: s.now(),
	}}})
	s.logger.Info("payment refunded", "orderId", order.ID, "paymentId", p.ID, "amount", amount.String(), "admin", admin.UserID)
	return res, nil
}

// providerTransactionNo is the provider's number from the latest recorded
// notification. Checkout entries carry a payment URL and refund entries no
// number, so both are skipped.
func providerTransactionNo(p *domain.Payment) string {
	for i := len(p.Transactions) - 1; i >= 0; i-- {
		t := p.Transactions[i]
		if t.TransactionID != "" && t.PaymentURL == "" {
			return t.TransactionID
		}
	}
	return ""
}
