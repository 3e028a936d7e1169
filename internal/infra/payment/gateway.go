package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"marketplace-service/internal/config"

	"github.com/shopspring/decimal"
)

type Provider string

const ProviderVNPay Provider = "vnpay"

// ParseProvider normalizes name and rejects providers this build does not ship.
func ParseProvider(name string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(name))); p {
	case ProviderVNPay:
		return p, nil
	}
	return "", fmt.Errorf("payment: unknown provider %q", name)
}

var (
	ErrInvalidSignature = errors.New("payment: invalid signature")
	ErrMalformed        = errors.New("payment: malformed callback")
)

type CreatePaymentRequest struct {
	PaymentID uint64
	OrderID   uint64
	Amount    decimal.Decimal
	OrderInfo string
	ClientIP  string
}

type CreatePaymentResult struct {
	Success       bool
	PaymentURL    string
	TransactionID string
	// CreatedAt is the creation time the provider saw; status queries
	// must quote it back.
	CreatedAt time.Time
	Error     string
}

type StatusRequest struct {
	PaymentID       uint64
	TransactionDate time.Time
	ClientIP        string
}

type StatusResult struct {
	Success           bool
	ResponseCode      string
	TransactionStatus string
	TransactionNo     string
	Amount            decimal.Decimal
	Message           string
	Raw               string
}

type RefundRequest struct {
	PaymentID       uint64
	TransactionNo   string
	Amount          decimal.Decimal
	Full            bool
	TransactionDate time.Time
	Reason          string
	CreatedBy       string
	ClientIP        string
}

type RefundResult struct {
	Success      bool   `json:"success"`
	ResponseCode string `json:"responseCode"`
	Message      string `json:"message"`
	Raw          string `json:"-"`
}

// Notification is a signature-checked callback from the provider.
type Notification struct {
	Provider      Provider
	PaymentID     uint64
	ResponseCode  string
	TransactionNo string
	Amount        decimal.Decimal
	HasAmount     bool
	Raw           string
}

// Succeeded reports whether the provider says the payment went through.
func (n *Notification) Succeeded() bool { return n.ResponseCode == "00" }

type Gateway interface {
	Provider() Provider
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error)
	CheckPaymentStatus(ctx context.Context, req StatusRequest) (*StatusResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	// ParseCallback verifies and decodes a return or IPN query string.
	ParseCallback(params url.Values) (*Notification, error)
}

type Registry struct {
	gateways map[Provider]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[Provider]Gateway, len(gateways))}
	for _, g := range gateways {
		r.gateways[g.Provider()] = g
	}
	return r
}

func (r *Registry) Get(p Provider) (Gateway, error) {
	g, ok := r.gateways[p]
	if !ok {
		return nil, fmt.Errorf("payment: provider %q is not enabled", p)
	}
	return g, nil
}

// BuildRegistry enables the named providers, failing on the first unknown name.
func BuildRegistry(names []string, vnpay config.VNPay) (*Registry, error) {
	r := NewRegistry()
	for _, name := range names {
		p, err := ParseProvider(name)
		if err != nil {
			return nil, err
		}
		switch p {
		case ProviderVNPay:
			r.gateways[p] = NewVNPay(vnpay)
		}
	}
	if len(r.gateways) == 0 {
		return nil, errors.New("payment: no provider enabled")
	}
	return r, nil
}
