package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"marketplace-service/internal/config"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

// VNPay amounts are sent in minor units.
var vnpAmountScale = decimal.NewFromInt(100)

var vnpLocation = time.FixedZone("GMT+7", 7*60*60)

const (
	vnpDateLayout = "20060102150405"
	vnpExpiry     = 15 * time.Minute
)

type VNPay struct {
	cfg        config.VNPay
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	now        func() time.Time
}

func NewVNPay(cfg config.VNPay) *VNPay {
	return &VNPay{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.APITimeout},
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "vnpay-merchant-api",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
		now: time.Now,
	}
}

func (v *VNPay) Provider() Provider { return ProviderVNPay }

// CreatePayment signs a hosted checkout URL. No network call is made.
func (v *VNPay) CreatePayment(_ context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	if req.PaymentID == 0 {
		return &CreatePaymentResult{Error: "payment id is required"}, nil
	}
	if req.Amount.Sign() <= 0 {
		return &CreatePaymentResult{Error: "amount must be positive"}, nil
	}

	created := v.now().In(vnpLocation).Truncate(time.Second)
	txnRef := strconv.FormatUint(req.PaymentID, 10)
	info := req.OrderInfo
	if info == "" {
		info = fmt.Sprintf("Thanh toan don hang %d", req.OrderID)
	}

	params := url.Values{}
	params.Set("vnp_Version", v.cfg.Version)
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", v.cfg.TmnCode)
	params.Set("vnp_Amount", req.Amount.Mul(vnpAmountScale).Round(0).String())
	params.Set("vnp_CurrCode", "VND")
	params.Set("vnp_TxnRef", txnRef)
	params.Set("vnp_OrderInfo", info)
	params.Set("vnp_OrderType", v.cfg.OrderType)
	params.Set("vnp_Locale", v.cfg.Locale)
	params.Set("vnp_ReturnUrl", v.cfg.ReturnURL)
	params.Set("vnp_IpAddr", clientIP(req.ClientIP))
	params.Set("vnp_CreateDate", created.Format(vnpDateLayout))
	params.Set("vnp_ExpireDate", created.Add(vnpExpiry).Format(vnpDateLayout))

	query := canonicalQuery(params)
	payURL := v.cfg.PayURL + "?" + query + "&vnp_SecureHash=" + sign(v.cfg.HashSecret, query)

	return &CreatePaymentResult{
		Success:       true,
		PaymentURL:    payURL,
		TransactionID: txnRef,
		CreatedAt:     created,
	}, nil
}

func (v *VNPay) ParseCallback(params url.Values) (*Notification, error) {
	got := params.Get("vnp_SecureHash")
	if got == "" {
		return nil, ErrInvalidSignature
	}
	want := v.SecureHash(params)
	if !hmac.Equal([]byte(strings.ToLower(got)), []byte(want)) {
		return nil, ErrInvalidSignature
	}

	paymentID, err := strconv.ParseUint(params.Get("vnp_TxnRef"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: vnp_TxnRef %q", ErrMalformed, params.Get("vnp_TxnRef"))
	}

	n := &Notification{
		Provider:      ProviderVNPay,
		PaymentID:     paymentID,
		ResponseCode:  params.Get("vnp_ResponseCode"),
		TransactionNo: params.Get("vnp_TransactionNo"),
		Raw:           params.Encode(),
	}
	if raw := params.Get("vnp_Amount"); raw != "" {
		minor, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: vnp_Amount %q", ErrMalformed, raw)
		}
		n.Amount = minor.Div(vnpAmountScale)
		n.HasAmount = true
	}
	return n, nil
}

// SecureHash signs the vnp_ fields of params the way VNPay signs callbacks.
func (v *VNPay) SecureHash(params url.Values) string {
	signed := url.Values{}
	for k, vals := range params {
		if !strings.HasPrefix(k, "vnp_") || k == "vnp_SecureHash" || k == "vnp_SecureHashType" {
			continue
		}
		signed[k] = vals
	}
	return sign(v.cfg.HashSecret, canonicalQuery(signed))
}

// canonicalQuery sorts keys and url-encodes values, skipping empty values.
func canonicalQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if params.Get(k) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params.Get(k)))
	}
	return b.String()
}

func sign(secret, data string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
