package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type queryDRRequest struct {
	RequestID       string `json:"vnp_RequestId"`
	Version         string `json:"vnp_Version"`
	Command         string `json:"vnp_Command"`
	TmnCode         string `json:"vnp_TmnCode"`
	TxnRef          string `json:"vnp_TxnRef"`
	OrderInfo       string `json:"vnp_OrderInfo"`
	TransactionDate string `json:"vnp_TransactionDate"`
	CreateDate      string `json:"vnp_CreateDate"`
	IPAddr          string `json:"vnp_IpAddr"`
	SecureHash      string `json:"vnp_SecureHash"`
}

type refundRequest struct {
	RequestID       string `json:"vnp_RequestId"`
	Version         string `json:"vnp_Version"`
	Command         string `json:"vnp_Command"`
	TmnCode         string `json:"vnp_TmnCode"`
	TransactionType string `json:"vnp_TransactionType"`
	TxnRef          string `json:"vnp_TxnRef"`
	Amount          string `json:"vnp_Amount"`
	OrderInfo       string `json:"vnp_OrderInfo"`
	TransactionNo   string `json:"vnp_TransactionNo"`
	TransactionDate string `json:"vnp_TransactionDate"`
	CreateBy        string `json:"vnp_CreateBy"`
	CreateDate      string `json:"vnp_CreateDate"`
	IPAddr          string `json:"vnp_IpAddr"`
	SecureHash      string `json:"vnp_SecureHash"`
}

type merchantResponse struct {
	ResponseID        string `json:"vnp_ResponseId"`
	Command           string `json:"vnp_Command"`
	ResponseCode      string `json:"vnp_ResponseCode"`
	Message           string `json:"vnp_Message"`
	TmnCode           string `json:"vnp_TmnCode"`
	TxnRef            string `json:"vnp_TxnRef"`
	Amount            string `json:"vnp_Amount"`
	BankCode          string `json:"vnp_BankCode"`
	PayDate           string `json:"vnp_PayDate"`
	TransactionNo     string `json:"vnp_TransactionNo"`
	TransactionType   string `json:"vnp_TransactionType"`
	TransactionStatus string `json:"vnp_TransactionStatus"`
	OrderInfo         string `json:"vnp_OrderInfo"`
	PromotionCode     string `json:"vnp_PromotionCode"`
	PromotionAmount   string `json:"vnp_PromotionAmount"`
	SecureHash        string `json:"vnp_SecureHash"`
}

// queryDRHashData is the pipe-joined field list VNPay signs on querydr responses.
func (r *merchantResponse) queryDRHashData() string {
	return strings.Join([]string{
		r.ResponseID, r.Command, r.ResponseCode, r.Message, r.TmnCode, r.TxnRef,
		r.Amount, r.BankCode, r.PayDate, r.TransactionNo, r.TransactionType,
		r.TransactionStatus, r.OrderInfo, r.PromotionCode, r.PromotionAmount,
	}, "|")
}

// refundHashData is the pipe-joined field list VNPay signs on refund responses.
func (r *merchantResponse) refundHashData() string {
	return strings.Join([]string{
		r.ResponseID, r.Command, r.ResponseCode, r.Message, r.TmnCode, r.TxnRef,
		r.Amount, r.BankCode, r.PayDate, r.TransactionNo, r.TransactionType,
		r.TransactionStatus, r.OrderInfo,
	}, "|")
}

// CheckPaymentStatus asks the merchant API for the state of a payment.
func (v *VNPay) CheckPaymentStatus(ctx context.Context, req StatusRequest) (*StatusResult, error) {
	now := v.now().In(vnpLocation)
	body := queryDRRequest{
		RequestID:       newRequestID(),
		Version:         v.cfg.Version,
		Command:         "querydr",
		TmnCode:         v.cfg.TmnCode,
		TxnRef:          strconv.FormatUint(req.PaymentID, 10),
		OrderInfo:       fmt.Sprintf("Truy van giao dich %d", req.PaymentID),
		TransactionDate: req.TransactionDate.In(vnpLocation).Format(vnpDateLayout),
		CreateDate:      now.Format(vnpDateLayout),
		IPAddr:          clientIP(req.ClientIP),
	}
	body.SecureHash = sign(v.cfg.HashSecret, strings.Join([]string{
		body.RequestID, body.Version, body.Command, body.TmnCode, body.TxnRef,
		body.TransactionDate, body.CreateDate, body.IPAddr, body.OrderInfo,
	}, "|"))

	raw, resp, err := v.post(ctx, body, body.TxnRef, (*merchantResponse).queryDRHashData)
	if err != nil {
		return nil, err
	}
	out := &StatusResult{
		Success:           resp.ResponseCode == "00" && resp.TransactionStatus == "00",
		ResponseCode:      resp.ResponseCode,
		TransactionStatus: resp.TransactionStatus,
		TransactionNo:     resp.TransactionNo,
		Message:           resp.Message,
		Raw:               string(raw),
	}
	if resp.Amount != "" {
		if minor, err := decimal.NewFromString(resp.Amount); err == nil {
			out.Amount = minor.Div(vnpAmountScale)
		}
	}
	return out, nil
}

// Refund requests a full or partial refund of a settled payment.
func (v *VNPay) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if req.Amount.Sign() <= 0 {
		return &RefundResult{Message: "amount must be positive"}, nil
	}
	txType := "03"
	if req.Full {
		txType = "02"
	}
	now := v.now().In(vnpLocation)
	body := refundRequest{
		RequestID:       newRequestID(),
		Version:         v.cfg.Version,
		Command:         "refund",
		TmnCode:         v.cfg.TmnCode,
		TransactionType: txType,
		TxnRef:          strconv.FormatUint(req.PaymentID, 10),
		Amount:          req.Amount.Mul(vnpAmountScale).Round(0).String(),
		OrderInfo:       req.Reason,
		TransactionNo:   req.TransactionNo,
		TransactionDate: req.TransactionDate.In(vnpLocation).Format(vnpDateLayout),
		CreateBy:        req.CreatedBy,
		CreateDate:      now.Format(vnpDateLayout),
		IPAddr:          clientIP(req.ClientIP),
	}
	if body.OrderInfo == "" {
		body.OrderInfo = fmt.Sprintf("Hoan tien giao dich %d", req.PaymentID)
	}
	body.SecureHash = sign(v.cfg.HashSecret, strings.Join([]string{
		body.RequestID, body.Version, body.Command, body.TmnCode, body.TransactionType,
		body.TxnRef, body.Amount, body.TransactionNo, body.TransactionDate, body.CreateBy,
		body.CreateDate, body.IPAddr, body.OrderInfo,
	}, "|"))

	raw, resp, err := v.post(ctx, body, body.TxnRef, (*merchantResponse).refundHashData)
	if err != nil {
		return nil, err
	}
	return &RefundResult{
		Success:      resp.ResponseCode == "00",
		ResponseCode: resp.ResponseCode,
		Message:      resp.Message,
		Raw:          string(raw),
	}, nil
}

// post sends payload to the merchant API and accepts the response only when
// its vnp_SecureHash matches hashData and it refers to txnRef.
func (v *VNPay) post(ctx context.Context, payload any, txnRef string, hashData func(*merchantResponse) string) ([]byte, *merchantResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, v.cfg.APITimeout)
	defer cancel()

	raw, err := v.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.APIURL, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := v.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("vnpay merchant api returned status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("vnpay: %w", err)
	}

	var out merchantResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return raw, nil, fmt.Errorf("vnpay: decode response: %w", err)
	}
	expected := sign(v.cfg.HashSecret, hashData(&out))
	if out.SecureHash == "" || !hmac.Equal([]byte(strings.ToLower(out.SecureHash)), []byte(expected)) {
		return raw, nil, fmt.Errorf("vnpay: merchant api response: %w", ErrInvalidSignature)
	}
	if out.TxnRef != "" && out.TxnRef != txnRef {
		return raw, nil, fmt.Errorf("vnpay: response for txn %q, want %q: %w", out.TxnRef, txnRef, ErrMalformed)
	}
	return raw, &out, nil
}

func newRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func clientIP(ip string) string {
	if ip == "" {
		return "127.0.0.1"
	}
	return ip
}
