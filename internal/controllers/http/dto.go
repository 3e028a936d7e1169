package http

import "github.com/shopspring/decimal"

type AddCartItemRequest struct {
	ContentID uint64 `json:"contentId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"omitempty,min=1"`
}

// CreateOrderRequest buys one content when ContentID is set, otherwise the
// whole cart.
type CreateOrderRequest struct {
	ContentID     *uint64 `json:"contentId"`
	Quantity      int     `json:"quantity" binding:"omitempty,min=1"`
	CouponCode    string  `json:"couponCode" binding:"max=64"`
	PaymentMethod string  `json:"paymentMethod" binding:"omitempty,oneof=vnpay bank_transfer"`
}

type CreateWithdrawalRequest struct {
	BankID uint64          `json:"bankId" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type RejectWithdrawalRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// RefundRequest refunds the whole payment when Amount is omitted.
type RefundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" binding:"max=255"`
}

type ConfirmPaymentRequest struct {
	Reference string `json:"reference" binding:"max=64"`
}

type pageQuery struct {
	Page int `form:"page" binding:"omitempty,min=1"`
	Size int `form:"size" binding:"omitempty,min=1,max=100"`
}

// VNPayAck is the body VNPay expects from the IPN endpoint.
type VNPayAck struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}
