package domain

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind int

const (
	KindBadRequest ErrorKind = iota + 1
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

// HTTPStatus is the status the transport boundary answers with for this kind.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a business error returned by services. It is matched with
// errors.Is against the sentinels below, or with errors.As to read its kind.
type Error struct {
	Kind       ErrorKind
	Code       string
	Message    string
	Violations map[string]string
	Err        error
}

func NewError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two domain errors by code so a detailed copy produced by
// WithDetail still satisfies errors.Is against its sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail returns a copy carrying a more specific message.
func (e *Error) WithDetail(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf("%s: %s", e.Message, fmt.Sprintf(format, args...))
	return &cp
}

// KindOf reports the kind of err, or zero when err is not a domain error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

var (
	ErrContentNotFound      = NewError(KindNotFound, "CONTENT_NOT_FOUND", "content not found")
	ErrCartNotFound         = NewError(KindNotFound, "CART_NOT_FOUND", "cart not found")
	ErrCartItemNotFound     = NewError(KindNotFound, "CART_ITEM_NOT_FOUND", "cart item not found")
	ErrOrderNotFound        = NewError(KindNotFound, "ORDER_NOT_FOUND", "order not found")
	ErrPaymentNotFound      = NewError(KindNotFound, "PAYMENT_NOT_FOUND", "payment not found")
	ErrCouponNotFound       = NewError(KindNotFound, "COUPON_NOT_FOUND", "coupon not found")
	ErrWithdrawalNotFound   = NewError(KindNotFound, "WITHDRAWAL_NOT_FOUND", "withdrawal request not found")
	ErrBankNotFound         = NewError(KindNotFound, "BANK_NOT_FOUND", "bank account not found")
	ErrWalletNotFound       = NewError(KindNotFound, "WALLET_NOT_FOUND", "wallet not found")
	ErrCollaboratorNotFound = NewError(KindNotFound, "COLLABORATOR_NOT_FOUND", "collaborator not found")
	ErrDownloadNotFound     = NewError(KindNotFound, "DOWNLOAD_NOT_FOUND", "no download grant for this content")
	ErrCommissionNotFound   = NewError(KindNotFound, "COMMISSION_NOT_FOUND", "no commission recorded for this order")

	ErrEmptyCart          = NewError(KindBadRequest, "EMPTY_CART", "cart is empty, nothing to checkout")
	ErrInvalidQuantity    = NewError(KindBadRequest, "INVALID_QUANTITY", "quantity must be greater than 0")
	ErrInvalidAmount      = NewError(KindBadRequest, "INVALID_AMOUNT", "invalid amount")
	ErrInsufficientFunds  = NewError(KindBadRequest, "INSUFFICIENT_FUNDS", "insufficient wallet balance")
	ErrCouponInvalid      = NewError(KindBadRequest, "COUPON_INVALID", "coupon cannot be applied")
	ErrGatewayFailed      = NewError(KindBadRequest, "PAYMENT_GATEWAY_FAILED", "payment gateway did not return a payment url")
	ErrUnsupportedMethod  = NewError(KindBadRequest, "UNSUPPORTED_PAYMENT_METHOD", "unsupported payment method")
	ErrRefundFailed       = NewError(KindBadRequest, "REFUND_FAILED", "payment provider rejected the refund")
	ErrDownloadsExhausted = NewError(KindBadRequest, "DOWNLOADS_EXHAUSTED", "no downloads left for this content")
	ErrIllegalTransition  = NewError(KindConflict, "ILLEGAL_TRANSITION", "illegal status transition")

	ErrAlreadyProcessed  = NewError(KindConflict, "ALREADY_PROCESSED", "request has already been processed")
	ErrAlreadyRolledBack = NewError(KindConflict, "ALREADY_ROLLED_BACK", "commission has already been rolled back")

	ErrUnauthenticated = NewError(KindUnauthorized, "UNAUTHENTICATED", "authentication required")
	ErrForbidden       = NewError(KindForbidden, "FORBIDDEN", "not allowed to act on this resource")
)
