package http

import (
	"net/http"

	"marketplace-service/internal/domain"
	"marketplace-service/internal/infra/payment"
	"marketplace-service/internal/services"

	"github.com/gin-gonic/gin"
)

var errInvalidSignature = domain.NewError(domain.KindBadRequest, "INVALID_SIGNATURE", "invalid payment signature")

// vnpayAck translates the outcome of a notification into VNPay's
// acknowledgement codes. Any non-nil err asks VNPay to retry.
func vnpayAck(res *services.CallbackResult, err error) VNPayAck {
	if err != nil || res == nil {
		return VNPayAck{RspCode: "99", Message: "Unknown error"}
	}
	switch res.Outcome {
	case services.OutcomeProcessed:
		return VNPayAck{RspCode: "00", Message: "Confirm Success"}
	case services.OutcomeAlreadyProcessed:
		return VNPayAck{RspCode: "02", Message: "Order already confirmed"}
	case services.OutcomePaymentNotFound:
		return VNPayAck{RspCode: "01", Message: "Order not found"}
	case services.OutcomeAmountMismatch:
		return VNPayAck{RspCode: "04", Message: "Invalid amount"}
	case services.OutcomeInvalidSignature:
		return VNPayAck{RspCode: "97", Message: "Invalid signature"}
	}
	return VNPayAck{RspCode: "99", Message: "Unknown error"}
}

// VNPayIPN always answers 200; the body tells VNPay whether to retry.
func (h *Handler) VNPayIPN(c *gin.Context) {
	res, err := h.svc.Payments.HandleCallback(c.Request.Context(), payment.ProviderVNPay, c.Request.URL.Query())
	ack := vnpayAck(res, err)
	if err != nil {
		h.logger.Error(err, "ipn failed", "requestId", c.GetString(requestIDKey))
	}
	c.JSON(http.StatusOK, ack)
}

// VNPayReturn handles the browser redirect. It runs the same idempotent
// processing as the IPN so the buyer sees the settled state.
func (h *Handler) VNPayReturn(c *gin.Context) {
	res, err := h.svc.Payments.HandleCallback(c.Request.Context(), payment.ProviderVNPay, c.Request.URL.Query())
	if err != nil {
		h.respondError(c, err)
		return
	}
	switch res.Outcome {
	case services.OutcomeInvalidSignature:
		h.respondError(c, errInvalidSignature)
		return
	case services.OutcomePaymentNotFound:
		h.respondError(c, domain.ErrPaymentNotFound)
		return
	}
	respond(c, http.StatusOK, res)
}

func (h *Handler) PreviewCoupon(c *gin.Context) {
	amount, err := decimalQuery(c, "amount")
	if err != nil {
		h.badRequest(c, "amount", "must be a decimal number")
		return
	}
	preview, err := h.svc.Coupons.PreviewDiscount(c.Request.Context(), c.Param("code"), amount)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, preview)
}

func (h *Handler) RefundOrder(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var req RefundRequest
	if !h.bindJSON(c, &req, true) {
		return
	}
	res, err := h.svc.Payments.RefundPayment(c.Request.Context(), actorFrom(c), services.RefundInput{
		OrderID:  id,
		Amount:   req.Amount,
		Reason:   req.Reason,
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, res)
}
