package http

import (
	"net/http"

	"marketplace-service/internal/domain"
	"marketplace-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func decimalQuery(c *gin.Context, name string) (decimal.Decimal, error) {
	return decimal.NewFromString(c.Query(name))
}

func (h *Handler) GetCart(c *gin.Context) {
	cart, err := h.svc.Carts.GetCart(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, cart)
}

func (h *Handler) AddCartItem(c *gin.Context) {
	var req AddCartItemRequest
	if !h.bindJSON(c, &req, false) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	cart, err := h.svc.Carts.AddItem(c.Request.Context(), actorFrom(c).UserID, req.ContentID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, cart)
}

func (h *Handler) RemoveCartItem(c *gin.Context) {
	contentID, ok := h.idParam(c, "contentId")
	if !ok {
		return
	}
	cart, err := h.svc.Carts.RemoveItem(c.Request.Context(), actorFrom(c).UserID, contentID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, cart)
}

func (h *Handler) ClearCart(c *gin.Context) {
	if err := h.svc.Carts.Clear(c.Request.Context(), actorFrom(c).UserID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListDownloads(c *gin.Context) {
	downloads, err := h.svc.Downloads.ListDownloads(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, downloads)
}

func (h *Handler) ConsumeDownload(c *gin.Context) {
	contentID, ok := h.idParam(c, "contentId")
	if !ok {
		return
	}
	d, err := h.svc.Downloads.ConsumeDownload(c.Request.Context(), actorFrom(c).UserID, contentID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, d)
}

func (h *Handler) GetWallet(c *gin.Context) {
	w, err := h.svc.Wallets.GetWallet(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, w)
}

func (h *Handler) ListWalletTransactions(c *gin.Context) {
	q, ok := h.page(c)
	if !ok {
		return
	}
	txs, err := h.svc.Wallets.ListWalletTransactions(c.Request.Context(), actorFrom(c), q.Page, q.Size)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, txs)
}

func (h *Handler) ReconcileWallet(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	rec, err := h.svc.Wallets.Reconcile(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, rec)
}

func (h *Handler) CreateWithdrawal(c *gin.Context) {
	var req CreateWithdrawalRequest
	if !h.bindJSON(c, &req, false) {
		return
	}
	if req.Amount.Sign() <= 0 {
		h.respondError(c, domain.ErrInvalidAmount)
		return
	}
	w, err := h.svc.Withdrawals.Create(c.Request.Context(), actorFrom(c), services.CreateWithdrawalInput{
		BankID: req.BankID,
		Amount: req.Amount,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, w)
}

func (h *Handler) ListWithdrawals(c *gin.Context) {
	list, err := h.svc.Withdrawals.List(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, list)
}

func (h *Handler) ApproveWithdrawal(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	w, err := h.svc.Withdrawals.Approve(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, w)
}

func (h *Handler) RejectWithdrawal(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var req RejectWithdrawalRequest
	if !h.bindJSON(c, &req, false) {
		return
	}
	w, err := h.svc.Withdrawals.Reject(c.Request.Context(), actorFrom(c), id, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, w)
}

func (h *Handler) MarkWithdrawalPaid(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	w, err := h.svc.Withdrawals.MarkPaid(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, w)
}
