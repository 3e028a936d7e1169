package http

import (
	"net/http"
	"strconv"

	"marketplace-service/internal/domain"
	"marketplace-service/internal/infra/logging"
	"marketplace-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
)

// Services groups the application services the routes delegate to.
type Services struct {
	Orders      *services.OrderService
	Payments    *services.PaymentService
	Carts       *services.CartService
	Coupons     *services.CouponService
	Downloads   *services.DownloadService
	Wallets     *services.WalletService
	Withdrawals *services.WithdrawalService
	Commissions *services.CommissionService
}

type Handler struct {
	svc    Services
	logger logr.Logger
	debug  bool
}

// NewHandler builds the HTTP handler. With debug set, unexpected errors are
// returned to the caller unmasked.
func NewHandler(svc Services, debug bool) *Handler {
	return &Handler{svc: svc, logger: logging.New("http"), debug: debug}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	r.GET("/payments/vnpay/return", h.VNPayReturn)
	r.GET("/payments/vnpay/ipn", h.VNPayIPN)
	r.GET("/coupons/:code/preview", h.PreviewCoupon)

	authed := r.Group("/", h.RequireUser())
	authed.GET("/cart", h.GetCart)
	authed.POST("/cart/items", h.AddCartItem)
	authed.DELETE("/cart/items/:contentId", h.RemoveCartItem)
	authed.DELETE("/cart", h.ClearCart)

	authed.POST("/orders", h.CreateOrder)
	authed.GET("/orders", h.ListOrders)
	authed.GET("/orders/:id", h.GetOrder)
	authed.POST("/orders/:id/cancel", h.CancelOrder)

	authed.GET("/downloads", h.ListDownloads)
	authed.POST("/downloads/:contentId/consume", h.ConsumeDownload)

	collab := authed.Group("/", h.RequireRole(domain.RoleCollaborator))
	collab.GET("/wallet", h.GetWallet)
	collab.GET("/wallet/transactions", h.ListWalletTransactions)
	collab.POST("/withdrawals", h.CreateWithdrawal)
	collab.GET("/withdrawals", h.ListWithdrawals)

	admin := authed.Group("/admin", h.RequireRole(domain.RoleAdmin))
	admin.POST("/withdrawals/:id/approve", h.ApproveWithdrawal)
	admin.POST("/withdrawals/:id/reject", h.RejectWithdrawal)
	admin.POST("/withdrawals/:id/mark-paid", h.MarkWithdrawalPaid)
	admin.POST("/orders/:id/commission-rollback", h.RollbackCommission)
	admin.POST("/orders/:id/refund", h.RefundOrder)
	admin.POST("/orders/:id/confirm-payment", h.ConfirmPayment)
	admin.GET("/wallets/:id/reconcile", h.ReconcileWallet)
}

// idParam parses a positive numeric path parameter, answering 400 otherwise.
func (h *Handler) idParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		h.badRequest(c, name, "must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) page(c *gin.Context) (pageQuery, bool) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.bindError(c, "query", err)
		return q, false
	}
	return q, true
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if !h.bindJSON(c, &req, true) {
		return
	}

	res, err := h.svc.Orders.CreateOrder(c.Request.Context(), services.CreateOrderInput{
		UserID:        actorFrom(c).UserID,
		ContentID:     req.ContentID,
		Quantity:      req.Quantity,
		CouponCode:    req.CouponCode,
		PaymentMethod: req.PaymentMethod,
		ClientIP:      c.ClientIP(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, res)
}

func (h *Handler) ListOrders(c *gin.Context) {
	q, ok := h.page(c)
	if !ok {
		return
	}
	orders, err := h.svc.Orders.ListOrders(c.Request.Context(), actorFrom(c).UserID, q.Page, q.Size)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, orders)
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	order, err := h.svc.Orders.GetOrder(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	order, err := h.svc.Orders.CancelOrder(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

// ConfirmPayment settles a bank transfer an admin has matched by hand.
func (h *Handler) ConfirmPayment(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var req ConfirmPaymentRequest
	if !h.bindJSON(c, &req, true) {
		return
	}
	order, err := h.svc.Orders.ConfirmPayment(c.Request.Context(), actorFrom(c), id, req.Reference)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

func (h *Handler) RollbackCommission(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Commissions.RollbackCommission(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"orderId": id})
}
