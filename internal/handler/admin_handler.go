package handler

import (
	"net/http"

	"rafflehub/internal/logging"
	"rafflehub/internal/models"
	"rafflehub/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdminHandler struct {
	orders      *service.OrderService
	commissions *service.CommissionService
	payouts     *service.PayoutService
	ledger      *service.LedgerService
	withdrawals *service.WithdrawalService
	logger      *zap.Logger
}

func NewAdminHandler(
	orders *service.OrderService,
	commissions *service.CommissionService,
	payouts *service.PayoutService,
	ledger *service.LedgerService,
	withdrawals *service.WithdrawalService,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		orders:      orders,
		commissions: commissions,
		payouts:     payouts,
		ledger:      ledger,
		withdrawals: withdrawals,
		logger:      logging.OrNop(logger),
	}
}

// PlaceOrder handles POST /admin/orders. The plan terms are frozen on the order.
func (h *AdminHandler) PlaceOrder(c *gin.Context) {
	var req struct {
		UserID uint                `json:"user_id" binding:"required"`
		Plan   models.PlanSnapshot `json:"plan"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := h.orders.Place(c.Request.Context(), req.UserID, req.Plan)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// GetOrder handles GET /admin/orders/:id.
func (h *AdminHandler) GetOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	commissions, err := h.commissions.ListByOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "commissions": commissions})
}

// ApproveOrder handles POST /admin/orders/:id/approve.
func (h *AdminHandler) ApproveOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	res, err := h.orders.Approve(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RejectOrder handles POST /admin/orders/:id/reject.
func (h *AdminHandler) RejectOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.Reject(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// CancelOrder handles POST /admin/orders/:id/cancel.
func (h *AdminHandler) CancelOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.Cancel(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// CalculateCommissions handles POST /admin/orders/:id/commissions.
func (h *AdminHandler) CalculateCommissions(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	res, err := h.commissions.Calculate(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ReprocessOrders handles POST /admin/orders/reprocess.
func (h *AdminHandler) ReprocessOrders(c *gin.Context) {
	res, err := h.orders.ReprocessApproved(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PayAll handles POST /admin/payouts.
func (h *AdminHandler) PayAll(c *gin.Context) {
	res, err := h.payouts.PayAll(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PayUser handles POST /admin/payouts/users/:id.
func (h *AdminHandler) PayUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	res, err := h.payouts.PayUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PayCommission handles POST /admin/payouts/commissions/:uuid.
func (h *AdminHandler) PayCommission(c *gin.Context) {
	out, err := h.payouts.PayCommission(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		if out != nil {
			h.logger.Warn("commission payout failed", zap.String("commission_uuid", out.CommissionUUID), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "payout failed", "outcome": out})
			return
		}
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Reconcile handles GET /admin/reconcile/:id.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	rec, err := h.ledger.Reconcile(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// ReconcileAll handles GET /admin/reconcile: lists drifted wallets only.
func (h *AdminHandler) ReconcileAll(c *gin.Context) {
	drifted, err := h.ledger.ReconcileAll(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drifted": drifted, "consistent": len(drifted) == 0})
}

// CompleteWithdrawal handles POST /admin/withdrawals/:uuid/complete.
func (h *AdminHandler) CompleteWithdrawal(c *gin.Context) {
	w, err := h.withdrawals.Complete(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// FailWithdrawal handles POST /admin/withdrawals/:uuid/fail.
func (h *AdminHandler) FailWithdrawal(c *gin.Context) {
	w, err := h.withdrawals.Fail(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, w)
}
