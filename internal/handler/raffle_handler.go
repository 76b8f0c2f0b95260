package handler

import (
	"net/http"

	"rafflehub/internal/logging"
	"rafflehub/internal/middleware"
	"rafflehub/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RaffleHandler struct {
	raffles *service.RaffleService
	logger  *zap.Logger
}

func NewRaffleHandler(raffles *service.RaffleService, logger *zap.Logger) *RaffleHandler {
	return &RaffleHandler{raffles: raffles, logger: logging.OrNop(logger)}
}

type ticketCountRequest struct {
	Count int `json:"count" binding:"required,min=1"`
}

type ticketUUIDsRequest struct {
	TicketUUIDs []string `json:"ticket_uuids" binding:"required,min=1,dive,required"`
}

// Apply handles POST /raffles/:uuid/apply: buy tickets with wallet funds.
func (h *RaffleHandler) Apply(c *gin.Context) {
	var req ticketCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.raffles.Apply(c.Request.Context(), middleware.GetUserID(c), c.Param("uuid"), req.Count)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Redeem handles POST /raffles/:uuid/redeem: spend plan-granted allowance.
func (h *RaffleHandler) Redeem(c *gin.Context) {
	var req ticketCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.raffles.Redeem(c.Request.Context(), middleware.GetUserID(c), c.Param("uuid"), req.Count)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ListTickets handles GET /raffles/:uuid/tickets.
func (h *RaffleHandler) ListTickets(c *gin.Context) {
	list, err := h.raffles.ListTickets(c.Request.Context(), middleware.GetUserID(c), c.Param("uuid"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": list})
}

// Cancel handles POST /raffle-tickets/cancel.
func (h *RaffleHandler) Cancel(c *gin.Context) {
	var req ticketUUIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.raffles.Cancel(c.Request.Context(), middleware.GetUserID(c), req.TicketUUIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Confirm handles POST /admin/raffle-tickets/confirm.
func (h *RaffleHandler) Confirm(c *gin.Context) {
	var req ticketUUIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.raffles.Confirm(c.Request.Context(), req.TicketUUIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"confirmed": n})
}

// PoolStats handles GET /admin/tickets/stats.
func (h *RaffleHandler) PoolStats(c *gin.Context) {
	stats, err := h.raffles.PoolStats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
