package handler

import (
	"net/http"
	"time"

	"rafflehub/internal/domain"
	"rafflehub/internal/logging"
	"rafflehub/internal/middleware"
	"rafflehub/internal/repository"
	"rafflehub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WalletHandler struct {
	ledger      *service.LedgerService
	commissions *service.CommissionService
	withdrawals *service.WithdrawalService
	logger      *zap.Logger
}

func NewWalletHandler(
	ledger *service.LedgerService,
	commissions *service.CommissionService,
	withdrawals *service.WithdrawalService,
	logger *zap.Logger,
) *WalletHandler {
	return &WalletHandler{
		ledger:      ledger,
		commissions: commissions,
		withdrawals: withdrawals,
		logger:      logging.OrNop(logger),
	}
}

// GetBalance handles GET /wallet.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	w, err := h.ledger.GetBalance(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// ListStatements handles GET /wallet/statements?type=&origin=&status=&from=&to=.
func (h *WalletHandler) ListStatements(c *gin.Context) {
	limit, offset := parsePagination(c)
	f := repository.StatementFilter{
		Type:   c.Query("type"),
		Origin: c.Query("origin"),
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	}
	if f.Origin != "" && !domain.IsValidOrigin(f.Origin) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown origin"})
		return
	}
	for key, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be RFC3339"})
			return
		}
		*dst = &t
	}

	list, total, err := h.ledger.ListStatements(c.Request.Context(), middleware.GetUserID(c), f)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"statements": list, "total": total})
}

// ListAllowances handles GET /wallet/allowances.
func (h *WalletHandler) ListAllowances(c *gin.Context) {
	list, err := h.ledger.Allowances(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allowances": list})
}

// ListCommissions handles GET /commissions: commissions earned by the caller.
func (h *WalletHandler) ListCommissions(c *gin.Context) {
	limit, offset := parsePagination(c)
	list, err := h.commissions.ListByBeneficiary(c.Request.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commissions": list})
}

// RequestWithdrawal handles POST /withdrawals.
func (h *WalletHandler) RequestWithdrawal(c *gin.Context) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w, err := h.withdrawals.Request(c.Request.Context(), middleware.GetUserID(c), req.Amount)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}
