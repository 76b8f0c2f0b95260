package handler

import (
	"errors"
	"net/http"
	"strconv"

	"rafflehub/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{service.ErrUserNotFound, http.StatusNotFound},
	{service.ErrOrderNotFound, http.StatusNotFound},
	{service.ErrCommissionNotFound, http.StatusNotFound},
	{service.ErrRaffleNotFound, http.StatusNotFound},
	{service.ErrRaffleTicketNotFound, http.StatusNotFound},
	{service.ErrWithdrawalNotFound, http.StatusNotFound},
	{service.ErrWalletNotFound, http.StatusNotFound},

	{service.ErrAlreadyApplied, http.StatusConflict},
	{service.ErrDuplicateStatement, http.StatusConflict},
	{service.ErrOrderNotPending, http.StatusConflict},
	{service.ErrNotCancellable, http.StatusConflict},
	{service.ErrNotPending, http.StatusConflict},
	{service.ErrWithdrawalClosed, http.StatusConflict},
	{service.ErrNothingToCredit, http.StatusConflict},

	{service.ErrInsufficientBalance, http.StatusUnprocessableEntity},
	{service.ErrInsufficientTickets, http.StatusUnprocessableEntity},
	{service.ErrInsufficientAllowance, http.StatusUnprocessableEntity},
	{service.ErrBelowMinimumTickets, http.StatusUnprocessableEntity},
	{service.ErrRaffleInactive, http.StatusUnprocessableEntity},
	{service.ErrOrderNotApproved, http.StatusUnprocessableEntity},
	{service.ErrMissingPrice, http.StatusUnprocessableEntity},

	{service.ErrInvalidTicketCount, http.StatusBadRequest},
	{service.ErrInvalidAmount, http.StatusBadRequest},
	{service.ErrInvalidPosting, http.StatusBadRequest},
	{service.ErrInvalidPlan, http.StatusBadRequest},
}

// respondError maps service errors to HTTP statuses. Anything unknown is
// logged and reported as a 500 without leaking details.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			c.JSON(m.status, gin.H{"error": m.err.Error()})
			return
		}
	}
	logger.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return limit, (page - 1) * limit
}
