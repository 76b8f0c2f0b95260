package router

import (
	"net/http"
	"time"

	"rafflehub/config"
	"rafflehub/internal/handler"
	"rafflehub/internal/middleware"
	"rafflehub/internal/service"
	"rafflehub/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Setup builds the HTTP engine. The limiter may be nil to disable rate limiting.
func Setup(cfg *config.Config, svc *service.Services, hub *ws.Hub, limiter *middleware.InMemoryRateLimiter, logger *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Metrics())

	walletHandler := handler.NewWalletHandler(svc.Ledger, svc.Commissions, svc.Withdrawals, logger)
	raffleHandler := handler.NewRaffleHandler(svc.Raffles, logger)
	adminHandler := handler.NewAdminHandler(svc.Orders, svc.Commissions, svc.Payouts, svc.Ledger, svc.Withdrawals, logger)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws/wallet", ws.WalletFeed(&cfg.JWT, hub, svc.Ledger))

	authMw := middleware.AuthRequired(&cfg.JWT)
	api := r.Group("/api/v1", authMw, middleware.RateLimit(limiter))
	{
		api.GET("/wallet", walletHandler.GetBalance)
		api.GET("/wallet/statements", walletHandler.ListStatements)
		api.GET("/wallet/allowances", walletHandler.ListAllowances)
		api.GET("/commissions", walletHandler.ListCommissions)
		api.POST("/withdrawals", walletHandler.RequestWithdrawal)

		api.POST("/raffles/:uuid/apply", raffleHandler.Apply)
		api.POST("/raffles/:uuid/redeem", raffleHandler.Redeem)
		api.GET("/raffles/:uuid/tickets", raffleHandler.ListTickets)
		api.POST("/raffle-tickets/cancel", raffleHandler.Cancel)

		admin := api.Group("/admin", middleware.AdminRequired())
		{
			admin.POST("/orders", adminHandler.PlaceOrder)
			admin.POST("/orders/reprocess", adminHandler.ReprocessOrders)
			admin.GET("/orders/:id", adminHandler.GetOrder)
			admin.POST("/orders/:id/approve", adminHandler.ApproveOrder)
			admin.POST("/orders/:id/reject", adminHandler.RejectOrder)
			admin.POST("/orders/:id/cancel", adminHandler.CancelOrder)
			admin.POST("/orders/:id/commissions", adminHandler.CalculateCommissions)

			admin.POST("/payouts", adminHandler.PayAll)
			admin.POST("/payouts/users/:id", adminHandler.PayUser)
			admin.POST("/payouts/commissions/:uuid", adminHandler.PayCommission)

			admin.GET("/reconcile", adminHandler.ReconcileAll)
			admin.GET("/reconcile/:id", adminHandler.Reconcile)

			admin.POST("/withdrawals/:uuid/complete", adminHandler.CompleteWithdrawal)
			admin.POST("/withdrawals/:uuid/fail", adminHandler.FailWithdrawal)

			admin.POST("/raffle-tickets/confirm", raffleHandler.Confirm)
			admin.GET("/tickets/stats", raffleHandler.PoolStats)
		}
	}
	return r
}
