package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"rafflehub/config"
	"rafflehub/internal/database"
	"rafflehub/internal/jobs"
	"rafflehub/internal/logging"
	"rafflehub/internal/middleware"
	"rafflehub/internal/router"
	"rafflehub/internal/service"
	"rafflehub/internal/ws"
	"rafflehub/pkg/payment"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.IsProduction())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var disburser payment.Disburser = payment.LedgerDisburser{}
	if cfg.Payout.GatewayURL != "" {
		disburser = payment.NewGatewayDisburser(cfg.Payout.GatewayURL, cfg.Payout.GatewayEmail, cfg.Payout.GatewayPassword, logger)
	}
	svc := service.New(cfg, db, disburser, logger)
	hub := ws.NewHub()
	svc.Ledger.SetNotifier(hub)

	limiter := middleware.NewInMemoryRateLimiter(cfg.Server.RateLimit, time.Minute)
	go limiter.Run(ctx)

	scheduler := cron.New(cron.WithLogger(jobs.NewCronLogger(logger)))
	if cfg.Payout.Enabled {
		job := jobs.NewPayoutJob(svc.Payouts, 0, logger)
		if _, err := job.Schedule(scheduler, cfg.Payout.Schedule); err != nil {
			logger.Fatal("payout schedule", zap.String("schedule", cfg.Payout.Schedule), zap.Error(err))
		}
		scheduler.Start()
		logger.Info("payout job scheduled", zap.String("schedule", cfg.Payout.Schedule))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(cfg, svc, hub, limiter, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	// Wait for an in-flight payout run before exiting.
	<-scheduler.Stop().Done()
	logger.Info("server stopped")
}
