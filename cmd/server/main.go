package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-payments/internal/config"
	"storefront-payments/internal/database"
	"storefront-payments/internal/gateway"
	"storefront-payments/internal/qr"
	"storefront-payments/internal/repo"
	"storefront-payments/internal/service"
	"storefront-payments/internal/signature"
	transport "storefront-payments/internal/transport/http"
	"storefront-payments/internal/worker"
	"storefront-payments/migrations"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("loading config", "error", err)
		os.Exit(1)
	}

	db, err := database.NewPostgres(cfg)
	if err != nil {
		logger.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrations.Apply(ctx, db); err != nil {
		logger.Error("applying migrations", "error", err)
		os.Exit(1)
	}

	signer := signature.NewCodec(cfg.SecretKey)
	gatewayClient := gateway.NewClient(cfg, signer)
	qrBuilder := qr.NewBuilder(cfg.QRMerchantBlock, cfg.QRTrailerTag)

	orderRepo := repo.NewOrderRepo(db)
	paymentRepo := repo.NewPaymentRepo(db)
	orderService := service.NewOrderService(db, orderRepo)
	paymentService := service.NewPaymentService(db, orderRepo, paymentRepo, gatewayClient, cfg.Currency, logger)

	reconciler := worker.NewReconciliationWorker(
		orderRepo, paymentRepo, gatewayClient, paymentService,
		cfg.WorkerInterval, cfg.StuckThreshold, cfg.PaymentLifetime, logger,
	)
	go reconciler.Run(ctx)

	router := transport.NewRouter(
		orderService, paymentService, signer, qrBuilder, gatewayClient, db, logger,
	)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
