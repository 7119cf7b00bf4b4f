// Package worker resolves orders stuck in PAYMENT_PROCESSING: initiations
// that timed out on our side may still have been charged by the processor,
// and webhooks can be lost. The worker asks the gateway for the truth and
// feeds it through the same idempotent transition the webhook uses, so a
// late-arriving webhook and the worker can never double-settle an order.
package worker

import (
	"context"
	"log/slog"
	"time"

	"storefront-payments/internal/gateway"
	"storefront-payments/internal/repo"
	"storefront-payments/internal/service"
)

const stuckBatchSize = 100

type ReconciliationWorker struct {
	orderRepo   repo.OrderRepo
	paymentRepo repo.PaymentRepo
	gateway     gateway.Client
	payments    service.PaymentService
	interval    time.Duration
	threshold   time.Duration
	lifetime    time.Duration
	logger      *slog.Logger
}

func NewReconciliationWorker(
	orderRepo repo.OrderRepo,
	paymentRepo repo.PaymentRepo,
	gw gateway.Client,
	payments service.PaymentService,
	interval time.Duration,
	threshold time.Duration,
	lifetime time.Duration,
	logger *slog.Logger,
) *ReconciliationWorker {
	return &ReconciliationWorker{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		gateway:     gw,
		payments:    payments,
		interval:    interval,
		threshold:   threshold,
		lifetime:    lifetime,
		logger:      logger,
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.logger.Info("reconciliation worker started", "interval", rw.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rw.process(ctx); err != nil {
				rw.logger.Error("reconciliation pass failed", "error", err)
			}
		}
	}
}

func (rw *ReconciliationWorker) process(ctx context.Context) error {
	stuck, err := rw.orderRepo.FindStuckProcessing(ctx, rw.threshold, stuckBatchSize)
	if err != nil {
		return err
	}
	if len(stuck) == 0 {
		return nil
	}

	rw.logger.Info("reconciling stuck orders", "count", len(stuck))

	for _, order := range stuck {
		txn, err := rw.paymentRepo.FindActiveByOrderId(ctx, order.ID)
		if err != nil {
			rw.logger.Error("loading transaction", "order_id", order.ID, "error", err)
			continue
		}
		if txn == nil || txn.GatewayPaymentID == "" {
			// The gateway never acknowledged this initiation; there is
			// nothing to query. A webhook or check call has to resolve it.
			continue
		}

		status, err := rw.gateway.Status(ctx, txn.GatewayPaymentID)
		if err != nil {
			rw.logger.Warn("gateway status query failed",
				"order_id", order.ID, "gateway_payment_id", txn.GatewayPaymentID, "error", err)
			continue // next pass will retry
		}

		// A payment the processor has not settled is not dead: the
		// customer may still be paying. Only give up once the payment's
		// lifetime at the gateway has expired.
		if !status.Final() {
			if time.Since(txn.CreatedAt) <= rw.lifetime {
				continue
			}
			rw.logger.Info("expiring payment past its lifetime",
				"order_id", order.ID, "gateway_payment_id", txn.GatewayPaymentID)
		}

		outcome, err := rw.payments.Apply(ctx, order.ID, txn.GatewayPaymentID, txn.Amount, txn.Currency, status == gateway.PaymentSucceeded)
		if err != nil {
			rw.logger.Error("applying reconciled result", "order_id", order.ID, "error", err)
			continue
		}
		rw.logger.Info("stuck order reconciled",
			"order_id", order.ID, "payment_status", status, "outcome", outcome)
	}
	return nil
}
