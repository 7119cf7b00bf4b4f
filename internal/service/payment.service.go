package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront-payments/internal/domain"
	"storefront-payments/internal/gateway"
	"storefront-payments/internal/repo"
)

// PaymentService owns every payment-related mutation of an order. All
// writes go through conditional status updates so duplicate or concurrent
// gateway notifications settle a transaction at most once.
type PaymentService interface {
	InitiatePayment(ctx context.Context, orderID uuid.UUID) (gateway.InitiateResult, error)
	// Apply records a payment result for the order. It is idempotent:
	// replays and lost races report OutcomeAlreadyApplied, not an error.
	Apply(ctx context.Context, orderID uuid.UUID, gatewayPaymentID string, amount decimal.Decimal, currency string, success bool) (domain.Outcome, error)
	// Check is the gateway's read-only availability probe before it
	// commits a payment. It leaves no trace in storage.
	Check(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) error
	Status(ctx context.Context, orderID uuid.UUID) (*StatusSnapshot, error)
}

type StatusSnapshot struct {
	Order       *domain.Order
	Transaction *domain.PaymentTransaction
}

type paymentService struct {
	db          *sql.DB
	orderRepo   repo.OrderRepo
	paymentRepo repo.PaymentRepo
	gateway     gateway.Client
	currency    string
	logger      *slog.Logger
}

func NewPaymentService(
	db *sql.DB,
	orderRepo repo.OrderRepo,
	paymentRepo repo.PaymentRepo,
	gw gateway.Client,
	currency string,
	logger *slog.Logger,
) PaymentService {
	return &paymentService{
		db:          db,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		gateway:     gw,
		currency:    currency,
		logger:      logger,
	}
}

func (s *paymentService) InitiatePayment(ctx context.Context, orderID uuid.UUID) (gateway.InitiateResult, error) {
	order, err := s.orderRepo.FindById(ctx, orderID)
	if err != nil {
		return gateway.InitiateResult{}, err
	}
	if order == nil {
		return gateway.InitiateResult{}, domain.ErrOrderNotFound
	}

	var txn *domain.PaymentTransaction
	switch order.Status {
	case domain.OrderPending, domain.OrderPaymentFailed:
		txn, err = s.openTransaction(ctx, order)
		if err != nil {
			return gateway.InitiateResult{}, err
		}
	case domain.OrderPaymentProcessing:
		// A previous initiate may have timed out before the gateway
		// answered. Retrying is allowed only while no gateway id has
		// been assigned; otherwise the webhook or the reconciliation
		// worker will resolve the order.
		txn, err = s.paymentRepo.FindActiveByOrderId(ctx, orderID)
		if err != nil {
			return gateway.InitiateResult{}, err
		}
		if txn == nil || txn.GatewayPaymentID != "" {
			return gateway.InitiateResult{}, domain.ErrOrderProcessed
		}
	default:
		return gateway.InitiateResult{}, domain.ErrOrderProcessed
	}

	res, err := s.gateway.Initiate(ctx, gateway.InitiateRequest{
		OrderID:     order.ID.String(),
		Amount:      order.TotalAmount,
		Description: order.Description,
	})
	if err != nil {
		var gerr *gateway.Error
		if errors.As(err, &gerr) {
			// Definitive rejection by the processor: settle as failed.
			if _, ferr := s.settle(ctx, order.ID, txn.ID, "", false); ferr != nil {
				s.logger.Error("settling rejected initiation", "order_id", order.ID, "error", ferr)
			}
			return gateway.InitiateResult{}, err
		}
		// A timeout must not be read as failure: the order stays in
		// PAYMENT_PROCESSING until a webhook, check, or the worker
		// resolves it.
		return gateway.InitiateResult{}, err
	}

	if err := s.paymentRepo.SetGatewayPaymentID(ctx, txn.ID, res.GatewayPaymentID); err != nil {
		s.logger.Error("recording gateway payment id", "order_id", order.ID, "error", err)
	}
	return res, nil
}

// openTransaction moves the order into PAYMENT_PROCESSING and creates the
// pending transaction in a single database transaction. A lost race on the
// status update means another initiation is already in flight.
func (s *paymentService) openTransaction(ctx context.Context, order *domain.Order) (*domain.PaymentTransaction, error) {
	now := time.Now()
	txn := &domain.PaymentTransaction{
		ID:        uuid.New(),
		OrderID:   order.ID,
		Amount:    order.TotalAmount,
		Currency:  s.currency,
		Status:    domain.TransactionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	moved, err := s.orderRepo.UpdateStatusIf(ctx, tx, order.ID, order.Status, domain.OrderPaymentProcessing)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, domain.ErrOrderProcessed
	}
	if err := s.paymentRepo.CreateTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *paymentService) Apply(ctx context.Context, orderID uuid.UUID, gatewayPaymentID string, amount decimal.Decimal, currency string, success bool) (domain.Outcome, error) {
	order, err := s.orderRepo.FindById(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order == nil {
		return domain.OutcomeOrderNotFound, nil
	}

	txn, err := s.paymentRepo.FindActiveByOrderId(ctx, orderID)
	if err != nil {
		return "", err
	}
	if txn == nil {
		return domain.OutcomeOrderNotFound, nil
	}

	// A delivery carrying a gateway id for anything but the active
	// transaction is a replay for an earlier, already-settled attempt.
	// It must not touch the retry that is now in flight.
	if txn.GatewayPaymentID != "" && gatewayPaymentID != "" && gatewayPaymentID != txn.GatewayPaymentID {
		return domain.OutcomeAlreadyApplied, nil
	}

	// Replay of a result that already settled this transaction.
	if (txn.Status == domain.TransactionCompleted && success) ||
		(txn.Status == domain.TransactionFailed && !success) {
		return domain.OutcomeAlreadyApplied, nil
	}

	if !domain.AmountsMatch(txn.Amount, amount) {
		s.logger.Warn("payment amount mismatch",
			"order_id", orderID, "expected", txn.Amount, "got", amount)
		return domain.OutcomeAmountMismatch, nil
	}
	// A result in another currency can never match the recorded amount.
	if currency != "" && txn.Currency != "" && currency != txn.Currency {
		return domain.OutcomeAmountMismatch, nil
	}

	outcome, err := s.settle(ctx, orderID, txn.ID, gatewayPaymentID, success)
	if err != nil {
		return "", err
	}
	if outcome == domain.OutcomeApplied {
		s.logger.Info("payment result applied",
			"order_id", orderID, "gateway_payment_id", gatewayPaymentID, "success", success)
	}
	return outcome, nil
}

// settle performs the single conditional transition of order and transaction
// to their terminal payment statuses. Losing the compare-and-swap to a
// concurrent caller is expected and reported as OutcomeAlreadyApplied.
func (s *paymentService) settle(ctx context.Context, orderID, txnID uuid.UUID, gatewayPaymentID string, success bool) (domain.Outcome, error) {
	orderTo := domain.OrderPaid
	txnTo := domain.TransactionCompleted
	if !success {
		orderTo = domain.OrderPaymentFailed
		txnTo = domain.TransactionFailed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	movedOrder, err := s.orderRepo.UpdateStatusIf(ctx, tx, orderID, domain.OrderPaymentProcessing, orderTo)
	if err != nil {
		return "", err
	}
	if !movedOrder {
		return domain.OutcomeAlreadyApplied, nil
	}

	movedTxn, err := s.paymentRepo.UpdateStatusIf(ctx, tx, txnID, domain.TransactionPending, txnTo, gatewayPaymentID)
	if err != nil {
		return "", err
	}
	if !movedTxn {
		return domain.OutcomeAlreadyApplied, nil
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return domain.OutcomeApplied, nil
}

func (s *paymentService) Check(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) error {
	order, err := s.orderRepo.FindById(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrOrderNotFound
	}
	if order.Status != domain.OrderPending && order.Status != domain.OrderPaymentProcessing {
		return domain.ErrOrderProcessed
	}
	if !domain.AmountsMatch(order.TotalAmount, amount) {
		return domain.ErrAmountMismatch
	}
	if !s.gateway.HealthCheck(ctx) {
		return gateway.ErrUnavailable
	}
	return nil
}

func (s *paymentService) Status(ctx context.Context, orderID uuid.UUID) (*StatusSnapshot, error) {
	order, err := s.orderRepo.FindById(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	txn, err := s.paymentRepo.FindActiveByOrderId(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &StatusSnapshot{Order: order, Transaction: txn}, nil
}
