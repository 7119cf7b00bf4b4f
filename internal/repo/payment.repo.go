package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"storefront-payments/internal/domain"
)

type PaymentRepo interface {
	CreateTransaction(ctx context.Context, tx *sql.Tx, p *domain.PaymentTransaction) error
	// FindActiveByOrderId returns the most recent transaction for the order,
	// or nil when the order never reached checkout.
	FindActiveByOrderId(ctx context.Context, orderID uuid.UUID) (*domain.PaymentTransaction, error)
	SetGatewayPaymentID(ctx context.Context, id uuid.UUID, gatewayPaymentID string) error
	// UpdateStatusIf settles the transaction only if it is still in the
	// expected status, recording the gateway id when one is supplied and
	// none has been assigned yet. An assigned id is never overwritten.
	UpdateStatusIf(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to domain.TransactionStatus, gatewayPaymentID string) (bool, error)
}

type paymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepo {
	return &paymentRepo{db: db}
}

const paymentColumns = `id, order_id, gateway_payment_id, amount, currency, status, created_at, updated_at`

func (r *paymentRepo) CreateTransaction(ctx context.Context, tx *sql.Tx, p *domain.PaymentTransaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payment_transactions (id, order_id, gateway_payment_id, amount, currency, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.OrderID, p.GatewayPaymentID, p.Amount, p.Currency, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *paymentRepo) FindActiveByOrderId(ctx context.Context, orderID uuid.UUID) (*domain.PaymentTransaction, error) {
	var p domain.PaymentTransaction
	err := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payment_transactions
		 WHERE order_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		orderID,
	).Scan(
		&p.ID,
		&p.OrderID,
		&p.GatewayPaymentID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) SetGatewayPaymentID(ctx context.Context, id uuid.UUID, gatewayPaymentID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payment_transactions
		 SET gateway_payment_id = $2, updated_at = now()
		 WHERE id = $1 AND gateway_payment_id = ''`,
		id, gatewayPaymentID,
	)
	return err
}

func (r *paymentRepo) UpdateStatusIf(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to domain.TransactionStatus, gatewayPaymentID string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE payment_transactions
		 SET status = $3,
		     gateway_payment_id = CASE WHEN gateway_payment_id = '' THEN $4 ELSE gateway_payment_id END,
		     updated_at = now()
		 WHERE id = $1 AND status = $2`,
		id, from, to, gatewayPaymentID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
