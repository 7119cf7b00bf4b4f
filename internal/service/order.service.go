package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront-payments/internal/domain"
	"storefront-payments/internal/repo"
)

type OrderService interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, description string) (*domain.Order, error)
	// Advance moves an order along the fulfillment chain or cancels it.
	// Payment statuses are not reachable through here; those belong to
	// PaymentService.
	Advance(ctx context.Context, orderID uuid.UUID, to domain.OrderStatus) error
}

type orderService struct {
	db        *sql.DB
	orderRepo repo.OrderRepo
}

func NewOrderService(db *sql.DB, orderRepo repo.OrderRepo) OrderService {
	return &orderService{db: db, orderRepo: orderRepo}
}

func (s *orderService) CreateOrder(ctx context.Context, amount decimal.Decimal, description string) (*domain.Order, error) {
	if amount.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	now := time.Now()
	order := &domain.Order{
		ID:          uuid.New(),
		TotalAmount: amount,
		Description: description,
		Status:      domain.OrderPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

// fulfillmentTargets are the only statuses Advance may move an order to.
var fulfillmentTargets = map[domain.OrderStatus]bool{
	domain.OrderPreparing:  true,
	domain.OrderDelivering: true,
	domain.OrderDelivered:  true,
	domain.OrderCancelled:  true,
}

func (s *orderService) Advance(ctx context.Context, orderID uuid.UUID, to domain.OrderStatus) error {
	if !fulfillmentTargets[to] {
		return domain.ErrInvalidTransition
	}

	order, err := s.orderRepo.FindById(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrOrderNotFound
	}
	if !order.Status.CanTransition(to) {
		return domain.ErrInvalidTransition
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	moved, err := s.orderRepo.UpdateStatusIf(ctx, tx, orderID, order.Status, to)
	if err != nil {
		return err
	}
	if !moved {
		// Someone else moved the order between the read and the update.
		return domain.ErrInvalidTransition
	}
	return tx.Commit()
}
