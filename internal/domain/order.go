package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending           OrderStatus = "PENDING"
	OrderPaymentProcessing OrderStatus = "PAYMENT_PROCESSING"
	OrderPaid              OrderStatus = "PAID"
	OrderPaymentFailed     OrderStatus = "PAYMENT_FAILED"
	OrderPreparing         OrderStatus = "PREPARING"
	OrderDelivering        OrderStatus = "DELIVERING"
	OrderDelivered         OrderStatus = "DELIVERED"
	OrderCancelled         OrderStatus = "CANCELLED"
)

type Order struct {
	ID          uuid.UUID
	TotalAmount decimal.Decimal
	Description string
	Status      OrderStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// transitions lists the legal forward moves. Every non-terminal status may
// additionally move to CANCELLED.
var transitions = map[OrderStatus][]OrderStatus{
	OrderPending:           {OrderPaymentProcessing},
	OrderPaymentProcessing: {OrderPaid, OrderPaymentFailed},
	OrderPaymentFailed:     {OrderPaymentProcessing},
	OrderPaid:              {OrderPreparing},
	OrderPreparing:         {OrderDelivering},
	OrderDelivering:        {OrderDelivered},
}

func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// CanTransition reports whether an order in status s may move to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if next == OrderCancelled {
		return !s.Terminal()
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
