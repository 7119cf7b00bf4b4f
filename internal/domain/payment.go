package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionFailed    TransactionStatus = "FAILED"
)

// PaymentTransaction is one attempt to collect payment for an order.
// GatewayPaymentID stays empty until the gateway assigns one.
type PaymentTransaction struct {
	ID               uuid.UUID
	OrderID          uuid.UUID
	GatewayPaymentID string
	Amount           decimal.Decimal
	Currency         string
	Status           TransactionStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AmountEpsilon is the largest deviation tolerated between an order's total
// and the amount a gateway notification reports for it.
var AmountEpsilon = decimal.New(1, -2) // 0.01

// AmountsMatch reports whether a and b agree within AmountEpsilon.
func AmountsMatch(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().Cmp(AmountEpsilon) <= 0
}

// Outcome classifies the result of applying a payment notification.
type Outcome string

const (
	OutcomeApplied        Outcome = "APPLIED"
	OutcomeAlreadyApplied Outcome = "ALREADY_APPLIED"
	OutcomeOrderNotFound  Outcome = "ORDER_NOT_FOUND"
	OutcomeAmountMismatch Outcome = "AMOUNT_MISMATCH"
)
