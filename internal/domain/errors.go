package domain

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrAmountMismatch    = errors.New("amount does not match order total")
	ErrInvalidTransition = errors.New("illegal order status transition")
	ErrOrderProcessed    = errors.New("order already processed")
	ErrInvalidAmount     = errors.New("invalid amount")
)
