// Package payment records payments against orders and answers whether an
// order has been paid. A payment of any status locks the order's financials.
package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status of a recorded payment.
type Status string

// Payment statuses. Only completed payments count towards cash received.
const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
)

// Payment is an append-only record. There is no void or refund.
type Payment struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Amount    decimal.Decimal
	Method    string
	Status    Status
	Reference *string
	CreatedAt time.Time
}

// Gate answers whether any payment references an order, regardless of status.
type Gate interface {
	HasPayment(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// Store persists payments.
type Store interface {
	Gate
	// RecordPayment appends p while holding the order's row lock, so it
	// serialises with in-flight ledger mutations. It returns
	// common.ErrNotFound when the order does not exist.
	RecordPayment(ctx context.Context, p Payment) (Payment, error)
	ListPayments(ctx context.Context, orderID uuid.UUID) ([]Payment, error)
}
