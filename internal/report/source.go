package report

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order statuses relevant to aggregation.
const statusCancelled = "cancelled"

// OrderRow is the slice of an order that reports read.
type OrderRow struct {
	ID            uuid.UUID
	Status        string
	CreatedAt     time.Time
	Subtotal      decimal.Decimal
	VATAmount     decimal.Decimal
	ServiceCharge decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	// PaymentsReceived is the sum of completed payments on the order.
	PaymentsReceived decimal.Decimal
}

// PurchaseRow is the slice of a purchase that reports read.
type PurchaseRow struct {
	ID        uuid.UUID
	Date      time.Time
	Category  string
	Subtotal  decimal.Decimal
	VATAmount decimal.Decimal
	Total     decimal.Decimal
}

// View reads from one consistent snapshot.
type View interface {
	// EachOrder visits orders created in [from, to) in creation order.
	EachOrder(ctx context.Context, from, to time.Time, fn func(OrderRow) error) error
	// EachPurchase visits purchases dated in [from, to), both given as
	// midnight UTC of a calendar date.
	EachPurchase(ctx context.Context, from, to time.Time, fn func(PurchaseRow) error) error
}

// Source opens read snapshots. Every read made through the View passed to fn
// observes the same committed state.
//
// Revision is a counter that moves in the same transaction as every write
// to orders, payments, purchases or settings. Two equal readings mean no
// such write committed in between.
type Source interface {
	Snapshot(ctx context.Context, fn func(View) error) error
	Revision(ctx context.Context) (int64, error)
}
