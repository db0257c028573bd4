// Package order is the order ledger: the only writer of order and order item
// state. Totals are recomputed from the item set on every financial change
// and become immutable once any payment exists.
package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/pricing"
)

// Status is the kitchen/service lifecycle state of an order.
type Status string

// Order statuses.
const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusServed    Status = "served"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Order types.
const (
	TypeDineIn   = "dine_in"
	TypeTakeaway = "takeaway"
	TypeDelivery = "delivery"
)

// Order is a persisted order with its monetary fields.
type Order struct {
	ID            uuid.UUID
	TableID       *uuid.UUID
	StaffID       *uuid.UUID
	OrderType     string
	Notes         *string
	Status        Status
	Subtotal      decimal.Decimal
	VATRate       decimal.Decimal
	VATAmount     decimal.Decimal
	ServiceCharge decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Items         []Item
}

// Item is an order line. Price is the menu price captured when the line was
// created and is never re-derived from the menu.
type Item struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	MenuItemID   uuid.UUID
	Quantity     int
	Price        decimal.Decimal
	Instructions *string
}

// Totals returns the order's monetary fields.
func (o Order) Totals() pricing.Totals {
	return pricing.Totals{
		Subtotal:      o.Subtotal,
		VATRate:       o.VATRate,
		VATAmount:     o.VATAmount,
		ServiceCharge: o.ServiceCharge,
		Discount:      o.Discount,
		Total:         o.Total,
	}
}

// Recompute derives subtotal, VAT and total from the current item set and the
// order's own rate, service charge and discount. It is idempotent.
func Recompute(o Order) Order {
	t := pricing.Compute(subtotalOf(o.Items), o.VATRate, o.ServiceCharge, o.Discount)
	o.Subtotal = t.Subtotal
	o.VATAmount = t.VATAmount
	o.ServiceCharge = t.ServiceCharge
	o.Discount = t.Discount
	o.Total = t.Total
	return o
}

func subtotalOf(items []Item) decimal.Decimal {
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, pricing.Line{Quantity: it.Quantity, UnitPrice: it.Price})
	}
	return pricing.Subtotal(lines)
}

func statusRank(s Status) int {
	switch s {
	case StatusPending:
		return 0
	case StatusPreparing:
		return 1
	case StatusReady:
		return 2
	case StatusServed:
		return 3
	case StatusCompleted:
		return 4
	case StatusCancelled:
		return -1
	default:
		return -2
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return statusRank(s) != -2 }

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusCancelled }

// CanTransition reports whether from may move to to. Forward moves may skip
// steps; cancellation is allowed from any non-terminal state.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() || from.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return statusRank(to) > statusRank(from)
}
