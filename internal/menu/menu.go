package menu

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is a priced menu entry. Orders snapshot Price at creation.
type Item struct {
	ID        uuid.UUID
	Name      string
	Category  string
	Price     decimal.Decimal
	Available bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeleteResult is either Deleted or MarkedUnavailable.
type DeleteResult interface {
	deleteResult()
}

// Deleted means the item had no order references and was removed.
type Deleted struct {
	ID uuid.UUID
}

// MarkedUnavailable means order items still reference the item, so it was
// retained and hidden from ordering instead.
type MarkedUnavailable struct {
	Item Item
}

func (Deleted) deleteResult()           {}
func (MarkedUnavailable) deleteResult() {}

// Store persists menu items.
type Store interface {
	CreateMenuItem(ctx context.Context, item Item) (Item, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (Item, error)
	ListMenuItems(ctx context.Context, includeUnavailable bool) ([]Item, error)
	UpdateMenuItem(ctx context.Context, id uuid.UUID, mutate func(Item) (Item, error)) (Item, error)
	// DeleteMenuItem removes the item, or marks it unavailable when any order
	// item references it. The check and the write happen atomically.
	DeleteMenuItem(ctx context.Context, id uuid.UUID, now time.Time) (DeleteResult, error)
}
