package order

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-resto/internal/menu"
	"github.com/noah-isme/backend-resto/internal/payment"
)

// Filter narrows order listings. From is inclusive and To exclusive.
type Filter struct {
	From   *time.Time
	To     *time.Time
	Status *Status
	Limit  int
	Offset int
}

// Store persists orders. All multi-row writes go through InTx.
type Store interface {
	// InTx runs fn inside one transaction. Any error from fn rolls back every
	// write made through the Tx.
	InTx(ctx context.Context, fn func(Tx) error) error
	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)
	ListOrders(ctx context.Context, f Filter) ([]Order, int, error)
}

// Tx is the transactional view used by ledger mutations.
type Tx interface {
	payment.Gate
	// MenuItems resolves the given ids. Unknown ids are absent from the map.
	MenuItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]menu.Item, error)
	// LockOrder loads the order with its items and holds it against
	// concurrent writers and payment recording until the transaction ends.
	LockOrder(ctx context.Context, id uuid.UUID) (Order, error)
	InsertOrder(ctx context.Context, o Order) error
	// SaveOrder writes the order header. o.Version must be exactly one above
	// the stored version, otherwise common.ErrConflict is returned.
	SaveOrder(ctx context.Context, o Order) error
	InsertItems(ctx context.Context, items []Item) error
	UpdateItem(ctx context.Context, it Item) error
	DeleteItem(ctx context.Context, orderID, itemID uuid.UUID) error
	DeleteItems(ctx context.Context, orderID uuid.UUID) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}
