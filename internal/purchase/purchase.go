// Package purchase records supplier purchases, the source of input VAT.
package purchase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Supplier is a vendor purchases are made from.
type Supplier struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Phone     *string
	VATNumber *string
	CreatedAt time.Time
}

// Purchase mirrors an order's monetary shape for input VAT.
type Purchase struct {
	ID         uuid.UUID
	SupplierID uuid.UUID
	Date       time.Time
	Category   string
	Subtotal   decimal.Decimal
	VATRate    decimal.Decimal
	VATAmount  decimal.Decimal
	Total      decimal.Decimal
	Reference  *string
	Notes      *string
	CreatedAt  time.Time
}

// Filter narrows purchase listings by date. From is inclusive and To exclusive.
type Filter struct {
	From       *time.Time
	To         *time.Time
	SupplierID *uuid.UUID
}

// Store persists suppliers and purchases.
type Store interface {
	CreateSupplier(ctx context.Context, s Supplier) (Supplier, error)
	GetSupplier(ctx context.Context, id uuid.UUID) (Supplier, error)
	ListSuppliers(ctx context.Context) ([]Supplier, error)
	// CreatePurchase returns common.ErrNotFound when the supplier does not exist.
	CreatePurchase(ctx context.Context, p Purchase) (Purchase, error)
	GetPurchase(ctx context.Context, id uuid.UUID) (Purchase, error)
	ListPurchases(ctx context.Context, f Filter) ([]Purchase, error)
}
