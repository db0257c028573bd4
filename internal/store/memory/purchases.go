package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/purchase"
)

// CreateSupplier stores sup.
func (s *Store) CreateSupplier(ctx context.Context, sup purchase.Supplier) (purchase.Supplier, error) {
	err := s.atomically(ctx, func(st *state) error {
		if _, ok := st.suppliers[sup.ID]; ok {
			return common.ErrConflict
		}
		st.suppliers[sup.ID] = sup
		return nil
	})
	return sup, err
}

// GetSupplier returns one supplier.
func (s *Store) GetSupplier(ctx context.Context, id uuid.UUID) (purchase.Supplier, error) {
	var (
		out purchase.Supplier
		ok  bool
	)
	s.read(func(st *state) { out, ok = st.suppliers[id] })
	if !ok {
		return purchase.Supplier{}, common.ErrNotFound
	}
	return out, nil
}

// ListSuppliers returns suppliers by name.
func (s *Store) ListSuppliers(ctx context.Context) ([]purchase.Supplier, error) {
	out := []purchase.Supplier{}
	s.read(func(st *state) {
		for _, sup := range st.suppliers {
			out = append(out, sup)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// CreatePurchase stores p against an existing supplier.
func (s *Store) CreatePurchase(ctx context.Context, p purchase.Purchase) (purchase.Purchase, error) {
	err := s.atomically(ctx, func(st *state) error {
		if _, ok := st.suppliers[p.SupplierID]; !ok {
			return common.ErrNotFound
		}
		st.purchases[p.ID] = p
		return nil
	})
	return p, err
}

// GetPurchase returns one purchase.
func (s *Store) GetPurchase(ctx context.Context, id uuid.UUID) (purchase.Purchase, error) {
	var (
		out purchase.Purchase
		ok  bool
	)
	s.read(func(st *state) { out, ok = st.purchases[id] })
	if !ok {
		return purchase.Purchase{}, common.ErrNotFound
	}
	return out, nil
}

// ListPurchases returns matching purchases by date.
func (s *Store) ListPurchases(ctx context.Context, f purchase.Filter) ([]purchase.Purchase, error) {
	out := []purchase.Purchase{}
	s.read(func(st *state) {
		for _, p := range st.purchases {
			if f.From != nil && p.Date.Before(*f.From) {
				continue
			}
			if f.To != nil && !p.Date.Before(*f.To) {
				continue
			}
			if f.SupplierID != nil && p.SupplierID != *f.SupplierID {
				continue
			}
			out = append(out, p)
		}
	})
	sortPurchases(out)
	return out, nil
}

func sortPurchases(ps []purchase.Purchase) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].Date.Equal(ps[j].Date) {
			return ps[i].Date.Before(ps[j].Date)
		}
		return ps[i].CreatedAt.Before(ps[j].CreatedAt)
	})
}
