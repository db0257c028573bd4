package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/menu"
	"github.com/noah-isme/backend-resto/internal/order"
)

// InTx runs fn with exclusive access. Nothing fn wrote is visible unless it
// returns nil.
func (s *Store) InTx(ctx context.Context, fn func(order.Tx) error) error {
	return s.atomically(ctx, func(st *state) error {
		return fn(&tx{st: st})
	})
}

// GetOrder returns an order with its items.
func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (order.Order, error) {
	var (
		out order.Order
		ok  bool
	)
	s.read(func(st *state) {
		out, ok = st.orders[id]
		out = cloneOrder(out)
	})
	if !ok {
		return order.Order{}, common.ErrNotFound
	}
	return out, nil
}

// ListOrders returns matching orders newest first with the unpaged count.
func (s *Store) ListOrders(ctx context.Context, f order.Filter) ([]order.Order, int, error) {
	var matched []order.Order
	s.read(func(st *state) {
		for _, o := range st.orders {
			if f.From != nil && o.CreatedAt.Before(*f.From) {
				continue
			}
			if f.To != nil && !o.CreatedAt.Before(*f.To) {
				continue
			}
			if f.Status != nil && o.Status != *f.Status {
				continue
			}
			matched = append(matched, cloneOrder(o))
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})
	total := len(matched)
	start := min(max(f.Offset, 0), total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return matched[start:end], total, nil
}

type tx struct {
	st *state
}

func (t *tx) HasPayment(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return len(t.st.payments[orderID]) > 0, nil
}

func (t *tx) MenuItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]menu.Item, error) {
	out := make(map[uuid.UUID]menu.Item, len(ids))
	for _, id := range ids {
		if it, ok := t.st.menu[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

func (t *tx) LockOrder(ctx context.Context, id uuid.UUID) (order.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return order.Order{}, common.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (t *tx) InsertOrder(ctx context.Context, o order.Order) error {
	if _, ok := t.st.orders[o.ID]; ok {
		return common.ErrConflict
	}
	t.st.orders[o.ID] = cloneOrder(o)
	return nil
}

func (t *tx) SaveOrder(ctx context.Context, o order.Order) error {
	current, ok := t.st.orders[o.ID]
	if !ok {
		return common.ErrNotFound
	}
	if o.Version != current.Version+1 {
		return common.ErrConflict
	}
	o.Items = current.Items
	t.st.orders[o.ID] = o
	return nil
}

func (t *tx) InsertItems(ctx context.Context, items []order.Item) error {
	for _, it := range items {
		o, ok := t.st.orders[it.OrderID]
		if !ok {
			return common.ErrNotFound
		}
		o.Items = append(o.Items, it)
		t.st.orders[it.OrderID] = o
	}
	return nil
}

func (t *tx) UpdateItem(ctx context.Context, it order.Item) error {
	o, ok := t.st.orders[it.OrderID]
	if !ok {
		return common.ErrNotFound
	}
	for i := range o.Items {
		if o.Items[i].ID == it.ID {
			o.Items[i] = it
			return nil
		}
	}
	return common.ErrNotFound
}

func (t *tx) DeleteItem(ctx context.Context, orderID, itemID uuid.UUID) error {
	o, ok := t.st.orders[orderID]
	if !ok {
		return common.ErrNotFound
	}
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			o.Items = append(o.Items[:i:i], o.Items[i+1:]...)
			t.st.orders[orderID] = o
			return nil
		}
	}
	return common.ErrNotFound
}

func (t *tx) DeleteItems(ctx context.Context, orderID uuid.UUID) error {
	o, ok := t.st.orders[orderID]
	if !ok {
		return common.ErrNotFound
	}
	o.Items = nil
	t.st.orders[orderID] = o
	return nil
}

func (t *tx) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.st.orders[id]; !ok {
		return common.ErrNotFound
	}
	delete(t.st.orders, id)
	delete(t.st.payments, id)
	return nil
}
