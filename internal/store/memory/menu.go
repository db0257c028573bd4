package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/menu"
)

// CreateMenuItem stores item.
func (s *Store) CreateMenuItem(ctx context.Context, item menu.Item) (menu.Item, error) {
	err := s.atomically(ctx, func(st *state) error {
		if _, ok := st.menu[item.ID]; ok {
			return common.ErrConflict
		}
		st.menu[item.ID] = item
		return nil
	})
	return item, err
}

// GetMenuItem returns one item.
func (s *Store) GetMenuItem(ctx context.Context, id uuid.UUID) (menu.Item, error) {
	var (
		out menu.Item
		ok  bool
	)
	s.read(func(st *state) { out, ok = st.menu[id] })
	if !ok {
		return menu.Item{}, common.ErrNotFound
	}
	return out, nil
}

// ListMenuItems returns items ordered by category then name.
func (s *Store) ListMenuItems(ctx context.Context, includeUnavailable bool) ([]menu.Item, error) {
	out := []menu.Item{}
	s.read(func(st *state) {
		for _, it := range st.menu {
			if it.Available || includeUnavailable {
				out = append(out, it)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// UpdateMenuItem applies mutate to the item.
func (s *Store) UpdateMenuItem(ctx context.Context, id uuid.UUID, mutate func(menu.Item) (menu.Item, error)) (menu.Item, error) {
	var out menu.Item
	err := s.atomically(ctx, func(st *state) error {
		current, ok := st.menu[id]
		if !ok {
			return common.ErrNotFound
		}
		next, err := mutate(current)
		if err != nil {
			return err
		}
		next.ID = id
		st.menu[id] = next
		out = next
		return nil
	})
	return out, err
}

// DeleteMenuItem removes the item, or marks it unavailable when referenced.
func (s *Store) DeleteMenuItem(ctx context.Context, id uuid.UUID, now time.Time) (menu.DeleteResult, error) {
	var out menu.DeleteResult
	err := s.atomically(ctx, func(st *state) error {
		item, ok := st.menu[id]
		if !ok {
			return common.ErrNotFound
		}
		if referenced(st, id) {
			item.Available = false
			item.UpdatedAt = now
			st.menu[id] = item
			out = menu.MarkedUnavailable{Item: item}
			return nil
		}
		delete(st.menu, id)
		out = menu.Deleted{ID: id}
		return nil
	})
	return out, err
}

func referenced(st *state, menuItemID uuid.UUID) bool {
	for _, o := range st.orders {
		for _, it := range o.Items {
			if it.MenuItemID == menuItemID {
				return true
			}
		}
	}
	return false
}
