package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/menu"
)

const menuColumns = `id, name, category, price::text, available, created_at, updated_at`

func scanMenuItem(row pgx.Row) (menu.Item, error) {
	var (
		it    menu.Item
		price string
	)
	if err := row.Scan(&it.ID, &it.Name, &it.Category, &price, &it.Available, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return menu.Item{}, mapErr(err)
	}
	if err := parseNumerics(numeric{price, &it.Price}); err != nil {
		return menu.Item{}, err
	}
	return it, nil
}

// CreateMenuItem inserts item.
func (s *Store) CreateMenuItem(ctx context.Context, item menu.Item) (menu.Item, error) {
	if err := s.ready(); err != nil {
		return menu.Item{}, err
	}
	return scanMenuItem(s.Pool.QueryRow(ctx, `INSERT INTO menu_items (id, name, category, price, available, created_at, updated_at)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7) RETURNING `+menuColumns,
		item.ID, item.Name, item.Category, item.Price.String(), item.Available, item.CreatedAt, item.UpdatedAt))
}

// GetMenuItem returns one item.
func (s *Store) GetMenuItem(ctx context.Context, id uuid.UUID) (menu.Item, error) {
	if err := s.ready(); err != nil {
		return menu.Item{}, err
	}
	return scanMenuItem(s.Pool.QueryRow(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = $1`, id))
}

// ListMenuItems returns items ordered by category then name.
func (s *Store) ListMenuItems(ctx context.Context, includeUnavailable bool) ([]menu.Item, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+menuColumns+` FROM menu_items
WHERE available OR $1 ORDER BY category, name`, includeUnavailable)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	out := []menu.Item{}
	for rows.Next() {
		it, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, mapErr(rows.Err())
}

// UpdateMenuItem applies mutate to the locked row.
func (s *Store) UpdateMenuItem(ctx context.Context, id uuid.UUID, mutate func(menu.Item) (menu.Item, error)) (menu.Item, error) {
	var out menu.Item
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		current, err := scanMenuItem(tx.QueryRow(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		next, err := mutate(current)
		if err != nil {
			return err
		}
		out, err = scanMenuItem(tx.QueryRow(ctx, `UPDATE menu_items SET name = $2, category = $3, price = $4::numeric,
available = $5, updated_at = $6 WHERE id = $1 RETURNING `+menuColumns,
			id, next.Name, next.Category, next.Price.String(), next.Available, next.UpdatedAt))
		return err
	})
	return out, err
}

// DeleteMenuItem deletes an unreferenced item or marks a referenced one unavailable.
func (s *Store) DeleteMenuItem(ctx context.Context, id uuid.UUID, now time.Time) (menu.DeleteResult, error) {
	var out menu.DeleteResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := scanMenuItem(tx.QueryRow(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = $1 FOR UPDATE`, id)); err != nil {
			return err
		}
		var referenced bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM order_items WHERE menu_item_id = $1)`, id).Scan(&referenced); err != nil {
			return mapErr(err)
		}
		if referenced {
			item, err := scanMenuItem(tx.QueryRow(ctx, `UPDATE menu_items SET available = FALSE, updated_at = $2
WHERE id = $1 RETURNING `+menuColumns, id, now))
			if err != nil {
				return err
			}
			out = menu.MarkedUnavailable{Item: item}
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM menu_items WHERE id = $1`, id); err != nil {
			return mapErr(err)
		}
		out = menu.Deleted{ID: id}
		return nil
	})
	return out, err
}
