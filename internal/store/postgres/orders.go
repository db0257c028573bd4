package postgres

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/menu"
	"github.com/noah-isme/backend-resto/internal/order"
)

const orderColumns = `id, table_id, staff_id, order_type, notes, status, subtotal::text, vat_rate::text,
vat_amount::text, service_charge::text, discount::text, total::text, version, created_at, updated_at`

func scanOrder(row pgx.Row) (order.Order, error) {
	var (
		o                                    order.Order
		subtotal, rate, vat, sc, disc, total string
		status                               string
	)
	if err := row.Scan(&o.ID, &o.TableID, &o.StaffID, &o.OrderType, &o.Notes, &status, &subtotal, &rate,
		&vat, &sc, &disc, &total, &o.Version, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return order.Order{}, mapErr(err)
	}
	o.Status = order.Status(status)
	if err := parseNumerics(
		numeric{subtotal, &o.Subtotal},
		numeric{rate, &o.VATRate},
		numeric{vat, &o.VATAmount},
		numeric{sc, &o.ServiceCharge},
		numeric{disc, &o.Discount},
		numeric{total, &o.Total},
	); err != nil {
		return order.Order{}, err
	}
	return o, nil
}

func loadItems(ctx context.Context, q querier, orderID uuid.UUID) ([]order.Item, error) {
	rows, err := q.Query(ctx, `SELECT id, order_id, menu_item_id, quantity, price::text, instructions
FROM order_items WHERE order_id = $1 ORDER BY seq`, orderID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var items []order.Item
	for rows.Next() {
		var (
			it    order.Item
			price string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Quantity, &price, &it.Instructions); err != nil {
			return nil, mapErr(err)
		}
		if err := parseNumerics(numeric{price, &it.Price}); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, mapErr(rows.Err())
}

// InTx runs fn in one transaction; any error rolls back every write.
func (s *Store) InTx(ctx context.Context, fn func(order.Tx) error) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return fn(&orderTx{tx: tx})
	})
}

// GetOrder returns an order with its items.
func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (order.Order, error) {
	if err := s.ready(); err != nil {
		return order.Order{}, err
	}
	o, err := scanOrder(s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return order.Order{}, err
	}
	if o.Items, err = loadItems(ctx, s.Pool, id); err != nil {
		return order.Order{}, err
	}
	return o, nil
}

// ListOrders returns matching orders newest first with the unpaged count.
// Items are not loaded.
func (s *Store) ListOrders(ctx context.Context, f order.Filter) ([]order.Order, int, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}
	var w where
	if f.From != nil {
		w.add("created_at >= ?", *f.From)
	}
	if f.To != nil {
		w.add("created_at < ?", *f.To)
	}
	if f.Status != nil {
		w.add("status = ?", string(*f.Status))
	}
	clause, args := w.clause(), w.args
	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM orders`+clause, args...).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}
	query := `SELECT ` + orderColumns + ` FROM orders` + clause + ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		args = append(args, f.Limit, max(f.Offset, 0))
		query += " LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))
	}
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()
	out := []order.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, mapErr(rows.Err())
}

type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) HasPayment(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return hasPayment(ctx, t.tx, orderID)
}

func (t *orderTx) MenuItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]menu.Item, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = ANY($1::uuid[])`, uuidStrings(ids))
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	out := make(map[uuid.UUID]menu.Item, len(ids))
	for rows.Next() {
		it, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		out[it.ID] = it
	}
	return out, mapErr(rows.Err())
}

func (t *orderTx) LockOrder(ctx context.Context, id uuid.UUID) (order.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return order.Order{}, err
	}
	if o.Items, err = loadItems(ctx, t.tx, id); err != nil {
		return order.Order{}, err
	}
	return o, nil
}

func (t *orderTx) InsertOrder(ctx context.Context, o order.Order) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO orders
(id, table_id, staff_id, order_type, notes, status, subtotal, vat_rate, vat_amount, service_charge, discount, total,
 version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric, $10::numeric, $11::numeric, $12::numeric, $13, $14, $15)`,
		o.ID, o.TableID, o.StaffID, o.OrderType, o.Notes, string(o.Status), o.Subtotal.String(), o.VATRate.String(),
		o.VATAmount.String(), o.ServiceCharge.String(), o.Discount.String(), o.Total.String(), o.Version, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return t.InsertItems(ctx, o.Items)
}

func (t *orderTx) SaveOrder(ctx context.Context, o order.Order) error {
	tag, err := t.tx.Exec(ctx, `UPDATE orders SET table_id = $2, staff_id = $3, order_type = $4, notes = $5, status = $6,
subtotal = $7::numeric, vat_rate = $8::numeric, vat_amount = $9::numeric, service_charge = $10::numeric,
discount = $11::numeric, total = $12::numeric, version = $13, updated_at = $14
WHERE id = $1 AND version = $13 - 1`,
		o.ID, o.TableID, o.StaffID, o.OrderType, o.Notes, string(o.Status), o.Subtotal.String(), o.VATRate.String(),
		o.VATAmount.String(), o.ServiceCharge.String(), o.Discount.String(), o.Total.String(), o.Version, o.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, o.ID).Scan(&exists); err != nil {
			return mapErr(err)
		}
		if !exists {
			return common.ErrNotFound
		}
		return common.ErrConflict
	}
	return nil
}

func (t *orderTx) InsertItems(ctx context.Context, items []order.Item) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`INSERT INTO order_items (id, order_id, menu_item_id, quantity, price, instructions)
VALUES ($1, $2, $3, $4, $5::numeric, $6)`, it.ID, it.OrderID, it.MenuItemID, it.Quantity, it.Price.String(), it.Instructions)
	}
	return mapErr(t.tx.SendBatch(ctx, batch).Close())
}

func (t *orderTx) UpdateItem(ctx context.Context, it order.Item) error {
	tag, err := t.tx.Exec(ctx, `UPDATE order_items SET quantity = $3, price = $4::numeric, instructions = $5
WHERE id = $1 AND order_id = $2`, it.ID, it.OrderID, it.Quantity, it.Price.String(), it.Instructions)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (t *orderTx) DeleteItem(ctx context.Context, orderID, itemID uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM order_items WHERE id = $1 AND order_id = $2`, itemID, orderID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (t *orderTx) DeleteItems(ctx context.Context, orderID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
	return mapErr(err)
}

func (t *orderTx) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
