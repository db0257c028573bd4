package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/purchase"
)

const (
	supplierColumns = `id, name, email, phone, vat_number, created_at`
	purchaseColumns = `id, supplier_id, purchase_date, category, subtotal::text, vat_rate::text, vat_amount::text,
total::text, reference, notes, created_at`
)

func scanSupplier(row pgx.Row) (purchase.Supplier, error) {
	var s purchase.Supplier
	if err := row.Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.VATNumber, &s.CreatedAt); err != nil {
		return purchase.Supplier{}, mapErr(err)
	}
	return s, nil
}

func scanPurchase(row pgx.Row) (purchase.Purchase, error) {
	var (
		p                          purchase.Purchase
		subtotal, rate, vat, total string
	)
	if err := row.Scan(&p.ID, &p.SupplierID, &p.Date, &p.Category, &subtotal, &rate, &vat, &total,
		&p.Reference, &p.Notes, &p.CreatedAt); err != nil {
		return purchase.Purchase{}, mapErr(err)
	}
	if err := parseNumerics(
		numeric{subtotal, &p.Subtotal},
		numeric{rate, &p.VATRate},
		numeric{vat, &p.VATAmount},
		numeric{total, &p.Total},
	); err != nil {
		return purchase.Purchase{}, err
	}
	return p, nil
}

// CreateSupplier inserts sup.
func (s *Store) CreateSupplier(ctx context.Context, sup purchase.Supplier) (purchase.Supplier, error) {
	if err := s.ready(); err != nil {
		return purchase.Supplier{}, err
	}
	return scanSupplier(s.Pool.QueryRow(ctx, `INSERT INTO suppliers (id, name, email, phone, vat_number, created_at)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+supplierColumns,
		sup.ID, sup.Name, sup.Email, sup.Phone, sup.VATNumber, sup.CreatedAt))
}

// GetSupplier returns one supplier.
func (s *Store) GetSupplier(ctx context.Context, id uuid.UUID) (purchase.Supplier, error) {
	if err := s.ready(); err != nil {
		return purchase.Supplier{}, err
	}
	return scanSupplier(s.Pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id))
}

// ListSuppliers returns suppliers by name.
func (s *Store) ListSuppliers(ctx context.Context) ([]purchase.Supplier, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+supplierColumns+` FROM suppliers ORDER BY lower(name), id`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	out := []purchase.Supplier{}
	for rows.Next() {
		sup, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sup)
	}
	return out, mapErr(rows.Err())
}

// CreatePurchase inserts p. A missing supplier surfaces as common.ErrNotFound.
func (s *Store) CreatePurchase(ctx context.Context, p purchase.Purchase) (purchase.Purchase, error) {
	if err := s.ready(); err != nil {
		return purchase.Purchase{}, err
	}
	return scanPurchase(s.Pool.QueryRow(ctx, `INSERT INTO purchases
(id, supplier_id, purchase_date, category, subtotal, vat_rate, vat_amount, total, reference, notes, created_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9, $10, $11) RETURNING `+purchaseColumns,
		p.ID, p.SupplierID, p.Date, p.Category, p.Subtotal.String(), p.VATRate.String(), p.VATAmount.String(),
		p.Total.String(), p.Reference, p.Notes, p.CreatedAt))
}

// GetPurchase returns one purchase.
func (s *Store) GetPurchase(ctx context.Context, id uuid.UUID) (purchase.Purchase, error) {
	if err := s.ready(); err != nil {
		return purchase.Purchase{}, err
	}
	return scanPurchase(s.Pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id))
}

// ListPurchases returns matching purchases by date.
func (s *Store) ListPurchases(ctx context.Context, f purchase.Filter) ([]purchase.Purchase, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var w where
	if f.From != nil {
		w.add("purchase_date >= ?", *f.From)
	}
	if f.To != nil {
		w.add("purchase_date < ?", *f.To)
	}
	if f.SupplierID != nil {
		w.add("supplier_id = ?", *f.SupplierID)
	}
	clause, args := w.clause(), w.args
	rows, err := s.Pool.Query(ctx, `SELECT `+purchaseColumns+` FROM purchases`+clause+` ORDER BY purchase_date, created_at`, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	out := []purchase.Purchase{}
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, mapErr(rows.Err())
}
