package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/report"
)

// Snapshot runs fn inside a read-only repeatable-read transaction, so every
// query fn makes sees the same committed state.
func (s *Store) Snapshot(ctx context.Context, fn func(report.View) error) error {
	if err := s.ready(); err != nil {
		return err
	}
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	return pgx.BeginTxFunc(ctx, s.Pool, opts, func(tx pgx.Tx) error {
		return fn(snapshotView{tx: tx})
	})
}

// Revision reads the counter the report_revision triggers move.
func (s *Store) Revision(ctx context.Context) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var rev int64
	err := s.Pool.QueryRow(ctx, `SELECT rev FROM report_revision WHERE singleton`).Scan(&rev)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return rev, mapErr(err)
}

type snapshotView struct {
	tx pgx.Tx
}

// EachOrder streams rows so large windows are never held in memory.
func (v snapshotView) EachOrder(ctx context.Context, from, to time.Time, fn func(report.OrderRow) error) error {
	rows, err := v.tx.Query(ctx, `SELECT o.id, o.status, o.created_at, o.subtotal::text, o.vat_amount::text,
o.service_charge::text, o.discount::text, o.total::text,
COALESCE((SELECT sum(p.amount) FROM payments p WHERE p.order_id = o.id AND p.status = 'completed'), 0)::text
FROM orders o
WHERE o.created_at >= $1 AND o.created_at < $2
ORDER BY o.created_at, o.id`, from, to)
	if err != nil {
		return mapErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			r                                    report.OrderRow
			subtotal, vat, sc, disc, total, paid string
		)
		if err := rows.Scan(&r.ID, &r.Status, &r.CreatedAt, &subtotal, &vat, &sc, &disc, &total, &paid); err != nil {
			return mapErr(err)
		}
		if err := parseNumerics(
			numeric{subtotal, &r.Subtotal},
			numeric{vat, &r.VATAmount},
			numeric{sc, &r.ServiceCharge},
			numeric{disc, &r.Discount},
			numeric{total, &r.Total},
			numeric{paid, &r.PaymentsReceived},
		); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return mapErr(rows.Err())
}

func (v snapshotView) EachPurchase(ctx context.Context, from, to time.Time, fn func(report.PurchaseRow) error) error {
	rows, err := v.tx.Query(ctx, `SELECT id, purchase_date, category, subtotal::text, vat_amount::text, total::text
FROM purchases WHERE purchase_date >= $1 AND purchase_date < $2
ORDER BY purchase_date, created_at`, from, to)
	if err != nil {
		return mapErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			r                    report.PurchaseRow
			subtotal, vat, total string
		)
		if err := rows.Scan(&r.ID, &r.Date, &r.Category, &subtotal, &vat, &total); err != nil {
			return mapErr(err)
		}
		if err := parseNumerics(
			numeric{subtotal, &r.Subtotal},
			numeric{vat, &r.VATAmount},
			numeric{total, &r.Total},
		); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return mapErr(rows.Err())
}
