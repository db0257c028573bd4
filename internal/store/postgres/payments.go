package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/payment"
)

func hasPayment(ctx context.Context, q querier, orderID uuid.UUID) (bool, error) {
	var paid bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE order_id = $1)`, orderID).Scan(&paid); err != nil {
		return false, mapErr(err)
	}
	return paid, nil
}

// HasPayment reports whether any payment references orderID.
func (s *Store) HasPayment(ctx context.Context, orderID uuid.UUID) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return hasPayment(ctx, s.Pool, orderID)
}

// RecordPayment takes the order row lock before inserting, so it waits for
// any in-flight ledger mutation of the same order.
func (s *Store) RecordPayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var id uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT id FROM orders WHERE id = $1 FOR UPDATE`, p.OrderID).Scan(&id); err != nil {
			return mapErr(err)
		}
		_, err := tx.Exec(ctx, `INSERT INTO payments (id, order_id, amount, method, status, reference, created_at)
VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)`,
			p.ID, p.OrderID, p.Amount.String(), p.Method, string(p.Status), p.Reference, p.CreatedAt)
		return mapErr(err)
	})
	if err != nil {
		return payment.Payment{}, err
	}
	return p, nil
}

// ListPayments returns the order's payments oldest first.
func (s *Store) ListPayments(ctx context.Context, orderID uuid.UUID) ([]payment.Payment, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var exists bool
	if err := s.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return nil, mapErr(err)
	}
	if !exists {
		return nil, mapErr(pgx.ErrNoRows)
	}
	rows, err := s.Pool.Query(ctx, `SELECT id, order_id, amount::text, method, status, reference, created_at
FROM payments WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	out := []payment.Payment{}
	for rows.Next() {
		var (
			p      payment.Payment
			amount string
			status string
		)
		if err := rows.Scan(&p.ID, &p.OrderID, &amount, &p.Method, &status, &p.Reference, &p.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		p.Status = payment.Status(status)
		if err := parseNumerics(numeric{amount, &p.Amount}); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, mapErr(rows.Err())
}
