// Package postgres implements the store interfaces on PostgreSQL with pgx.
// Amounts travel as text and are parsed into decimals so no precision is
// lost in either direction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/audit"
	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/events"
	"github.com/noah-isme/backend-resto/internal/menu"
	"github.com/noah-isme/backend-resto/internal/order"
	"github.com/noah-isme/backend-resto/internal/payment"
	"github.com/noah-isme/backend-resto/internal/purchase"
	"github.com/noah-isme/backend-resto/internal/report"
	"github.com/noah-isme/backend-resto/internal/settings"
	"github.com/noah-isme/backend-resto/internal/vat"
)

var (
	_ settings.Store    = (*Store)(nil)
	_ menu.Store        = (*Store)(nil)
	_ order.Store       = (*Store)(nil)
	_ payment.Store     = (*Store)(nil)
	_ purchase.Store    = (*Store)(nil)
	_ vat.Store         = (*Store)(nil)
	_ audit.Store       = (*Store)(nil)
	_ report.Source     = (*Store)(nil)
	_ events.EventStore = (*Store)(nil)
)

// ErrStoreUnavailable indicates the pool is not configured.
var ErrStoreUnavailable = errors.New("postgres: store unavailable")

// Store is backed by a pgx connection pool.
type Store struct {
	Pool *pgxpool.Pool
}

// New constructs a Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) ready() error {
	if s == nil || s.Pool == nil {
		return ErrStoreUnavailable
	}
	return nil
}

// inTx runs fn in a read-committed transaction.
func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	if err := s.ready(); err != nil {
		return err
	}
	return pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, fn)
}

// mapErr translates driver errors into the store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", common.ErrConflict, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: %s", common.ErrNotFound, pgErr.ConstraintName)
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", common.ErrConflict, pgErr.Message)
		}
	}
	return err
}

// dec parses a numeric rendered as text.
func dec(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse numeric %q: %w", raw, err)
	}
	return d, nil
}

// numeric pairs a scanned text column with its decimal destination.
type numeric struct {
	raw string
	dst *decimal.Decimal
}

func parseNumerics(ns ...numeric) error {
	for _, n := range ns {
		d, err := dec(n.raw)
		if err != nil {
			return err
		}
		*n.dst = d
	}
	return nil
}

// where collects AND-ed conditions. Each condition uses ? for its argument.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, v any) {
	w.args = append(w.args, v)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(w.args))))
}

func (w *where) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
