package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/vat"
)

const (
	periodColumns = `id, year, quarter, start_date, end_date, created_at`
	returnColumns = `id, tax_period_id, output_vat::text, input_vat::text, vat_due::text, net_sales::text,
net_purchases::text, order_count, purchase_count, generated_at, submitted_at`
)

func scanPeriod(row pgx.Row) (vat.TaxPeriod, error) {
	var p vat.TaxPeriod
	if err := row.Scan(&p.ID, &p.Year, &p.Quarter, &p.StartDate, &p.EndDate, &p.CreatedAt); err != nil {
		return vat.TaxPeriod{}, mapErr(err)
	}
	return p, nil
}

func scanReturn(row pgx.Row) (vat.Return, error) {
	var (
		r                                vat.Return
		output, input, due, sales, purch string
	)
	if err := row.Scan(&r.ID, &r.PeriodID, &output, &input, &due, &sales, &purch,
		&r.OrderCount, &r.PurchaseCount, &r.GeneratedAt, &r.SubmittedAt); err != nil {
		return vat.Return{}, mapErr(err)
	}
	if err := parseNumerics(
		numeric{output, &r.OutputVAT},
		numeric{input, &r.InputVAT},
		numeric{due, &r.VATDue},
		numeric{sales, &r.NetSales},
		numeric{purch, &r.NetPurchases},
	); err != nil {
		return vat.Return{}, err
	}
	return r, nil
}

// CreateTaxPeriod inserts p; a duplicate year and quarter is common.ErrConflict.
func (s *Store) CreateTaxPeriod(ctx context.Context, p vat.TaxPeriod) (vat.TaxPeriod, error) {
	if err := s.ready(); err != nil {
		return vat.TaxPeriod{}, err
	}
	return scanPeriod(s.Pool.QueryRow(ctx, `INSERT INTO tax_periods (id, year, quarter, start_date, end_date, created_at)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+periodColumns,
		p.ID, p.Year, p.Quarter, p.StartDate, p.EndDate, p.CreatedAt))
}

// GetTaxPeriod returns one period.
func (s *Store) GetTaxPeriod(ctx context.Context, id uuid.UUID) (vat.TaxPeriod, error) {
	if err := s.ready(); err != nil {
		return vat.TaxPeriod{}, err
	}
	return scanPeriod(s.Pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM tax_periods WHERE id = $1`, id))
}

// FindTaxPeriod returns the period for year and quarter.
func (s *Store) FindTaxPeriod(ctx context.Context, year, quarter int) (vat.TaxPeriod, error) {
	if err := s.ready(); err != nil {
		return vat.TaxPeriod{}, err
	}
	return scanPeriod(s.Pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM tax_periods WHERE year = $1 AND quarter = $2`, year, quarter))
}

// ListTaxPeriods returns periods, most recent first.
func (s *Store) ListTaxPeriods(ctx context.Context) ([]vat.TaxPeriod, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+periodColumns+` FROM tax_periods ORDER BY start_date DESC`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	out := []vat.TaxPeriod{}
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, mapErr(rows.Err())
}

// GetReturn returns one VAT return.
func (s *Store) GetReturn(ctx context.Context, id uuid.UUID) (vat.Return, error) {
	if err := s.ready(); err != nil {
		return vat.Return{}, err
	}
	return scanReturn(s.Pool.QueryRow(ctx, `SELECT `+returnColumns+` FROM vat_returns WHERE id = $1`, id))
}

// GetReturnByPeriod returns the period's return.
func (s *Store) GetReturnByPeriod(ctx context.Context, periodID uuid.UUID) (vat.Return, error) {
	if err := s.ready(); err != nil {
		return vat.Return{}, err
	}
	return scanReturn(s.Pool.QueryRow(ctx, `SELECT `+returnColumns+` FROM vat_returns WHERE tax_period_id = $1`, periodID))
}

// SaveDraftReturn upserts the period's return unless it is submitted.
func (s *Store) SaveDraftReturn(ctx context.Context, r vat.Return) (vat.Return, error) {
	if err := s.ready(); err != nil {
		return vat.Return{}, err
	}
	out, err := scanReturn(s.Pool.QueryRow(ctx, `INSERT INTO vat_returns
(id, tax_period_id, output_vat, input_vat, vat_due, net_sales, net_purchases, order_count, purchase_count, generated_at)
VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8, $9, $10)
ON CONFLICT (tax_period_id) DO UPDATE SET
    output_vat = EXCLUDED.output_vat, input_vat = EXCLUDED.input_vat, vat_due = EXCLUDED.vat_due,
    net_sales = EXCLUDED.net_sales, net_purchases = EXCLUDED.net_purchases,
    order_count = EXCLUDED.order_count, purchase_count = EXCLUDED.purchase_count,
    generated_at = EXCLUDED.generated_at
WHERE vat_returns.submitted_at IS NULL
RETURNING `+returnColumns,
		r.ID, r.PeriodID, r.OutputVAT.String(), r.InputVAT.String(), r.VATDue.String(), r.NetSales.String(),
		r.NetPurchases.String(), r.OrderCount, r.PurchaseCount, r.GeneratedAt))
	if errors.Is(err, common.ErrNotFound) {
		// The conflict row exists but is submitted, so nothing was returned.
		return vat.Return{}, common.ErrConflict
	}
	return out, err
}

// MarkSubmitted stamps an unsubmitted return.
func (s *Store) MarkSubmitted(ctx context.Context, id uuid.UUID, at time.Time) (vat.Return, error) {
	var out vat.Return
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		current, err := scanReturn(tx.QueryRow(ctx, `SELECT `+returnColumns+` FROM vat_returns WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if current.Submitted() {
			return common.ErrConflict
		}
		out, err = scanReturn(tx.QueryRow(ctx, `UPDATE vat_returns SET submitted_at = $2 WHERE id = $1 RETURNING `+returnColumns, id, at))
		return err
	})
	return out, err
}
