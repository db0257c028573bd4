// Package vat turns quarterly tax periods into VAT returns: output VAT from
// orders netted against input VAT from purchases.
package vat

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/pricing"
)

// TaxPeriod is a calendar quarter. StartDate and EndDate are inclusive
// calendar dates held at midnight UTC.
type TaxPeriod struct {
	ID        uuid.UUID
	Year      int
	Quarter   int
	StartDate time.Time
	EndDate   time.Time
	CreatedAt time.Time
}

// NewTaxPeriod builds the period for year and quarter.
func NewTaxPeriod(year, quarter int) (TaxPeriod, error) {
	details := map[string]string{}
	if year < 1 || year > 9999 {
		details["year"] = "must be between 1 and 9999"
	}
	if quarter < 1 || quarter > 4 {
		details["quarter"] = "must be between 1 and 4"
	}
	if len(details) > 0 {
		return TaxPeriod{}, common.Validation("invalid input", details)
	}
	start := time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	return TaxPeriod{
		Year:      year,
		Quarter:   quarter,
		StartDate: start,
		EndDate:   start.AddDate(0, 3, -1),
	}, nil
}

// QuarterOf returns the year and quarter containing t.
func QuarterOf(t time.Time) (year, quarter int) {
	return t.Year(), (int(t.Month())-1)/3 + 1
}

// OrderWindow is the half-open instant range of the period in loc.
func (p TaxPeriod) OrderWindow(loc *time.Location) (from, to time.Time) {
	from = time.Date(p.StartDate.Year(), p.StartDate.Month(), 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 3, 0)
}

// PurchaseWindow is the half-open range of purchase dates in the period.
func (p TaxPeriod) PurchaseWindow() (from, to time.Time) {
	return p.StartDate, p.EndDate.AddDate(0, 0, 1)
}

// Label is the period's short name, e.g. 2025-Q1.
func (p TaxPeriod) Label() string {
	return strconv.Itoa(p.Year) + "-Q" + strconv.Itoa(p.Quarter)
}

// Return is the VAT return of one tax period. At most one exists per
// period; once SubmittedAt is set it never changes again.
type Return struct {
	ID            uuid.UUID
	PeriodID      uuid.UUID
	OutputVAT     decimal.Decimal
	InputVAT      decimal.Decimal
	VATDue        decimal.Decimal
	NetSales      decimal.Decimal
	NetPurchases  decimal.Decimal
	OrderCount    int
	PurchaseCount int
	GeneratedAt   time.Time
	SubmittedAt   *time.Time
}

// Submitted reports whether the return has been filed.
func (r Return) Submitted() bool { return r.SubmittedAt != nil }

// Payable reports whether VAT is owed rather than reclaimable.
func (r Return) Payable() bool { return r.VATDue.IsPositive() }

// Due nets output VAT against input VAT. A negative result is reclaimable.
func Due(outputVAT, inputVAT decimal.Decimal) decimal.Decimal {
	return pricing.Round2(outputVAT.Sub(inputVAT))
}

// Store persists tax periods and returns.
type Store interface {
	// CreateTaxPeriod returns common.ErrConflict when year and quarter exist.
	CreateTaxPeriod(ctx context.Context, p TaxPeriod) (TaxPeriod, error)
	GetTaxPeriod(ctx context.Context, id uuid.UUID) (TaxPeriod, error)
	FindTaxPeriod(ctx context.Context, year, quarter int) (TaxPeriod, error)
	ListTaxPeriods(ctx context.Context) ([]TaxPeriod, error)
	GetReturn(ctx context.Context, id uuid.UUID) (Return, error)
	GetReturnByPeriod(ctx context.Context, periodID uuid.UUID) (Return, error)
	// SaveDraftReturn inserts r or replaces the period's unsubmitted return,
	// keeping its id. It returns common.ErrConflict when the period's return
	// is already submitted.
	SaveDraftReturn(ctx context.Context, r Return) (Return, error)
	// MarkSubmitted stamps the return. It returns common.ErrConflict when the
	// return is already submitted.
	MarkSubmitted(ctx context.Context, id uuid.UUID, at time.Time) (Return, error)
}
