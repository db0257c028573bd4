// Package report aggregates orders and purchases into daily, weekly, monthly
// and purchase reports. Each report is one snapshot read reduced in memory;
// cancelled orders never contribute.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/obs"
	"github.com/noah-isme/backend-resto/internal/settings"
)

// Purchase report periods.
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// SettingsSource supplies the header snapshot.
type SettingsSource interface {
	GetOrCreate(ctx context.Context) (settings.AccountingSettings, error)
}

// Service builds reports.
type Service struct {
	Source   Source
	Settings SettingsSource
	Cache    *Cache
	// Location is the reference timezone for day and week keys. Defaults to UTC.
	Location *time.Location
	Now      func() time.Time
}

// Header identifies the business a report belongs to.
type Header struct {
	CompanyName    string    `json:"companyName"`
	VATNumber      *string   `json:"vatNumber"`
	CurrencyCode   string    `json:"currencyCode"`
	CurrencySymbol string    `json:"currencySymbol"`
	Timezone       string    `json:"timezone"`
	GeneratedAt    time.Time `json:"generatedAt"`
}

// OrderLine lists one contributing order in a daily report.
type OrderLine struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Status    string    `json:"status"`
	Total     string    `json:"total"`
}

// DailyReport covers one calendar day.
type DailyReport struct {
	Header Header      `json:"header"`
	Date   string      `json:"date"`
	Totals Totals      `json:"totals"`
	Orders []OrderLine `json:"orders"`
}

// WeeklyReport covers seven days from a Sunday.
type WeeklyReport struct {
	Header    Header   `json:"header"`
	WeekStart string   `json:"weekStart"`
	WeekEnd   string   `json:"weekEnd"`
	Totals    Totals   `json:"totals"`
	Days      []Bucket `json:"days"`
}

// MonthlyReport covers one calendar month by day and by week.
type MonthlyReport struct {
	Header Header   `json:"header"`
	Year   int      `json:"year"`
	Month  int      `json:"month"`
	Totals Totals   `json:"totals"`
	Days   []Bucket `json:"days"`
	Weeks  []Bucket `json:"weeks"`
}

// PurchaseReport covers purchases over an inclusive date range.
type PurchaseReport struct {
	Header     Header           `json:"header"`
	Period     string           `json:"period"`
	From       string           `json:"from"`
	To         string           `json:"to"`
	Totals     PurchaseTotals   `json:"totals"`
	Buckets    []PurchaseBucket `json:"buckets"`
	Categories []PurchaseBucket `json:"categories"`
}

func (s *Service) ready() error {
	if s == nil || s.Source == nil || s.Settings == nil {
		return errors.New("report service not configured")
	}
	return nil
}

func (s *Service) loc() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) header(ctx context.Context) (Header, error) {
	snap, err := s.Settings.GetOrCreate(ctx)
	if err != nil {
		return Header{}, err
	}
	return Header{
		CompanyName:    snap.CompanyName,
		VATNumber:      snap.VATNumber,
		CurrencyCode:   snap.CurrencyCode,
		CurrencySymbol: snap.CurrencySymbol,
		Timezone:       s.loc().String(),
		GeneratedAt:    s.now(),
	}, nil
}

// Daily reports the calendar day containing date in the reference timezone.
func (s *Service) Daily(ctx context.Context, date time.Time) (DailyReport, error) {
	if err := s.ready(); err != nil {
		return DailyReport{}, err
	}
	loc := s.loc()
	start := StartOfDay(date, loc)
	end := start.AddDate(0, 0, 1)
	key := start.Format(time.DateOnly)
	return cached(ctx, s, "daily", []any{key}, func(ctx context.Context) (DailyReport, error) {
		h, err := s.header(ctx)
		if err != nil {
			return DailyReport{}, err
		}
		var total Totals
		lines := []OrderLine{}
		err = s.eachOrder(ctx, start, end, func(o OrderRow) {
			total.add(o)
			lines = append(lines, OrderLine{
				ID:        o.ID.String(),
				CreatedAt: o.CreatedAt.UTC(),
				Status:    o.Status,
				Total:     o.Total.StringFixed(2),
			})
		})
		if err != nil {
			return DailyReport{}, err
		}
		return DailyReport{Header: h, Date: key, Totals: total.Rounded(), Orders: lines}, nil
	})
}

// Weekly reports the Sunday-start week containing weekStart.
func (s *Service) Weekly(ctx context.Context, weekStart time.Time) (WeeklyReport, error) {
	if err := s.ready(); err != nil {
		return WeeklyReport{}, err
	}
	loc := s.loc()
	start := WeekStart(weekStart, loc)
	end := start.AddDate(0, 0, 7)
	key := start.Format(time.DateOnly)
	return cached(ctx, s, "weekly", []any{key}, func(ctx context.Context) (WeeklyReport, error) {
		h, err := s.header(ctx)
		if err != nil {
			return WeeklyReport{}, err
		}
		var total Totals
		days := newAccumulator()
		err = s.eachOrder(ctx, start, end, func(o OrderRow) {
			total.add(o)
			days.add(DayKey(o.CreatedAt, loc), o)
		})
		if err != nil {
			return WeeklyReport{}, err
		}
		return WeeklyReport{
			Header:    h,
			WeekStart: key,
			WeekEnd:   end.AddDate(0, 0, -1).Format(time.DateOnly),
			Totals:    total.Rounded(),
			Days:      days.sorted(),
		}, nil
	})
}

// Monthly reports one calendar month by day, by week and in total.
func (s *Service) Monthly(ctx context.Context, year, month int) (MonthlyReport, error) {
	if err := s.ready(); err != nil {
		return MonthlyReport{}, err
	}
	details := map[string]string{}
	if year < 1 || year > 9999 {
		details["year"] = "must be between 1 and 9999"
	}
	if month < 1 || month > 12 {
		details["month"] = "must be between 1 and 12"
	}
	if len(details) > 0 {
		return MonthlyReport{}, common.Validation("invalid input", details)
	}
	loc := s.loc()
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0)
	return cached(ctx, s, "monthly", []any{year, month}, func(ctx context.Context) (MonthlyReport, error) {
		h, err := s.header(ctx)
		if err != nil {
			return MonthlyReport{}, err
		}
		var total Totals
		days := newAccumulator()
		weeks := newAccumulator()
		err = s.eachOrder(ctx, start, end, func(o OrderRow) {
			total.add(o)
			days.add(DayKey(o.CreatedAt, loc), o)
			weeks.add(WeekKey(o.CreatedAt, loc), o)
		})
		if err != nil {
			return MonthlyReport{}, err
		}
		return MonthlyReport{
			Header: h,
			Year:   year,
			Month:  month,
			Totals: total.Rounded(),
			Days:   days.sorted(),
			Weeks:  weeks.sorted(),
		}, nil
	})
}

// Purchases reports purchases dated from..to inclusive, bucketed by period
// and broken down by category.
func (s *Service) Purchases(ctx context.Context, period string, from, to time.Time) (PurchaseReport, error) {
	if err := s.ready(); err != nil {
		return PurchaseReport{}, err
	}
	bucketKey, ok := map[string]func(time.Time, *time.Location) string{
		PeriodDay:   DayKey,
		PeriodWeek:  WeekKey,
		PeriodMonth: MonthKey,
	}[period]
	if !ok {
		return PurchaseReport{}, common.Validation("invalid input", map[string]string{"period": "must be one of day week month"})
	}
	start := calendarDate(from)
	end := calendarDate(to).AddDate(0, 0, 1)
	if !start.Before(end) {
		return PurchaseReport{}, common.Validation("invalid input", map[string]string{"to": "must not be before from"})
	}
	fromKey, toKey := start.Format(time.DateOnly), calendarDate(to).Format(time.DateOnly)
	return cached(ctx, s, "purchases", []any{period, fromKey, toKey}, func(ctx context.Context) (PurchaseReport, error) {
		h, err := s.header(ctx)
		if err != nil {
			return PurchaseReport{}, err
		}
		var total PurchaseTotals
		buckets := newPurchaseAccumulator()
		categories := newPurchaseAccumulator()
		err = s.Source.Snapshot(ctx, func(v View) error {
			return v.EachPurchase(ctx, start, end, func(p PurchaseRow) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				total.add(p)
				buckets.add(bucketKey(p.Date, time.UTC), p)
				categories.add(p.Category, p)
				return nil
			})
		})
		if err != nil {
			return PurchaseReport{}, err
		}
		return PurchaseReport{
			Header:     h,
			Period:     period,
			From:       fromKey,
			To:         toKey,
			Totals:     total.Rounded(),
			Buckets:    buckets.sorted(),
			Categories: categories.sorted(),
		}, nil
	})
}

// eachOrder visits every non-cancelled order in [from, to) from one snapshot.
// An aborted context fails the whole read.
func (s *Service) eachOrder(ctx context.Context, from, to time.Time, fn func(OrderRow)) error {
	return s.Source.Snapshot(ctx, func(v View) error {
		return v.EachOrder(ctx, from, to, func(o OrderRow) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if o.Status == statusCancelled {
				return nil
			}
			fn(o)
			return nil
		})
	})
}

func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// cached serves a report from the cache or builds and stores it. A build is
// only stored when the store revision did not move while it ran, and the
// cache is bypassed whenever the revision cannot be read. Redis failures
// degrade to building.
func cached[T any](ctx context.Context, s *Service, kind string, parts []any, build func(context.Context) (T, error)) (T, error) {
	ctx, span := otel.Tracer("report").Start(ctx, "report."+kind)
	defer span.End()

	var zero T
	key := ""
	var rev int64
	if s.Cache.enabled() {
		var err error
		if rev, err = s.Source.Revision(ctx); err != nil {
			obs.IncCounter(obs.ReportCacheTotal, "bypass")
			zerolog.Ctx(ctx).Warn().Err(err).Str("kind", kind).Msg("report revision unavailable")
		} else {
			key = s.Cache.Key(rev, append([]any{kind}, parts...)...)
		}
	}
	if key != "" {
		var hit T
		found, err := s.Cache.GetJSON(ctx, key, &hit)
		switch {
		case err != nil:
			obs.IncCounter(obs.ReportCacheTotal, "error")
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("report cache read")
		case found:
			obs.IncCounter(obs.ReportCacheTotal, "hit")
			span.SetAttributes(attribute.Bool("report.cache_hit", true))
			return hit, nil
		default:
			obs.IncCounter(obs.ReportCacheTotal, "miss")
		}
	}

	started := time.Now()
	out, err := build(ctx)
	obs.ObserveMillis(obs.ReportBuildDuration, obs.DurationMillis(time.Since(started)), kind)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if common.IsAppError(err) {
			return zero, err
		}
		return zero, common.Internal("build "+kind+" report", err)
	}
	if key != "" {
		if after, err := s.Source.Revision(ctx); err != nil || after != rev {
			return out, nil
		}
		if err := s.Cache.SetJSON(ctx, key, out); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("report cache write")
		}
	}
	return out, nil
}
