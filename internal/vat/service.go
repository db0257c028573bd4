package vat

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/events"
	"github.com/noah-isme/backend-resto/internal/lock"
	"github.com/noah-isme/backend-resto/internal/obs"
	"github.com/noah-isme/backend-resto/internal/pricing"
	"github.com/noah-isme/backend-resto/internal/report"
	"github.com/noah-isme/backend-resto/internal/settings"
)

// Locker serialises generation per tax period across instances.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// SettingsSource supplies the company identity for exports.
type SettingsSource interface {
	GetOrCreate(ctx context.Context) (settings.AccountingSettings, error)
}

// Service generates, submits and exports VAT returns.
type Service struct {
	Store    Store
	Source   report.Source
	Settings SettingsSource
	Lock     Locker
	LockTTL  time.Duration
	Events   events.Emitter
	Location *time.Location
	Now      func() time.Time
}

// Export is a rendered return.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil || s.Source == nil {
		return errors.New("vat service not configured")
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) loc() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

// OpenPeriod returns the tax period for year and quarter, creating it when absent.
func (s *Service) OpenPeriod(ctx context.Context, year, quarter int) (TaxPeriod, error) {
	if err := s.ready(); err != nil {
		return TaxPeriod{}, err
	}
	p, err := NewTaxPeriod(year, quarter)
	if err != nil {
		return TaxPeriod{}, err
	}
	existing, err := s.Store.FindTaxPeriod(ctx, year, quarter)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return TaxPeriod{}, common.Internal("find tax period", err)
	}
	p.ID = uuid.New()
	p.CreatedAt = s.now()
	created, err := s.Store.CreateTaxPeriod(ctx, p)
	if errors.Is(err, common.ErrConflict) {
		created, err = s.Store.FindTaxPeriod(ctx, year, quarter)
	}
	if err != nil {
		return TaxPeriod{}, common.FromStore("create tax period", "tax period", err)
	}
	return created, nil
}

// ListPeriods returns tax periods, most recent first.
func (s *Service) ListPeriods(ctx context.Context) ([]TaxPeriod, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	out, err := s.Store.ListTaxPeriods(ctx)
	if err != nil {
		return nil, common.Internal("list tax periods", err)
	}
	return out, nil
}

// GetReturn returns one VAT return.
func (s *Service) GetReturn(ctx context.Context, id uuid.UUID) (Return, error) {
	if err := s.ready(); err != nil {
		return Return{}, err
	}
	r, err := s.Store.GetReturn(ctx, id)
	if err != nil {
		return Return{}, common.FromStore("get vat return", "vat return", err)
	}
	return r, nil
}

// Generate computes the period's return from one snapshot and stores it as
// a draft. Regenerating a submitted return is a conflict.
func (s *Service) Generate(ctx context.Context, periodID uuid.UUID) (ret Return, err error) {
	if err := s.ready(); err != nil {
		return Return{}, err
	}
	ctx, span := otel.Tracer("vat").Start(ctx, "vat.Generate")
	defer span.End()
	defer func() { obs.IncCounter(obs.VATReturnsTotal, "generate", resultLabel(err)) }()

	period, err := s.Store.GetTaxPeriod(ctx, periodID)
	if err != nil {
		return Return{}, common.FromStore("get tax period", "tax period", err)
	}
	span.SetAttributes(attribute.String("vat.period", period.Label()))

	run := func(ctx context.Context) error {
		existing, err := s.Store.GetReturnByPeriod(ctx, periodID)
		switch {
		case err == nil && existing.Submitted():
			return common.Conflict("vat return for " + period.Label() + " is already submitted")
		case err != nil && !errors.Is(err, common.ErrNotFound):
			return err
		}
		draft, err := s.compute(ctx, period)
		if err != nil {
			return err
		}
		draft.ID = existing.ID
		if draft.ID == uuid.Nil {
			draft.ID = uuid.New()
		}
		ret, err = s.Store.SaveDraftReturn(ctx, draft)
		if errors.Is(err, common.ErrConflict) {
			return common.Conflict("vat return for " + period.Label() + " is already submitted")
		}
		return err
	}
	if s.Lock != nil {
		ttl := s.LockTTL
		if ttl <= 0 {
			ttl = 30 * time.Second
		}
		err = s.Lock.WithLock(ctx, "vat:period:"+periodID.String(), ttl, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Return{}, ctxErr
		}
		if errors.Is(err, lock.ErrTimeout) {
			return Return{}, common.Conflict("vat return for " + period.Label() + " is being generated; retry shortly")
		}
		return Return{}, common.FromStore("generate vat return", "tax period", err)
	}
	s.emit(ctx, events.TopicVATReturnGenerated, ret, period)
	return ret, nil
}

// RefreshDraft regenerates the draft return of the quarter containing at.
// It reports false without error when the quarter has no period, no return
// yet, or a submitted return.
func (s *Service) RefreshDraft(ctx context.Context, at time.Time) (Return, bool, error) {
	if err := s.ready(); err != nil {
		return Return{}, false, err
	}
	year, quarter := QuarterOf(at.In(s.loc()))
	period, err := s.Store.FindTaxPeriod(ctx, year, quarter)
	if errors.Is(err, common.ErrNotFound) {
		return Return{}, false, nil
	}
	if err != nil {
		return Return{}, false, common.Internal("find tax period", err)
	}
	existing, err := s.Store.GetReturnByPeriod(ctx, period.ID)
	if errors.Is(err, common.ErrNotFound) {
		return Return{}, false, nil
	}
	if err != nil {
		return Return{}, false, common.Internal("get vat return", err)
	}
	if existing.Submitted() {
		return Return{}, false, nil
	}
	ret, err := s.Generate(ctx, period.ID)
	if err != nil {
		if common.HasCode(err, common.CodeConflict) {
			return Return{}, false, nil
		}
		return Return{}, false, err
	}
	return ret, true, nil
}

// compute sums output VAT from non-cancelled orders and input VAT from
// purchases in the period, rounding each sum once.
func (s *Service) compute(ctx context.Context, period TaxPeriod) (Return, error) {
	var (
		outputVAT, netSales    decimal.Decimal
		inputVAT, netPurchases decimal.Decimal
		orders, purchases      int
	)
	orderFrom, orderTo := period.OrderWindow(s.loc())
	purchaseFrom, purchaseTo := period.PurchaseWindow()
	err := s.Source.Snapshot(ctx, func(v report.View) error {
		err := v.EachOrder(ctx, orderFrom, orderTo, func(o report.OrderRow) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if o.Status == "cancelled" {
				return nil
			}
			orders++
			outputVAT = outputVAT.Add(o.VATAmount)
			netSales = netSales.Add(o.Total.Sub(o.VATAmount))
			return nil
		})
		if err != nil {
			return err
		}
		return v.EachPurchase(ctx, purchaseFrom, purchaseTo, func(p report.PurchaseRow) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			purchases++
			inputVAT = inputVAT.Add(p.VATAmount)
			netPurchases = netPurchases.Add(p.Subtotal)
			return nil
		})
	})
	if err != nil {
		return Return{}, err
	}
	outputVAT, inputVAT = pricing.Round2(outputVAT), pricing.Round2(inputVAT)
	return Return{
		PeriodID:      period.ID,
		OutputVAT:     outputVAT,
		InputVAT:      inputVAT,
		VATDue:        Due(outputVAT, inputVAT),
		NetSales:      pricing.Round2(netSales),
		NetPurchases:  pricing.Round2(netPurchases),
		OrderCount:    orders,
		PurchaseCount: purchases,
		GeneratedAt:   s.now(),
	}, nil
}

// Submit files the return. A submitted return is permanently immutable.
func (s *Service) Submit(ctx context.Context, returnID uuid.UUID) (ret Return, err error) {
	if err := s.ready(); err != nil {
		return Return{}, err
	}
	ctx, span := otel.Tracer("vat").Start(ctx, "vat.Submit")
	defer span.End()
	defer func() { obs.IncCounter(obs.VATReturnsTotal, "submit", resultLabel(err)) }()

	ret, err = s.Store.MarkSubmitted(ctx, returnID, s.now())
	if errors.Is(err, common.ErrConflict) {
		return Return{}, common.Conflict("vat return is already submitted")
	}
	if err != nil {
		return Return{}, common.FromStore("submit vat return", "vat return", err)
	}
	period, err := s.Store.GetTaxPeriod(ctx, ret.PeriodID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("return_id", ret.ID.String()).Msg("load tax period for event")
		return ret, nil
	}
	s.emit(ctx, events.TopicVATReturnSubmitted, ret, period)
	return ret, nil
}

// Export renders the return. Only csv is supported.
func (s *Service) Export(ctx context.Context, returnID uuid.UUID, format string) (out Export, err error) {
	if err := s.ready(); err != nil {
		return Export{}, err
	}
	defer func() { obs.IncCounter(obs.VATReturnsTotal, "export", resultLabel(err)) }()

	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	if format != "csv" {
		return Export{}, common.Validation("unsupported export format", map[string]string{"format": "must be csv"})
	}
	ret, err := s.GetReturn(ctx, returnID)
	if err != nil {
		return Export{}, err
	}
	period, err := s.Store.GetTaxPeriod(ctx, ret.PeriodID)
	if err != nil {
		return Export{}, common.FromStore("get tax period", "tax period", err)
	}
	var company settings.AccountingSettings
	if s.Settings != nil {
		if company, err = s.Settings.GetOrCreate(ctx); err != nil {
			return Export{}, err
		}
	}
	body, err := renderCSV(ret, period, company)
	if err != nil {
		return Export{}, common.Internal("render vat csv", err)
	}
	return Export{
		Filename:    "vat-return-" + period.Label() + ".csv",
		ContentType: "text/csv; charset=utf-8",
		Body:        body,
	}, nil
}

func renderCSV(r Return, p TaxPeriod, company settings.AccountingSettings) ([]byte, error) {
	status := "draft"
	submitted := ""
	if r.SubmittedAt != nil {
		status = "submitted"
		submitted = r.SubmittedAt.UTC().Format(time.RFC3339)
	}
	vatNumber := ""
	if company.VATNumber != nil {
		vatNumber = *company.VATNumber
	}
	zero := decimal.Zero.StringFixed(2)
	rows := [][]string{
		{"field", "value"},
		{"company", company.CompanyName},
		{"vat_number", vatNumber},
		{"period", p.Label()},
		{"period_start", p.StartDate.Format(time.DateOnly)},
		{"period_end", p.EndDate.Format(time.DateOnly)},
		{"status", status},
		{"submitted_at", submitted},
		{"box1_vat_due_on_sales", r.OutputVAT.StringFixed(2)},
		{"box2_vat_due_on_acquisitions", zero},
		{"box3_total_vat_due", r.OutputVAT.StringFixed(2)},
		{"box4_vat_reclaimed", r.InputVAT.StringFixed(2)},
		{"box5_net_vat", r.VATDue.StringFixed(2)},
		{"box6_total_sales_ex_vat", r.NetSales.StringFixed(2)},
		{"box7_total_purchases_ex_vat", r.NetPurchases.StringFixed(2)},
		{"orders", strconv.Itoa(r.OrderCount)},
		{"purchases", strconv.Itoa(r.PurchaseCount)},
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Service) emit(ctx context.Context, topic string, r Return, p TaxPeriod) {
	if s.Events == nil {
		return
	}
	payload := map[string]any{
		"returnId": r.ID.String(),
		"period":   p.Label(),
		"vatDue":   r.VATDue.StringFixed(2),
	}
	if _, err := s.Events.Emit(ctx, topic, r.ID, payload); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("return_id", r.ID.String()).Str("topic", topic).Msg("emit vat event")
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if appErr, ok := common.AsAppError(err); ok {
		return strings.ToLower(appErr.Code)
	}
	return "error"
}
