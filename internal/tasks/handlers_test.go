package tasks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/audit"
	"github.com/noah-isme/backend-resto/internal/purchase"
	"github.com/noah-isme/backend-resto/internal/report"
	"github.com/noah-isme/backend-resto/internal/settings"
	"github.com/noah-isme/backend-resto/internal/store/memory"
	"github.com/noah-isme/backend-resto/internal/tasks"
	"github.com/noah-isme/backend-resto/internal/vat"
)

type fixture struct {
	store     *memory.Store
	vat       *vat.Service
	purchases *purchase.Service
	handlers  *tasks.Handlers
}

func newFixture() fixture {
	st := memory.New()
	now := func() time.Time { return time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC) }
	cfg := &settings.Service{Store: st, Defaults: settings.StandardDefaults(), Now: now}
	vatSvc := &vat.Service{Store: st, Source: st, Settings: cfg, Now: now}
	reports := &report.Service{Source: st, Settings: cfg, Now: now}
	return fixture{
		store:     st,
		vat:       vatSvc,
		purchases: &purchase.Service{Store: st, Settings: cfg, Now: now},
		handlers: &tasks.Handlers{
			VAT:     vatSvc,
			Reports: reports,
			Audit:   &audit.Service{Store: st, Enabled: true, Now: now},
		},
	}
}

func TestHandleVATRefreshRegeneratesDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	period, err := f.vat.OpenPeriod(ctx, 2025, 1)
	require.NoError(t, err)
	draft, err := f.vat.Generate(ctx, period.ID)
	require.NoError(t, err)
	require.True(t, draft.InputVAT.IsZero())

	sup, err := f.purchases.CreateSupplier(ctx, purchase.SupplierInput{Name: "Fresh Produce Ltd"})
	require.NoError(t, err)
	rate := decimal.NewFromInt(20)
	_, err = f.purchases.Create(ctx, purchase.CreateInput{
		SupplierID: sup.ID,
		Date:       "2025-02-14",
		Category:   "produce",
		Subtotal:   decimal.NewFromInt(100),
		VATRate:    &rate,
	})
	require.NoError(t, err)

	task, err := tasks.NewVATRefreshTask(time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, f.handlers.HandleVATRefresh(ctx, task))

	refreshed, err := f.vat.GetReturn(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, "20.00", refreshed.InputVAT.StringFixed(2))
	require.Equal(t, "-20.00", refreshed.VATDue.StringFixed(2))

	entries, _, err := f.store.ListAuditEntries(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, audit.ActorSystem, entries[0].ActorKind)
	require.Equal(t, "vat_return.refresh", entries[0].Action)
	require.Equal(t, draft.ID.String(), *entries[0].ResourceID)
	require.JSONEq(t, `{"periodId":"`+period.ID.String()+`","vatDue":"-20.00"}`, string(entries[0].Metadata))
}

func TestHandleVATRefreshLeavesSubmittedReturn(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	period, err := f.vat.OpenPeriod(ctx, 2025, 1)
	require.NoError(t, err)
	draft, err := f.vat.Generate(ctx, period.ID)
	require.NoError(t, err)
	_, err = f.vat.Submit(ctx, draft.ID)
	require.NoError(t, err)

	task, err := tasks.NewVATRefreshTask(time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, f.handlers.HandleVATRefresh(ctx, task))

	got, err := f.vat.GetReturn(ctx, draft.ID)
	require.NoError(t, err)
	require.True(t, got.Submitted())
	require.Equal(t, draft.GeneratedAt, got.GeneratedAt)

	entries, total, err := f.store.ListAuditEntries(ctx, 10, 0)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, entries)
}

func TestHandleVATRefreshWithoutPeriodIsNoop(t *testing.T) {
	f := newFixture()
	task, err := tasks.NewVATRefreshTask(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, f.handlers.HandleVATRefresh(context.Background(), task))

	periods, err := f.vat.ListPeriods(context.Background())
	require.NoError(t, err)
	require.Empty(t, periods)
}

func TestHandleReportWarm(t *testing.T) {
	f := newFixture()
	task, err := tasks.NewReportWarmTask(2025, 4)
	require.NoError(t, err)
	require.NoError(t, f.handlers.HandleReportWarm(context.Background(), task))

	bad, err := tasks.NewReportWarmTask(2025, 13)
	require.NoError(t, err)
	require.Error(t, f.handlers.HandleReportWarm(context.Background(), bad))
}

func TestHandlersSkipRetryOnBadPayload(t *testing.T) {
	f := newFixture()
	err := f.handlers.HandleVATRefresh(context.Background(), asynq.NewTask(tasks.TypeVATRefresh, []byte("{")))
	require.True(t, errors.Is(err, asynq.SkipRetry))
	err = f.handlers.HandleReportWarm(context.Background(), asynq.NewTask(tasks.TypeReportWarm, []byte("nope")))
	require.True(t, errors.Is(err, asynq.SkipRetry))
}
