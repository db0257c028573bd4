package report_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/events"
	"github.com/noah-isme/backend-resto/internal/menu"
	"github.com/noah-isme/backend-resto/internal/order"
	"github.com/noah-isme/backend-resto/internal/payment"
	"github.com/noah-isme/backend-resto/internal/purchase"
	"github.com/noah-isme/backend-resto/internal/report"
	"github.com/noah-isme/backend-resto/internal/resilience"
	"github.com/noah-isme/backend-resto/internal/settings"
	"github.com/noah-isme/backend-resto/internal/store/memory"
)

type fixture struct {
	clock     time.Time
	store     *memory.Store
	settings  *settings.Service
	menu      *menu.Service
	orders    *order.Service
	payments  *payment.Service
	purchases *purchase.Service
	reports   *report.Service
	item      menu.Item
}

// newFixture builds services over one memory store with VAT and service
// charge at zero so order totals equal their subtotals.
func newFixture(t *testing.T, cache *report.Cache) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), clock: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)}
	now := func() time.Time { return f.clock }
	bus := &events.Bus{Store: f.store, Now: now}
	f.settings = &settings.Service{Store: f.store, Defaults: settings.StandardDefaults(), Events: bus, Now: now}
	f.menu = &menu.Service{Store: f.store, Now: now}
	f.orders = &order.Service{Store: f.store, Settings: f.settings, Events: bus, Now: now}
	f.payments = &payment.Service{Store: f.store, Events: bus, Now: now}
	f.purchases = &purchase.Service{Store: f.store, Settings: f.settings, Events: bus, Now: now}
	f.reports = &report.Service{Source: f.store, Settings: f.settings, Cache: cache, Now: now}

	ctx := context.Background()
	zero := decimal.Zero
	_, err := f.settings.Update(ctx, settings.Patch{StandardVATRate: &zero, ServiceChargeRate: &zero})
	require.NoError(t, err)
	f.item, err = f.menu.Create(ctx, menu.CreateInput{Name: "Unit", Price: decimal.RequireFromString("1.00")})
	require.NoError(t, err)
	return f
}

func (f *fixture) orderAt(t *testing.T, at time.Time, qty int) order.Order {
	t.Helper()
	f.clock = at
	o, err := f.orders.CreateOrder(context.Background(), order.CreateInput{Items: []order.ItemInput{{MenuItemID: f.item.ID, Quantity: qty}}})
	require.NoError(t, err)
	return o
}

var (
	monday  = time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	tuesday = time.Date(2025, 1, 7, 18, 30, 0, 0, time.UTC)
)

func TestWeeklyAndDailyBuckets(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.orderAt(t, monday, 10)
	f.orderAt(t, monday.Add(time.Hour), 20)
	f.orderAt(t, tuesday, 30)

	week, err := f.reports.Weekly(ctx, tuesday)
	require.NoError(t, err)
	require.Equal(t, "2025-01-05", week.WeekStart)
	require.Equal(t, "2025-01-11", week.WeekEnd)
	require.Equal(t, 3, week.Totals.Orders)
	require.Equal(t, "60.00", week.Totals.Total.StringFixed(2))
	require.Len(t, week.Days, 2)
	require.Equal(t, "2025-01-06", week.Days[0].Key)
	require.Equal(t, 2, week.Days[0].Totals.Orders)
	require.Equal(t, "30.00", week.Days[0].Totals.Total.StringFixed(2))
	require.Equal(t, "2025-01-07", week.Days[1].Key)
	require.Equal(t, 1, week.Days[1].Totals.Orders)
	require.Equal(t, "30.00", week.Days[1].Totals.Total.StringFixed(2))

	day, err := f.reports.Daily(ctx, monday)
	require.NoError(t, err)
	require.Equal(t, "2025-01-06", day.Date)
	require.Equal(t, 2, day.Totals.Orders)
	require.Len(t, day.Orders, 2)
	require.Equal(t, "10.00", day.Orders[0].Total)
}

func TestMonthlyIsAdditive(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	// Prices with a third of a penny exercise rounding of the sums.
	odd, err := f.menu.Create(ctx, menu.CreateInput{Name: "Odd", Price: decimal.RequireFromString("3.33")})
	require.NoError(t, err)
	for i, at := range []time.Time{monday, tuesday, time.Date(2025, 1, 19, 12, 0, 0, 0, time.UTC), time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)} {
		f.clock = at
		_, err := f.orders.CreateOrder(ctx, order.CreateInput{Items: []order.ItemInput{{MenuItemID: odd.ID, Quantity: i + 1}}})
		require.NoError(t, err)
	}
	f.orderAt(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), 100)

	m, err := f.reports.Monthly(ctx, 2025, 1)
	require.NoError(t, err)
	require.Equal(t, 4, m.Totals.Orders)
	require.Equal(t, "33.30", m.Totals.Total.StringFixed(2))

	daySum, weekSum := decimal.Zero, decimal.Zero
	for _, d := range m.Days {
		daySum = daySum.Add(d.Totals.Total)
	}
	for _, w := range m.Weeks {
		weekSum = weekSum.Add(w.Totals.Total)
	}
	require.True(t, daySum.Equal(m.Totals.Total), "days %s total %s", daySum, m.Totals.Total)
	require.True(t, weekSum.Equal(m.Totals.Total), "weeks %s total %s", weekSum, m.Totals.Total)
	require.Equal(t, []string{"2025-01-05", "2025-01-19", "2025-01-26"}, []string{m.Weeks[0].Key, m.Weeks[1].Key, m.Weeks[2].Key})

	_, err = f.reports.Monthly(ctx, 2025, 13)
	require.True(t, common.HasCode(err, common.CodeValidation))
}

func TestCancelledOrdersAreExcluded(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	kept := f.orderAt(t, monday, 10)
	cancelled := f.orderAt(t, monday, 50)

	_, err := f.payments.Record(ctx, cancelled.ID, payment.RecordInput{Amount: decimal.NewFromInt(50), Method: "card"})
	require.NoError(t, err)
	_, err = f.payments.Record(ctx, kept.ID, payment.RecordInput{Amount: decimal.NewFromInt(10), Method: "cash"})
	require.NoError(t, err)
	status := order.StatusCancelled
	_, err = f.orders.UpdateOrder(ctx, cancelled.ID, order.OrderPatch{Status: &status})
	require.NoError(t, err)

	day, err := f.reports.Daily(ctx, monday)
	require.NoError(t, err)
	require.Equal(t, 1, day.Totals.Orders)
	require.Equal(t, "10.00", day.Totals.Total.StringFixed(2))
	require.Equal(t, "10.00", day.Totals.PaymentsReceived.StringFixed(2))
	require.Len(t, day.Orders, 1)
	require.Equal(t, kept.ID.String(), day.Orders[0].ID)
}

func TestEmptyDaysAreOmitted(t *testing.T) {
	f := newFixture(t, nil)
	week, err := f.reports.Weekly(context.Background(), monday)
	require.NoError(t, err)
	require.Zero(t, week.Totals.Orders)
	require.Empty(t, week.Days)
	require.Equal(t, "0.00", week.Totals.Total.StringFixed(2))
}

func TestCancelledContextFailsReport(t *testing.T) {
	f := newFixture(t, nil)
	f.orderAt(t, monday, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.reports.Daily(ctx, monday)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPurchaseReport(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	sup, err := f.purchases.CreateSupplier(ctx, purchase.SupplierInput{Name: "Wholesale"})
	require.NoError(t, err)
	rate := decimal.NewFromInt(20)
	for _, p := range []struct{ date, category, amount string }{
		{"2025-01-06", "produce", "50.00"},
		{"2025-01-07", "dry", "20.00"},
		{"2025-01-13", "produce", "30.00"},
		{"2025-02-01", "produce", "99.00"},
	} {
		_, err := f.purchases.Create(ctx, purchase.CreateInput{SupplierID: sup.ID, Date: p.date, Category: p.category, Subtotal: decimal.RequireFromString(p.amount), VATRate: &rate})
		require.NoError(t, err)
	}

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	rep, err := f.reports.Purchases(ctx, report.PeriodWeek, from, to)
	require.NoError(t, err)
	require.Equal(t, 3, rep.Totals.Purchases)
	require.Equal(t, "100.00", rep.Totals.Subtotal.StringFixed(2))
	require.Equal(t, "20.00", rep.Totals.VAT.StringFixed(2))
	require.Len(t, rep.Buckets, 2)
	require.Equal(t, "2025-01-05", rep.Buckets[0].Key)
	require.Equal(t, "70.00", rep.Buckets[0].Totals.Subtotal.StringFixed(2))
	require.Len(t, rep.Categories, 2)
	require.Equal(t, "dry", rep.Categories[0].Key)
	require.Equal(t, "produce", rep.Categories[1].Key)

	_, err = f.reports.Purchases(ctx, "year", from, to)
	require.True(t, common.HasCode(err, common.CodeValidation))
	_, err = f.reports.Purchases(ctx, report.PeriodDay, to, from)
	require.True(t, common.HasCode(err, common.CodeValidation))
}

func newCache(t *testing.T) (*miniredis.Miniredis, *report.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, &report.Cache{R: rdb, TTL: time.Minute}
}

func TestReportCacheFollowsStoreRevision(t *testing.T) {
	mr, cache := newCache(t)
	f := newFixture(t, cache)
	ctx := context.Background()

	f.orderAt(t, monday, 10)
	first, err := f.reports.Daily(ctx, monday)
	require.NoError(t, err)
	require.Equal(t, 1, first.Totals.Orders)

	rev, err := f.store.Revision(ctx)
	require.NoError(t, err)
	require.True(t, mr.Exists(cache.Key(rev, "daily", "2025-01-06")))

	again, err := f.reports.Daily(ctx, monday)
	require.NoError(t, err)
	require.Equal(t, first.Totals.Total.StringFixed(2), again.Totals.Total.StringFixed(2))
	require.Len(t, again.Orders, 1)
	require.Equal(t, first.Orders[0].ID, again.Orders[0].ID)

	f.orderAt(t, monday.Add(time.Minute), 5)
	fresh, err := f.reports.Daily(ctx, monday)
	require.NoError(t, err)
	require.Equal(t, 2, fresh.Totals.Orders)
	require.Equal(t, "15.00", fresh.Totals.Total.StringFixed(2))
}

func TestReportCacheNotStaleAfterRedisBlip(t *testing.T) {
	mr, cache := newCache(t)
	f := newFixture(t, cache)
	ctx := context.Background()

	f.orderAt(t, monday, 10)
	before, err := f.reports.Daily(ctx, monday)
	require.NoError(t, err)
	require.Equal(t, 1, before.Totals.Orders)

	mr.SetError("LOADING blip")
	f.orderAt(t, monday.Add(time.Minute), 5)
	mr.SetError("")

	after, err := f.reports.Daily(ctx, monday)
	require.NoError(t, err)
	require.Equal(t, 2, after.Totals.Orders)
	require.Equal(t, "15.00", after.Totals.Total.StringFixed(2))
}

// movingSource reports a new revision on every read, as if a write always
// commits while the report is being built.
type movingSource struct {
	*memory.Store
	rev int64
}

func (m *movingSource) Revision(context.Context) (int64, error) {
	m.rev++
	return m.rev, nil
}

type brokenRevision struct{ *memory.Store }

func (brokenRevision) Revision(context.Context) (int64, error) {
	return 0, errors.New("revision unavailable")
}

func TestReportCacheSkipsUnsafeBuilds(t *testing.T) {
	for name, wrap := range map[string]func(*memory.Store) report.Source{
		"revision moved during build": func(s *memory.Store) report.Source { return &movingSource{Store: s} },
		"revision unreadable":         func(s *memory.Store) report.Source { return brokenRevision{s} },
	} {
		t.Run(name, func(t *testing.T) {
			mr, cache := newCache(t)
			f := newFixture(t, cache)
			f.reports.Source = wrap(f.store)
			f.orderAt(t, monday, 10)

			day, err := f.reports.Daily(context.Background(), monday)
			require.NoError(t, err)
			require.Equal(t, 1, day.Totals.Orders)
			require.Empty(t, mr.Keys())
		})
	}
}

func TestReportCacheFailureFallsBackToBuild(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	f := newFixture(t, &report.Cache{R: rdb, TTL: time.Minute})
	f.orderAt(t, monday, 10)
	mr.Close()

	day, err := f.reports.Daily(context.Background(), monday)
	require.NoError(t, err)
	require.Equal(t, 1, day.Totals.Orders)
}

func TestReportCacheBreakerSkipsRedisWhileOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	breaker := resilience.NewBreaker(resilience.BreakerConfig{Target: "report_cache_test", OpenFor: time.Hour})
	f := newFixture(t, &report.Cache{R: rdb, TTL: time.Minute, Breaker: breaker})
	f.orderAt(t, monday, 10)
	mr.Close()

	_, err := f.reports.Daily(context.Background(), monday)
	require.NoError(t, err)
	require.Equal(t, resilience.Open, breaker.State())

	day, err := f.reports.Daily(context.Background(), monday)
	require.NoError(t, err)
	require.Equal(t, 1, day.Totals.Orders)
}
