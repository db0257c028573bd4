package order_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/events"
	"github.com/noah-isme/backend-resto/internal/menu"
	"github.com/noah-isme/backend-resto/internal/order"
	"github.com/noah-isme/backend-resto/internal/payment"
	"github.com/noah-isme/backend-resto/internal/settings"
	"github.com/noah-isme/backend-resto/internal/store/memory"
)

type ledger struct {
	store    *memory.Store
	orders   *order.Service
	payments *payment.Service
	menu     *menu.Service
}

func newLedger(t *testing.T) ledger {
	t.Helper()
	st := memory.New()
	now := func() time.Time { return time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC) }
	bus := &events.Bus{Store: st, Now: now}
	cfg := &settings.Service{Store: st, Defaults: settings.StandardDefaults(), Now: now}
	return ledger{
		store:    st,
		orders:   &order.Service{Store: st, Settings: cfg, Events: bus, Now: now},
		payments: &payment.Service{Store: st, Events: bus, Now: now},
		menu:     &menu.Service{Store: st, Events: bus, Now: now},
	}
}

func (l ledger) menuItem(t *testing.T, name, price string) menu.Item {
	t.Helper()
	item, err := l.menu.Create(context.Background(), menu.CreateInput{Name: name, Price: decimal.RequireFromString(price)})
	require.NoError(t, err)
	return item
}

func (l ledger) pay(t *testing.T, orderID uuid.UUID) {
	t.Helper()
	_, err := l.payments.Record(context.Background(), orderID, payment.RecordInput{Amount: decimal.RequireFromString("13.00"), Method: "card"})
	require.NoError(t, err)
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, common.HasCode(err, code), "want %s, got %v", code, err)
}

func ptr[T any](v T) *T { return &v }

func TestCreateOrderComputesTotals(t *testing.T) {
	l := newLedger(t)
	burger := l.menuItem(t, "Burger", "10.00")

	o, err := l.orders.CreateOrder(context.Background(), order.CreateInput{
		Items: []order.ItemInput{{MenuItemID: burger.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, "10.00", o.Subtotal.StringFixed(2))
	require.Equal(t, "2.00", o.VATAmount.StringFixed(2))
	require.Equal(t, "1.00", o.ServiceCharge.StringFixed(2))
	require.Equal(t, "13.00", o.Total.StringFixed(2))
	require.Equal(t, order.StatusPending, o.Status)
	require.Equal(t, order.TypeDineIn, o.OrderType)
	require.EqualValues(t, 1, o.Version)
	require.Len(t, o.Items, 1)
	require.Equal(t, "10.00", o.Items[0].Price.StringFixed(2))

	stored, err := l.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	require.Equal(t, o.Total.String(), stored.Total.String())

	evs := l.store.Events()
	require.Len(t, evs, 2)
	require.Equal(t, events.TopicOrderCreated, evs[1].Topic)
}

func TestCreateOrderSnapshotsMenuPrice(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	soup := l.menuItem(t, "Soup", "5.00")

	o, err := l.orders.CreateOrder(ctx, order.CreateInput{Items: []order.ItemInput{{MenuItemID: soup.ID, Quantity: 2}}})
	require.NoError(t, err)

	_, err = l.menu.Update(ctx, soup.ID, menu.Patch{Price: ptr(decimal.RequireFromString("7.00"))})
	require.NoError(t, err)

	got, err := l.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, "5.00", got.Items[0].Price.StringFixed(2))
	require.Equal(t, "10.00", got.Subtotal.StringFixed(2))
}

func TestCreateOrderRejectsUnknownAndUnavailableItems(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	off, err := l.menu.Create(ctx, menu.CreateInput{Name: "Seasonal", Price: decimal.NewFromInt(4), Available: ptr(false)})
	require.NoError(t, err)

	_, err = l.orders.CreateOrder(ctx, order.CreateInput{Items: []order.ItemInput{{MenuItemID: uuid.New(), Quantity: 1}}})
	requireCode(t, err, common.CodeValidation)

	_, err = l.orders.CreateOrder(ctx, order.CreateInput{Items: []order.ItemInput{{MenuItemID: off.ID, Quantity: 1}}})
	requireCode(t, err, common.CodeValidation)

	_, err = l.orders.CreateOrder(ctx, order.CreateInput{})
	requireCode(t, err, common.CodeValidation)

	orders, total, err := l.orders.List(ctx, order.Filter{})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, orders)
}

func TestUpdateItemRecomputesAndKeepsServiceCharge(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	burger := l.menuItem(t, "Burger", "10.00")
	o, err := l.orders.CreateOrder(ctx, order.CreateInput{Items: []order.ItemInput{{MenuItemID: burger.ID, Quantity: 1}}})
	require.NoError(t, err)

	updated, err := l.orders.UpdateItem(ctx, o.ID, o.Items[0].ID, order.ItemPatch{Quantity: ptr(3)})
	require.NoError(t, err)
	require.Equal(t, "30.00", updated.Subtotal.StringFixed(2))
	require.Equal(t, "6.00", updated.VATAmount.StringFixed(2))
	require.Equal(t, "1.00", updated.ServiceCharge.StringFixed(2))
	require.Equal(t, "37.00", updated.Total.StringFixed(2))
	require.EqualValues(t, 2, updated.Version)

	_, err = l.orders.UpdateItem(ctx, o.ID, uuid.New(), order.ItemPatch{Quantity: ptr(1)})
	requireCode(t, err, common.CodeNotFound)
}

func TestDeleteItemKeepsLastItem(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	a := l.menuItem(t, "A", "4.00")
	b := l.menuItem(t, "B", "6.00")
	o, err := l.orders.CreateOrder(ctx, order.CreateInput{Items: []order.ItemInput{
		{MenuItemID: a.ID, Quantity: 1},
		{MenuItemID: b.ID, Quantity: 1},
	}})
	require.NoError(t, err)

	after, err := l.orders.DeleteItem(ctx, o.ID, o.Items[0].ID, nil)
	require.NoError(t, err)
	require.Len(t, after.Items, 1)
	require.Equal(t, "6.00", after.Subtotal.StringFixed(2))

	_, err = l.orders.DeleteItem(ctx, o.ID, after.Items[0].ID, nil)
	requireCode(t, err, common.CodeConflict)

	reloaded, err := l.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, after.Version, reloaded.Version)
	require.Len(t, reloaded.Items, 1)
	require.Equal(t, after.Items[0].ID, reloaded.Items[0].ID)
	require.Equal(t, after.Items[0].Quantity, reloaded.Items[0].Quantity)
	require.Equal(t, after.Subtotal.StringFixed(2), reloaded.Subtotal.StringFixed(2))
	require.Equal(t, after.VATAmount.StringFixed(2), reloaded.VATAmount.StringFixed(2))
	require.Equal(t, after.Total.StringFixed(2), reloaded.Total.StringFixed(2))
}

func TestPaidOrderIsLocked(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	burger := l.menuItem(t, "Burger", "10.00")
	o, err := l.orders.CreateOrder(ctx, order.CreateInput{Items: []order.ItemInput{{MenuItemID: burger.ID, Quantity: 1}}})
	require.NoError(t, err)
	l.pay(t, o.ID)

	paid, err := l.payments.HasPayment(ctx, o.ID)
	require.NoError(t, err)
	require.True(t, paid)

	_, err = l.orders.UpdateItem(ctx, o.ID, o.Items[0].ID, order.ItemPatch{Quantity: ptr(2)})
	requireCode(t, err, common.CodeConflict)
	_, err = l.orders.DeleteItem(ctx, o.ID, o.Items[0].ID, nil)
	requireCode(t, err, common.CodeConflict)
	_, err = l.orders.UpdateOrder(ctx, o.ID, order.OrderPatch{Discount: ptr(decimal.NewFromInt(1))})
	requireCode(t, err, common.CodeConflict)
	_, err = l.orders.UpdateOrder(ctx, o.ID, order.OrderPatch{Items: &[]order.ItemInput{{MenuItemID: burger.ID, Quantity: 2}}})
	requireCode(t, err, common.CodeConflict)
	requireCode(t, l.orders.DeleteOrder(ctx, o.ID, nil), common.CodeConflict)

	got, err := l.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, "13.00", got.Total.StringFixed(2))
	require.EqualValues(t, 1, got.Version)

	// Notes and status stay editable.
	updated, err := l.orders.UpdateOrder(ctx, o.ID, order.OrderPatch{
		Notes:  ptr("table by the window"),
		Status: ptr(order.StatusServed),
	})
	require.NoError(t, err)
	require.Equal(t, order.StatusServed, updated.Status)
	require.Equal(t, "table by the window", *updated.Notes)
	require.Equal(t, "13.00", updated.Total.StringFixed(2))
}

func TestUpdateOrderReplacesItemsAndAppliesDiscount(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	a := l.menuItem(t, "A", "10.00")
	b := l.menuItem(t, "B", "2.50")
	o, err := l.orders.CreateOrder(ctx, order.CreateInput{Items: []order.ItemInput{{MenuItemID: a.ID, Quantity: 1}}})
	require.NoError(t, err)

	updated, err := l.orders.UpdateOrder(ctx, o.ID, order.OrderPatch{
		Items:    &[]order.ItemInput{{MenuItemID: b.ID, Quantity: 4}},
		Discount: ptr(decimal.RequireFromString("1.00")),
	})
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	require.Equal(t, b.ID, updated.Items[0].MenuItemID)
	require.Equal(t, "10.00", updated.Subtotal.StringFixed(2))
	require.Equal(t, "12.00", updated.Total.StringFixed(2))

	got, err := l.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	require.Equal(t, updated.Total.String(), got.Total.String())
}

func TestUpdateOrderVersionAndStatusRules(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	a := l.menuItem(t, "A", "10.00")
	o, err := l.orders.CreateOrder(ctx, order.CreateInput{Items: []order.ItemInput{{MenuItemID: a.ID, Quantity: 1}}})
	require.NoError(t, err)

	_, err = l.orders.UpdateOrder(ctx, o.ID, order.OrderPatch{Notes: ptr("x"), ExpectedVersion: ptr(int64(7))})
	requireCode(t, err, common.CodeConflict)

	done, err := l.orders.UpdateOrder(ctx, o.ID, order.OrderPatch{Status: ptr(order.StatusCompleted), ExpectedVersion: ptr(int64(1))})
	require.NoError(t, err)
	require.EqualValues(t, 2, done.Version)

	_, err = l.orders.UpdateOrder(ctx, o.ID, order.OrderPatch{Status: ptr(order.StatusPending)})
	requireCode(t, err, common.CodeConflict)

	_, err = l.orders.UpdateOrder(ctx, o.ID, order.OrderPatch{Status: ptr(order.Status("lost"))})
	requireCode(t, err, common.CodeValidation)
}

func TestUpdateOrderRejectsVATRateFinerThanCents(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	a := l.menuItem(t, "A", "10.00")
	o, err := l.orders.CreateOrder(ctx, order.CreateInput{Items: []order.ItemInput{{MenuItemID: a.ID, Quantity: 1}}})
	require.NoError(t, err)

	_, err = l.orders.UpdateOrder(ctx, o.ID, order.OrderPatch{VATRate: ptr(decimal.RequireFromString("12.345"))})
	requireCode(t, err, common.CodeValidation)

	unchanged, err := l.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, o.VATRate.String(), unchanged.VATRate.String())
	require.Equal(t, o.Version, unchanged.Version)

	updated, err := l.orders.UpdateOrder(ctx, o.ID, order.OrderPatch{VATRate: ptr(decimal.RequireFromString("12.50"))})
	require.NoError(t, err)
	require.Equal(t, "12.5", updated.VATRate.String())
	require.Equal(t, "1.25", updated.VATAmount.StringFixed(2))
}

func TestDeleteOrder(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	a := l.menuItem(t, "A", "10.00")
	o, err := l.orders.CreateOrder(ctx, order.CreateInput{Items: []order.ItemInput{{MenuItemID: a.ID, Quantity: 1}}})
	require.NoError(t, err)

	require.NoError(t, l.orders.DeleteOrder(ctx, o.ID, nil))
	_, err = l.orders.Get(ctx, o.ID)
	requireCode(t, err, common.CodeNotFound)
	requireCode(t, l.orders.DeleteOrder(ctx, o.ID, nil), common.CodeNotFound)
}

func TestConcurrentPaymentAndEditSerialise(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	a := l.menuItem(t, "A", "10.00")
	o, err := l.orders.CreateOrder(ctx, order.CreateInput{Items: []order.ItemInput{{MenuItemID: a.ID, Quantity: 1}}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var editErr, payErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, editErr = l.orders.UpdateItem(ctx, o.ID, o.Items[0].ID, order.ItemPatch{Quantity: ptr(5)})
	}()
	go func() {
		defer wg.Done()
		_, payErr = l.payments.Record(ctx, o.ID, payment.RecordInput{Amount: decimal.RequireFromString("13.00"), Method: "card"})
	}()
	wg.Wait()
	require.NoError(t, payErr)

	got, err := l.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	if editErr != nil {
		requireCode(t, editErr, common.CodeConflict)
		require.Equal(t, "13.00", got.Total.StringFixed(2))
		return
	}
	require.Equal(t, 5, got.Items[0].Quantity)
	require.Equal(t, "61.00", got.Total.StringFixed(2))
}
