package payment_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/menu"
	"github.com/noah-isme/backend-resto/internal/order"
	"github.com/noah-isme/backend-resto/internal/payment"
	"github.com/noah-isme/backend-resto/internal/settings"
	"github.com/noah-isme/backend-resto/internal/store/memory"
)

func seedOrder(t *testing.T, st *memory.Store) order.Order {
	t.Helper()
	ctx := context.Background()
	item, err := (&menu.Service{Store: st}).Create(ctx, menu.CreateInput{Name: "Pie", Price: decimal.NewFromInt(8)})
	require.NoError(t, err)
	o, err := (&order.Service{Store: st, Settings: &settings.Service{Store: st}}).CreateOrder(ctx, order.CreateInput{
		Items: []order.ItemInput{{MenuItemID: item.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	return o
}

func TestRecordPaymentLocksOrder(t *testing.T) {
	st := memory.New()
	svc := &payment.Service{Store: st}
	ctx := context.Background()
	o := seedOrder(t, st)

	paid, err := svc.HasPayment(ctx, o.ID)
	require.NoError(t, err)
	require.False(t, paid)

	p, err := svc.Record(ctx, o.ID, payment.RecordInput{Amount: decimal.RequireFromString("5.00"), Method: " Cash ", Status: payment.StatusPending})
	require.NoError(t, err)
	require.Equal(t, "cash", p.Method)
	require.Equal(t, payment.StatusPending, p.Status)

	paid, err = svc.HasPayment(ctx, o.ID)
	require.NoError(t, err)
	require.True(t, paid, "any payment status locks the order")

	_, err = svc.Record(ctx, o.ID, payment.RecordInput{Amount: decimal.RequireFromString("6.60"), Method: "card"})
	require.NoError(t, err)

	list, err := svc.List(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, payment.StatusCompleted, list[1].Status)
}

func TestRecordPaymentValidation(t *testing.T) {
	st := memory.New()
	svc := &payment.Service{Store: st}
	ctx := context.Background()
	o := seedOrder(t, st)

	_, err := svc.Record(ctx, o.ID, payment.RecordInput{Amount: decimal.Zero, Method: "cash"})
	require.True(t, common.HasCode(err, common.CodeValidation), "got %v", err)

	_, err = svc.Record(ctx, o.ID, payment.RecordInput{Amount: decimal.RequireFromString("1.005"), Method: "cash"})
	require.True(t, common.HasCode(err, common.CodeValidation), "got %v", err)

	_, err = svc.Record(ctx, o.ID, payment.RecordInput{Amount: decimal.NewFromInt(1), Method: "bitcoin"})
	require.True(t, common.HasCode(err, common.CodeValidation), "got %v", err)

	_, err = svc.Record(ctx, uuid.New(), payment.RecordInput{Amount: decimal.NewFromInt(1), Method: "cash"})
	require.True(t, common.HasCode(err, common.CodeNotFound), "got %v", err)
}
