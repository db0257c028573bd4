package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/payment"
	"github.com/noah-isme/backend-resto/internal/purchase"
	"github.com/noah-isme/backend-resto/internal/report"
)

// Snapshot holds the read lock while fn runs, so every read sees the same state.
func (s *Store) Snapshot(ctx context.Context, fn func(report.View) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(view{st: s.st})
}

// Revision counts committed writes.
func (s *Store) Revision(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.rev, nil
}

type view struct {
	st *state
}

func (v view) EachOrder(ctx context.Context, from, to time.Time, fn func(report.OrderRow) error) error {
	rows := make([]report.OrderRow, 0)
	for _, o := range v.st.orders {
		if o.CreatedAt.Before(from) || !o.CreatedAt.Before(to) {
			continue
		}
		received := decimal.Zero
		for _, p := range v.st.payments[o.ID] {
			if p.Status == payment.StatusCompleted {
				received = received.Add(p.Amount)
			}
		}
		rows = append(rows, report.OrderRow{
			ID:               o.ID,
			Status:           string(o.Status),
			CreatedAt:        o.CreatedAt,
			Subtotal:         o.Subtotal,
			VATAmount:        o.VATAmount,
			ServiceCharge:    o.ServiceCharge,
			Discount:         o.Discount,
			Total:            o.Total,
			PaymentsReceived: received,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	for _, r := range rows {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func (v view) EachPurchase(ctx context.Context, from, to time.Time, fn func(report.PurchaseRow) error) error {
	matched := make([]purchase.Purchase, 0)
	for _, p := range v.st.purchases {
		if p.Date.Before(from) || !p.Date.Before(to) {
			continue
		}
		matched = append(matched, p)
	}
	sortPurchases(matched)
	for _, p := range matched {
		row := report.PurchaseRow{
			ID:        p.ID,
			Date:      p.Date,
			Category:  p.Category,
			Subtotal:  p.Subtotal,
			VATAmount: p.VATAmount,
			Total:     p.Total,
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}
