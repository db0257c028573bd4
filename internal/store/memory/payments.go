package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/payment"
)

// HasPayment reports whether any payment references orderID.
func (s *Store) HasPayment(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var paid bool
	s.read(func(st *state) { paid = len(st.payments[orderID]) > 0 })
	return paid, nil
}

// RecordPayment appends p to an existing order.
func (s *Store) RecordPayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	err := s.atomically(ctx, func(st *state) error {
		if _, ok := st.orders[p.OrderID]; !ok {
			return common.ErrNotFound
		}
		st.payments[p.OrderID] = append(st.payments[p.OrderID], p)
		return nil
	})
	return p, err
}

// ListPayments returns the order's payments in recording order.
func (s *Store) ListPayments(ctx context.Context, orderID uuid.UUID) ([]payment.Payment, error) {
	var (
		out   []payment.Payment
		found bool
	)
	s.read(func(st *state) {
		_, found = st.orders[orderID]
		out = append([]payment.Payment{}, st.payments[orderID]...)
	})
	if !found {
		return nil, common.ErrNotFound
	}
	return out, nil
}
