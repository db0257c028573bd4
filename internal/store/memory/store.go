// Package memory is an in-process implementation of every store interface.
// It backs the memory store driver and service tests.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-resto/internal/audit"
	"github.com/noah-isme/backend-resto/internal/events"
	"github.com/noah-isme/backend-resto/internal/menu"
	"github.com/noah-isme/backend-resto/internal/order"
	"github.com/noah-isme/backend-resto/internal/payment"
	"github.com/noah-isme/backend-resto/internal/purchase"
	"github.com/noah-isme/backend-resto/internal/report"
	"github.com/noah-isme/backend-resto/internal/settings"
	"github.com/noah-isme/backend-resto/internal/vat"
)

var (
	_ settings.Store    = (*Store)(nil)
	_ menu.Store        = (*Store)(nil)
	_ order.Store       = (*Store)(nil)
	_ payment.Store     = (*Store)(nil)
	_ purchase.Store    = (*Store)(nil)
	_ vat.Store         = (*Store)(nil)
	_ report.Source     = (*Store)(nil)
	_ events.EventStore = (*Store)(nil)
	_ audit.Store       = (*Store)(nil)
)

type state struct {
	settings  *settings.AccountingSettings
	menu      map[uuid.UUID]menu.Item
	orders    map[uuid.UUID]order.Order
	payments  map[uuid.UUID][]payment.Payment
	suppliers map[uuid.UUID]purchase.Supplier
	purchases map[uuid.UUID]purchase.Purchase
	periods   map[uuid.UUID]vat.TaxPeriod
	returns   map[uuid.UUID]vat.Return
	events    []events.Event
	rev       int64
}

func (s *state) clone() *state {
	out := &state{
		menu:      maps.Clone(s.menu),
		orders:    make(map[uuid.UUID]order.Order, len(s.orders)),
		payments:  make(map[uuid.UUID][]payment.Payment, len(s.payments)),
		suppliers: maps.Clone(s.suppliers),
		purchases: maps.Clone(s.purchases),
		periods:   maps.Clone(s.periods),
		returns:   maps.Clone(s.returns),
		events:    append([]events.Event(nil), s.events...),
		rev:       s.rev,
	}
	if s.settings != nil {
		cp := *s.settings
		out.settings = &cp
	}
	for id, o := range s.orders {
		out.orders[id] = cloneOrder(o)
	}
	for id, ps := range s.payments {
		out.payments[id] = append([]payment.Payment(nil), ps...)
	}
	return out
}

func cloneOrder(o order.Order) order.Order {
	o.Items = append([]order.Item(nil), o.Items...)
	return o
}

// Store keeps all state behind one lock. Writes that span several records
// run against a copy that replaces the live state only on success. The audit
// trail sits outside that state so appending to it leaves the revision alone.
type Store struct {
	mu sync.RWMutex
	st *state

	auditMu sync.RWMutex
	audit   []audit.Entry
}

// New returns an empty store.
func New() *Store {
	return &Store{st: &state{
		menu:      map[uuid.UUID]menu.Item{},
		orders:    map[uuid.UUID]order.Order{},
		payments:  map[uuid.UUID][]payment.Payment{},
		suppliers: map[uuid.UUID]purchase.Supplier{},
		purchases: map[uuid.UUID]purchase.Purchase{},
		periods:   map[uuid.UUID]vat.TaxPeriod{},
		returns:   map[uuid.UUID]vat.Return{},
	}}
}

// atomically runs fn against a copy of the state and commits it when fn
// succeeds. Every commit moves the revision.
func (s *Store) atomically(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(work); err != nil {
		return err
	}
	work.rev++
	s.st = work
	return nil
}

func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.st)
}
