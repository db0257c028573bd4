package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/vat"
)

// CreateTaxPeriod stores p unless its year and quarter already exist.
func (s *Store) CreateTaxPeriod(ctx context.Context, p vat.TaxPeriod) (vat.TaxPeriod, error) {
	err := s.atomically(ctx, func(st *state) error {
		for _, existing := range st.periods {
			if existing.Year == p.Year && existing.Quarter == p.Quarter {
				return common.ErrConflict
			}
		}
		st.periods[p.ID] = p
		return nil
	})
	return p, err
}

// GetTaxPeriod returns one period.
func (s *Store) GetTaxPeriod(ctx context.Context, id uuid.UUID) (vat.TaxPeriod, error) {
	var (
		out vat.TaxPeriod
		ok  bool
	)
	s.read(func(st *state) { out, ok = st.periods[id] })
	if !ok {
		return vat.TaxPeriod{}, common.ErrNotFound
	}
	return out, nil
}

// FindTaxPeriod returns the period for year and quarter.
func (s *Store) FindTaxPeriod(ctx context.Context, year, quarter int) (vat.TaxPeriod, error) {
	var (
		out vat.TaxPeriod
		ok  bool
	)
	s.read(func(st *state) {
		for _, p := range st.periods {
			if p.Year == year && p.Quarter == quarter {
				out, ok = p, true
				return
			}
		}
	})
	if !ok {
		return vat.TaxPeriod{}, common.ErrNotFound
	}
	return out, nil
}

// ListTaxPeriods returns periods, most recent first.
func (s *Store) ListTaxPeriods(ctx context.Context) ([]vat.TaxPeriod, error) {
	out := []vat.TaxPeriod{}
	s.read(func(st *state) {
		for _, p := range st.periods {
			out = append(out, p)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

// GetReturn returns one VAT return.
func (s *Store) GetReturn(ctx context.Context, id uuid.UUID) (vat.Return, error) {
	var (
		out vat.Return
		ok  bool
	)
	s.read(func(st *state) { out, ok = st.returns[id] })
	if !ok {
		return vat.Return{}, common.ErrNotFound
	}
	return out, nil
}

// GetReturnByPeriod returns the period's return.
func (s *Store) GetReturnByPeriod(ctx context.Context, periodID uuid.UUID) (vat.Return, error) {
	var (
		out vat.Return
		ok  bool
	)
	s.read(func(st *state) { out, ok = returnOf(st, periodID) })
	if !ok {
		return vat.Return{}, common.ErrNotFound
	}
	return out, nil
}

// SaveDraftReturn inserts r or replaces the period's draft.
func (s *Store) SaveDraftReturn(ctx context.Context, r vat.Return) (vat.Return, error) {
	err := s.atomically(ctx, func(st *state) error {
		if _, ok := st.periods[r.PeriodID]; !ok {
			return common.ErrNotFound
		}
		if existing, ok := returnOf(st, r.PeriodID); ok {
			if existing.Submitted() {
				return common.ErrConflict
			}
			delete(st.returns, existing.ID)
			r.ID = existing.ID
		}
		r.SubmittedAt = nil
		st.returns[r.ID] = r
		return nil
	})
	return r, err
}

// MarkSubmitted stamps the return once.
func (s *Store) MarkSubmitted(ctx context.Context, id uuid.UUID, at time.Time) (vat.Return, error) {
	var out vat.Return
	err := s.atomically(ctx, func(st *state) error {
		r, ok := st.returns[id]
		if !ok {
			return common.ErrNotFound
		}
		if r.Submitted() {
			return common.ErrConflict
		}
		r.SubmittedAt = &at
		st.returns[id] = r
		out = r
		return nil
	})
	return out, err
}

func returnOf(st *state, periodID uuid.UUID) (vat.Return, bool) {
	for _, r := range st.returns {
		if r.PeriodID == periodID {
			return r, true
		}
	}
	return vat.Return{}, false
}
