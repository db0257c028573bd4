package memory

import (
	"context"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/settings"
)

// GetSettings returns the singleton.
func (s *Store) GetSettings(ctx context.Context) (settings.AccountingSettings, error) {
	var (
		out settings.AccountingSettings
		err error
	)
	s.read(func(st *state) {
		if st.settings == nil {
			err = common.ErrNotFound
			return
		}
		out = *st.settings
	})
	return out, err
}

// CreateSettings stores in unless a record exists, and returns the stored record.
func (s *Store) CreateSettings(ctx context.Context, in settings.AccountingSettings) (settings.AccountingSettings, error) {
	var out settings.AccountingSettings
	err := s.atomically(ctx, func(st *state) error {
		if st.settings == nil {
			cp := in
			st.settings = &cp
		}
		out = *st.settings
		return nil
	})
	return out, err
}

// UpdateSettings applies mutate to the stored record.
func (s *Store) UpdateSettings(ctx context.Context, mutate func(settings.AccountingSettings) (settings.AccountingSettings, error)) (settings.AccountingSettings, error) {
	var out settings.AccountingSettings
	err := s.atomically(ctx, func(st *state) error {
		if st.settings == nil {
			return common.ErrNotFound
		}
		next, err := mutate(*st.settings)
		if err != nil {
			return err
		}
		next.ID = st.settings.ID
		st.settings = &next
		out = next
		return nil
	})
	return out, err
}
