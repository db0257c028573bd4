package settings

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/events"
)

// Service provides get-or-create and patch semantics over the settings store.
type Service struct {
	Store    Store
	Defaults Defaults
	Events   events.Emitter
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// GetOrCreate returns the settings record, creating it from defaults when absent.
// Callers take the returned value as their snapshot for one logical operation.
func (s *Service) GetOrCreate(ctx context.Context) (AccountingSettings, error) {
	if s == nil || s.Store == nil {
		return AccountingSettings{}, errors.New("settings service not configured")
	}
	current, err := s.Store.GetSettings(ctx)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return AccountingSettings{}, common.Internal("load settings", err)
	}
	created, err := s.Store.CreateSettings(ctx, s.Defaults.build(s.now()))
	if err != nil {
		return AccountingSettings{}, common.Internal("create settings", err)
	}
	return created, nil
}

// Update applies patch to the stored settings and returns the result.
func (s *Service) Update(ctx context.Context, patch Patch) (AccountingSettings, error) {
	ctx, span := otel.Tracer("settings").Start(ctx, "settings.Update")
	defer span.End()

	if _, err := s.GetOrCreate(ctx); err != nil {
		return AccountingSettings{}, err
	}
	if patch.Empty() {
		return s.GetOrCreate(ctx)
	}
	updated, err := s.Store.UpdateSettings(ctx, func(current AccountingSettings) (AccountingSettings, error) {
		next, err := patch.Apply(current)
		if err != nil {
			return current, err
		}
		next.UpdatedAt = s.now()
		return next, nil
	})
	if err != nil {
		return AccountingSettings{}, common.FromStore("update settings", "accounting settings", err)
	}
	if s.Events != nil {
		if _, err := s.Events.Emit(ctx, events.TopicSettingsUpdated, updated.ID, toDTO(updated)); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("emit settings.updated")
		}
	}
	return updated, nil
}
