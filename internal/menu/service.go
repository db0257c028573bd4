package menu

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/events"
)

// Service manages menu items.
type Service struct {
	Store  Store
	Events events.Emitter
	Now    func() time.Time
}

// CreateInput is the payload for a new menu item.
type CreateInput struct {
	Name      string          `json:"name" validate:"required"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price" validate:"gte=0"`
	Available *bool           `json:"available"`
}

// Patch changes a menu item. Nil fields are unchanged.
type Patch struct {
	Name      *string          `json:"name" validate:"omitempty,min=1"`
	Category  *string          `json:"category"`
	Price     *decimal.Decimal `json:"price" validate:"omitempty,gte=0"`
	Available *bool            `json:"available"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil {
		return errors.New("menu service not configured")
	}
	return nil
}

// Create adds a menu item.
func (s *Service) Create(ctx context.Context, in CreateInput) (Item, error) {
	if err := s.ready(); err != nil {
		return Item{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := common.Validate(in); err != nil {
		return Item{}, err
	}
	now := s.now()
	item := Item{
		ID:        uuid.New(),
		Name:      in.Name,
		Category:  strings.TrimSpace(in.Category),
		Price:     in.Price.Round(2),
		Available: in.Available == nil || *in.Available,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := s.Store.CreateMenuItem(ctx, item)
	if err != nil {
		return Item{}, common.FromStore("create menu item", "menu item", err)
	}
	s.emit(ctx, created.ID, map[string]any{"action": "created"})
	return created, nil
}

// Get returns one item.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Item, error) {
	if err := s.ready(); err != nil {
		return Item{}, err
	}
	item, err := s.Store.GetMenuItem(ctx, id)
	if err != nil {
		return Item{}, common.FromStore("get menu item", "menu item", err)
	}
	return item, nil
}

// List returns menu items ordered by category then name.
func (s *Service) List(ctx context.Context, includeUnavailable bool) ([]Item, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	items, err := s.Store.ListMenuItems(ctx, includeUnavailable)
	if err != nil {
		return nil, common.Internal("list menu items", err)
	}
	return items, nil
}

// Update applies patch. Existing order items keep their snapshotted price.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (Item, error) {
	if err := s.ready(); err != nil {
		return Item{}, err
	}
	if err := common.Validate(patch); err != nil {
		return Item{}, err
	}
	updated, err := s.Store.UpdateMenuItem(ctx, id, func(item Item) (Item, error) {
		if patch.Name != nil {
			item.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Category != nil {
			item.Category = strings.TrimSpace(*patch.Category)
		}
		if patch.Price != nil {
			item.Price = patch.Price.Round(2)
		}
		if patch.Available != nil {
			item.Available = *patch.Available
		}
		item.UpdatedAt = s.now()
		return item, nil
	})
	if err != nil {
		return Item{}, common.FromStore("update menu item", "menu item", err)
	}
	s.emit(ctx, id, map[string]any{"action": "updated"})
	return updated, nil
}

// Delete removes the item or, when orders reference it, marks it unavailable.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (DeleteResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	res, err := s.Store.DeleteMenuItem(ctx, id, s.now())
	if err != nil {
		return nil, common.FromStore("delete menu item", "menu item", err)
	}
	switch res.(type) {
	case Deleted:
		s.emit(ctx, id, map[string]any{"action": "deleted"})
	case MarkedUnavailable:
		s.emit(ctx, id, map[string]any{"action": "marked_unavailable"})
	}
	return res, nil
}

func (s *Service) emit(ctx context.Context, id uuid.UUID, payload any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, events.TopicMenuItemChanged, id, payload); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("menu_item_id", id.String()).Msg("emit menu event")
	}
}
