package purchase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/events"
	"github.com/noah-isme/backend-resto/internal/pricing"
	"github.com/noah-isme/backend-resto/internal/settings"
)

// SettingsSource supplies the default VAT rate.
type SettingsSource interface {
	GetOrCreate(ctx context.Context) (settings.AccountingSettings, error)
}

// Service records suppliers and purchases.
type Service struct {
	Store    Store
	Settings SettingsSource
	Events   events.Emitter
	Now      func() time.Time
}

// SupplierInput is the payload for a new supplier.
type SupplierInput struct {
	Name      string  `json:"name" validate:"required"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone"`
	VATNumber *string `json:"vatNumber"`
}

// CreateInput is the payload for a new purchase. VATRate defaults to the
// standard rate from settings.
type CreateInput struct {
	SupplierID uuid.UUID        `json:"supplierId"`
	Date       string           `json:"date" validate:"required,datetime=2006-01-02"`
	Category   string           `json:"category" validate:"required"`
	Subtotal   decimal.Decimal  `json:"subtotal" validate:"gte=0"`
	VATRate    *decimal.Decimal `json:"vatRate" validate:"omitempty,gte=0,lte=100"`
	Reference  *string          `json:"reference"`
	Notes      *string          `json:"notes"`
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil {
		return errors.New("purchase service not configured")
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// CreateSupplier adds a supplier.
func (s *Service) CreateSupplier(ctx context.Context, in SupplierInput) (Supplier, error) {
	if err := s.ready(); err != nil {
		return Supplier{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := common.Validate(in); err != nil {
		return Supplier{}, err
	}
	sup, err := s.Store.CreateSupplier(ctx, Supplier{
		ID:        uuid.New(),
		Name:      in.Name,
		Email:     optional(in.Email),
		Phone:     optional(in.Phone),
		VATNumber: optional(in.VATNumber),
		CreatedAt: s.now(),
	})
	if err != nil {
		return Supplier{}, common.FromStore("create supplier", "supplier", err)
	}
	return sup, nil
}

// ListSuppliers returns all suppliers by name.
func (s *Service) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	out, err := s.Store.ListSuppliers(ctx)
	if err != nil {
		return nil, common.Internal("list suppliers", err)
	}
	return out, nil
}

// Create records a purchase with its VAT computed by the pricing rules.
func (s *Service) Create(ctx context.Context, in CreateInput) (Purchase, error) {
	if err := s.ready(); err != nil {
		return Purchase{}, err
	}
	ctx, span := otel.Tracer("purchase").Start(ctx, "purchase.Create")
	defer span.End()

	in.Category = strings.TrimSpace(in.Category)
	if err := common.Validate(in); err != nil {
		return Purchase{}, err
	}
	if in.SupplierID == uuid.Nil {
		return Purchase{}, common.Validation("invalid input", map[string]string{"supplierId": "is required"})
	}
	date, err := time.Parse(time.DateOnly, in.Date)
	if err != nil {
		return Purchase{}, common.Validation("invalid input", map[string]string{"date": "must be YYYY-MM-DD"})
	}
	var rate decimal.Decimal
	if in.VATRate != nil {
		rate = *in.VATRate
	} else {
		if s.Settings == nil {
			return Purchase{}, errors.New("purchase service not configured")
		}
		snapshot, err := s.Settings.GetOrCreate(ctx)
		if err != nil {
			return Purchase{}, err
		}
		rate = snapshot.StandardVATRate
	}
	if _, err := s.Store.GetSupplier(ctx, in.SupplierID); err != nil {
		return Purchase{}, common.FromStore("get supplier", "supplier", err)
	}

	subtotal := pricing.Round2(in.Subtotal)
	vatAmount := pricing.VAT(subtotal, rate)
	p := Purchase{
		ID:         uuid.New(),
		SupplierID: in.SupplierID,
		Date:       date,
		Category:   in.Category,
		Subtotal:   subtotal,
		VATRate:    rate,
		VATAmount:  vatAmount,
		Total:      pricing.TotalWithVAT(subtotal, rate),
		Reference:  optional(in.Reference),
		Notes:      optional(in.Notes),
		CreatedAt:  s.now(),
	}
	created, err := s.Store.CreatePurchase(ctx, p)
	if err != nil {
		return Purchase{}, common.FromStore("create purchase", "supplier", err)
	}
	if s.Events != nil {
		payload := map[string]any{
			"purchaseId": created.ID.String(),
			"date":       created.Date.Format(time.DateOnly),
			"vatAmount":  created.VATAmount.StringFixed(2),
		}
		if _, err := s.Events.Emit(ctx, events.TopicPurchaseRecorded, created.ID, payload); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("purchase_id", created.ID.String()).Msg("emit purchase.recorded")
		}
	}
	return created, nil
}

// Get returns one purchase.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Purchase, error) {
	if err := s.ready(); err != nil {
		return Purchase{}, err
	}
	p, err := s.Store.GetPurchase(ctx, id)
	if err != nil {
		return Purchase{}, common.FromStore("get purchase", "purchase", err)
	}
	return p, nil
}

// List returns purchases in date order.
func (s *Service) List(ctx context.Context, f Filter) ([]Purchase, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	out, err := s.Store.ListPurchases(ctx, f)
	if err != nil {
		return nil, common.Internal("list purchases", err)
	}
	return out, nil
}

func optional(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
