// Package settings owns the accounting settings singleton: VAT and service
// charge rates, currency and the company identity printed on reports.
package settings

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/common"
)

// AccountingSettings is the singleton configuration record.
type AccountingSettings struct {
	ID                uuid.UUID
	StandardVATRate   decimal.Decimal
	ServiceChargeRate decimal.Decimal
	CurrencyCode      string
	CurrencySymbol    string
	CompanyName       string
	CompanyAddress    *string
	VATNumber         *string
	CompanyNumber     *string
	UpdatedAt         time.Time
}

// Defaults seeds the record when none exists.
type Defaults struct {
	VATRate           decimal.Decimal
	ServiceChargeRate decimal.Decimal
	CurrencyCode      string
	CurrencySymbol    string
	CompanyName       string
}

// StandardDefaults are used when no configuration overrides them.
func StandardDefaults() Defaults {
	return Defaults{
		VATRate:           decimal.NewFromInt(20),
		ServiceChargeRate: decimal.NewFromInt(10),
		CurrencyCode:      "GBP",
		CurrencySymbol:    "£",
		CompanyName:       "My Restaurant",
	}
}

func (d Defaults) build(now time.Time) AccountingSettings {
	std := StandardDefaults()
	if d.CurrencyCode == "" && d.VATRate.IsZero() && d.ServiceChargeRate.IsZero() {
		d = std
	}
	if d.CurrencyCode == "" {
		d.CurrencyCode = std.CurrencyCode
	}
	if d.CurrencySymbol == "" {
		d.CurrencySymbol = std.CurrencySymbol
	}
	if d.CompanyName == "" {
		d.CompanyName = std.CompanyName
	}
	return AccountingSettings{
		ID:                uuid.New(),
		StandardVATRate:   d.VATRate,
		ServiceChargeRate: d.ServiceChargeRate,
		CurrencyCode:      d.CurrencyCode,
		CurrencySymbol:    d.CurrencySymbol,
		CompanyName:       d.CompanyName,
		UpdatedAt:         now,
	}
}

// Patch carries every recognised attribute as optional. Nil means unchanged.
// For the optional text fields an empty string clears the value.
type Patch struct {
	StandardVATRate   *decimal.Decimal `json:"standardVatRate" validate:"omitempty,gte=0,lte=100"`
	ServiceChargeRate *decimal.Decimal `json:"serviceChargeRate" validate:"omitempty,gte=0,lte=100"`
	CurrencyCode      *string          `json:"currencyCode" validate:"omitempty,len=3"`
	CurrencySymbol    *string          `json:"currencySymbol" validate:"omitempty,min=1"`
	CompanyName       *string          `json:"companyName" validate:"omitempty,min=1"`
	CompanyAddress    *string          `json:"companyAddress"`
	VATNumber         *string          `json:"vatNumber"`
	CompanyNumber     *string          `json:"companyNumber"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.StandardVATRate == nil && p.ServiceChargeRate == nil && p.CurrencyCode == nil &&
		p.CurrencySymbol == nil && p.CompanyName == nil && p.CompanyAddress == nil &&
		p.VATNumber == nil && p.CompanyNumber == nil
}

// Apply merges the patch into s. Each field is considered exactly once.
func (p Patch) Apply(s AccountingSettings) (AccountingSettings, error) {
	if err := common.Validate(p); err != nil {
		return s, err
	}
	if err := common.AtMostCents(map[string]*decimal.Decimal{
		"standardVatRate":   p.StandardVATRate,
		"serviceChargeRate": p.ServiceChargeRate,
	}); err != nil {
		return s, err
	}
	if p.CompanyName != nil && strings.TrimSpace(*p.CompanyName) == "" {
		return s, common.Validation("invalid input", map[string]string{"companyName": "must not be blank"})
	}
	if p.StandardVATRate != nil {
		s.StandardVATRate = *p.StandardVATRate
	}
	if p.ServiceChargeRate != nil {
		s.ServiceChargeRate = *p.ServiceChargeRate
	}
	if p.CurrencyCode != nil {
		s.CurrencyCode = strings.ToUpper(strings.TrimSpace(*p.CurrencyCode))
	}
	if p.CurrencySymbol != nil {
		s.CurrencySymbol = strings.TrimSpace(*p.CurrencySymbol)
	}
	if p.CompanyName != nil {
		s.CompanyName = strings.TrimSpace(*p.CompanyName)
	}
	if p.CompanyAddress != nil {
		s.CompanyAddress = nullable(*p.CompanyAddress)
	}
	if p.VATNumber != nil {
		s.VATNumber = nullable(*p.VATNumber)
	}
	if p.CompanyNumber != nil {
		s.CompanyNumber = nullable(*p.CompanyNumber)
	}
	return s, nil
}

func nullable(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// Store persists the singleton.
type Store interface {
	// GetSettings returns common.ErrNotFound when the record has not been created.
	GetSettings(ctx context.Context) (AccountingSettings, error)
	// CreateSettings inserts s unless a record exists and returns whichever record is stored.
	CreateSettings(ctx context.Context, s AccountingSettings) (AccountingSettings, error)
	// UpdateSettings applies mutate to the stored record atomically.
	UpdateSettings(ctx context.Context, mutate func(AccountingSettings) (AccountingSettings, error)) (AccountingSettings, error)
}
