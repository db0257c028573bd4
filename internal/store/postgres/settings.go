package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/settings"
)

const settingsColumns = `id, standard_vat_rate::text, service_charge_rate::text, currency_code, currency_symbol,
company_name, company_address, vat_number, company_number, updated_at`

func scanSettings(row pgx.Row) (settings.AccountingSettings, error) {
	var (
		out     settings.AccountingSettings
		vat, sc string
	)
	if err := row.Scan(&out.ID, &vat, &sc, &out.CurrencyCode, &out.CurrencySymbol,
		&out.CompanyName, &out.CompanyAddress, &out.VATNumber, &out.CompanyNumber, &out.UpdatedAt); err != nil {
		return settings.AccountingSettings{}, mapErr(err)
	}
	if err := parseNumerics(numeric{vat, &out.StandardVATRate}, numeric{sc, &out.ServiceChargeRate}); err != nil {
		return settings.AccountingSettings{}, err
	}
	return out, nil
}

// GetSettings returns the singleton.
func (s *Store) GetSettings(ctx context.Context) (settings.AccountingSettings, error) {
	if err := s.ready(); err != nil {
		return settings.AccountingSettings{}, err
	}
	return scanSettings(s.Pool.QueryRow(ctx, `SELECT `+settingsColumns+` FROM accounting_settings LIMIT 1`))
}

// CreateSettings inserts in unless the singleton exists and returns the stored row.
func (s *Store) CreateSettings(ctx context.Context, in settings.AccountingSettings) (settings.AccountingSettings, error) {
	if err := s.ready(); err != nil {
		return settings.AccountingSettings{}, err
	}
	_, err := s.Pool.Exec(ctx, `INSERT INTO accounting_settings
(id, standard_vat_rate, service_charge_rate, currency_code, currency_symbol, company_name,
 company_address, vat_number, company_number, updated_at)
VALUES ($1, $2::numeric, $3::numeric, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (singleton) DO NOTHING`,
		in.ID, in.StandardVATRate.String(), in.ServiceChargeRate.String(), in.CurrencyCode, in.CurrencySymbol,
		in.CompanyName, in.CompanyAddress, in.VATNumber, in.CompanyNumber, in.UpdatedAt)
	if err != nil {
		return settings.AccountingSettings{}, mapErr(err)
	}
	return s.GetSettings(ctx)
}

// UpdateSettings applies mutate to the locked singleton row.
func (s *Store) UpdateSettings(ctx context.Context, mutate func(settings.AccountingSettings) (settings.AccountingSettings, error)) (settings.AccountingSettings, error) {
	var out settings.AccountingSettings
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		current, err := scanSettings(tx.QueryRow(ctx, `SELECT `+settingsColumns+` FROM accounting_settings LIMIT 1 FOR UPDATE`))
		if err != nil {
			return err
		}
		next, err := mutate(current)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE accounting_settings SET
standard_vat_rate = $2::numeric, service_charge_rate = $3::numeric, currency_code = $4, currency_symbol = $5,
company_name = $6, company_address = $7, vat_number = $8, company_number = $9, updated_at = $10
WHERE id = $1`,
			current.ID, next.StandardVATRate.String(), next.ServiceChargeRate.String(), next.CurrencyCode, next.CurrencySymbol,
			next.CompanyName, next.CompanyAddress, next.VATNumber, next.CompanyNumber, next.UpdatedAt)
		if err != nil {
			return mapErr(err)
		}
		next.ID = current.ID
		out = next
		return nil
	})
	return out, err
}
