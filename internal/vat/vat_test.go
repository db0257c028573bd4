package vat_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/vat"
)

func TestDue(t *testing.T) {
	cases := []struct {
		out, in, want string
		payable       bool
	}{
		{"500.00", "120.00", "380.00", true},
		{"80.00", "120.00", "-40.00", false},
		{"0.00", "0.00", "0.00", false},
	}
	for _, tc := range cases {
		got := vat.Due(decimal.RequireFromString(tc.out), decimal.RequireFromString(tc.in))
		require.Equal(t, tc.want, got.StringFixed(2))
		require.Equal(t, tc.payable, vat.Return{VATDue: got}.Payable())
	}
}

func TestNewTaxPeriod(t *testing.T) {
	p, err := vat.NewTaxPeriod(2025, 4)
	require.NoError(t, err)
	require.Equal(t, "2025-Q4", p.Label())
	require.Equal(t, "2025-10-01", p.StartDate.Format(time.DateOnly))
	require.Equal(t, "2025-12-31", p.EndDate.Format(time.DateOnly))

	from, to := p.PurchaseWindow()
	require.Equal(t, "2025-10-01", from.Format(time.DateOnly))
	require.Equal(t, "2026-01-01", to.Format(time.DateOnly))

	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	ofrom, oto := p.OrderWindow(london)
	require.Equal(t, time.Date(2025, 10, 1, 0, 0, 0, 0, london), ofrom)
	require.True(t, oto.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	_, err = vat.NewTaxPeriod(2025, 5)
	require.True(t, common.HasCode(err, common.CodeValidation))
	_, err = vat.NewTaxPeriod(0, 1)
	require.True(t, common.HasCode(err, common.CodeValidation))
}

func TestQuarterOf(t *testing.T) {
	for month, want := range map[time.Month]int{time.January: 1, time.March: 1, time.April: 2, time.September: 3, time.December: 4} {
		year, q := vat.QuarterOf(time.Date(2024, month, 15, 0, 0, 0, 0, time.UTC))
		require.Equal(t, 2024, year)
		require.Equal(t, want, q, month.String())
	}
}
