package pricing

import "github.com/shopspring/decimal"

// Money is a currency amount. Persisted values carry two decimal places.
type Money = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// Line is a priced line item used for subtotal calculation.
type Line struct {
	Quantity  int
	UnitPrice Money
}

// Totals holds the computed monetary fields of an order.
type Totals struct {
	Subtotal      Money
	VATRate       Money
	VATAmount     Money
	ServiceCharge Money
	Discount      Money
	Total         Money
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v Money) Money {
	return v.Round(2)
}

// VAT returns the VAT due on subtotal at ratePercent (20 means 20%).
func VAT(subtotal, ratePercent Money) Money {
	return Round2(subtotal.Mul(ratePercent).Div(hundred))
}

// TotalWithVAT returns subtotal plus its VAT.
func TotalWithVAT(subtotal, ratePercent Money) Money {
	return subtotal.Add(VAT(subtotal, ratePercent))
}

// ServiceCharge returns ratePercent of subtotal.
func ServiceCharge(subtotal, ratePercent Money) Money {
	return Round2(subtotal.Mul(ratePercent).Div(hundred))
}

// OrderTotal returns the payable total, never below zero.
func OrderTotal(subtotal, ratePercent, serviceCharge, discount Money) Money {
	total := Round2(TotalWithVAT(subtotal, ratePercent).Add(serviceCharge).Sub(discount))
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// Subtotal sums quantity times unit price across lines and rounds once.
func Subtotal(lines []Line) Money {
	sum := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return Round2(sum)
}

// Compute derives VAT and total from a subtotal and the order's rates.
func Compute(subtotal, vatRate, serviceCharge, discount Money) Totals {
	subtotal = Round2(subtotal)
	return Totals{
		Subtotal:      subtotal,
		VATRate:       vatRate,
		VATAmount:     VAT(subtotal, vatRate),
		ServiceCharge: Round2(serviceCharge),
		Discount:      Round2(discount),
		Total:         OrderTotal(subtotal, vatRate, Round2(serviceCharge), Round2(discount)),
	}
}

// Equal reports whether two totals carry the same amounts.
func (t Totals) Equal(o Totals) bool {
	return t.Subtotal.Equal(o.Subtotal) &&
		t.VATRate.Equal(o.VATRate) &&
		t.VATAmount.Equal(o.VATAmount) &&
		t.ServiceCharge.Equal(o.ServiceCharge) &&
		t.Discount.Equal(o.Discount) &&
		t.Total.Equal(o.Total)
}

// MustParse parses a decimal literal and panics on malformed input. Intended for constants and tests.
func MustParse(s string) Money {
	return decimal.RequireFromString(s)
}
