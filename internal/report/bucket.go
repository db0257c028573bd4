package report

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/pricing"
)

// Totals are the summed figures of one bucket or one window. Values are
// accumulated unrounded and rounded once by Rounded.
type Totals struct {
	Orders           int             `json:"orders"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	VAT              decimal.Decimal `json:"vat"`
	ServiceCharge    decimal.Decimal `json:"serviceCharge"`
	Discount         decimal.Decimal `json:"discount"`
	Total            decimal.Decimal `json:"total"`
	PaymentsReceived decimal.Decimal `json:"paymentsReceived"`
}

func (t *Totals) add(o OrderRow) {
	t.Orders++
	t.Subtotal = t.Subtotal.Add(o.Subtotal)
	t.VAT = t.VAT.Add(o.VATAmount)
	t.ServiceCharge = t.ServiceCharge.Add(o.ServiceCharge)
	t.Discount = t.Discount.Add(o.Discount)
	t.Total = t.Total.Add(o.Total)
	t.PaymentsReceived = t.PaymentsReceived.Add(o.PaymentsReceived)
}

// Rounded returns t with every amount rounded to two decimals.
func (t Totals) Rounded() Totals {
	return Totals{
		Orders:           t.Orders,
		Subtotal:         pricing.Round2(t.Subtotal),
		VAT:              pricing.Round2(t.VAT),
		ServiceCharge:    pricing.Round2(t.ServiceCharge),
		Discount:         pricing.Round2(t.Discount),
		Total:            pricing.Round2(t.Total),
		PaymentsReceived: pricing.Round2(t.PaymentsReceived),
	}
}

// MarshalJSON renders amounts as fixed two-decimal strings.
func (t Totals) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Orders           int    `json:"orders"`
		Subtotal         string `json:"subtotal"`
		VAT              string `json:"vat"`
		ServiceCharge    string `json:"serviceCharge"`
		Discount         string `json:"discount"`
		Total            string `json:"total"`
		PaymentsReceived string `json:"paymentsReceived"`
	}{
		t.Orders,
		t.Subtotal.StringFixed(2),
		t.VAT.StringFixed(2),
		t.ServiceCharge.StringFixed(2),
		t.Discount.StringFixed(2),
		t.Total.StringFixed(2),
		t.PaymentsReceived.StringFixed(2),
	})
}

// Bucket is one keyed row of a breakdown. Key is a YYYY-MM-DD date.
type Bucket struct {
	Key    string `json:"key"`
	Totals Totals `json:"totals"`
}

// accumulator keeps raw totals per key and emits them sorted by key.
type accumulator struct {
	buckets map[string]*Totals
}

func newAccumulator() *accumulator {
	return &accumulator{buckets: map[string]*Totals{}}
}

func (a *accumulator) add(key string, o OrderRow) {
	t, ok := a.buckets[key]
	if !ok {
		t = &Totals{}
		a.buckets[key] = t
	}
	t.add(o)
}

func (a *accumulator) sorted() []Bucket {
	keys := make([]string, 0, len(a.buckets))
	for k := range a.buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Bucket, 0, len(keys))
	for _, k := range keys {
		out = append(out, Bucket{Key: k, Totals: a.buckets[k].Rounded()})
	}
	return out
}

// PurchaseTotals are summed purchase figures.
type PurchaseTotals struct {
	Purchases int             `json:"purchases"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	VAT       decimal.Decimal `json:"vat"`
	Total     decimal.Decimal `json:"total"`
}

func (t *PurchaseTotals) add(p PurchaseRow) {
	t.Purchases++
	t.Subtotal = t.Subtotal.Add(p.Subtotal)
	t.VAT = t.VAT.Add(p.VATAmount)
	t.Total = t.Total.Add(p.Total)
}

// Rounded returns t with every amount rounded to two decimals.
func (t PurchaseTotals) Rounded() PurchaseTotals {
	return PurchaseTotals{
		Purchases: t.Purchases,
		Subtotal:  pricing.Round2(t.Subtotal),
		VAT:       pricing.Round2(t.VAT),
		Total:     pricing.Round2(t.Total),
	}
}

// MarshalJSON renders amounts as fixed two-decimal strings.
func (t PurchaseTotals) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Purchases int    `json:"purchases"`
		Subtotal  string `json:"subtotal"`
		VAT       string `json:"vat"`
		Total     string `json:"total"`
	}{t.Purchases, t.Subtotal.StringFixed(2), t.VAT.StringFixed(2), t.Total.StringFixed(2)})
}

// PurchaseBucket is one keyed row of a purchase breakdown. Key is a date or a
// category name.
type PurchaseBucket struct {
	Key    string         `json:"key"`
	Totals PurchaseTotals `json:"totals"`
}

type purchaseAccumulator struct {
	buckets map[string]*PurchaseTotals
}

func newPurchaseAccumulator() *purchaseAccumulator {
	return &purchaseAccumulator{buckets: map[string]*PurchaseTotals{}}
}

func (a *purchaseAccumulator) add(key string, p PurchaseRow) {
	t, ok := a.buckets[key]
	if !ok {
		t = &PurchaseTotals{}
		a.buckets[key] = t
	}
	t.add(p)
}

func (a *purchaseAccumulator) sorted() []PurchaseBucket {
	keys := make([]string, 0, len(a.buckets))
	for k := range a.buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]PurchaseBucket, 0, len(keys))
	for _, k := range keys {
		out = append(out, PurchaseBucket{Key: k, Totals: a.buckets[k].Rounded()})
	}
	return out
}

// DayKey is the calendar date of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.DateOnly)
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}

// WeekStart returns local midnight of the Sunday on or before t.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	d := StartOfDay(t, loc)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// WeekKey is the date of the week start containing t.
func WeekKey(t time.Time, loc *time.Location) string {
	return WeekStart(t, loc).Format(time.DateOnly)
}

// MonthKey is the first day of the month containing t.
func MonthKey(t time.Time, loc *time.Location) string {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), 1, 0, 0, 0, 0, loc).Format(time.DateOnly)
}
