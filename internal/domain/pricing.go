package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountKind selects how a discount value is interpreted
type DiscountKind string

const (
	DiscountPercent     DiscountKind = "PERCENT"
	DiscountFixedAmount DiscountKind = "FIXED_AMOUNT"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// round2 rounds half-up to 2 fractional digits; all published amounts go
// through it.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// RentalDays returns the whole-day rental span, rounding any fractional
// remainder up. Always at least 1.
func RentalDays(pickup, dropoff time.Time) int {
	delta := dropoff.Sub(pickup)
	if delta <= 0 {
		return 1
	}
	days := int(delta / (24 * time.Hour))
	if delta%(24*time.Hour) > 0 {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}

// PublicPrice applies a percentage markup to the supplier cost
func PublicPrice(supplierCost, markupPct decimal.Decimal) decimal.Decimal {
	multiplier := one.Add(markupPct.Div(hundred))
	return round2(supplierCost.Mul(multiplier))
}

// Commission is the margin between the public price and the supplier cost,
// floored at zero.
func Commission(publicPrice, supplierCost decimal.Decimal) decimal.Decimal {
	c := publicPrice.Sub(supplierCost)
	if c.IsNegative() {
		return decimal.Zero
	}
	return c
}

// ApplyDiscount applies a PERCENT or FIXED_AMOUNT discount, clamped by the
// optional maximum and by the price itself. Returns the final price and the
// discount actually applied, both rounded.
func ApplyDiscount(price decimal.Decimal, kind DiscountKind, value decimal.Decimal, max *decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	var discount decimal.Decimal
	switch kind {
	case DiscountPercent:
		discount = price.Mul(value.Div(hundred))
	case DiscountFixedAmount:
		discount = value
	default:
		return decimal.Zero, decimal.Zero, ErrInvalidDiscountKind
	}

	if max != nil && discount.GreaterThan(*max) {
		discount = *max
	}
	if discount.GreaterThan(price) {
		discount = price
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	return round2(price.Sub(discount)), round2(discount), nil
}

// Taxes computes the tax amount for a base price at the given percentage rate
func Taxes(base, ratePct decimal.Decimal) decimal.Decimal {
	return round2(base.Mul(ratePct.Div(hundred)))
}

// Extra is a priced add-on line (unit price × quantity)
type Extra struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// TotalWithExtras sums the base price and all extras
func TotalWithExtras(base decimal.Decimal, extras []Extra) decimal.Decimal {
	total := base
	for _, e := range extras {
		total = total.Add(e.UnitPrice.Mul(decimal.NewFromInt(int64(e.Quantity))))
	}
	return round2(total)
}
