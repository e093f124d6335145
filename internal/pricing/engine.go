package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrQuantityOutOfRange is returned when a requested quantity falls outside
// the product's configured bounds.
var ErrQuantityOutOfRange = errors.New("quantity out of range")

// Pricing modes a product's base price can be denominated in.
const (
	ModePerKg    = "per_kg"
	ModePerGram  = "per_gram"
	ModePerPiece = "per_piece"
)

// Units accepted on cart requests.
const (
	UnitKg    = "kg"
	UnitGram  = "gram"
	UnitPiece = "piece"
)

var thousand = decimal.NewFromInt(1000)

// NormalizeQuantity expresses a requested quantity in the denomination of
// the product's pricing mode, so gram requests are checked against
// kg-denominated order bounds and vice versa. Unrecognized pairs pass
// through unchanged, mirroring the UnitPrice fallback.
func NormalizeQuantity(qty decimal.Decimal, unit, mode string) decimal.Decimal {
	switch mode {
	case ModePerKg:
		if unit == UnitGram {
			return qty.Div(thousand)
		}
	case ModePerGram:
		if unit == UnitKg {
			return qty.Mul(thousand)
		}
	}
	return qty
}

// ValidateQuantity enforces a product's min/max order bounds. The max bound
// only applies when set to a positive value.
func ValidateQuantity(qty, min, max decimal.Decimal) error {
	if qty.LessThan(min) {
		return ErrQuantityOutOfRange
	}
	if max.IsPositive() && qty.GreaterThan(max) {
		return ErrQuantityOutOfRange
	}
	return nil
}

// UnitPrice converts a requested quantity/unit pair into a price using the
// product's base price and pricing mode. The function is total: an
// unrecognized (unit, mode) pair falls back to straight multiplication
// rather than failing.
func UnitPrice(basePrice, qty decimal.Decimal, unit, mode string) decimal.Decimal {
	switch mode {
	case ModePerKg:
		if unit == UnitGram {
			return basePrice.Mul(qty).Div(thousand)
		}
		return basePrice.Mul(qty)
	case ModePerGram:
		if unit == UnitKg {
			return basePrice.Mul(qty).Mul(thousand)
		}
		return basePrice.Mul(qty)
	default:
		return basePrice.Mul(qty)
	}
}

// ApplyDiscount reduces a price by the given percentage. Percentages are
// clamped to [0, 100]; zero leaves the price untouched.
func ApplyDiscount(price decimal.Decimal, percent decimal.Decimal) decimal.Decimal {
	if !percent.IsPositive() {
		return price
	}
	hundred := decimal.NewFromInt(100)
	if percent.GreaterThan(hundred) {
		percent = hundred
	}
	return price.Mul(hundred.Sub(percent)).Div(hundred)
}

// LinePrice runs the full quantity→price pipeline for a single cart line.
func LinePrice(basePrice, qty decimal.Decimal, unit, mode string, discountPercent decimal.Decimal) decimal.Decimal {
	return ApplyDiscount(UnitPrice(basePrice, qty, unit, mode), discountPercent)
}

// Summary aggregates computed checkout components.
type Summary struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Delivery decimal.Decimal
	Total    decimal.Decimal
}

// Compute calculates checkout totals. The coupon discount is capped at the
// subtotal so the total never goes negative.
func Compute(lineTotals []decimal.Decimal, couponDiscount, deliveryFee decimal.Decimal) Summary {
	subtotal := decimal.Zero
	for _, lt := range lineTotals {
		if lt.IsNegative() {
			continue
		}
		subtotal = subtotal.Add(lt)
	}
	if couponDiscount.GreaterThan(subtotal) {
		couponDiscount = subtotal
	}
	if couponDiscount.IsNegative() {
		couponDiscount = decimal.Zero
	}
	if deliveryFee.IsNegative() {
		deliveryFee = decimal.Zero
	}
	total := subtotal.Sub(couponDiscount).Add(deliveryFee)
	return Summary{
		Subtotal: subtotal,
		Discount: couponDiscount,
		Delivery: deliveryFee,
		Total:    total,
	}
}
