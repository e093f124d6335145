package coupon

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrCouponNotFound is returned when no active coupon matches the code.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrCouponExpired is returned when the coupon's expiry has passed.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponExhausted indicates the usage limit has been reached.
	ErrCouponExhausted = errors.New("coupon usage limit reached")
	// ErrBelowMinimum indicates the cart total does not meet the minimum spend.
	ErrBelowMinimum = errors.New("cart total below coupon minimum")
)

// Discount kinds.
const (
	TypeFixedCart  = "fixed_cart"
	TypePercentage = "percentage"
)

// Rule captures the runtime constraints of a coupon. Zero-valued MinSpend,
// MaxAmount, UsageLimit and ExpiresAt mean "not set".
type Rule struct {
	Code            string
	Type            string
	Amount          decimal.Decimal
	MinSpend        decimal.Decimal
	MaxAmount       decimal.Decimal
	ExpiresAt       time.Time
	UsageLimit      int32
	UsageCount      int32
	IncludeProducts []string
	ExcludeProducts []string
}

// Item is a cart line participating in coupon calculation.
type Item struct {
	ProductID string
	LineTotal decimal.Decimal
}

// Validate checks the rule against the clock and the cart total.
func (r Rule) Validate(now time.Time, cartTotal decimal.Decimal) error {
	if !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt) {
		return ErrCouponExpired
	}
	if r.UsageLimit > 0 && r.UsageCount >= r.UsageLimit {
		return ErrCouponExhausted
	}
	if r.MinSpend.IsPositive() && cartTotal.LessThan(r.MinSpend) {
		return ErrBelowMinimum
	}
	return nil
}

// AppliesTo reports whether a product participates in the discount. An
// include list restricts eligibility to its members; the exclude list always
// removes products.
func (r Rule) AppliesTo(productID string) bool {
	for _, excluded := range r.ExcludeProducts {
		if excluded == productID {
			return false
		}
	}
	if len(r.IncludeProducts) == 0 {
		return true
	}
	for _, included := range r.IncludeProducts {
		if included == productID {
			return true
		}
	}
	return false
}

// EligibleTotal sums the line totals the rule may discount.
func EligibleTotal(items []Item, r Rule) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		if !it.LineTotal.IsPositive() {
			continue
		}
		if r.AppliesTo(it.ProductID) {
			total = total.Add(it.LineTotal)
		}
	}
	return total
}

// Compute returns the discount amount for the eligible total. Fixed
// discounts are capped at the eligible total; percentage discounts are
// capped at MaxAmount when set.
func (r Rule) Compute(eligibleTotal decimal.Decimal) decimal.Decimal {
	if !eligibleTotal.IsPositive() {
		return decimal.Zero
	}
	switch r.Type {
	case TypeFixedCart:
		if r.Amount.GreaterThan(eligibleTotal) {
			return eligibleTotal
		}
		return r.Amount
	case TypePercentage:
		discount := eligibleTotal.Mul(r.Amount).Div(decimal.NewFromInt(100))
		if r.MaxAmount.IsPositive() && discount.GreaterThan(r.MaxAmount) {
			return r.MaxAmount
		}
		return discount
	default:
		return decimal.Zero
	}
}
