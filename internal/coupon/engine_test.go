package coupon

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func TestValidateExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	r := Rule{Code: "SAVE10", ExpiresAt: now.Add(-time.Hour)}
	if err := r.Validate(now, dec("10000")); !errors.Is(err, ErrCouponExpired) {
		t.Fatalf("expected ErrCouponExpired, got %v", err)
	}
}

func TestValidateExhausted(t *testing.T) {
	r := Rule{Code: "SAVE10", UsageLimit: 5, UsageCount: 5}
	if err := r.Validate(time.Now(), dec("10000")); !errors.Is(err, ErrCouponExhausted) {
		t.Fatalf("expected ErrCouponExhausted, got %v", err)
	}
}

func TestValidateBelowMinimum(t *testing.T) {
	r := Rule{Code: "SAVE10", MinSpend: dec("5000")}
	if err := r.Validate(time.Now(), dec("4999")); !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("expected ErrBelowMinimum, got %v", err)
	}
	if err := r.Validate(time.Now(), dec("5000")); err != nil {
		t.Fatalf("total at minimum should pass, got %v", err)
	}
}

func TestComputeFixedCapped(t *testing.T) {
	r := Rule{Type: TypeFixedCart, Amount: dec("3000")}
	if got := r.Compute(dec("2000")); !got.Equal(dec("2000")) {
		t.Fatalf("fixed discount must cap at cart total, got %s", got)
	}
	if got := r.Compute(dec("10000")); !got.Equal(dec("3000")) {
		t.Fatalf("expected 3000, got %s", got)
	}
}

func TestComputePercentageWithCap(t *testing.T) {
	r := Rule{Type: TypePercentage, Amount: dec("10"), MaxAmount: dec("1500")}
	if got := r.Compute(dec("10000")); !got.Equal(dec("1000")) {
		t.Fatalf("expected 1000, got %s", got)
	}
	if got := r.Compute(dec("50000")); !got.Equal(dec("1500")) {
		t.Fatalf("percentage discount must cap at max amount, got %s", got)
	}
}

func TestEligibleTotalScoping(t *testing.T) {
	beef := "11111111-1111-1111-1111-111111111111"
	goat := "22222222-2222-2222-2222-222222222222"
	items := []Item{
		{ProductID: beef, LineTotal: dec("8500")},
		{ProductID: goat, LineTotal: dec("6000")},
	}

	unscoped := Rule{}
	if got := EligibleTotal(items, unscoped); !got.Equal(dec("14500")) {
		t.Fatalf("unscoped rule covers everything, got %s", got)
	}

	included := Rule{IncludeProducts: []string{beef}}
	if got := EligibleTotal(items, included); !got.Equal(dec("8500")) {
		t.Fatalf("include list restricts eligibility, got %s", got)
	}

	excluded := Rule{ExcludeProducts: []string{goat}}
	if got := EligibleTotal(items, excluded); !got.Equal(dec("8500")) {
		t.Fatalf("exclude list removes products, got %s", got)
	}
}

func TestSaveTenScenario(t *testing.T) {
	// SAVE10: 10% off a 25500 cart, capped at 2000
	r := Rule{Code: "SAVE10", Type: TypePercentage, Amount: dec("10"), MaxAmount: dec("2000")}
	total := dec("25500")
	if err := r.Validate(time.Now(), total); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if got := r.Compute(total); !got.Equal(dec("2000")) {
		t.Fatalf("expected capped 2000, got %s", got)
	}
}
