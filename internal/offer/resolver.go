package offer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/gbdelivering/backend-butchery/internal/repo"
)

type offerSource interface {
	ActiveForProduct(ctx context.Context, productID pgtype.UUID, now time.Time) ([]repo.SpecialOffer, error)
}

// Resolver projects active special offers onto products. Discounts are never
// written to product rows; callers ask for the effective percentage at read
// time.
type Resolver struct {
	Offers offerSource
	Now    func() time.Time
}

// EffectiveDiscount returns the discount percentage that applies to the
// product right now: the larger of the product's own discount and the best
// active offer covering it. Among offers, the largest percentage wins; ties
// go to the most recently started offer.
func (r Resolver) EffectiveDiscount(ctx context.Context, product repo.Product) (decimal.Decimal, error) {
	best := product.DiscountPercent
	if r.Offers == nil {
		return best, nil
	}
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	offers, err := r.Offers.ActiveForProduct(ctx, product.ID, now)
	if err != nil {
		return decimal.Zero, err
	}
	// offers arrive ordered by starts_at descending, so a strict comparison
	// resolves ties to the most recent start.
	for _, o := range offers {
		if o.DiscountPercent.GreaterThan(best) {
			best = o.DiscountPercent
		}
	}
	return best, nil
}
