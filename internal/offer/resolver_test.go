package offer_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gbdelivering/backend-butchery/internal/offer"
	"github.com/gbdelivering/backend-butchery/internal/repo"
)

type stubOffers struct {
	offers []repo.SpecialOffer
}

func (s stubOffers) ActiveForProduct(context.Context, pgtype.UUID, time.Time) ([]repo.SpecialOffer, error) {
	return s.offers, nil
}

func pct(v string) decimal.Decimal {
	d, _ := decimal.NewFromString(v)
	return d
}

func TestEffectiveDiscountPrefersLargestOffer(t *testing.T) {
	product := repo.Product{ID: repo.NewUUID(), DiscountPercent: pct("5")}
	resolver := offer.Resolver{Offers: stubOffers{offers: []repo.SpecialOffer{
		{DiscountPercent: pct("10")},
		{DiscountPercent: pct("25")},
	}}}

	got, err := resolver.EffectiveDiscount(context.Background(), product)
	require.NoError(t, err)
	require.True(t, got.Equal(pct("25")), "got %s", got)
}

func TestEffectiveDiscountFallsBackToProduct(t *testing.T) {
	product := repo.Product{ID: repo.NewUUID(), DiscountPercent: pct("15")}
	resolver := offer.Resolver{Offers: stubOffers{offers: []repo.SpecialOffer{
		{DiscountPercent: pct("10")},
	}}}

	got, err := resolver.EffectiveDiscount(context.Background(), product)
	require.NoError(t, err)
	require.True(t, got.Equal(pct("15")), "got %s", got)
}

func TestEffectiveDiscountNoOffers(t *testing.T) {
	product := repo.Product{ID: repo.NewUUID()}
	resolver := offer.Resolver{Offers: stubOffers{}}

	got, err := resolver.EffectiveDiscount(context.Background(), product)
	require.NoError(t, err)
	require.True(t, got.IsZero())
}
