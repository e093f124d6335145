package checkout

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/gbdelivering/backend-butchery/internal/delivery"
)

// ZoneFeeQuoter adapts the delivery zone calculator to the checkout
// pipeline, keeping the fee a decimal all the way into the order total.
type ZoneFeeQuoter struct {
	Service *delivery.Service
}

var _ feeQuoter = ZoneFeeQuoter{}

func (z ZoneFeeQuoter) QuoteFee(ctx context.Context, district string, orderTotal decimal.Decimal) (Quote, error) {
	q, err := z.Service.Fee(ctx, district, orderTotal)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Zone: q.Zone, Fee: q.Fee}, nil
}
