package coupon_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gbdelivering/backend-butchery/internal/coupon"
	"github.com/gbdelivering/backend-butchery/internal/repo"
)

type memCoupons struct {
	byCode map[string]repo.Coupon
}

func newMemCoupons(coupons ...repo.Coupon) *memCoupons {
	m := &memCoupons{byCode: map[string]repo.Coupon{}}
	for _, c := range coupons {
		if !c.ID.Valid {
			c.ID = repo.NewUUID()
		}
		c.Code = strings.ToUpper(c.Code)
		m.byCode[c.Code] = c
	}
	return m
}

func (m *memCoupons) Create(_ context.Context, c repo.Coupon) (repo.Coupon, error) {
	c.ID = repo.NewUUID()
	c.Code = strings.ToUpper(c.Code)
	m.byCode[c.Code] = c
	return c, nil
}

func (m *memCoupons) GetByCode(_ context.Context, code string) (repo.Coupon, error) {
	c, ok := m.byCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok || !c.Active {
		return repo.Coupon{}, repo.ErrNotFound
	}
	return c, nil
}

func (m *memCoupons) List(context.Context) ([]repo.Coupon, error) {
	var out []repo.Coupon
	for _, c := range m.byCode {
		out = append(out, c)
	}
	return out, nil
}

func (m *memCoupons) Update(_ context.Context, c repo.Coupon) (repo.Coupon, error) {
	m.byCode[strings.ToUpper(c.Code)] = c
	return c, nil
}

func (m *memCoupons) Delete(context.Context, pgtype.UUID) error { return nil }

func dec(v string) decimal.Decimal {
	d, _ := decimal.NewFromString(v)
	return d
}

func saveTen() repo.Coupon {
	return repo.Coupon{
		Code:         "SAVE10",
		DiscountType: coupon.TypePercentage,
		Amount:       dec("10"),
		MaxAmount:    dec("2000"),
		Active:       true,
	}
}

func TestValidateIsCaseInsensitive(t *testing.T) {
	svc := coupon.NewService(newMemCoupons(saveTen()))
	items := []coupon.Item{{ProductID: "p1", LineTotal: dec("10000")}}

	result, err := svc.Validate(context.Background(), "save10", items)
	require.NoError(t, err)
	require.Equal(t, "SAVE10", result.Code)
	require.Equal(t, "1000", result.Discount)
	require.Equal(t, "9000", result.NewTotal)
}

func TestValidateCapsAtMaxAmount(t *testing.T) {
	svc := coupon.NewService(newMemCoupons(saveTen()))
	items := []coupon.Item{{ProductID: "p1", LineTotal: dec("25500")}}

	result, err := svc.Validate(context.Background(), "SAVE10", items)
	require.NoError(t, err)
	require.Equal(t, "2000", result.Discount)
	require.Equal(t, "23500", result.NewTotal)
}

func TestValidateUnknownCode(t *testing.T) {
	svc := coupon.NewService(newMemCoupons())
	_, err := svc.Validate(context.Background(), "NOPE", nil)
	require.ErrorIs(t, err, coupon.ErrCouponNotFound)
}

func TestValidateExpiredCoupon(t *testing.T) {
	c := saveTen()
	c.ExpiresAt = repo.Timestamp(time.Now().Add(-time.Hour))
	svc := coupon.NewService(newMemCoupons(c))

	_, err := svc.Validate(context.Background(), "SAVE10", []coupon.Item{{ProductID: "p1", LineTotal: dec("10000")}})
	require.ErrorIs(t, err, coupon.ErrCouponExpired)
}

func TestValidateScopedToIncludedProducts(t *testing.T) {
	beef := repo.UUIDString(repo.NewUUID())
	goat := repo.UUIDString(repo.NewUUID())
	c := saveTen()
	c.IncludeProducts = []string{beef}
	svc := coupon.NewService(newMemCoupons(c))

	items := []coupon.Item{
		{ProductID: beef, LineTotal: dec("8000")},
		{ProductID: goat, LineTotal: dec("12000")},
	}
	result, err := svc.Validate(context.Background(), "SAVE10", items)
	require.NoError(t, err)
	require.Equal(t, "800", result.Discount, "only the included product's total is discounted")
	require.Equal(t, "19200", result.NewTotal)
}

func TestCreateRejectsBadPayloads(t *testing.T) {
	svc := coupon.NewService(newMemCoupons())

	cases := []coupon.Input{
		{Code: "", DiscountType: "percentage", Amount: "10"},
		{Code: "X", DiscountType: "bogus", Amount: "10"},
		{Code: "X", DiscountType: "percentage", Amount: "150"},
		{Code: "X", DiscountType: "fixed_cart", Amount: "-5"},
	}
	for _, in := range cases {
		_, err := svc.Create(context.Background(), in)
		require.ErrorIs(t, err, coupon.ErrInvalidInput)
	}
}
