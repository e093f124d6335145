package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Coupon is a customer-entered code granting a cart-level discount. Codes
// are stored upper-cased and matched case-insensitively. MinAmount,
// MaxAmount and UsageLimit at zero mean "not set".
type Coupon struct {
	ID              pgtype.UUID
	Code            string
	DiscountType    string
	Amount          decimal.Decimal
	MinAmount       decimal.Decimal
	MaxAmount       decimal.Decimal
	ExpiresAt       pgtype.Timestamptz
	UsageLimit      int32
	UsageCount      int32
	Active          bool
	IncludeProducts []string
	ExcludeProducts []string
	CreatedAt       pgtype.Timestamptz
}

// Coupons persists coupon codes.
type Coupons struct {
	DB DB
}

const couponColumns = `id, code, discount_type, amount, min_amount, max_amount, expires_at,
	usage_limit, usage_count, active, include_products, exclude_products, created_at`

func scanCoupon(row pgx.Row) (Coupon, error) {
	var c Coupon
	var amount, minAmt, maxAmt pgtype.Numeric
	err := row.Scan(&c.ID, &c.Code, &c.DiscountType, &amount, &minAmt, &maxAmt, &c.ExpiresAt,
		&c.UsageLimit, &c.UsageCount, &c.Active, &c.IncludeProducts, &c.ExcludeProducts, &c.CreatedAt)
	if err != nil {
		return Coupon{}, err
	}
	c.Amount = DecimalFromNumeric(amount)
	c.MinAmount = DecimalFromNumeric(minAmt)
	c.MaxAmount = DecimalFromNumeric(maxAmt)
	return c, nil
}

// Create inserts a coupon, upper-casing the code.
func (r Coupons) Create(ctx context.Context, c Coupon) (Coupon, error) {
	if !c.ID.Valid {
		c.ID = NewUUID()
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO coupons (id, code, discount_type, amount, min_amount, max_amount, expires_at,
			usage_limit, active, include_products, exclude_products)
		VALUES ($1, upper($2), $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+couponColumns,
		c.ID, strings.TrimSpace(c.Code), c.DiscountType, NumericFromDecimal(c.Amount),
		NumericFromDecimal(c.MinAmount), NumericFromDecimal(c.MaxAmount), c.ExpiresAt,
		c.UsageLimit, c.Active, c.IncludeProducts, c.ExcludeProducts)
	return scanCoupon(row)
}

// GetByCode matches an active coupon by upper-cased code.
func (r Coupons) GetByCode(ctx context.Context, code string) (Coupon, error) {
	row := r.DB.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE code = upper($1) AND active`,
		strings.TrimSpace(code))
	c, err := scanCoupon(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Coupon{}, ErrNotFound
	}
	return c, err
}

// List returns all coupons for administrators.
func (r Coupons) List(ctx context.Context) ([]Coupon, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update overwrites a coupon's rule fields.
func (r Coupons) Update(ctx context.Context, c Coupon) (Coupon, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE coupons SET discount_type = $2, amount = $3, min_amount = $4, max_amount = $5,
			expires_at = $6, usage_limit = $7, active = $8, include_products = $9,
			exclude_products = $10
		WHERE id = $1
		RETURNING `+couponColumns,
		c.ID, c.DiscountType, NumericFromDecimal(c.Amount), NumericFromDecimal(c.MinAmount),
		NumericFromDecimal(c.MaxAmount), c.ExpiresAt, c.UsageLimit, c.Active,
		c.IncludeProducts, c.ExcludeProducts)
	out, err := scanCoupon(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Coupon{}, ErrNotFound
	}
	return out, err
}

// Delete removes a coupon.
func (r Coupons) Delete(ctx context.Context, id pgtype.UUID) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM coupons WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Redeem increments the usage counter, refusing once the limit is reached.
// The conditional update keeps concurrent redemptions from exceeding the
// limit without any in-process locking.
func (r Coupons) Redeem(ctx context.Context, id pgtype.UUID) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE coupons SET usage_count = usage_count + 1
		WHERE id = $1 AND (usage_limit = 0 OR usage_count < usage_limit)`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
