package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// SpecialOffer is a time-bounded discount across a set of products. Product
// discount state is a projection computed from active offers at read time,
// never stamped onto product rows.
type SpecialOffer struct {
	ID              pgtype.UUID
	Title           string
	Description     string
	DiscountPercent decimal.Decimal
	StartsAt        pgtype.Timestamptz
	EndsAt          pgtype.Timestamptz
	Active          bool
	ProductIDs      []string
	CreatedAt       pgtype.Timestamptz
}

// Offers persists special offers.
type Offers struct {
	DB DB
}

const offerColumns = `id, title, description, discount_percent, starts_at, ends_at, active,
	product_ids, created_at`

func scanOffer(row pgx.Row) (SpecialOffer, error) {
	var o SpecialOffer
	var discount pgtype.Numeric
	err := row.Scan(&o.ID, &o.Title, &o.Description, &discount, &o.StartsAt, &o.EndsAt,
		&o.Active, &o.ProductIDs, &o.CreatedAt)
	if err != nil {
		return SpecialOffer{}, err
	}
	o.DiscountPercent = DecimalFromNumeric(discount)
	return o, nil
}

// Create inserts an offer.
func (r Offers) Create(ctx context.Context, o SpecialOffer) (SpecialOffer, error) {
	if !o.ID.Valid {
		o.ID = NewUUID()
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO special_offers (id, title, description, discount_percent, starts_at, ends_at,
			active, product_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+offerColumns,
		o.ID, o.Title, o.Description, NumericFromDecimal(o.DiscountPercent),
		o.StartsAt, o.EndsAt, o.Active, o.ProductIDs)
	return scanOffer(row)
}

// List returns all offers, newest first.
func (r Offers) List(ctx context.Context) ([]SpecialOffer, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+offerColumns+` FROM special_offers ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SpecialOffer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ActiveForProduct returns offers that are currently live and reference the product.
func (r Offers) ActiveForProduct(ctx context.Context, productID pgtype.UUID, now time.Time) ([]SpecialOffer, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+offerColumns+` FROM special_offers
		WHERE active AND starts_at <= $2 AND ends_at >= $2 AND $1 = ANY(product_ids)
		ORDER BY starts_at DESC`,
		UUIDString(productID), Timestamp(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SpecialOffer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Get loads an offer by identifier.
func (r Offers) Get(ctx context.Context, id pgtype.UUID) (SpecialOffer, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+offerColumns+` FROM special_offers WHERE id = $1`, id)
	o, err := scanOffer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return SpecialOffer{}, ErrNotFound
	}
	return o, err
}

// Update overwrites an offer.
func (r Offers) Update(ctx context.Context, o SpecialOffer) (SpecialOffer, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE special_offers SET title = $2, description = $3, discount_percent = $4,
			starts_at = $5, ends_at = $6, active = $7, product_ids = $8
		WHERE id = $1
		RETURNING `+offerColumns,
		o.ID, o.Title, o.Description, NumericFromDecimal(o.DiscountPercent),
		o.StartsAt, o.EndsAt, o.Active, o.ProductIDs)
	out, err := scanOffer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return SpecialOffer{}, ErrNotFound
	}
	return out, err
}

// Delete removes an offer; the projection simply stops including it.
func (r Offers) Delete(ctx context.Context, id pgtype.UUID) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM special_offers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
