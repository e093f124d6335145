package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Price is denominated per the pricing mode
// (per_kg, per_gram, per_piece). MaxQty at zero means unbounded.
type Product struct {
	ID              pgtype.UUID
	Name            string
	Description     string
	Category        string
	Price           decimal.Decimal
	Stock           int32
	Unit            string
	PricingMode     string
	MinQty          decimal.Decimal
	MaxQty          decimal.Decimal
	DiscountPercent decimal.Decimal
	IsSpecialOffer  bool
	ImageURL        pgtype.Text
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

// Products persists catalog entries.
type Products struct {
	DB DB
}

const productColumns = `id, name, description, category, price, stock, unit, pricing_mode,
	min_qty, max_qty, discount_percent, is_special_offer, image_url, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var price, minQty, maxQty, discount pgtype.Numeric
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &price, &p.Stock,
		&p.Unit, &p.PricingMode, &minQty, &maxQty, &discount, &p.IsSpecialOffer,
		&p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	p.Price = DecimalFromNumeric(price)
	p.MinQty = DecimalFromNumeric(minQty)
	p.MaxQty = DecimalFromNumeric(maxQty)
	p.DiscountPercent = DecimalFromNumeric(discount)
	return p, nil
}

// Create inserts a product and returns the stored row.
func (r Products) Create(ctx context.Context, p Product) (Product, error) {
	if !p.ID.Valid {
		p.ID = NewUUID()
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO products (id, name, description, category, price, stock, unit, pricing_mode,
			min_qty, max_qty, discount_percent, is_special_offer, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+productColumns,
		p.ID, p.Name, p.Description, p.Category, NumericFromDecimal(p.Price), p.Stock,
		p.Unit, p.PricingMode, NumericFromDecimal(p.MinQty), NumericFromDecimal(p.MaxQty),
		NumericFromDecimal(p.DiscountPercent), p.IsSpecialOffer, p.ImageURL)
	return scanProduct(row)
}

// Get loads a product by identifier.
func (r Products) Get(ctx context.Context, id pgtype.UUID) (Product, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// List returns products, optionally filtered by category.
func (r Products) List(ctx context.Context, category string, limit, offset int32) ([]Product, error) {
	sql := `SELECT ` + productColumns + ` FROM products`
	args := []any{}
	if category != "" {
		sql += ` WHERE category = $1`
		args = append(args, category)
	}
	sql += ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit, offset)
		if category != "" {
			sql += ` LIMIT $2 OFFSET $3`
		} else {
			sql += ` LIMIT $1 OFFSET $2`
		}
	}
	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update overwrites the mutable fields of a product.
func (r Products) Update(ctx context.Context, p Product) (Product, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE products SET name = $2, description = $3, category = $4, price = $5, stock = $6,
			unit = $7, pricing_mode = $8, min_qty = $9, max_qty = $10, discount_percent = $11,
			is_special_offer = $12, image_url = $13, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		p.ID, p.Name, p.Description, p.Category, NumericFromDecimal(p.Price), p.Stock,
		p.Unit, p.PricingMode, NumericFromDecimal(p.MinQty), NumericFromDecimal(p.MaxQty),
		NumericFromDecimal(p.DiscountPercent), p.IsSpecialOffer, p.ImageURL)
	out, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return out, err
}

// UpdateStock sets the stock level and returns the updated product.
func (r Products) UpdateStock(ctx context.Context, id pgtype.UUID, stock int32) (Product, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE products SET stock = $2, updated_at = now() WHERE id = $1
		RETURNING `+productColumns, id, stock)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// Delete removes a product.
func (r Products) Delete(ctx context.Context, id pgtype.UUID) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
