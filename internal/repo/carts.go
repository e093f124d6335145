package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// CartLine is a single (customer, product) cart entry holding the merged
// quantity and its recomputed price.
type CartLine struct {
	ID        pgtype.UUID
	UserID    pgtype.UUID
	ProductID pgtype.UUID
	Quantity  decimal.Decimal
	Unit      string
	Price     decimal.Decimal
	AddedAt   pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

// Carts persists cart lines, keyed uniquely per (user, product).
type Carts struct {
	DB DB
}

const cartColumns = `id, user_id, product_id, quantity, unit, price, added_at, updated_at`

func scanCartLine(row pgx.Row) (CartLine, error) {
	var l CartLine
	var qty, price pgtype.Numeric
	err := row.Scan(&l.ID, &l.UserID, &l.ProductID, &qty, &l.Unit, &price, &l.AddedAt, &l.UpdatedAt)
	if err != nil {
		return CartLine{}, err
	}
	l.Quantity = DecimalFromNumeric(qty)
	l.Price = DecimalFromNumeric(price)
	return l, nil
}

// Find returns the line for a (user, product) pair.
func (r Carts) Find(ctx context.Context, userID, productID pgtype.UUID) (CartLine, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+cartColumns+` FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID)
	l, err := scanCartLine(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return CartLine{}, ErrNotFound
	}
	return l, err
}

// List returns all lines for a user ordered by insertion.
func (r Carts) List(ctx context.Context, userID pgtype.UUID) ([]CartLine, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+cartColumns+` FROM cart_items WHERE user_id = $1 ORDER BY added_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CartLine
	for rows.Next() {
		l, err := scanCartLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Upsert inserts a line or overwrites quantity, unit and price for the
// existing (user, product) pair. The price is always the caller's freshly
// recomputed value, never an incremental patch.
func (r Carts) Upsert(ctx context.Context, l CartLine) (CartLine, error) {
	if !l.ID.Valid {
		l.ID = NewUUID()
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO cart_items (id, user_id, product_id, quantity, unit, price)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, unit = EXCLUDED.unit,
			price = EXCLUDED.price, updated_at = now()
		RETURNING `+cartColumns,
		l.ID, l.UserID, l.ProductID, NumericFromDecimal(l.Quantity), l.Unit,
		NumericFromDecimal(l.Price))
	return scanCartLine(row)
}

// Delete removes a single line.
func (r Carts) Delete(ctx context.Context, userID, productID pgtype.UUID) error {
	tag, err := r.DB.Exec(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes every line belonging to the user.
func (r Carts) Clear(ctx context.Context, userID pgtype.UUID) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}
