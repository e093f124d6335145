package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Order is a placed order. Line items are immutable once created; status
// walks the configured status sequence with "cancelled" as a terminal
// side-state.
type Order struct {
	ID            pgtype.UUID
	UserID        pgtype.UUID
	Status        string
	PaymentMethod string
	Note          pgtype.Text
	District      pgtype.Text
	CouponCode    pgtype.Text
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	DeliveryFee   decimal.Decimal
	Total         decimal.Decimal
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

// OrderItem is a copied cart line frozen at checkout time.
type OrderItem struct {
	ID        pgtype.UUID
	OrderID   pgtype.UUID
	ProductID pgtype.UUID
	Name      string
	Quantity  decimal.Decimal
	Unit      string
	Price     decimal.Decimal
}

// Orders persists orders and their line items.
type Orders struct {
	DB DB
}

const orderColumns = `id, user_id, status, payment_method, note, district, coupon_code,
	subtotal, discount, delivery_fee, total, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var subtotal, discount, fee, total pgtype.Numeric
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentMethod, &o.Note, &o.District,
		&o.CouponCode, &subtotal, &discount, &fee, &total, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	o.Subtotal = DecimalFromNumeric(subtotal)
	o.Discount = DecimalFromNumeric(discount)
	o.DeliveryFee = DecimalFromNumeric(fee)
	o.Total = DecimalFromNumeric(total)
	return o, nil
}

// Create inserts the order header.
func (r Orders) Create(ctx context.Context, o Order) (Order, error) {
	if !o.ID.Valid {
		o.ID = NewUUID()
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO orders (id, user_id, status, payment_method, note, district, coupon_code,
			subtotal, discount, delivery_fee, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+orderColumns,
		o.ID, o.UserID, o.Status, o.PaymentMethod, o.Note, o.District, o.CouponCode,
		NumericFromDecimal(o.Subtotal), NumericFromDecimal(o.Discount),
		NumericFromDecimal(o.DeliveryFee), NumericFromDecimal(o.Total))
	return scanOrder(row)
}

// AddItem inserts one frozen line item.
func (r Orders) AddItem(ctx context.Context, it OrderItem) error {
	if !it.ID.Valid {
		it.ID = NewUUID()
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO order_items (id, order_id, product_id, name, quantity, unit, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		it.ID, it.OrderID, it.ProductID, it.Name, NumericFromDecimal(it.Quantity),
		it.Unit, NumericFromDecimal(it.Price))
	return err
}

// Get loads an order header.
func (r Orders) Get(ctx context.Context, id pgtype.UUID) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

// ListByUser returns a customer's orders, newest first.
func (r Orders) ListByUser(ctx context.Context, userID pgtype.UUID) ([]Order, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListAll returns every order for administrators, newest first.
func (r Orders) ListAll(ctx context.Context, limit, offset int32) ([]Order, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Items loads the frozen line items of an order.
func (r Orders) Items(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, name, quantity, unit, price
		FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		var qty, price pgtype.Numeric
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &qty, &it.Unit, &price); err != nil {
			return nil, err
		}
		it.Quantity = DecimalFromNumeric(qty)
		it.Price = DecimalFromNumeric(price)
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpdateStatus overwrites the order status.
func (r Orders) UpdateStatus(ctx context.Context, id pgtype.UUID, status string) (Order, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE id = $1
		RETURNING `+orderColumns, id, status)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}
