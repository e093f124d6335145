package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// PaymentTransaction records one gateway interaction. Reference is the
// provider's handle (mobile-money transaction id or card token). Amount is
// the order amount; TotalAmount includes any gateway surcharge.
type PaymentTransaction struct {
	ID           pgtype.UUID
	OrderRef     pgtype.Text
	Reference    string
	Method       string
	Phone        pgtype.Text
	Amount       decimal.Decimal
	TotalAmount  decimal.Decimal
	Status       string
	Verification []byte
	CreatedAt    pgtype.Timestamptz
	VerifiedAt   pgtype.Timestamptz
}

// Payments persists gateway transactions.
type Payments struct {
	DB DB
}

const paymentColumns = `id, order_ref, reference, method, phone, amount, total_amount, status,
	verification, created_at, verified_at`

func scanPayment(row pgx.Row) (PaymentTransaction, error) {
	var t PaymentTransaction
	var amount, total pgtype.Numeric
	err := row.Scan(&t.ID, &t.OrderRef, &t.Reference, &t.Method, &t.Phone, &amount, &total,
		&t.Status, &t.Verification, &t.CreatedAt, &t.VerifiedAt)
	if err != nil {
		return PaymentTransaction{}, err
	}
	t.Amount = DecimalFromNumeric(amount)
	t.TotalAmount = DecimalFromNumeric(total)
	return t, nil
}

// Create inserts a transaction row.
func (r Payments) Create(ctx context.Context, t PaymentTransaction) (PaymentTransaction, error) {
	if !t.ID.Valid {
		t.ID = NewUUID()
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO payment_transactions (id, order_ref, reference, method, phone, amount,
			total_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+paymentColumns,
		t.ID, t.OrderRef, t.Reference, t.Method, t.Phone, NumericFromDecimal(t.Amount),
		NumericFromDecimal(t.TotalAmount), t.Status)
	return scanPayment(row)
}

// GetByReference loads a transaction by its provider reference.
func (r Payments) GetByReference(ctx context.Context, reference string) (PaymentTransaction, error) {
	row := r.DB.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payment_transactions WHERE reference = $1`, reference)
	t, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PaymentTransaction{}, ErrNotFound
	}
	return t, err
}

// RecordVerification stores the verification outcome for a transaction.
func (r Payments) RecordVerification(ctx context.Context, reference, status string, verification []byte) (PaymentTransaction, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE payment_transactions
		SET status = $2, verification = $3, verified_at = now()
		WHERE reference = $1
		RETURNING `+paymentColumns, reference, status, verification)
	t, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PaymentTransaction{}, ErrNotFound
	}
	return t, err
}
