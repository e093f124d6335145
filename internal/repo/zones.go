package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// DeliveryZone groups districts sharing a fee schedule. Matching scans in
// ascending Position, so zone order is part of the persisted model.
// FreeAbove at zero means no free-delivery threshold.
type DeliveryZone struct {
	ID        pgtype.UUID
	Name      string
	Areas     []string
	BaseFee   decimal.Decimal
	PerKmRate decimal.Decimal
	FreeAbove decimal.Decimal
	ETA       string
	Position  int32
	CreatedAt pgtype.Timestamptz
}

// Zones persists delivery zones.
type Zones struct {
	DB DB
}

const zoneColumns = `id, name, areas, base_fee, per_km_rate, free_above, eta, position, created_at`

func scanZone(row pgx.Row) (DeliveryZone, error) {
	var z DeliveryZone
	var baseFee, perKm, freeAbove pgtype.Numeric
	err := row.Scan(&z.ID, &z.Name, &z.Areas, &baseFee, &perKm, &freeAbove, &z.ETA, &z.Position, &z.CreatedAt)
	if err != nil {
		return DeliveryZone{}, err
	}
	z.BaseFee = DecimalFromNumeric(baseFee)
	z.PerKmRate = DecimalFromNumeric(perKm)
	z.FreeAbove = DecimalFromNumeric(freeAbove)
	return z, nil
}

// Create inserts a zone at the end of the match order.
func (r Zones) Create(ctx context.Context, z DeliveryZone) (DeliveryZone, error) {
	if !z.ID.Valid {
		z.ID = NewUUID()
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO delivery_zones (id, name, areas, base_fee, per_km_rate, free_above, eta, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM delivery_zones))
		RETURNING `+zoneColumns,
		z.ID, z.Name, z.Areas, NumericFromDecimal(z.BaseFee), NumericFromDecimal(z.PerKmRate),
		NumericFromDecimal(z.FreeAbove), z.ETA)
	return scanZone(row)
}

// List returns all zones in match order.
func (r Zones) List(ctx context.Context) ([]DeliveryZone, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+zoneColumns+` FROM delivery_zones ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DeliveryZone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

// Get loads a zone by identifier.
func (r Zones) Get(ctx context.Context, id pgtype.UUID) (DeliveryZone, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+zoneColumns+` FROM delivery_zones WHERE id = $1`, id)
	z, err := scanZone(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return DeliveryZone{}, ErrNotFound
	}
	return z, err
}

// Update overwrites a zone's fee schedule and area list. Position is kept.
func (r Zones) Update(ctx context.Context, z DeliveryZone) (DeliveryZone, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE delivery_zones SET name = $2, areas = $3, base_fee = $4, per_km_rate = $5,
			free_above = $6, eta = $7
		WHERE id = $1
		RETURNING `+zoneColumns,
		z.ID, z.Name, z.Areas, NumericFromDecimal(z.BaseFee), NumericFromDecimal(z.PerKmRate),
		NumericFromDecimal(z.FreeAbove), z.ETA)
	out, err := scanZone(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return DeliveryZone{}, ErrNotFound
	}
	return out, err
}

// Delete removes a zone.
func (r Zones) Delete(ctx context.Context, id pgtype.UUID) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM delivery_zones WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
