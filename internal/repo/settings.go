package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// ErrVersionConflict indicates a settings update raced another writer.
var ErrVersionConflict = errors.New("settings version conflict")

// StoreSettings is the single versioned configuration row. It is loaded
// explicitly and passed into handlers rather than read ad hoc per request.
type StoreSettings struct {
	Version            int32
	Currency           string
	MaintenanceMode    bool
	LowStockThreshold  int32
	DefaultDeliveryFee decimal.Decimal
	OrderStatuses      []string
}

// DefaultOrderStatuses is the out-of-the-box status sequence. "cancelled"
// is a terminal side-state, not part of the sequence.
var DefaultOrderStatuses = []string{"pending", "confirmed", "preparing", "ready", "delivered"}

// Settings persists the store configuration row.
type Settings struct {
	DB DB
}

// Load returns the current settings, falling back to defaults when no row
// has been written yet.
func (r Settings) Load(ctx context.Context) (StoreSettings, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT version, currency, maintenance_mode, low_stock_threshold, default_delivery_fee,
			order_statuses
		FROM store_settings WHERE id = 1`)
	var s StoreSettings
	var fee pgtype.Numeric
	err := row.Scan(&s.Version, &s.Currency, &s.MaintenanceMode, &s.LowStockThreshold, &fee, &s.OrderStatuses)
	if errors.Is(err, pgx.ErrNoRows) {
		return StoreSettings{
			Version:            0,
			Currency:           "RWF",
			LowStockThreshold:  10,
			DefaultDeliveryFee: decimal.NewFromInt(2000),
			OrderStatuses:      append([]string(nil), DefaultOrderStatuses...),
		}, nil
	}
	if err != nil {
		return StoreSettings{}, err
	}
	s.DefaultDeliveryFee = DecimalFromNumeric(fee)
	return s, nil
}

// Save upserts the settings row guarded by an optimistic version counter.
func (r Settings) Save(ctx context.Context, s StoreSettings) (StoreSettings, error) {
	tag, err := r.DB.Exec(ctx, `
		INSERT INTO store_settings (id, version, currency, maintenance_mode, low_stock_threshold,
			default_delivery_fee, order_statuses)
		VALUES (1, 1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			version = store_settings.version + 1,
			currency = EXCLUDED.currency,
			maintenance_mode = EXCLUDED.maintenance_mode,
			low_stock_threshold = EXCLUDED.low_stock_threshold,
			default_delivery_fee = EXCLUDED.default_delivery_fee,
			order_statuses = EXCLUDED.order_statuses
		WHERE store_settings.version = $1`,
		s.Version, s.Currency, s.MaintenanceMode, s.LowStockThreshold,
		NumericFromDecimal(s.DefaultDeliveryFee), s.OrderStatuses)
	if err != nil {
		return StoreSettings{}, err
	}
	if tag.RowsAffected() == 0 {
		return StoreSettings{}, ErrVersionConflict
	}
	return r.Load(ctx)
}
