package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/gbdelivering/backend-butchery/internal/repo"
)

// ErrInvalidInput reports a malformed settings payload.
var ErrInvalidInput = errors.New("settings: invalid input")

type settingsStore interface {
	Load(ctx context.Context) (repo.StoreSettings, error)
	Save(ctx context.Context, s repo.StoreSettings) (repo.StoreSettings, error)
}

// Service reads and updates the versioned store configuration.
type Service struct {
	store    settingsStore
	validate *validator.Validate
}

// NewService constructs a Service.
func NewService(store settingsStore) *Service {
	return &Service{store: store, validate: validator.New()}
}

// Input is the admin payload for updating settings. Version must match the
// currently stored row or the update is rejected.
type Input struct {
	Version            int32           `json:"version" validate:"gte=0"`
	Currency           string          `json:"currency" validate:"required,len=3,alpha"`
	MaintenanceMode    bool            `json:"maintenance_mode"`
	LowStockThreshold  int32           `json:"low_stock_threshold" validate:"gte=0"`
	DefaultDeliveryFee decimal.Decimal `json:"default_delivery_fee"`
	OrderStatuses      []string        `json:"order_statuses" validate:"required,min=2,dive,required,min=1,max=50"`
}

// Load returns the current settings.
func (s *Service) Load(ctx context.Context) (repo.StoreSettings, error) {
	return s.store.Load(ctx)
}

// Update validates and persists new settings under the optimistic version
// check. The stored row with its bumped version is returned.
func (s *Service) Update(ctx context.Context, in Input) (repo.StoreSettings, error) {
	if err := s.validate.Struct(in); err != nil {
		return repo.StoreSettings{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.DefaultDeliveryFee.IsNegative() {
		return repo.StoreSettings{}, fmt.Errorf("%w: default delivery fee cannot be negative", ErrInvalidInput)
	}

	statuses := make([]string, 0, len(in.OrderStatuses))
	seen := make(map[string]bool, len(in.OrderStatuses))
	for _, raw := range in.OrderStatuses {
		status := strings.ToLower(strings.TrimSpace(raw))
		if status == "" {
			return repo.StoreSettings{}, fmt.Errorf("%w: empty order status", ErrInvalidInput)
		}
		if seen[status] {
			return repo.StoreSettings{}, fmt.Errorf("%w: duplicate order status %q", ErrInvalidInput, status)
		}
		// "cancelled" is reachable from any state already, keeping it out of
		// the sequence avoids an unreachable step.
		if status == "cancelled" {
			return repo.StoreSettings{}, fmt.Errorf("%w: cancelled cannot be part of the sequence", ErrInvalidInput)
		}
		seen[status] = true
		statuses = append(statuses, status)
	}

	return s.store.Save(ctx, repo.StoreSettings{
		Version:            in.Version,
		Currency:           strings.ToUpper(in.Currency),
		MaintenanceMode:    in.MaintenanceMode,
		LowStockThreshold:  in.LowStockThreshold,
		DefaultDeliveryFee: in.DefaultDeliveryFee,
		OrderStatuses:      statuses,
	})
}
