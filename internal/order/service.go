package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/gbdelivering/backend-butchery/internal/repo"
)

// StatusCancelled is the terminal side-state reachable from any non-final
// status; nothing transitions out of it.
const StatusCancelled = "cancelled"

// Sentinel errors surfaced by the order service.
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type orderStore interface {
	Get(ctx context.Context, id pgtype.UUID) (repo.Order, error)
	ListByUser(ctx context.Context, userID pgtype.UUID) ([]repo.Order, error)
	ListAll(ctx context.Context, limit, offset int32) ([]repo.Order, error)
	Items(ctx context.Context, orderID pgtype.UUID) ([]repo.OrderItem, error)
	UpdateStatus(ctx context.Context, id pgtype.UUID, status string) (repo.Order, error)
}

type settingsLoader interface {
	Load(ctx context.Context) (repo.StoreSettings, error)
}

// Service reads orders and walks their status lifecycle.
type Service struct {
	Store    orderStore
	Settings settingsLoader
}

// Detail is an order joined with its frozen line items.
type Detail struct {
	Order repo.Order
	Items []repo.OrderItem
}

// ListMine returns the customer's orders, newest first.
func (s *Service) ListMine(ctx context.Context, userID pgtype.UUID) ([]repo.Order, error) {
	return s.Store.ListByUser(ctx, userID)
}

// GetMine loads one order, refusing access to other customers' orders.
func (s *Service) GetMine(ctx context.Context, userID, orderID pgtype.UUID) (Detail, error) {
	o, err := s.Store.Get(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return Detail{}, ErrOrderNotFound
	}
	if err != nil {
		return Detail{}, err
	}
	if !repo.UUIDEqual(o.UserID, userID) {
		// reveal nothing about other customers' orders
		return Detail{}, ErrOrderNotFound
	}
	items, err := s.Store.Items(ctx, orderID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Order: o, Items: items}, nil
}

// Cancel moves the customer's own order into the cancelled side-state. Only
// orders still in the initial status may be cancelled by the customer.
func (s *Service) Cancel(ctx context.Context, userID, orderID pgtype.UUID) (repo.Order, error) {
	detail, err := s.GetMine(ctx, userID, orderID)
	if err != nil {
		return repo.Order{}, err
	}
	statuses := s.statuses(ctx)
	if len(statuses) == 0 || detail.Order.Status != statuses[0] {
		return repo.Order{}, fmt.Errorf("%w: only %q orders can be cancelled", ErrInvalidTransition, first(statuses))
	}
	return s.Store.UpdateStatus(ctx, orderID, StatusCancelled)
}

// ListAll returns every order for administrators.
func (s *Service) ListAll(ctx context.Context, limit, offset int32) ([]repo.Order, error) {
	return s.Store.ListAll(ctx, limit, offset)
}

// GetAny loads an order without ownership checks, for administrators.
func (s *Service) GetAny(ctx context.Context, orderID pgtype.UUID) (Detail, error) {
	o, err := s.Store.Get(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return Detail{}, ErrOrderNotFound
	}
	if err != nil {
		return Detail{}, err
	}
	items, err := s.Store.Items(ctx, orderID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Order: o, Items: items}, nil
}

// SetStatus moves an order along the configured status sequence. The target
// must be the next status in the sequence, or cancelled from any non-final
// state. Cancelled and the final sequence status accept no transitions.
func (s *Service) SetStatus(ctx context.Context, orderID pgtype.UUID, target string) (repo.Order, error) {
	o, err := s.Store.Get(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return repo.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return repo.Order{}, err
	}
	statuses := s.statuses(ctx)
	if err := validateTransition(statuses, o.Status, target); err != nil {
		return repo.Order{}, err
	}
	return s.Store.UpdateStatus(ctx, orderID, target)
}

func validateTransition(sequence []string, current, target string) error {
	if current == StatusCancelled {
		return fmt.Errorf("%w: order is cancelled", ErrInvalidTransition)
	}
	idx := -1
	for i, st := range sequence {
		if st == current {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("%w: unknown current status %q", ErrInvalidTransition, current)
	}
	if target == StatusCancelled {
		if idx == len(sequence)-1 {
			return fmt.Errorf("%w: delivered orders cannot be cancelled", ErrInvalidTransition)
		}
		return nil
	}
	if idx+1 >= len(sequence) || sequence[idx+1] != target {
		return fmt.Errorf("%w: %q does not follow %q", ErrInvalidTransition, target, current)
	}
	return nil
}

func (s *Service) statuses(ctx context.Context) []string {
	if s.Settings != nil {
		if settings, err := s.Settings.Load(ctx); err == nil && len(settings.OrderStatuses) > 0 {
			return settings.OrderStatuses
		}
	}
	return repo.DefaultOrderStatuses
}

func first(statuses []string) string {
	if len(statuses) == 0 {
		return ""
	}
	return statuses[0]
}
