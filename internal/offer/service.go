package offer

import (
	"context"
	"errors"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/gbdelivering/backend-butchery/internal/repo"
)

// ErrInvalidInput marks a rejected offer payload.
var ErrInvalidInput = errors.New("invalid offer input")

// Input is the admin payload for creating or updating an offer.
type Input struct {
	Title           string   `json:"title" validate:"required"`
	Description     string   `json:"description"`
	DiscountPercent string   `json:"discount_percent" validate:"required"`
	StartsAt        string   `json:"starts_at" validate:"required"`
	EndsAt          string   `json:"ends_at" validate:"required"`
	Active          bool     `json:"active"`
	ProductIDs      []string `json:"product_ids" validate:"required,min=1,dive,uuid4"`
}

type offerStore interface {
	Create(ctx context.Context, o repo.SpecialOffer) (repo.SpecialOffer, error)
	List(ctx context.Context) ([]repo.SpecialOffer, error)
	Get(ctx context.Context, id pgtype.UUID) (repo.SpecialOffer, error)
	Update(ctx context.Context, o repo.SpecialOffer) (repo.SpecialOffer, error)
	Delete(ctx context.Context, id pgtype.UUID) error
}

// Service manages special offers.
type Service struct {
	Store    offerStore
	validate *validator.Validate
}

// NewService constructs the offer service.
func NewService(store offerStore) *Service {
	return &Service{Store: store, validate: validator.New()}
}

// Create validates and persists a new offer.
func (s *Service) Create(ctx context.Context, in Input) (repo.SpecialOffer, error) {
	o, err := s.toRecord(in)
	if err != nil {
		return repo.SpecialOffer{}, err
	}
	return s.Store.Create(ctx, o)
}

// Update validates and overwrites an existing offer.
func (s *Service) Update(ctx context.Context, id pgtype.UUID, in Input) (repo.SpecialOffer, error) {
	o, err := s.toRecord(in)
	if err != nil {
		return repo.SpecialOffer{}, err
	}
	o.ID = id
	return s.Store.Update(ctx, o)
}

// List returns all offers.
func (s *Service) List(ctx context.Context) ([]repo.SpecialOffer, error) {
	return s.Store.List(ctx)
}

// Get loads one offer.
func (s *Service) Get(ctx context.Context, id pgtype.UUID) (repo.SpecialOffer, error) {
	return s.Store.Get(ctx, id)
}

// Delete removes an offer. Products referencing it just lose the projected
// discount.
func (s *Service) Delete(ctx context.Context, id pgtype.UUID) error {
	return s.Store.Delete(ctx, id)
}

func (s *Service) toRecord(in Input) (repo.SpecialOffer, error) {
	if err := s.validate.Struct(in); err != nil {
		return repo.SpecialOffer{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	discount, err := decimal.NewFromString(in.DiscountPercent)
	if err != nil || discount.IsNegative() || discount.GreaterThan(decimal.NewFromInt(100)) {
		return repo.SpecialOffer{}, fmt.Errorf("%w: discount_percent must be between 0 and 100", ErrInvalidInput)
	}
	startsAt, err := time.Parse(time.RFC3339, in.StartsAt)
	if err != nil {
		return repo.SpecialOffer{}, fmt.Errorf("%w: starts_at must be RFC3339", ErrInvalidInput)
	}
	endsAt, err := time.Parse(time.RFC3339, in.EndsAt)
	if err != nil {
		return repo.SpecialOffer{}, fmt.Errorf("%w: ends_at must be RFC3339", ErrInvalidInput)
	}
	if !endsAt.After(startsAt) {
		return repo.SpecialOffer{}, fmt.Errorf("%w: ends_at must follow starts_at", ErrInvalidInput)
	}
	return repo.SpecialOffer{
		Title:           in.Title,
		Description:     in.Description,
		DiscountPercent: discount,
		StartsAt:        repo.Timestamp(startsAt),
		EndsAt:          repo.Timestamp(endsAt),
		Active:          in.Active,
		ProductIDs:      in.ProductIDs,
	}, nil
}
