package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/gbdelivering/backend-butchery/internal/repo"
)

// ErrInvalidInput marks a rejected zone payload.
var ErrInvalidInput = errors.New("invalid delivery zone input")

// DefaultZoneName labels quotes for districts no zone covers.
const DefaultZoneName = "Standard Zone"

type zoneStore interface {
	Create(ctx context.Context, z repo.DeliveryZone) (repo.DeliveryZone, error)
	List(ctx context.Context) ([]repo.DeliveryZone, error)
	Get(ctx context.Context, id pgtype.UUID) (repo.DeliveryZone, error)
	Update(ctx context.Context, z repo.DeliveryZone) (repo.DeliveryZone, error)
	Delete(ctx context.Context, id pgtype.UUID) error
}

// Service quotes delivery fees and manages zone configuration. Distance is
// a configured placeholder until real geo lookup lands; the per-km surcharge
// structure is already wired through it.
type Service struct {
	Zones      zoneStore
	DefaultFee decimal.Decimal
	DistanceKM decimal.Decimal
	validate   *validator.Validate
}

// NewService constructs the delivery service.
func NewService(zones zoneStore, defaultFee decimal.Decimal, distanceKM int) *Service {
	return &Service{
		Zones:      zones,
		DefaultFee: defaultFee,
		DistanceKM: decimal.NewFromInt(int64(distanceKM)),
		validate:   validator.New(),
	}
}

// Quote is a computed delivery fee as rendered to clients.
type Quote struct {
	Zone string `json:"zone"`
	Fee  string `json:"fee"`
	ETA  string `json:"eta,omitempty"`
	Free bool   `json:"free"`
}

// FeeQuote is the computed fee before presentation; checkout consumes it
// with the fee still a decimal.
type FeeQuote struct {
	Zone string
	Fee  decimal.Decimal
	ETA  string
	Free bool
}

// Fee scans zones in position order and returns the first zone whose area
// list contains the district, matching case-insensitively. Orders over the
// zone's free threshold ship free; otherwise the base fee plus the per-km
// surcharge applies. Unmatched districts get the default fee.
func (s *Service) Fee(ctx context.Context, district string, orderTotal decimal.Decimal) (FeeQuote, error) {
	zones, err := s.Zones.List(ctx)
	if err != nil {
		return FeeQuote{}, err
	}
	district = strings.TrimSpace(district)
	for _, z := range zones {
		if !zoneCovers(z, district) {
			continue
		}
		if z.FreeAbove.IsPositive() && orderTotal.GreaterThanOrEqual(z.FreeAbove) {
			return FeeQuote{Zone: z.Name, Fee: decimal.Zero, ETA: z.ETA, Free: true}, nil
		}
		fee := z.BaseFee.Add(z.PerKmRate.Mul(s.DistanceKM))
		return FeeQuote{Zone: z.Name, Fee: fee, ETA: z.ETA}, nil
	}
	return FeeQuote{Zone: DefaultZoneName, Fee: s.DefaultFee}, nil
}

// QuoteFee renders Fee for the calculate-fee endpoint.
func (s *Service) QuoteFee(ctx context.Context, district string, orderTotal decimal.Decimal) (Quote, error) {
	q, err := s.Fee(ctx, district, orderTotal)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Zone: q.Zone, Fee: q.Fee.String(), ETA: q.ETA, Free: q.Free}, nil
}

func zoneCovers(z repo.DeliveryZone, district string) bool {
	for _, area := range z.Areas {
		if strings.EqualFold(strings.TrimSpace(area), district) {
			return true
		}
	}
	return false
}

// Input is the admin payload for creating or updating a zone.
type Input struct {
	Name      string   `json:"name" validate:"required"`
	Areas     []string `json:"areas" validate:"required,min=1"`
	BaseFee   string   `json:"base_fee" validate:"required"`
	PerKmRate string   `json:"per_km_rate"`
	FreeAbove string   `json:"free_above"`
	ETA       string   `json:"eta"`
}

// Create validates and persists a new zone at the end of the match order.
func (s *Service) Create(ctx context.Context, in Input) (repo.DeliveryZone, error) {
	z, err := s.toRecord(in)
	if err != nil {
		return repo.DeliveryZone{}, err
	}
	return s.Zones.Create(ctx, z)
}

// Update overwrites a zone's fields, keeping its position.
func (s *Service) Update(ctx context.Context, id pgtype.UUID, in Input) (repo.DeliveryZone, error) {
	z, err := s.toRecord(in)
	if err != nil {
		return repo.DeliveryZone{}, err
	}
	z.ID = id
	return s.Zones.Update(ctx, z)
}

// List returns all zones in match order.
func (s *Service) List(ctx context.Context) ([]repo.DeliveryZone, error) {
	return s.Zones.List(ctx)
}

// Delete removes a zone.
func (s *Service) Delete(ctx context.Context, id pgtype.UUID) error {
	return s.Zones.Delete(ctx, id)
}

func (s *Service) toRecord(in Input) (repo.DeliveryZone, error) {
	if err := s.validate.Struct(in); err != nil {
		return repo.DeliveryZone{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	baseFee, err := decimal.NewFromString(in.BaseFee)
	if err != nil || baseFee.IsNegative() {
		return repo.DeliveryZone{}, fmt.Errorf("%w: base_fee must be a non-negative number", ErrInvalidInput)
	}
	perKm, err := optionalAmount(in.PerKmRate)
	if err != nil {
		return repo.DeliveryZone{}, fmt.Errorf("%w: per_km_rate must be a non-negative number", ErrInvalidInput)
	}
	freeAbove, err := optionalAmount(in.FreeAbove)
	if err != nil {
		return repo.DeliveryZone{}, fmt.Errorf("%w: free_above must be a non-negative number", ErrInvalidInput)
	}
	return repo.DeliveryZone{
		Name:      in.Name,
		Areas:     in.Areas,
		BaseFee:   baseFee,
		PerKmRate: perKm,
		FreeAbove: freeAbove,
		ETA:       in.ETA,
	}, nil
}

func optionalAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero, errors.New("invalid amount")
	}
	return d, nil
}
