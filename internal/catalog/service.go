package catalog

import (
	"context"
	"errors"
	"fmt"

	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gbdelivering/backend-butchery/internal/events"
	"github.com/gbdelivering/backend-butchery/internal/obs"
	"github.com/gbdelivering/backend-butchery/internal/pricing"
	"github.com/gbdelivering/backend-butchery/internal/repo"
)

// Sentinel errors surfaced by the catalog service.
var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidInput    = errors.New("invalid product input")
)

type productStore interface {
	Create(ctx context.Context, p repo.Product) (repo.Product, error)
	Get(ctx context.Context, id pgtype.UUID) (repo.Product, error)
	List(ctx context.Context, category string, limit, offset int32) ([]repo.Product, error)
	Update(ctx context.Context, p repo.Product) (repo.Product, error)
	UpdateStock(ctx context.Context, id pgtype.UUID, stock int32) (repo.Product, error)
	Delete(ctx context.Context, id pgtype.UUID) error
}

type discountResolver interface {
	EffectiveDiscount(ctx context.Context, product repo.Product) (decimal.Decimal, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (repo.DomainEvent, error)
}

type settingsLoader interface {
	Load(ctx context.Context) (repo.StoreSettings, error)
}

// Service manages the product catalog: admin CRUD, cached public reads,
// and stock updates with low-stock alerting.
type Service struct {
	Store     productStore
	Cache     *Cache
	Discounts discountResolver
	Bus       eventEmitter
	Settings  settingsLoader
	Logger    zerolog.Logger
	validate  *validator.Validate
}

// NewService constructs the catalog service.
func NewService(store productStore, cache *Cache, discounts discountResolver, bus eventEmitter, settings settingsLoader, logger zerolog.Logger) *Service {
	return &Service{
		Store:     store,
		Cache:     cache,
		Discounts: discounts,
		Bus:       bus,
		Settings:  settings,
		Logger:    logger,
		validate:  validator.New(),
	}
}

// Input is the admin payload for creating or updating a product.
type Input struct {
	Name            string  `json:"name" validate:"required"`
	Description     string  `json:"description"`
	Category        string  `json:"category" validate:"required"`
	Price           string  `json:"price" validate:"required"`
	Stock           int32   `json:"stock" validate:"gte=0"`
	Unit            string  `json:"unit" validate:"required,oneof=kg gram piece"`
	PricingMode     string  `json:"pricing_mode" validate:"required,oneof=per_kg per_gram per_piece"`
	MinQty          string  `json:"min_qty"`
	MaxQty          string  `json:"max_qty"`
	DiscountPercent string  `json:"discount_percent"`
	IsSpecialOffer  bool    `json:"is_special_offer"`
	ImageURL        *string `json:"image_url"`
}

// View is the public product representation, carrying the projected
// effective discount rather than the stored column alone.
type View struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	Price           string  `json:"price"`
	Stock           int32   `json:"stock"`
	Unit            string  `json:"unit"`
	PricingMode     string  `json:"pricing_mode"`
	MinQty          string  `json:"min_qty"`
	MaxQty          string  `json:"max_qty"`
	DiscountPercent string  `json:"discount_percent"`
	IsSpecialOffer  bool    `json:"is_special_offer"`
	ImageURL        *string `json:"image_url,omitempty"`
}

// Create validates and persists a new product.
func (s *Service) Create(ctx context.Context, in Input) (View, error) {
	p, err := s.toRecord(in)
	if err != nil {
		return View{}, err
	}
	created, err := s.Store.Create(ctx, p)
	if err != nil {
		return View{}, err
	}
	s.Cache.Invalidate(ctx)
	return s.project(ctx, created)
}

// Update overwrites a product's mutable fields.
func (s *Service) Update(ctx context.Context, id pgtype.UUID, in Input) (View, error) {
	p, err := s.toRecord(in)
	if err != nil {
		return View{}, err
	}
	p.ID = id
	updated, err := s.Store.Update(ctx, p)
	if errors.Is(err, repo.ErrNotFound) {
		return View{}, ErrProductNotFound
	}
	if err != nil {
		return View{}, err
	}
	s.Cache.Invalidate(ctx)
	return s.project(ctx, updated)
}

// Get loads one product with its projected discount, served from cache
// when possible.
func (s *Service) Get(ctx context.Context, id pgtype.UUID) (View, error) {
	key := "catalog:product:" + repo.UUIDString(id)
	var cached View
	if s.Cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}
	p, err := s.Store.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return View{}, ErrProductNotFound
	}
	if err != nil {
		return View{}, err
	}
	view, err := s.project(ctx, p)
	if err != nil {
		return View{}, err
	}
	s.Cache.SetJSON(ctx, key, view)
	return view, nil
}

// List returns products filtered by category, cached per page.
func (s *Service) List(ctx context.Context, category string, limit, offset int32) ([]View, error) {
	key := fmt.Sprintf("catalog:products:%s:%d:%d", category, limit, offset)
	var cached []View
	if s.Cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}
	rows, err := s.Store.List(ctx, category, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(rows))
	for _, p := range rows {
		view, err := s.project(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	s.Cache.SetJSON(ctx, key, out)
	return out, nil
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, id pgtype.UUID) error {
	err := s.Store.Delete(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrProductNotFound
	}
	if err != nil {
		return err
	}
	s.Cache.Invalidate(ctx)
	return nil
}

// UpdateStock persists the new stock level. When it lands at or below the
// configured low-stock threshold a stock.low event is emitted; notification
// failure never fails the update.
func (s *Service) UpdateStock(ctx context.Context, id pgtype.UUID, stock int32) (View, error) {
	if stock < 0 {
		return View{}, fmt.Errorf("%w: stock must not be negative", ErrInvalidInput)
	}
	p, err := s.Store.UpdateStock(ctx, id, stock)
	if errors.Is(err, repo.ErrNotFound) {
		return View{}, ErrProductNotFound
	}
	if err != nil {
		return View{}, err
	}
	s.Cache.Invalidate(ctx)

	threshold := int32(10)
	if s.Settings != nil {
		if settings, err := s.Settings.Load(ctx); err == nil && settings.LowStockThreshold > 0 {
			threshold = settings.LowStockThreshold
		}
	}
	if p.Stock <= threshold && s.Bus != nil {
		if obs.LowStockEventsTotal != nil {
			obs.LowStockEventsTotal.Inc()
		}
		payload := map[string]any{
			"productId":   repo.UUIDString(p.ID),
			"productName": p.Name,
			"stock":       p.Stock,
		}
		if _, err := s.Bus.Emit(ctx, events.TopicStockLow, repo.UUIDString(p.ID), payload); err != nil {
			s.Logger.Warn().Err(err).Str("product_id", repo.UUIDString(p.ID)).Msg("low stock notification failed")
		}
	}
	return s.project(ctx, p)
}

func (s *Service) project(ctx context.Context, p repo.Product) (View, error) {
	discount := p.DiscountPercent
	if s.Discounts != nil {
		resolved, err := s.Discounts.EffectiveDiscount(ctx, p)
		if err != nil {
			return View{}, err
		}
		discount = resolved
	}
	var imageURL *string
	if p.ImageURL.Valid {
		u := p.ImageURL.String
		imageURL = &u
	}
	return View{
		ID:              repo.UUIDString(p.ID),
		Name:            p.Name,
		Description:     p.Description,
		Category:        p.Category,
		Price:           p.Price.String(),
		Stock:           p.Stock,
		Unit:            p.Unit,
		PricingMode:     p.PricingMode,
		MinQty:          p.MinQty.String(),
		MaxQty:          p.MaxQty.String(),
		DiscountPercent: discount.String(),
		IsSpecialOffer:  p.IsSpecialOffer,
		ImageURL:        imageURL,
	}, nil
}

func (s *Service) toRecord(in Input) (repo.Product, error) {
	if err := s.validate.Struct(in); err != nil {
		return repo.Product{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	price, err := decimal.NewFromString(in.Price)
	if err != nil || price.IsNegative() {
		return repo.Product{}, fmt.Errorf("%w: price must be a non-negative number", ErrInvalidInput)
	}
	minQty, err := parseQty(in.MinQty)
	if err != nil {
		return repo.Product{}, fmt.Errorf("%w: min_qty must be a non-negative number", ErrInvalidInput)
	}
	maxQty, err := parseQty(in.MaxQty)
	if err != nil {
		return repo.Product{}, fmt.Errorf("%w: max_qty must be a non-negative number", ErrInvalidInput)
	}
	if !maxQty.IsZero() && minQty.GreaterThan(maxQty) {
		return repo.Product{}, fmt.Errorf("%w: min_qty must not exceed max_qty", ErrInvalidInput)
	}
	discount, err := parseQty(in.DiscountPercent)
	if err != nil || discount.GreaterThan(decimal.NewFromInt(100)) {
		return repo.Product{}, fmt.Errorf("%w: discount_percent must be between 0 and 100", ErrInvalidInput)
	}
	unit := in.Unit
	if unit == "" {
		unit = pricing.UnitKg
	}
	return repo.Product{
		Name:            in.Name,
		Description:     in.Description,
		Category:        in.Category,
		Price:           price,
		Stock:           in.Stock,
		Unit:            unit,
		PricingMode:     in.PricingMode,
		MinQty:          minQty,
		MaxQty:          maxQty,
		DiscountPercent: discount,
		IsSpecialOffer:  in.IsSpecialOffer,
		ImageURL:        repo.NullableText(in.ImageURL),
	}, nil
}

func parseQty(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero, errors.New("invalid quantity")
	}
	return d, nil
}
