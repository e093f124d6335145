package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/gbdelivering/backend-butchery/internal/pricing"
	"github.com/gbdelivering/backend-butchery/internal/repo"
)

// Sentinel errors surfaced by the cart service.
var (
	ErrProductNotFound = errors.New("product not found")
	ErrLineNotFound    = errors.New("cart line not found")
)

type cartStore interface {
	Find(ctx context.Context, userID, productID pgtype.UUID) (repo.CartLine, error)
	List(ctx context.Context, userID pgtype.UUID) ([]repo.CartLine, error)
	Upsert(ctx context.Context, l repo.CartLine) (repo.CartLine, error)
	Delete(ctx context.Context, userID, productID pgtype.UUID) error
	Clear(ctx context.Context, userID pgtype.UUID) error
}

type productGetter interface {
	Get(ctx context.Context, id pgtype.UUID) (repo.Product, error)
}

type discountResolver interface {
	EffectiveDiscount(ctx context.Context, product repo.Product) (decimal.Decimal, error)
}

// Service manages customer carts. Adding a product that is already in the
// cart merges quantities and recomputes the line price from scratch, so the
// stored price always equals the price of the full merged quantity.
type Service struct {
	Carts     cartStore
	Products  productGetter
	Discounts discountResolver
}

// Line is a cart entry joined with its product.
type Line struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Category    string `json:"category"`
	Quantity    string `json:"quantity"`
	Unit        string `json:"unit"`
	Price       string `json:"price"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Contents is the full cart view.
type Contents struct {
	Lines []Line `json:"items"`
	Total string `json:"total"`
}

// AddLine validates the requested quantity against the product's bounds and
// upserts the (user, product) line. The requested quantity is validated
// alone, normalized to the pricing mode's unit; the merged quantity is
// allowed to exceed max so repeat purchases are not blocked.
func (s *Service) AddLine(ctx context.Context, userID pgtype.UUID, productID string, qty decimal.Decimal, unit string) (repo.CartLine, error) {
	pid, err := repo.ToUUID(productID)
	if err != nil {
		return repo.CartLine{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	product, err := s.Products.Get(ctx, pid)
	if errors.Is(err, repo.ErrNotFound) {
		return repo.CartLine{}, ErrProductNotFound
	}
	if err != nil {
		return repo.CartLine{}, err
	}
	effectiveUnit := unit
	if effectiveUnit == "" {
		effectiveUnit = product.Unit
	}
	mode := product.PricingMode
	if mode == "" {
		mode = pricing.ModePerPiece
	}

	// Order bounds are denominated in the pricing mode's unit, so a gram
	// request is normalized before it is checked against kg bounds.
	normalized := pricing.NormalizeQuantity(qty, effectiveUnit, mode)
	if err := pricing.ValidateQuantity(normalized, product.MinQty, product.MaxQty); err != nil {
		return repo.CartLine{}, err
	}

	merged := qty
	if existing, err := s.Carts.Find(ctx, userID, pid); err == nil {
		merged = existing.Quantity.Add(qty)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return repo.CartLine{}, err
	}

	discount, err := s.effectiveDiscount(ctx, product)
	if err != nil {
		return repo.CartLine{}, err
	}
	price := pricing.LinePrice(product.Price, merged, effectiveUnit, mode, discount)

	return s.Carts.Upsert(ctx, repo.CartLine{
		UserID:    userID,
		ProductID: pid,
		Quantity:  merged,
		Unit:      effectiveUnit,
		Price:     price,
	})
}

// List returns the cart contents with product details and the running total.
func (s *Service) List(ctx context.Context, userID pgtype.UUID) (Contents, error) {
	lines, err := s.Carts.List(ctx, userID)
	if err != nil {
		return Contents{}, err
	}
	out := Contents{Lines: make([]Line, 0, len(lines))}
	total := decimal.Zero
	for _, l := range lines {
		product, err := s.Products.Get(ctx, l.ProductID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return Contents{}, err
		}
		out.Lines = append(out.Lines, Line{
			ProductID:   repo.UUIDString(l.ProductID),
			ProductName: product.Name,
			Category:    product.Category,
			Quantity:    l.Quantity.String(),
			Unit:        l.Unit,
			Price:       l.Price.String(),
			ImageURL:    repo.TextValue(product.ImageURL),
		})
		total = total.Add(l.Price)
	}
	out.Total = total.String()
	return out, nil
}

// RemoveLine deletes a single product from the cart.
func (s *Service) RemoveLine(ctx context.Context, userID pgtype.UUID, productID string) error {
	pid, err := repo.ToUUID(productID)
	if err != nil {
		return ErrLineNotFound
	}
	err = s.Carts.Delete(ctx, userID, pid)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrLineNotFound
	}
	return err
}

// Clear drops every line in the customer's cart.
func (s *Service) Clear(ctx context.Context, userID pgtype.UUID) error {
	return s.Carts.Clear(ctx, userID)
}

func (s *Service) effectiveDiscount(ctx context.Context, product repo.Product) (decimal.Decimal, error) {
	if s.Discounts == nil {
		return product.DiscountPercent, nil
	}
	return s.Discounts.EffectiveDiscount(ctx, product)
}
