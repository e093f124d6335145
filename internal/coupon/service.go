package coupon

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

// ErrInvalidInput marks a rejected coupon payload.
var ErrInvalidInput = errors.New("invalid coupon input")

type couponStore interface {
	Create(ctx context.Context, c repo.Coupon) (repo.Coupon, error)
	GetByCode(ctx context.Context, code string) (repo.Coupon, error)
	List(ctx context.Context) ([]repo.Coupon, error)
	Update(ctx context.Context, c repo.Coupon) (repo.Coupon, error)
	Delete(ctx context.Context, id pgtype.UUID) error
}

// Service validates coupon codes against carts and manages the admin CRUD.
type Service struct {
	Store    couponStore
	Now      func() time.Time
	validate *validator.Validate
}

// NewService constructs the coupon service.
func NewService(store couponStore) *Service {
	return &Service{Store: store, Now: time.Now, validate: validator.New()}
}

// Result is the outcome of validating a code against a cart.
type Result struct {
	Code     string `json:"code"`
	Discount string `json:"discount"`
	NewTotal string `json:"new_total"`
}

// Validate looks up the code and computes the discount for the given cart
// items. The discount never exceeds the cart total.
func (s *Service) Validate(ctx context.Context, code string, items []Item) (Result, error) {
	c, err := s.Store.GetByCode(ctx, code)
	if errors.Is(err, repo.ErrNotFound) {
		return Result{}, ErrCouponNotFound
	}
	if err != nil {
		return Result{}, err
	}
	rule := ToRule(c)

	cartTotal := decimal.Zero
	for _, it := range items {
		cartTotal = cartTotal.Add(it.LineTotal)
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	if err := rule.Validate(now, cartTotal); err != nil {
		return Result{}, err
	}
	discount := rule.Compute(EligibleTotal(items, rule))
	if discount.GreaterThan(cartTotal) {
		discount = cartTotal
	}
	return Result{
		Code:     c.Code,
		Discount: discount.String(),
		NewTotal: cartTotal.Sub(discount).String(),
	}, nil
}

// ToRule projects a stored coupon into its pure rule form.
func ToRule(c repo.Coupon) Rule {
	var expires time.Time
	if c.ExpiresAt.Valid {
		expires = c.ExpiresAt.Time
	}
	return Rule{
		Code:            c.Code,
		Type:            c.DiscountType,
		Amount:          c.Amount,
		MinSpend:        c.MinAmount,
		MaxAmount:       c.MaxAmount,
		ExpiresAt:       expires,
		UsageLimit:      c.UsageLimit,
		UsageCount:      c.UsageCount,
		IncludeProducts: c.IncludeProducts,
		ExcludeProducts: c.ExcludeProducts,
	}
}

// Input is the admin payload for creating or updating a coupon.
type Input struct {
	Code            string   `json:"code" validate:"required"`
	DiscountType    string   `json:"discount_type" validate:"required,oneof=fixed_cart percentage"`
	Amount          string   `json:"amount" validate:"required"`
	MinAmount       string   `json:"min_amount"`
	MaxAmount       string   `json:"max_amount"`
	ExpiresAt       string   `json:"expires_at"`
	UsageLimit      int32    `json:"usage_limit" validate:"gte=0"`
	Active          bool     `json:"active"`
	IncludeProducts []string `json:"include_products" validate:"omitempty,dive,uuid4"`
	ExcludeProducts []string `json:"exclude_products" validate:"omitempty,dive,uuid4"`
}

// Create validates and persists a new coupon.
func (s *Service) Create(ctx context.Context, in Input) (repo.Coupon, error) {
	c, err := s.toRecord(in)
	if err != nil {
		return repo.Coupon{}, err
	}
	return s.Store.Create(ctx, c)
}

// Update overwrites an existing coupon's rule fields.
func (s *Service) Update(ctx context.Context, id pgtype.UUID, in Input) (repo.Coupon, error) {
	c, err := s.toRecord(in)
	if err != nil {
		return repo.Coupon{}, err
	}
	c.ID = id
	return s.Store.Update(ctx, c)
}

// List returns all coupons.
func (s *Service) List(ctx context.Context) ([]repo.Coupon, error) {
	return s.Store.List(ctx)
}

// Delete removes a coupon.
func (s *Service) Delete(ctx context.Context, id pgtype.UUID) error {
	return s.Store.Delete(ctx, id)
}

func (s *Service) toRecord(in Input) (repo.Coupon, error) {
	if err := s.validate.Struct(in); err != nil {
		return repo.Coupon{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	amount, err := decimal.NewFromString(in.Amount)
	if err != nil || !amount.IsPositive() {
		return repo.Coupon{}, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if in.DiscountType == TypePercentage && amount.GreaterThan(decimal.NewFromInt(100)) {
		return repo.Coupon{}, fmt.Errorf("%w: percentage must not exceed 100", ErrInvalidInput)
	}
	minAmt, err := optionalAmount(in.MinAmount)
	if err != nil {
		return repo.Coupon{}, fmt.Errorf("%w: min_amount must be a non-negative number", ErrInvalidInput)
	}
	maxAmt, err := optionalAmount(in.MaxAmount)
	if err != nil {
		return repo.Coupon{}, fmt.Errorf("%w: max_amount must be a non-negative number", ErrInvalidInput)
	}
	var expires pgtype.Timestamptz
	if in.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, in.ExpiresAt)
		if err != nil {
			return repo.Coupon{}, fmt.Errorf("%w: expires_at must be RFC3339", ErrInvalidInput)
		}
		expires = repo.Timestamp(parsed)
	}
	return repo.Coupon{
		Code:            in.Code,
		DiscountType:    in.DiscountType,
		Amount:          amount,
		MinAmount:       minAmt,
		MaxAmount:       maxAmt,
		ExpiresAt:       expires,
		UsageLimit:      in.UsageLimit,
		Active:          in.Active,
		IncludeProducts: in.IncludeProducts,
		ExcludeProducts: in.ExcludeProducts,
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
