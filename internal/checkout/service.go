package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gbdelivering/backend-butchery/internal/coupon"
	"github.com/gbdelivering/backend-butchery/internal/events"
	"github.com/gbdelivering/backend-butchery/internal/obs"
	"github.com/gbdelivering/backend-butchery/internal/pricing"
	"github.com/gbdelivering/backend-butchery/internal/repo"
)

// Sentinel errors surfaced by checkout.
var (
	ErrEmptyCart = errors.New("cart is empty")
)

// TxStores bundles the repositories bound to one transaction.
type TxStores struct {
	Carts    cartStore
	Orders   orderStore
	Coupons  couponStore
	Products productGetter
}

// TxRunner executes fn inside a single database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(TxStores) error) error
}

type cartStore interface {
	List(ctx context.Context, userID pgtype.UUID) ([]repo.CartLine, error)
	Clear(ctx context.Context, userID pgtype.UUID) error
}

type orderStore interface {
	Create(ctx context.Context, o repo.Order) (repo.Order, error)
	AddItem(ctx context.Context, it repo.OrderItem) error
}

type couponStore interface {
	GetByCode(ctx context.Context, code string) (repo.Coupon, error)
	Redeem(ctx context.Context, id pgtype.UUID) error
}

type productGetter interface {
	Get(ctx context.Context, id pgtype.UUID) (repo.Product, error)
}

type feeQuoter interface {
	QuoteFee(ctx context.Context, district string, orderTotal decimal.Decimal) (Quote, error)
}

// Quote mirrors the delivery quote shape checkout needs.
type Quote struct {
	Zone string
	Fee  decimal.Decimal
}

type eventEmitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (repo.DomainEvent, error)
}

type settingsLoader interface {
	Load(ctx context.Context) (repo.StoreSettings, error)
}

type userGetter interface {
	Get(ctx context.Context, id pgtype.UUID) (repo.User, error)
}

// Service turns a cart into an order. The order header, frozen line items,
// coupon redemption and cart clearing all commit in one transaction; the
// order.created notification fires after commit and never rolls it back.
type Service struct {
	Tx       TxRunner
	Delivery feeQuoter
	Bus      eventEmitter
	Settings settingsLoader
	Users    userGetter
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Request is the checkout payload.
type Request struct {
	PaymentMethod string `json:"payment_method"`
	Note          string `json:"note"`
	District      string `json:"district"`
	CouponCode    string `json:"coupon_code"`
}

// PlaceOrder runs the checkout pipeline for the customer's current cart.
func (s *Service) PlaceOrder(ctx context.Context, userID pgtype.UUID, req Request) (repo.Order, error) {
	var placed repo.Order
	err := s.Tx.InTx(ctx, func(stores TxStores) error {
		lines, err := stores.Carts.List(ctx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		lineTotals := make([]decimal.Decimal, 0, len(lines))
		items := make([]coupon.Item, 0, len(lines))
		for _, l := range lines {
			lineTotals = append(lineTotals, l.Price)
			items = append(items, coupon.Item{ProductID: repo.UUIDString(l.ProductID), LineTotal: l.Price})
		}

		subtotal := decimal.Zero
		for _, t := range lineTotals {
			subtotal = subtotal.Add(t)
		}

		discount := decimal.Zero
		var couponCode pgtype.Text
		if req.CouponCode != "" {
			c, err := stores.Coupons.GetByCode(ctx, req.CouponCode)
			if errors.Is(err, repo.ErrNotFound) {
				return coupon.ErrCouponNotFound
			}
			if err != nil {
				return err
			}
			rule := coupon.ToRule(c)
			now := time.Now()
			if s.Now != nil {
				now = s.Now()
			}
			if err := rule.Validate(now, subtotal); err != nil {
				return err
			}
			discount = rule.Compute(coupon.EligibleTotal(items, rule))
			if err := stores.Coupons.Redeem(ctx, c.ID); err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return coupon.ErrCouponExhausted
				}
				return err
			}
			couponCode = repo.Text(c.Code)
		}

		quote, err := s.Delivery.QuoteFee(ctx, req.District, subtotal.Sub(discount))
		if err != nil {
			return err
		}

		summary := pricing.Compute(lineTotals, discount, quote.Fee)

		status := "pending"
		if s.Settings != nil {
			if settings, err := s.Settings.Load(ctx); err == nil && len(settings.OrderStatuses) > 0 {
				status = settings.OrderStatuses[0]
			}
		}

		order, err := stores.Orders.Create(ctx, repo.Order{
			UserID:        userID,
			Status:        status,
			PaymentMethod: req.PaymentMethod,
			Note:          repo.Text(req.Note),
			District:      repo.Text(req.District),
			CouponCode:    couponCode,
			Subtotal:      summary.Subtotal,
			Discount:      summary.Discount,
			DeliveryFee:   summary.Delivery,
			Total:         summary.Total,
		})
		if err != nil {
			return err
		}
		for _, l := range lines {
			name := ""
			if stores.Products != nil {
				if p, err := stores.Products.Get(ctx, l.ProductID); err == nil {
					name = p.Name
				}
			}
			if err := stores.Orders.AddItem(ctx, repo.OrderItem{
				OrderID:   order.ID,
				ProductID: l.ProductID,
				Name:      name,
				Quantity:  l.Quantity,
				Unit:      l.Unit,
				Price:     l.Price,
			}); err != nil {
				return err
			}
		}
		// checkout clears the whole cart, not just the ordered lines
		if err := stores.Carts.Clear(ctx, userID); err != nil {
			return err
		}
		placed = order
		return nil
	})
	if err != nil {
		if obs.OrdersPlacedTotal != nil {
			obs.OrdersPlacedTotal.WithLabelValues("error").Inc()
		}
		return repo.Order{}, err
	}
	if obs.OrdersPlacedTotal != nil {
		obs.OrdersPlacedTotal.WithLabelValues("ok").Inc()
	}
	s.notify(ctx, placed)
	return placed, nil
}

func (s *Service) notify(ctx context.Context, order repo.Order) {
	if s.Bus == nil {
		return
	}
	payload := map[string]any{
		"orderId":         repo.UUIDString(order.ID),
		"total":           order.Total.String(),
		"deliveryAddress": repo.TextValue(order.District),
	}
	if s.Users != nil {
		if u, err := s.Users.Get(ctx, order.UserID); err == nil {
			payload["email"] = u.Email
		}
	}
	if _, err := s.Bus.Emit(ctx, events.TopicOrderCreated, repo.UUIDString(order.ID), payload); err != nil {
		s.Logger.Warn().Err(err).Str("order_id", repo.UUIDString(order.ID)).Msg("order notification failed")
	}
}

// PgTxRunner runs checkout transactions on a pgx pool.
type PgTxRunner struct {
	Pool *pgxpool.Pool
}

// InTx implements TxRunner, binding the repositories to one transaction.
func (r PgTxRunner) InTx(ctx context.Context, fn func(TxStores) error) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("checkout: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stores := TxStores{
		Carts:    repo.Carts{DB: tx},
		Orders:   repo.Orders{DB: tx},
		Coupons:  repo.Coupons{DB: tx},
		Products: repo.Products{DB: tx},
	}
	if err := fn(stores); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
