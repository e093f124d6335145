package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/gbdelivering/backend-butchery/internal/common"
	"github.com/gbdelivering/backend-butchery/internal/coupon"
	"github.com/gbdelivering/backend-butchery/internal/lock"
	"github.com/gbdelivering/backend-butchery/internal/repo"
)

// submitGuard serializes order submission per customer so a double-clicked
// checkout cannot place two orders from the same cart.
type submitGuard interface {
	Try(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Handler exposes the checkout endpoint.
type Handler struct {
	service *Service
	guard   submitGuard
}

// NewHandler constructs a Handler. The guard may be nil, in which case
// duplicate submissions race.
func NewHandler(service *Service, guard submitGuard) *Handler {
	return &Handler{service: service, guard: guard}
}

// Routes mounts checkout on an authenticated router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/orders", h.placeOrder)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if req.PaymentMethod == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "payment_method is required", nil)
		return
	}
	var order repo.Order
	place := func(ctx context.Context) error {
		var err error
		order, err = h.service.PlaceOrder(ctx, userID, req)
		return err
	}
	var err error
	if h.guard != nil {
		err = h.guard.Try(r.Context(), "checkout:"+repo.UUIDString(userID), 30*time.Second, place)
	} else {
		err = place(r.Context())
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": orderDTO(order)})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "cart is empty", nil)
	case errors.Is(err, coupon.ErrCouponNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "coupon not found", nil)
	case errors.Is(err, coupon.ErrCouponExpired),
		errors.Is(err, coupon.ErrCouponExhausted),
		errors.Is(err, coupon.ErrBelowMinimum):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, lock.ErrHeld):
		common.JSONError(w, http.StatusConflict, "CHECKOUT_IN_PROGRESS", "an order is already being placed for this account", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

func orderDTO(o repo.Order) map[string]any {
	return map[string]any{
		"id":             repo.UUIDString(o.ID),
		"status":         o.Status,
		"payment_method": o.PaymentMethod,
		"subtotal":       o.Subtotal.String(),
		"discount":       o.Discount.String(),
		"delivery_fee":   o.DeliveryFee.String(),
		"total":          o.Total.String(),
	}
}

func authedUser(r *http.Request) (pgtype.UUID, bool) {
	raw, ok := common.UserID(r.Context())
	if !ok {
		return pgtype.UUID{}, false
	}
	id, err := repo.ToUUID(raw)
	if err != nil {
		return pgtype.UUID{}, false
	}
	return id, true
}
