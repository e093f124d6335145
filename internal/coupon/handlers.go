package coupon

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/gbdelivering/backend-butchery/internal/common"
	"github.com/gbdelivering/backend-butchery/internal/repo"
)

// Handler exposes coupon endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the public validate endpoint and admin CRUD.
func (h *Handler) Routes(admin chi.Router, public chi.Router) {
	public.Post("/coupons/validate", h.validateCode)
	admin.Get("/coupons", h.list)
	admin.Post("/coupons", h.create)
	admin.Put("/coupons/{id}", h.update)
	admin.Delete("/coupons/{id}", h.delete)
}

type validateRequest struct {
	Code  string `json:"code"`
	Items []struct {
		ProductID string `json:"product_id"`
		LineTotal string `json:"line_total"`
	} `json:"items"`
}

func (h *Handler) validateCode(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	items := make([]Item, 0, len(req.Items))
	for _, it := range req.Items {
		total, err := decimal.NewFromString(it.LineTotal)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "line_total must be a number", nil)
			return
		}
		items = append(items, Item{ProductID: it.ProductID, LineTotal: total})
	}
	result, err := h.service.Validate(r.Context(), req.Code, items)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]couponDTO, 0, len(rows))
	for _, c := range rows {
		out = append(out, toDTO(c))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	c, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toDTO(c)})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := repo.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid coupon id", nil)
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	c, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toDTO(c)})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := repo.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid coupon id", nil)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"deleted": true}})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrCouponNotFound), errors.Is(err, repo.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "coupon not found", nil)
	case errors.Is(err, ErrCouponExpired),
		errors.Is(err, ErrCouponExhausted),
		errors.Is(err, ErrBelowMinimum),
		errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

type couponDTO struct {
	ID              string   `json:"id"`
	Code            string   `json:"code"`
	DiscountType    string   `json:"discount_type"`
	Amount          string   `json:"amount"`
	MinAmount       string   `json:"min_amount"`
	MaxAmount       string   `json:"max_amount"`
	ExpiresAt       string   `json:"expires_at,omitempty"`
	UsageLimit      int32    `json:"usage_limit"`
	UsageCount      int32    `json:"usage_count"`
	Active          bool     `json:"active"`
	IncludeProducts []string `json:"include_products,omitempty"`
	ExcludeProducts []string `json:"exclude_products,omitempty"`
}

func toDTO(c repo.Coupon) couponDTO {
	dto := couponDTO{
		ID:              repo.UUIDString(c.ID),
		Code:            c.Code,
		DiscountType:    c.DiscountType,
		Amount:          c.Amount.String(),
		MinAmount:       c.MinAmount.String(),
		MaxAmount:       c.MaxAmount.String(),
		UsageLimit:      c.UsageLimit,
		UsageCount:      c.UsageCount,
		Active:          c.Active,
		IncludeProducts: c.IncludeProducts,
		ExcludeProducts: c.ExcludeProducts,
	}
	if c.ExpiresAt.Valid {
		dto.ExpiresAt = c.ExpiresAt.Time.UTC().Format(time.RFC3339)
	}
	return dto
}
