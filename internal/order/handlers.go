package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/gbdelivering/backend-butchery/internal/common"
	"github.com/gbdelivering/backend-butchery/internal/repo"
)

// Handler exposes order endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CustomerRoutes mounts endpoints for the authenticated customer.
func (h *Handler) CustomerRoutes(r chi.Router) {
	r.Get("/orders", h.listMine)
	r.Get("/orders/{id}", h.getMine)
	r.Post("/orders/{id}/cancel", h.cancel)
}

// AdminRoutes mounts order administration endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/orders", h.listAll)
	r.Get("/orders/{id}", h.getAny)
	r.Patch("/orders/{id}/status", h.setStatus)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	orders, err := h.service.ListMine(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toSummaries(orders)})
}

func (h *Handler) getMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	orderID, err := repo.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	detail, err := h.service.GetMine(r.Context(), userID, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toDetail(detail)})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	orderID, err := repo.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	o, err := h.service.Cancel(r.Context(), userID, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toSummary(o)})
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 50)
	orders, err := h.service.ListAll(r.Context(), int32(perPage), int32((page-1)*perPage))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       toSummaries(orders),
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(orders)},
	})
}

func (h *Handler) getAny(w http.ResponseWriter, r *http.Request) {
	orderID, err := repo.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	detail, err := h.service.GetAny(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toDetail(detail)})
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := repo.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "status is required", nil)
		return
	}
	o, err := h.service.SetStatus(r.Context(), orderID, body.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toSummary(o)})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, ErrInvalidTransition):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

type summaryDTO struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method"`
	District      string `json:"district,omitempty"`
	CouponCode    string `json:"coupon_code,omitempty"`
	Subtotal      string `json:"subtotal"`
	Discount      string `json:"discount"`
	DeliveryFee   string `json:"delivery_fee"`
	Total         string `json:"total"`
	CreatedAt     string `json:"created_at"`
}

type itemDTO struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  string `json:"quantity"`
	Unit      string `json:"unit"`
	Price     string `json:"price"`
}

func toSummary(o repo.Order) summaryDTO {
	return summaryDTO{
		ID:            repo.UUIDString(o.ID),
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		District:      repo.TextValue(o.District),
		CouponCode:    repo.TextValue(o.CouponCode),
		Subtotal:      o.Subtotal.String(),
		Discount:      o.Discount.String(),
		DeliveryFee:   o.DeliveryFee.String(),
		Total:         o.Total.String(),
		CreatedAt:     o.CreatedAt.Time.UTC().Format(time.RFC3339),
	}
}

func toSummaries(orders []repo.Order) []summaryDTO {
	out := make([]summaryDTO, 0, len(orders))
	for _, o := range orders {
		out = append(out, toSummary(o))
	}
	return out
}

func toDetail(d Detail) map[string]any {
	items := make([]itemDTO, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, itemDTO{
			ProductID: repo.UUIDString(it.ProductID),
			Name:      it.Name,
			Quantity:  it.Quantity.String(),
			Unit:      it.Unit,
			Price:     it.Price.String(),
		})
	}
	return map[string]any{
		"order": toSummary(d.Order),
		"items": items,
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
