package delivery

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/gbdelivering/backend-butchery/internal/common"
	"github.com/gbdelivering/backend-butchery/internal/repo"
)

// Handler exposes delivery endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the public fee calculator and admin zone CRUD.
func (h *Handler) Routes(admin chi.Router, public chi.Router) {
	public.Post("/delivery/calculate-fee", h.calculateFee)
	admin.Get("/delivery/zones", h.list)
	admin.Post("/delivery/zones", h.create)
	admin.Put("/delivery/zones/{id}", h.update)
	admin.Delete("/delivery/zones/{id}", h.delete)
}

type feeRequest struct {
	District   string `json:"district"`
	OrderTotal string `json:"order_total"`
}

func (h *Handler) calculateFee(w http.ResponseWriter, r *http.Request) {
	var req feeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	total := decimal.Zero
	if req.OrderTotal != "" {
		parsed, err := decimal.NewFromString(req.OrderTotal)
		if err != nil || parsed.IsNegative() {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "order_total must be a non-negative number", nil)
			return
		}
		total = parsed
	}
	quote, err := h.service.QuoteFee(r.Context(), req.District, total)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": quote})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	zones, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]zoneDTO, 0, len(zones))
	for _, z := range zones {
		out = append(out, toDTO(z))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	z, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toDTO(z)})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := repo.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid zone id", nil)
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	z, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toDTO(z)})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := repo.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid zone id", nil)
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
	case errors.Is(err, repo.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "delivery zone not found", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

type zoneDTO struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Areas     []string `json:"areas"`
	BaseFee   string   `json:"base_fee"`
	PerKmRate string   `json:"per_km_rate"`
	FreeAbove string   `json:"free_above"`
	ETA       string   `json:"eta,omitempty"`
	Position  int32    `json:"position"`
}

func toDTO(z repo.DeliveryZone) zoneDTO {
	return zoneDTO{
		ID:        repo.UUIDString(z.ID),
		Name:      z.Name,
		Areas:     z.Areas,
		BaseFee:   z.BaseFee.String(),
		PerKmRate: z.PerKmRate.String(),
		FreeAbove: z.FreeAbove.String(),
		ETA:       z.ETA,
		Position:  z.Position,
	}
}
