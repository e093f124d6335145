package settings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/gbdelivering/backend-butchery/internal/common"
	"github.com/gbdelivering/backend-butchery/internal/repo"
)

// Handler exposes settings administration.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// AdminRoutes mounts settings endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/settings", h.get)
	r.Put("/settings", h.update)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	current, err := h.service.Load(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toDTO(current)})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid JSON body", nil)
		return
	}
	updated, err := h.service.Update(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toDTO(updated)})
}

type settingsDTO struct {
	Version            int32           `json:"version"`
	Currency           string          `json:"currency"`
	MaintenanceMode    bool            `json:"maintenance_mode"`
	LowStockThreshold  int32           `json:"low_stock_threshold"`
	DefaultDeliveryFee decimal.Decimal `json:"default_delivery_fee"`
	OrderStatuses      []string        `json:"order_statuses"`
}

func toDTO(s repo.StoreSettings) settingsDTO {
	return settingsDTO{
		Version:            s.Version,
		Currency:           s.Currency,
		MaintenanceMode:    s.MaintenanceMode,
		LowStockThreshold:  s.LowStockThreshold,
		DefaultDeliveryFee: s.DefaultDeliveryFee,
		OrderStatuses:      s.OrderStatuses,
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error(), nil)
	case errors.Is(err, repo.ErrVersionConflict):
		common.JSONError(w, http.StatusConflict, "VERSION_CONFLICT", "settings were changed by another admin, reload and retry", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
	}
}
