package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/gbdelivering/backend-butchery/internal/common"
	"github.com/gbdelivering/backend-butchery/internal/repo"
)

// Handler exposes the payment endpoints.
type Handler struct {
	momo *MoMo
	dpo  *DPO
}

// NewHandler constructs a Handler.
func NewHandler(momo *MoMo, dpo *DPO) *Handler {
	return &Handler{momo: momo, dpo: dpo}
}

// Routes mounts payment endpoints on the authenticated router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/payments/momo/initiate", h.momoInitiate)
	r.Get("/payments/momo/status/{id}", h.momoStatus)
	r.Post("/payments/dpo/create-token", h.dpoCreateToken)
	r.Post("/payments/dpo/verify", h.dpoVerify)
}

type momoInitiateRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Phone   string          `json:"phone"`
	OrderID string          `json:"order_id"`
}

func (h *Handler) momoInitiate(w http.ResponseWriter, r *http.Request) {
	var req momoInitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid JSON body", nil)
		return
	}
	resp, err := h.momo.Initiate(r.Context(), InitiateRequest{
		OrderRef: req.OrderID,
		Amount:   req.Amount,
		Phone:    req.Phone,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"transaction_id": resp.Reference,
		"status":         resp.Status,
		"message":        resp.Message,
	}})
}

func (h *Handler) momoStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.momo.Verify(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"transaction_id": chi.URLParam(r, "id"),
		"status":         result.Status,
		"payment_status": result.PaymentStatus,
	}})
}

type dpoCreateTokenRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	OrderID     string          `json:"order_id"`
	Description string          `json:"description"`
	RedirectURL string          `json:"redirect_url"`
	BackURL     string          `json:"back_url"`
}

func (h *Handler) dpoCreateToken(w http.ResponseWriter, r *http.Request) {
	var req dpoCreateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid JSON body", nil)
		return
	}
	resp, err := h.dpo.Initiate(r.Context(), InitiateRequest{
		OrderRef:    req.OrderID,
		Amount:      req.Amount,
		Description: req.Description,
		RedirectURL: req.RedirectURL,
		BackURL:     req.BackURL,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	if resp.Reference == "" {
		common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"success": false,
			"error":   resp.Message,
		}})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"success":           true,
		"transaction_token": resp.Reference,
		"payment_url":       resp.PaymentURL,
		"original_amount":   resp.Amount,
		"total_amount":      resp.TotalAmount,
		"processing_fee":    resp.ProcessingFee,
	}})
}

type dpoVerifyRequest struct {
	TransactionToken string `json:"transaction_token"`
}

func (h *Handler) dpoVerify(w http.ResponseWriter, r *http.Request) {
	var req dpoVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid JSON body", nil)
		return
	}
	result, err := h.dpo.Verify(r.Context(), req.TransactionToken)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"success":        result.Success,
		"status":         result.Status,
		"payment_status": result.PaymentStatus,
		"response":       result.ProviderPayload,
	}})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid payment request", nil)
	case errors.Is(err, repo.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "transaction not found", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
	}
}
