package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gbdelivering/backend-butchery/internal/common"
	"github.com/gbdelivering/backend-butchery/internal/repo"
)

// Handler exposes authentication endpoints.
type Handler struct {
	service *Service
	oauth   *OAuth
}

// NewHandler constructs a Handler. The oauth exchanger may be nil when no
// provider credentials are configured.
func NewHandler(service *Service, oauth *OAuth) *Handler {
	return &Handler{service: service, oauth: oauth}
}

// PublicRoutes mounts unauthenticated endpoints.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
	r.Post("/auth/oauth/{provider}", h.oauthExchange)
}

// AuthedRoutes mounts endpoints that require a valid token.
func (h *Handler) AuthedRoutes(r chi.Router) {
	r.Get("/auth/profile", h.profile)
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid JSON body", nil)
		return
	}
	result, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password, req.Phone)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toSession(result)})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid JSON body", nil)
		return
	}
	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toSession(result)})
}

type oauthRequest struct {
	Code string `json:"code"`
}

func (h *Handler) oauthExchange(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "oauth is not configured", nil)
		return
	}
	var req oauthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid JSON body", nil)
		return
	}
	result, err := h.oauth.Exchange(r.Context(), chi.URLParam(r, "provider"), req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toSession(result)})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	user, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toUserDTO(user)})
}

type userDTO struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Picture string `json:"picture,omitempty"`
	Role    string `json:"role"`
}

func toUserDTO(u repo.User) userDTO {
	return userDTO{
		ID:      repo.UUIDString(u.ID),
		Email:   u.Email,
		Name:    u.Name,
		Phone:   u.Phone.String,
		Picture: u.Picture.String,
		Role:    u.Role,
	}
}

type sessionDTO struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userDTO   `json:"user"`
}

func toSession(result LoginResult) sessionDTO {
	return sessionDTO{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      toUserDTO(result.User),
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}
