package cms

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gbdelivering/backend-butchery/internal/common"
	"github.com/gbdelivering/backend-butchery/internal/repo"
)

// Handler exposes CMS endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// PublicRoutes mounts read-only page rendering.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/pages/{slug}", h.getBySlug)
}

// AdminRoutes mounts page and block administration.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/pages", h.list)
	r.Post("/pages", h.create)
	r.Get("/pages/{id}", h.get)
	r.Put("/pages/{id}", h.update)
	r.Delete("/pages/{id}", h.delete)
	r.Post("/pages/{id}/blocks", h.addBlock)
	r.Put("/blocks/{id}", h.updateBlock)
	r.Delete("/blocks/{id}", h.deleteBlock)
}

func (h *Handler) getBySlug(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toView(view)})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	pages, err := h.service.ListPages(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]pageDTO, 0, len(pages))
	for _, p := range pages {
		out = append(out, toPageDTO(p))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in PageInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid JSON body", nil)
		return
	}
	page, err := h.service.CreatePage(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toPageDTO(page)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := repo.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid page id", nil)
		return
	}
	view, err := h.service.GetPage(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toView(view)})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := repo.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid page id", nil)
		return
	}
	var in PageInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid JSON body", nil)
		return
	}
	page, err := h.service.UpdatePage(r.Context(), id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toPageDTO(page)})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := repo.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid page id", nil)
		return
	}
	if err := h.service.DeletePage(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"deleted": true}})
}

func (h *Handler) addBlock(w http.ResponseWriter, r *http.Request) {
	pageID, err := repo.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid page id", nil)
		return
	}
	var in BlockInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid JSON body", nil)
		return
	}
	block, err := h.service.AddBlock(r.Context(), pageID, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toBlockDTO(block)})
}

func (h *Handler) updateBlock(w http.ResponseWriter, r *http.Request) {
	id, err := repo.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid block id", nil)
		return
	}
	var in BlockInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid JSON body", nil)
		return
	}
	block, err := h.service.UpdateBlock(r.Context(), id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toBlockDTO(block)})
}

func (h *Handler) deleteBlock(w http.ResponseWriter, r *http.Request) {
	id, err := repo.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid block id", nil)
		return
	}
	if err := h.service.DeleteBlock(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"deleted": true}})
}

type pageDTO struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type blockDTO struct {
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`
	Content  json.RawMessage `json:"content"`
	Position int32           `json:"position"`
}

type viewDTO struct {
	pageDTO
	Blocks []blockDTO `json:"blocks"`
}

func toPageDTO(p repo.Page) pageDTO {
	return pageDTO{
		ID:        repo.UUIDString(p.ID),
		Slug:      p.Slug,
		Title:     p.Title,
		Published: p.Published,
		CreatedAt: p.CreatedAt.Time,
		UpdatedAt: p.UpdatedAt.Time,
	}
}

func toBlockDTO(b repo.Block) blockDTO {
	return blockDTO{
		ID:       repo.UUIDString(b.ID),
		Kind:     b.Kind,
		Content:  json.RawMessage(b.Content),
		Position: b.Position,
	}
}

func toView(v View) viewDTO {
	out := viewDTO{pageDTO: toPageDTO(v.Page), Blocks: make([]blockDTO, 0, len(v.Blocks))}
	for _, b := range v.Blocks {
		out.Blocks = append(out.Blocks, toBlockDTO(b))
	}
	return out
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error(), nil)
	case errors.Is(err, ErrPageNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "page not found", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
	}
}
