package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/gbdelivering/backend-butchery/internal/repo"
)

// ErrPageNotFound reports an unknown page or block.
var ErrPageNotFound = errors.New("cms: page not found")

// ErrInvalidInput reports a malformed page or block payload.
var ErrInvalidInput = errors.New("cms: invalid input")

type pageStore interface {
	Create(ctx context.Context, p repo.Page) (repo.Page, error)
	GetBySlug(ctx context.Context, slug string) (repo.Page, error)
	Get(ctx context.Context, id pgtype.UUID) (repo.Page, error)
	List(ctx context.Context) ([]repo.Page, error)
	Update(ctx context.Context, p repo.Page) (repo.Page, error)
	Delete(ctx context.Context, id pgtype.UUID) error
	AddBlock(ctx context.Context, b repo.Block) (repo.Block, error)
	Blocks(ctx context.Context, pageID pgtype.UUID) ([]repo.Block, error)
	UpdateBlock(ctx context.Context, b repo.Block) (repo.Block, error)
	DeleteBlock(ctx context.Context, id pgtype.UUID) error
}

// Service manages CMS pages and their page-builder blocks.
type Service struct {
	store    pageStore
	validate *validator.Validate
}

// NewService constructs a Service.
func NewService(store pageStore) *Service {
	return &Service{store: store, validate: validator.New()}
}

// PageInput is the admin payload for creating or updating a page.
type PageInput struct {
	Slug      string `json:"slug" validate:"required,min=1,max=200"`
	Title     string `json:"title" validate:"required,min=1,max=300"`
	Published bool   `json:"published"`
}

// BlockInput is the admin payload for a page-builder block.
type BlockInput struct {
	Kind     string          `json:"kind" validate:"required,min=1,max=100"`
	Content  json.RawMessage `json:"content" validate:"required"`
	Position int32           `json:"position" validate:"gte=0"`
}

// View joins a page with its ordered blocks.
type View struct {
	Page   repo.Page
	Blocks []repo.Block
}

// CreatePage adds a page.
func (s *Service) CreatePage(ctx context.Context, in PageInput) (repo.Page, error) {
	if err := s.validate.Struct(in); err != nil {
		return repo.Page{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.store.Create(ctx, repo.Page{
		Slug:      normalizeSlug(in.Slug),
		Title:     strings.TrimSpace(in.Title),
		Published: in.Published,
	})
}

// GetBySlug loads a published page with its blocks for public rendering.
func (s *Service) GetBySlug(ctx context.Context, slug string) (View, error) {
	page, err := s.store.GetBySlug(ctx, normalizeSlug(slug))
	if err != nil {
		return View{}, mapNotFound(err)
	}
	if !page.Published {
		return View{}, ErrPageNotFound
	}
	return s.assemble(ctx, page)
}

// GetPage loads any page with its blocks for administration.
func (s *Service) GetPage(ctx context.Context, id pgtype.UUID) (View, error) {
	page, err := s.store.Get(ctx, id)
	if err != nil {
		return View{}, mapNotFound(err)
	}
	return s.assemble(ctx, page)
}

func (s *Service) assemble(ctx context.Context, page repo.Page) (View, error) {
	blocks, err := s.store.Blocks(ctx, page.ID)
	if err != nil {
		return View{}, err
	}
	return View{Page: page, Blocks: blocks}, nil
}

// ListPages returns every page.
func (s *Service) ListPages(ctx context.Context) ([]repo.Page, error) {
	return s.store.List(ctx)
}

// UpdatePage replaces a page's slug, title and published flag.
func (s *Service) UpdatePage(ctx context.Context, id pgtype.UUID, in PageInput) (repo.Page, error) {
	if err := s.validate.Struct(in); err != nil {
		return repo.Page{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	page, err := s.store.Update(ctx, repo.Page{
		ID:        id,
		Slug:      normalizeSlug(in.Slug),
		Title:     strings.TrimSpace(in.Title),
		Published: in.Published,
	})
	if err != nil {
		return repo.Page{}, mapNotFound(err)
	}
	return page, nil
}

// DeletePage removes a page and its blocks.
func (s *Service) DeletePage(ctx context.Context, id pgtype.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return mapNotFound(err)
	}
	return nil
}

// AddBlock appends a block to a page.
func (s *Service) AddBlock(ctx context.Context, pageID pgtype.UUID, in BlockInput) (repo.Block, error) {
	if err := s.validate.Struct(in); err != nil {
		return repo.Block{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !json.Valid(in.Content) {
		return repo.Block{}, fmt.Errorf("%w: content must be valid JSON", ErrInvalidInput)
	}
	if _, err := s.store.Get(ctx, pageID); err != nil {
		return repo.Block{}, mapNotFound(err)
	}
	return s.store.AddBlock(ctx, repo.Block{
		PageID:   pageID,
		Kind:     in.Kind,
		Content:  in.Content,
		Position: in.Position,
	})
}

// UpdateBlock replaces a block's kind, content and position.
func (s *Service) UpdateBlock(ctx context.Context, id pgtype.UUID, in BlockInput) (repo.Block, error) {
	if err := s.validate.Struct(in); err != nil {
		return repo.Block{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !json.Valid(in.Content) {
		return repo.Block{}, fmt.Errorf("%w: content must be valid JSON", ErrInvalidInput)
	}
	block, err := s.store.UpdateBlock(ctx, repo.Block{
		ID:       id,
		Kind:     in.Kind,
		Content:  in.Content,
		Position: in.Position,
	})
	if err != nil {
		return repo.Block{}, mapNotFound(err)
	}
	return block, nil
}

// DeleteBlock removes a block.
func (s *Service) DeleteBlock(ctx context.Context, id pgtype.UUID) error {
	if err := s.store.DeleteBlock(ctx, id); err != nil {
		return mapNotFound(err)
	}
	return nil
}

func normalizeSlug(slug string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(slug)), "/")
}

func mapNotFound(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrPageNotFound
	}
	return err
}
