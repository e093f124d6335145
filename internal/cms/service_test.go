package cms

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/gbdelivering/backend-butchery/internal/repo"
)

type memPages struct {
	pages  map[string]repo.Page
	blocks map[string]repo.Block
}

func newMemPages() *memPages {
	return &memPages{pages: map[string]repo.Page{}, blocks: map[string]repo.Block{}}
}

func (m *memPages) Create(_ context.Context, p repo.Page) (repo.Page, error) {
	if !p.ID.Valid {
		p.ID = repo.NewUUID()
	}
	m.pages[repo.UUIDString(p.ID)] = p
	return p, nil
}

func (m *memPages) GetBySlug(_ context.Context, slug string) (repo.Page, error) {
	for _, p := range m.pages {
		if p.Slug == slug {
			return p, nil
		}
	}
	return repo.Page{}, repo.ErrNotFound
}

func (m *memPages) Get(_ context.Context, id pgtype.UUID) (repo.Page, error) {
	p, ok := m.pages[repo.UUIDString(id)]
	if !ok {
		return repo.Page{}, repo.ErrNotFound
	}
	return p, nil
}

func (m *memPages) List(_ context.Context) ([]repo.Page, error) {
	out := make([]repo.Page, 0, len(m.pages))
	for _, p := range m.pages {
		out = append(out, p)
	}
	return out, nil
}

func (m *memPages) Update(_ context.Context, p repo.Page) (repo.Page, error) {
	key := repo.UUIDString(p.ID)
	if _, ok := m.pages[key]; !ok {
		return repo.Page{}, repo.ErrNotFound
	}
	m.pages[key] = p
	return p, nil
}

func (m *memPages) Delete(_ context.Context, id pgtype.UUID) error {
	key := repo.UUIDString(id)
	if _, ok := m.pages[key]; !ok {
		return repo.ErrNotFound
	}
	delete(m.pages, key)
	return nil
}

func (m *memPages) AddBlock(_ context.Context, b repo.Block) (repo.Block, error) {
	if !b.ID.Valid {
		b.ID = repo.NewUUID()
	}
	m.blocks[repo.UUIDString(b.ID)] = b
	return b, nil
}

func (m *memPages) Blocks(_ context.Context, pageID pgtype.UUID) ([]repo.Block, error) {
	var out []repo.Block
	for _, b := range m.blocks {
		if repo.UUIDEqual(b.PageID, pageID) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memPages) UpdateBlock(_ context.Context, b repo.Block) (repo.Block, error) {
	key := repo.UUIDString(b.ID)
	existing, ok := m.blocks[key]
	if !ok {
		return repo.Block{}, repo.ErrNotFound
	}
	b.PageID = existing.PageID
	m.blocks[key] = b
	return b, nil
}

func (m *memPages) DeleteBlock(_ context.Context, id pgtype.UUID) error {
	key := repo.UUIDString(id)
	if _, ok := m.blocks[key]; !ok {
		return repo.ErrNotFound
	}
	delete(m.blocks, key)
	return nil
}

func TestCreatePageNormalizesSlug(t *testing.T) {
	svc := NewService(newMemPages())

	page, err := svc.CreatePage(context.Background(), PageInput{Slug: " /About-Us/ ", Title: " About ", Published: true})
	require.NoError(t, err)
	require.Equal(t, "about-us", page.Slug)
	require.Equal(t, "About", page.Title)
}

func TestGetBySlugHidesUnpublished(t *testing.T) {
	store := newMemPages()
	svc := NewService(store)

	_, err := svc.CreatePage(context.Background(), PageInput{Slug: "draft", Title: "Draft page"})
	require.NoError(t, err)

	_, err = svc.GetBySlug(context.Background(), "draft")
	require.ErrorIs(t, err, ErrPageNotFound)

	_, err = svc.GetBySlug(context.Background(), "missing")
	require.ErrorIs(t, err, ErrPageNotFound)
}

func TestPageWithOrderedBlocks(t *testing.T) {
	store := newMemPages()
	svc := NewService(store)

	page, err := svc.CreatePage(context.Background(), PageInput{Slug: "home", Title: "Home", Published: true})
	require.NoError(t, err)

	_, err = svc.AddBlock(context.Background(), page.ID, BlockInput{
		Kind: "text", Content: json.RawMessage(`{"body":"welcome"}`), Position: 1,
	})
	require.NoError(t, err)
	_, err = svc.AddBlock(context.Background(), page.ID, BlockInput{
		Kind: "hero", Content: json.RawMessage(`{"image":"cow.png"}`), Position: 0,
	})
	require.NoError(t, err)

	view, err := svc.GetBySlug(context.Background(), "home")
	require.NoError(t, err)
	require.Len(t, view.Blocks, 2)
	require.Equal(t, "hero", view.Blocks[0].Kind)
	require.Equal(t, "text", view.Blocks[1].Kind)
}

func TestAddBlockValidation(t *testing.T) {
	store := newMemPages()
	svc := NewService(store)

	page, err := svc.CreatePage(context.Background(), PageInput{Slug: "home", Title: "Home", Published: true})
	require.NoError(t, err)

	_, err = svc.AddBlock(context.Background(), page.ID, BlockInput{Kind: "text", Content: json.RawMessage(`{broken`)})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.AddBlock(context.Background(), repo.NewUUID(), BlockInput{
		Kind: "text", Content: json.RawMessage(`{"body":"orphan"}`),
	})
	require.ErrorIs(t, err, ErrPageNotFound)
}

func TestUpdateAndDeletePage(t *testing.T) {
	store := newMemPages()
	svc := NewService(store)

	page, err := svc.CreatePage(context.Background(), PageInput{Slug: "home", Title: "Home"})
	require.NoError(t, err)

	updated, err := svc.UpdatePage(context.Background(), page.ID, PageInput{Slug: "home", Title: "Homepage", Published: true})
	require.NoError(t, err)
	require.Equal(t, "Homepage", updated.Title)
	require.True(t, updated.Published)

	require.NoError(t, svc.DeletePage(context.Background(), page.ID))
	require.ErrorIs(t, svc.DeletePage(context.Background(), page.ID), ErrPageNotFound)
}
