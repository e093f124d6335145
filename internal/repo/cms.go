package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Page is a CMS page assembled from position-ordered blocks.
type Page struct {
	ID        pgtype.UUID
	Slug      string
	Title     string
	Published bool
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

// Block is one page-builder unit: a typed JSON content payload at a
// position within its page.
type Block struct {
	ID       pgtype.UUID
	PageID   pgtype.UUID
	Kind     string
	Content  []byte
	Position int32
}

// Pages persists CMS pages and their blocks.
type Pages struct {
	DB DB
}

const pageColumns = `id, slug, title, published, created_at, updated_at`

func scanPage(row pgx.Row) (Page, error) {
	var p Page
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Published, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Create inserts a page.
func (r Pages) Create(ctx context.Context, p Page) (Page, error) {
	if !p.ID.Valid {
		p.ID = NewUUID()
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO cms_pages (id, slug, title, published)
		VALUES ($1, $2, $3, $4)
		RETURNING `+pageColumns, p.ID, p.Slug, p.Title, p.Published)
	return scanPage(row)
}

// GetBySlug loads a page by its public slug.
func (r Pages) GetBySlug(ctx context.Context, slug string) (Page, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+pageColumns+` FROM cms_pages WHERE slug = $1`, slug)
	p, err := scanPage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Page{}, ErrNotFound
	}
	return p, err
}

// Get loads a page by identifier.
func (r Pages) Get(ctx context.Context, id pgtype.UUID) (Page, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+pageColumns+` FROM cms_pages WHERE id = $1`, id)
	p, err := scanPage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Page{}, ErrNotFound
	}
	return p, err
}

// List returns all pages.
func (r Pages) List(ctx context.Context) ([]Page, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+pageColumns+` FROM cms_pages ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update overwrites the page metadata.
func (r Pages) Update(ctx context.Context, p Page) (Page, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE cms_pages SET slug = $2, title = $3, published = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+pageColumns, p.ID, p.Slug, p.Title, p.Published)
	out, err := scanPage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Page{}, ErrNotFound
	}
	return out, err
}

// Delete removes a page and its blocks.
func (r Pages) Delete(ctx context.Context, id pgtype.UUID) error {
	if _, err := r.DB.Exec(ctx, `DELETE FROM cms_blocks WHERE page_id = $1`, id); err != nil {
		return err
	}
	tag, err := r.DB.Exec(ctx, `DELETE FROM cms_pages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddBlock appends a block to a page.
func (r Pages) AddBlock(ctx context.Context, b Block) (Block, error) {
	if !b.ID.Valid {
		b.ID = NewUUID()
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO cms_blocks (id, page_id, kind, content, position)
		VALUES ($1, $2, $3, $4,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM cms_blocks WHERE page_id = $2))
		RETURNING id, page_id, kind, content, position`,
		b.ID, b.PageID, b.Kind, b.Content)
	var out Block
	err := row.Scan(&out.ID, &out.PageID, &out.Kind, &out.Content, &out.Position)
	return out, err
}

// Blocks returns a page's blocks in display order.
func (r Pages) Blocks(ctx context.Context, pageID pgtype.UUID) ([]Block, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, page_id, kind, content, position FROM cms_blocks
		WHERE page_id = $1 ORDER BY position`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Block
	for rows.Next() {
		var b Block
		if err := rows.Scan(&b.ID, &b.PageID, &b.Kind, &b.Content, &b.Position); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateBlock overwrites a block's kind, content and position.
func (r Pages) UpdateBlock(ctx context.Context, b Block) (Block, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE cms_blocks SET kind = $2, content = $3, position = $4
		WHERE id = $1
		RETURNING id, page_id, kind, content, position`,
		b.ID, b.Kind, b.Content, b.Position)
	var out Block
	err := row.Scan(&out.ID, &out.PageID, &out.Kind, &out.Content, &out.Position)
	if errors.Is(err, pgx.ErrNoRows) {
		return Block{}, ErrNotFound
	}
	return out, err
}

// DeleteBlock removes a block.
func (r Pages) DeleteBlock(ctx context.Context, id pgtype.UUID) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM cms_blocks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
