package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorekeep/lorekeep/internal/domain"
)

// PageRepository reads pages for indexing and citation lookup. Page CRUD
// itself is owned by the wiki application, not this service.
type PageRepository struct {
	db dbtx
}

func NewPageRepository(pool *pgxpool.Pool) *PageRepository {
	return &PageRepository{db: pool}
}

func NewPageRepositoryWithTx(tx pgx.Tx) *PageRepository {
	return &PageRepository{db: tx}
}

func (r *PageRepository) GetByID(ctx context.Context, id string) (*domain.Page, error) {
	var p domain.Page
	err := r.db.QueryRow(ctx,
		`SELECT id, space_id, workspace_id, slug_id, title, text_content, created_at, updated_at
		 FROM pages WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.SpaceID, &p.WorkspaceID, &p.SlugID, &p.Title, &p.Text, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPageNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PageRepository) ListIDsByWorkspace(ctx context.Context, workspaceID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM pages WHERE workspace_id = $1 ORDER BY created_at ASC, id ASC`,
		workspaceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetRefs resolves citation metadata for the given page IDs. Pages that no
// longer exist are simply absent from the result.
func (r *PageRepository) GetRefs(ctx context.Context, ids []string) (map[string]*domain.PageRef, error) {
	if len(ids) == 0 {
		return map[string]*domain.PageRef{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT p.id, p.slug_id, p.title, p.space_id, s.slug
		 FROM pages p
		 JOIN spaces s ON s.id = p.space_id
		 WHERE p.id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make(map[string]*domain.PageRef, len(ids))
	for rows.Next() {
		var ref domain.PageRef
		if err := rows.Scan(&ref.ID, &ref.SlugID, &ref.Title, &ref.SpaceID, &ref.SpaceSlug); err != nil {
			return nil, err
		}
		refs[ref.ID] = &ref
	}
	return refs, rows.Err()
}
