package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorekeep/lorekeep/internal/domain"
)

// SpaceRepository resolves space membership. It implements
// service.AccessResolver.
type SpaceRepository struct {
	db dbtx
}

func NewSpaceRepository(pool *pgxpool.Pool) *SpaceRepository {
	return &SpaceRepository{db: pool}
}

func NewSpaceRepositoryWithTx(tx pgx.Tx) *SpaceRepository {
	return &SpaceRepository{db: tx}
}

// AccessibleSpaces returns the IDs of every space in the workspace the user
// is a member of. No membership means an empty slice, not an error.
func (r *SpaceRepository) AccessibleSpaces(ctx context.Context, userID, workspaceID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT s.id
		 FROM spaces s
		 JOIN space_members m ON m.space_id = s.id
		 WHERE m.user_id = $1 AND s.workspace_id = $2
		 ORDER BY s.id ASC`,
		userID, workspaceID,
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

func (r *SpaceRepository) GetByID(ctx context.Context, id string) (*domain.Space, error) {
	var s domain.Space
	err := r.db.QueryRow(ctx,
		`SELECT id, workspace_id, slug, name FROM spaces WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.WorkspaceID, &s.Slug, &s.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSpaceNotFound
		}
		return nil, err
	}
	return &s, nil
}
