package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/service"
)

// ChunkRepository is the vector store: it persists page chunks with their
// embeddings and answers nearest-neighbor queries.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// InsertChunks inserts chunk rows for a page. Rows are never updated in
// place; regeneration deletes first.
func (r *ChunkRepository) InsertChunks(ctx context.Context, chunks []*domain.PageChunk) error {
	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO page_chunks
				(id, page_id, space_id, workspace_id, model, dimension, chunk_index, start_offset, chunk_length, metadata, embedding, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			c.ID,
			c.PageID,
			c.SpaceID,
			c.WorkspaceID,
			c.Model,
			c.Dimension,
			c.ChunkIndex,
			c.StartOffset,
			c.Length,
			map[string]any{"text": c.Text},
			pgvector.NewVector(c.Embedding),
			createdAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// DeleteByPage removes all chunks for one page. Deleting when none exist is
// a no-op.
func (r *ChunkRepository) DeleteByPage(ctx context.Context, pageID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM page_chunks WHERE page_id = $1`, pageID)
	return err
}

// DeleteByWorkspace removes all chunks for every page in a workspace.
func (r *ChunkRepository) DeleteByWorkspace(ctx context.Context, workspaceID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM page_chunks WHERE workspace_id = $1`, workspaceID)
	return err
}

// NearestNeighbors returns up to limit chunks from the workspace whose
// space is in spaceIDs and whose model matches, ordered by ascending cosine
// distance with a stable tiebreak. An empty spaceIDs returns an empty
// result without querying: an empty ANY filter has no useful semantics.
func (r *ChunkRepository) NearestNeighbors(ctx context.Context, embedding []float32, workspaceID string, spaceIDs []string, model string, limit int) ([]*service.ChunkMatch, error) {
	if len(spaceIDs) == 0 {
		return []*service.ChunkMatch{}, nil
	}
	if limit <= 0 {
		limit = service.RetrieveLimit
	}

	rows, err := r.db.Query(ctx,
		`SELECT page_id, space_id, chunk_index, metadata->>'text', embedding <=> $1 AS distance
		 FROM page_chunks
		 WHERE workspace_id = $2 AND space_id = ANY($3) AND model = $4
		 ORDER BY distance ASC, page_id ASC, chunk_index ASC
		 LIMIT $5`,
		pgvector.NewVector(embedding), workspaceID, spaceIDs, model, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]*service.ChunkMatch, 0, limit)
	for rows.Next() {
		var m service.ChunkMatch
		if err := rows.Scan(&m.PageID, &m.SpaceID, &m.ChunkIndex, &m.Text, &m.Distance); err != nil {
			return nil, err
		}
		matches = append(matches, &m)
	}

	return matches, rows.Err()
}

// CountByPage reports how many chunks a page currently has. Used by tests
// and the contiguity checks in tooling.
func (r *ChunkRepository) CountByPage(ctx context.Context, pageID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM page_chunks WHERE page_id = $1`, pageID).Scan(&count)
	return count, err
}
