package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorekeep/lorekeep/internal/domain"
)

// EmbeddingJobRepository persists the background embedding queue.
type EmbeddingJobRepository struct {
	db dbtx
}

func NewEmbeddingJobRepository(pool *pgxpool.Pool) *EmbeddingJobRepository {
	return &EmbeddingJobRepository{db: pool}
}

func NewEmbeddingJobRepositoryWithTx(tx pgx.Tx) *EmbeddingJobRepository {
	return &EmbeddingJobRepository{db: tx}
}

func (r *EmbeddingJobRepository) Create(ctx context.Context, job *domain.EmbeddingJob) error {
	if job.Status == "" {
		job.Status = domain.EmbeddingJobStatusPending
	}
	if err := domain.ValidateEmbeddingJob(job); err != nil {
		return err
	}
	createdAt := job.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO embedding_jobs (id, kind, page_id, workspace_id, status, retries, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7)`,
		job.ID, job.Kind, job.PageID, job.WorkspaceID, job.Status, job.Retries, createdAt,
	)
	return err
}

// ClaimPending atomically claims the oldest pending job and marks it
// processing. SKIP LOCKED lets concurrent workers claim disjoint jobs.
// Returns nil when the queue is empty.
func (r *EmbeddingJobRepository) ClaimPending(ctx context.Context) (*domain.EmbeddingJob, error) {
	var (
		job         domain.EmbeddingJob
		pageID      *string
		workspaceID *string
		jobErr      *string
	)
	err := r.db.QueryRow(ctx,
		`UPDATE embedding_jobs
		 SET status = $1
		 WHERE id = (
			SELECT id FROM embedding_jobs
			WHERE status = $2
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, kind, page_id, workspace_id, status, retries, error, created_at, processed_at`,
		domain.EmbeddingJobStatusProcessing, domain.EmbeddingJobStatusPending,
	).Scan(&job.ID, &job.Kind, &pageID, &workspaceID, &job.Status, &job.Retries, &jobErr, &job.CreatedAt, &job.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if pageID != nil {
		job.PageID = *pageID
	}
	if workspaceID != nil {
		job.WorkspaceID = *workspaceID
	}
	if jobErr != nil {
		job.Error = *jobErr
	}
	return &job, nil
}

// UpdateStatus moves a job to a terminal or retry state. The error message
// is recorded verbatim; completed jobs keep a NULL error.
func (r *EmbeddingJobRepository) UpdateStatus(ctx context.Context, jobID string, status domain.EmbeddingJobStatus, jobErr string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE embedding_jobs
		 SET status = $1, error = NULLIF($2, ''), processed_at = $3
		 WHERE id = $4`,
		status, jobErr, time.Now().UTC(), jobID,
	)
	return err
}

// IncrementRetries bumps the retry counter and returns the new count.
func (r *EmbeddingJobRepository) IncrementRetries(ctx context.Context, jobID string) (int32, error) {
	var retries int32
	err := r.db.QueryRow(ctx,
		`UPDATE embedding_jobs SET retries = retries + 1 WHERE id = $1 RETURNING retries`,
		jobID,
	).Scan(&retries)
	return retries, err
}

// Requeue puts a claimed job back to pending so a later poll retries it.
func (r *EmbeddingJobRepository) Requeue(ctx context.Context, jobID string, jobErr string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE embedding_jobs SET status = $1, error = NULLIF($2, '') WHERE id = $3`,
		domain.EmbeddingJobStatusPending, jobErr, jobID,
	)
	return err
}
