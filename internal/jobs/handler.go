package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/telemetry"
)

const (
	// MaxRetries is the maximum number of attempts before a job is marked
	// failed for good.
	MaxRetries = 3
)

// JobRepository defines the queue operations the handler needs.
type JobRepository interface {
	// ClaimPending claims the oldest pending job, or returns nil when the
	// queue is empty.
	ClaimPending(ctx context.Context) (*domain.EmbeddingJob, error)

	// UpdateStatus moves a job to the given status.
	UpdateStatus(ctx context.Context, jobID string, status domain.EmbeddingJobStatus, errMsg string) error

	// IncrementRetries bumps the retry count and returns the new value.
	IncrementRetries(ctx context.Context, jobID string) (int32, error)

	// Requeue returns a claimed job to pending for a later attempt.
	Requeue(ctx context.Context, jobID string, errMsg string) error
}

// Pipeline defines the embedding operations jobs map onto.
type Pipeline interface {
	RegeneratePage(ctx context.Context, pageID string) error
	RegenerateWorkspace(ctx context.Context, workspaceID string) error
	DeletePageEmbeddings(ctx context.Context, pageID string) error
	DeleteWorkspaceEmbeddings(ctx context.Context, workspaceID string) error
}

// JobHandler drains the embedding queue, dispatching each job to the
// pipeline. One bad job never stops the others.
type JobHandler struct {
	repo     JobRepository
	pipeline Pipeline
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(repo JobRepository, pipeline Pipeline) *JobHandler {
	return &JobHandler{
		repo:     repo,
		pipeline: pipeline,
	}
}

// ProcessJobs implements the JobProcessor interface. It claims and runs
// jobs one at a time until the queue is empty or the context is cancelled.
func (h *JobHandler) ProcessJobs(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		job, err := h.repo.ClaimPending(ctx)
		if err != nil {
			return fmt.Errorf("failed to claim pending job: %w", err)
		}
		if job == nil {
			return nil
		}

		if err := h.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}
}

func (h *JobHandler) processJob(ctx context.Context, job *domain.EmbeddingJob) error {
	log.Printf("Processing job %s (%s)", job.ID, job.Kind)

	err := h.dispatch(ctx, job)

	if errors.Is(err, domain.ErrInvalidJobKind) {
		// A kind this build does not understand will not succeed on retry.
		log.Printf("Job %s has unknown kind %q, marking as failed", job.ID, job.Kind)
		return h.repo.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusFailed, err.Error())
	}

	if errors.Is(err, domain.ErrPageNotFound) {
		// The page was deleted after the job was enqueued. Nothing to embed.
		log.Printf("Job %s references missing page %s, completing as no-op", job.ID, job.PageID)
		return h.repo.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusCompleted, "")
	}

	if err != nil {
		return h.handleJobFailure(ctx, job, err)
	}

	if err := h.repo.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("Job %s completed successfully", job.ID)
	return nil
}

func (h *JobHandler) dispatch(ctx context.Context, job *domain.EmbeddingJob) error {
	switch job.Kind {
	case domain.JobPageGenerateEmbeddings:
		return h.pipeline.RegeneratePage(ctx, job.PageID)
	case domain.JobPageDeleteEmbeddings:
		return h.pipeline.DeletePageEmbeddings(ctx, job.PageID)
	case domain.JobWorkspaceCreateEmbeddings:
		return h.pipeline.RegenerateWorkspace(ctx, job.WorkspaceID)
	case domain.JobWorkspaceDeleteEmbeddings:
		return h.pipeline.DeleteWorkspaceEmbeddings(ctx, job.WorkspaceID)
	default:
		return fmt.Errorf("%w: %s", domain.ErrInvalidJobKind, job.Kind)
	}
}

// handleJobFailure requeues a failed job until MaxRetries is reached, then
// marks it failed.
func (h *JobHandler) handleJobFailure(ctx context.Context, job *domain.EmbeddingJob, jobErr error) error {
	log.Printf("Job %s failed: %v", job.ID, jobErr)

	retries, err := h.repo.IncrementRetries(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if retries >= MaxRetries {
		log.Printf("Job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		telemetry.CaptureError(ctx, fmt.Errorf("embedding job %s (%s) exhausted retries: %w", job.ID, job.Kind, jobErr))
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := h.repo.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("Job %s will be retried (attempt %d/%d)", job.ID, retries, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", retries, jobErr)
	if err := h.repo.Requeue(ctx, job.ID, errMsg); err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}

	return nil
}
