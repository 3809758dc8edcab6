package domain

import (
	"fmt"
	"time"
)

// EmbeddingJobKind identifies the operation a queued job maps onto.
type EmbeddingJobKind string

const (
	JobWorkspaceCreateEmbeddings EmbeddingJobKind = "workspace.createEmbeddings"
	JobWorkspaceDeleteEmbeddings EmbeddingJobKind = "workspace.deleteEmbeddings"
	JobPageGenerateEmbeddings    EmbeddingJobKind = "page.generateEmbeddings"
	JobPageDeleteEmbeddings      EmbeddingJobKind = "page.deleteEmbeddings"
)

// EmbeddingJobStatus represents the status of an embedding job.
type EmbeddingJobStatus string

const (
	EmbeddingJobStatusPending    EmbeddingJobStatus = "pending"
	EmbeddingJobStatusProcessing EmbeddingJobStatus = "processing"
	EmbeddingJobStatusCompleted  EmbeddingJobStatus = "completed"
	EmbeddingJobStatusFailed     EmbeddingJobStatus = "failed"
)

// EmbeddingJob is one unit of background embedding work. Delivery is
// at-least-once; every operation it maps onto is safe to replay.
type EmbeddingJob struct {
	ID          string
	Kind        EmbeddingJobKind
	PageID      string
	WorkspaceID string
	Status      EmbeddingJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// ValidateEmbeddingJob validates an EmbeddingJob instance.
func ValidateEmbeddingJob(j *EmbeddingJob) error {
	if j == nil {
		return fmt.Errorf("embedding job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("embedding job ID is required")
	}

	switch j.Kind {
	case JobWorkspaceCreateEmbeddings, JobWorkspaceDeleteEmbeddings:
		if j.WorkspaceID == "" {
			return fmt.Errorf("embedding job kind %s requires WorkspaceID", j.Kind)
		}
	case JobPageGenerateEmbeddings:
		if j.PageID == "" || j.WorkspaceID == "" {
			return fmt.Errorf("embedding job kind %s requires PageID and WorkspaceID", j.Kind)
		}
	case JobPageDeleteEmbeddings:
		if j.PageID == "" {
			return fmt.Errorf("embedding job kind %s requires PageID", j.Kind)
		}
	default:
		return fmt.Errorf("embedding job Kind is invalid: %s", j.Kind)
	}

	if !isValidEmbeddingJobStatus(j.Status) {
		return fmt.Errorf("embedding job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("embedding job Retries cannot be negative")
	}

	return nil
}

func isValidEmbeddingJobStatus(s EmbeddingJobStatus) bool {
	switch s {
	case EmbeddingJobStatusPending, EmbeddingJobStatusProcessing,
		EmbeddingJobStatusCompleted, EmbeddingJobStatusFailed:
		return true
	}
	return false
}
