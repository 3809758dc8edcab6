//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/testutil"
)

func TestEmbeddingJobRepository_CreateAndClaim(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	jobRepo := NewEmbeddingJobRepository(pool)

	workspaceID := uuid.NewString()
	older := &domain.EmbeddingJob{
		ID:          uuid.NewString(),
		Kind:        domain.JobWorkspaceCreateEmbeddings,
		WorkspaceID: workspaceID,
		CreatedAt:   time.Now().UTC().Add(-time.Minute).Truncate(time.Microsecond),
	}
	newer := &domain.EmbeddingJob{
		ID:          uuid.NewString(),
		Kind:        domain.JobPageGenerateEmbeddings,
		PageID:      uuid.NewString(),
		WorkspaceID: workspaceID,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, jobRepo.Create(ctx, older))
	require.NoError(t, jobRepo.Create(ctx, newer))

	claimed, err := jobRepo.ClaimPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, older.ID, claimed.ID)
	assert.Equal(t, domain.EmbeddingJobStatusProcessing, claimed.Status)

	second, err := jobRepo.ClaimPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, newer.ID, second.ID)
	assert.Equal(t, newer.PageID, second.PageID)

	empty, err := jobRepo.ClaimPending(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestEmbeddingJobRepository_Create_DefaultsStatus(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	jobRepo := NewEmbeddingJobRepository(pool)

	job := &domain.EmbeddingJob{
		ID:     uuid.NewString(),
		Kind:   domain.JobPageDeleteEmbeddings,
		PageID: uuid.NewString(),
	}
	require.NoError(t, jobRepo.Create(ctx, job))
	assert.Equal(t, domain.EmbeddingJobStatusPending, job.Status)

	claimed, err := jobRepo.ClaimPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Empty(t, claimed.WorkspaceID)
}

func TestEmbeddingJobRepository_Create_InvalidKind(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	jobRepo := NewEmbeddingJobRepository(pool)

	err := jobRepo.Create(ctx, &domain.EmbeddingJob{
		ID:   uuid.NewString(),
		Kind: "bogus.kind",
	})
	assert.Error(t, err)
}

func TestEmbeddingJobRepository_RetryFlow(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	jobRepo := NewEmbeddingJobRepository(pool)

	job := &domain.EmbeddingJob{
		ID:          uuid.NewString(),
		Kind:        domain.JobWorkspaceDeleteEmbeddings,
		WorkspaceID: uuid.NewString(),
	}
	require.NoError(t, jobRepo.Create(ctx, job))

	claimed, err := jobRepo.ClaimPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	retries, err := jobRepo.IncrementRetries(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), retries)

	require.NoError(t, jobRepo.Requeue(ctx, claimed.ID, "retry 1: upstream timeout"))

	reclaimed, err := jobRepo.ClaimPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, reclaimed)
	assert.Equal(t, claimed.ID, reclaimed.ID)
	assert.Equal(t, int32(1), reclaimed.Retries)
	assert.Equal(t, "retry 1: upstream timeout", reclaimed.Error)

	require.NoError(t, jobRepo.UpdateStatus(ctx, reclaimed.ID, domain.EmbeddingJobStatusCompleted, ""))

	done, err := jobRepo.ClaimPending(ctx)
	require.NoError(t, err)
	assert.Nil(t, done)

	var status string
	var processedAt *time.Time
	err = pool.QueryRow(ctx, `SELECT status, processed_at FROM embedding_jobs WHERE id = $1`, reclaimed.ID).Scan(&status, &processedAt)
	require.NoError(t, err)
	assert.Equal(t, string(domain.EmbeddingJobStatusCompleted), status)
	assert.NotNil(t, processedAt)
}
