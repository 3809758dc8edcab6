package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validJob() *EmbeddingJob {
	return &EmbeddingJob{
		ID:          "job-1",
		Kind:        JobPageGenerateEmbeddings,
		PageID:      "page-1",
		WorkspaceID: "ws-1",
		Status:      EmbeddingJobStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestValidateEmbeddingJob_Valid(t *testing.T) {
	assert.NoError(t, ValidateEmbeddingJob(validJob()))
}

func TestValidateEmbeddingJob_Nil(t *testing.T) {
	assert.Error(t, ValidateEmbeddingJob(nil))
}

func TestValidateEmbeddingJob_MissingID(t *testing.T) {
	j := validJob()
	j.ID = ""
	assert.Error(t, ValidateEmbeddingJob(j))
}

func TestValidateEmbeddingJob_KindRequirements(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*EmbeddingJob)
		wantErr bool
	}{
		{
			name: "workspace create requires workspace id",
			mutate: func(j *EmbeddingJob) {
				j.Kind = JobWorkspaceCreateEmbeddings
				j.WorkspaceID = ""
			},
			wantErr: true,
		},
		{
			name: "workspace delete with workspace id",
			mutate: func(j *EmbeddingJob) {
				j.Kind = JobWorkspaceDeleteEmbeddings
				j.PageID = ""
			},
			wantErr: false,
		},
		{
			name: "page generate requires page id",
			mutate: func(j *EmbeddingJob) {
				j.PageID = ""
			},
			wantErr: true,
		},
		{
			name: "page delete only needs page id",
			mutate: func(j *EmbeddingJob) {
				j.Kind = JobPageDeleteEmbeddings
				j.WorkspaceID = ""
			},
			wantErr: false,
		},
		{
			name: "unknown kind",
			mutate: func(j *EmbeddingJob) {
				j.Kind = "page.reticulateSplines"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := validJob()
			tt.mutate(j)
			err := ValidateEmbeddingJob(j)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmbeddingJob_InvalidStatus(t *testing.T) {
	j := validJob()
	j.Status = "stalled"
	assert.Error(t, ValidateEmbeddingJob(j))
}
