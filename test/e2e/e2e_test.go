//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/jobs"
	"github.com/lorekeep/lorekeep/internal/repository"
	"github.com/lorekeep/lorekeep/internal/service"
)

type sourcePayload struct {
	PageID     string  `json:"pageId"`
	Title      string  `json:"title"`
	SlugID     string  `json:"slugId"`
	SpaceSlug  string  `json:"spaceSlug"`
	Similarity float64 `json:"similarity"`
	Distance   float64 `json:"distance"`
	ChunkIndex int     `json:"chunkIndex"`
	Excerpt    string  `json:"excerpt"`
}

type streamPayload struct {
	Content *string         `json:"content"`
	Sources []sourcePayload `json:"sources"`
	Error   *string         `json:"error"`
}

type searchPayload struct {
	Results []sourcePayload `json:"results"`
}

func TestE2E_AuthRequired(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	_, status, err := env.Post("/search", map[string]string{"query": "anything"}, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)

	_, status, err = env.Post("/search", map[string]string{"query": "anything"}, "lk_not_a_real_token")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestE2E_SearchScopedToMembership(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	workspaceID := uuid.NewString()
	spaceA := uuid.NewString()
	spaceB := uuid.NewString()
	env.SeedSpace(spaceA, workspaceID, "engineering")
	env.SeedSpace(spaceB, workspaceID, "finance")

	userID := "user-1"
	env.SeedMember(spaceA, userID)

	pageA := uuid.NewString()
	pageB := uuid.NewString()
	env.SeedPage(pageA, spaceA, workspaceID, "replication-abc123", "Replication Guide",
		"postgres replication uses streaming replication slots")
	env.SeedPage(pageB, spaceB, workspaceID, "budget-def456", "Budget Notes",
		"postgres replication spending for the finance quarter")

	token := env.CreateToken(userID, workspaceID)

	resp, status, err := env.Post("/search", map[string]string{"query": "postgres replication"}, token)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)

	var search searchPayload
	require.NoError(t, json.Unmarshal(resp.Data, &search))
	require.NotEmpty(t, search.Results)

	for _, result := range search.Results {
		assert.Equal(t, pageA, result.PageID)
		assert.Equal(t, "Replication Guide", result.Title)
		assert.Equal(t, "engineering", result.SpaceSlug)
		assert.Greater(t, result.Similarity, 0.0)
		assert.NotEmpty(t, result.Excerpt)
	}

	// An explicit space outside the user's membership yields nothing
	resp, status, err = env.Post("/search", map[string]string{
		"query":    "postgres replication",
		"space_id": spaceB,
	}, token)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(resp.Data, &search))
	assert.Empty(t, search.Results)
}

func TestE2E_AskStreamsAnswerWithSources(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	workspaceID := uuid.NewString()
	spaceID := uuid.NewString()
	env.SeedSpace(spaceID, workspaceID, "docs")

	userID := "user-1"
	env.SeedMember(spaceID, userID)

	pageID := uuid.NewString()
	env.SeedPage(pageID, spaceID, workspaceID, "deploy-abc123", "Deploy Guide",
		"deployments run through the blue green pipeline")

	token := env.CreateToken(userID, workspaceID)

	resp, err := env.PostStream("/ask", map[string]string{"query": "blue green pipeline"}, token)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	payloads := ReadNDJSON(t, resp.Body)
	require.NotEmpty(t, payloads)

	var answer strings.Builder
	var sources []sourcePayload
	sawSources := false
	for _, raw := range payloads {
		var event streamPayload
		require.NoError(t, json.Unmarshal([]byte(raw), &event))
		require.Nil(t, event.Error)

		switch {
		case event.Content != nil:
			assert.False(t, sawSources, "content events must precede sources")
			answer.WriteString(*event.Content)
		case event.Sources != nil:
			require.False(t, sawSources, "sources must be emitted exactly once")
			sawSources = true
			sources = event.Sources
		}
	}

	assert.Equal(t, "The answer is grounded in the context.", answer.String())
	require.True(t, sawSources)
	require.NotEmpty(t, sources)
	assert.Equal(t, pageID, sources[0].PageID)
	assert.Equal(t, "Deploy Guide", sources[0].Title)
}

func TestE2E_AskWithNoAccessibleContent(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	workspaceID := uuid.NewString()
	spaceID := uuid.NewString()
	env.SeedSpace(spaceID, workspaceID, "empty")
	env.SeedMember(spaceID, "user-1")

	token := env.CreateToken("user-1", workspaceID)

	resp, err := env.PostStream("/ask", map[string]string{"query": "anything at all"}, token)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payloads := ReadNDJSON(t, resp.Body)
	require.Len(t, payloads, 2)

	var content streamPayload
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &content))
	require.NotNil(t, content.Content)
	assert.Equal(t, service.NoRelevantContentMessage, *content.Content)

	var srcEvent streamPayload
	require.NoError(t, json.Unmarshal([]byte(payloads[1]), &srcEvent))
	require.NotNil(t, srcEvent.Sources)
	assert.Empty(t, srcEvent.Sources)
}

func TestE2E_JobQueueIndexesPage(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	workspaceID := uuid.NewString()
	spaceID := uuid.NewString()
	env.SeedSpace(spaceID, workspaceID, "docs")
	env.SeedMember(spaceID, "user-1")

	// Insert the page without indexing it
	pageID := uuid.NewString()
	_, err := env.Pool.Exec(env.Ctx,
		`INSERT INTO pages (id, space_id, workspace_id, slug_id, title, text_content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`,
		pageID, spaceID, workspaceID, "queue-abc123", "Queue Guide", "the job queue indexes pages asynchronously")
	require.NoError(t, err)

	jobRepo := repository.NewEmbeddingJobRepository(env.Pool)
	require.NoError(t, jobRepo.Create(env.Ctx, &domain.EmbeddingJob{
		ID:          uuid.NewString(),
		Kind:        domain.JobPageGenerateEmbeddings,
		PageID:      pageID,
		WorkspaceID: workspaceID,
	}))

	handler := jobs.NewJobHandler(jobRepo, env.Pipeline)
	require.NoError(t, handler.ProcessJobs(context.Background()))

	token := env.CreateToken("user-1", workspaceID)
	resp, status, err := env.Post("/search", map[string]string{"query": "job queue indexes"}, token)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)

	var search searchPayload
	require.NoError(t, json.Unmarshal(resp.Data, &search))
	require.NotEmpty(t, search.Results)
	assert.Equal(t, pageID, search.Results[0].PageID)

	// The job itself is marked completed
	var jobStatus string
	require.NoError(t, env.Pool.QueryRow(env.Ctx,
		`SELECT status FROM embedding_jobs`).Scan(&jobStatus))
	assert.Equal(t, string(domain.EmbeddingJobStatusCompleted), jobStatus)
}
