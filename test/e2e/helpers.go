//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorekeep/lorekeep/internal/api/handlers"
	"github.com/lorekeep/lorekeep/internal/repository"
	"github.com/lorekeep/lorekeep/internal/server"
	"github.com/lorekeep/lorekeep/internal/service"
	"github.com/lorekeep/lorekeep/internal/testutil"
)

const fakeEmbedDim = 8

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	Pipeline     *service.EmbeddingPipeline
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment: pgvector container,
// migrated schema, and the real router wired to a deterministic fake AI
// backend.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	embedder := &fakeEmbedder{}

	pageRepo := repository.NewPageRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	spaceRepo := repository.NewSpaceRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)

	pipeline := service.NewEmbeddingPipeline(embedder, pageRepo, chunkRepo)
	retriever := service.NewRetriever(embedder, spaceRepo, chunkRepo, pageRepo)
	answerer := service.NewAnswerer(retriever, &fakeCompletionClient{})

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	router := server.NewRouter(server.RouterConfig{
		AuthValidator: tokenRepo,
		AskHandler:    handlers.NewAskHandler(answerer),
		SearchHandler: handlers.NewSearchHandler(retriever),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return &E2ETestEnv{
		T:         t,
		Ctx:       ctx,
		PostgresC: pgC,
		Pool:      pool,
		ServerURL: serverURL,
		ServerCloser: func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		},
		Pipeline:   pipeline,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// SeedSpace inserts a space row.
func (e *E2ETestEnv) SeedSpace(id, workspaceID, slug string) {
	_, err := e.Pool.Exec(e.Ctx,
		`INSERT INTO spaces (id, workspace_id, slug, name) VALUES ($1, $2, $3, $4)`,
		id, workspaceID, slug, "Space "+slug,
	)
	if err != nil {
		e.T.Fatalf("failed to seed space: %v", err)
	}
}

// SeedMember grants a user membership of a space.
func (e *E2ETestEnv) SeedMember(spaceID, userID string) {
	_, err := e.Pool.Exec(e.Ctx,
		`INSERT INTO space_members (space_id, user_id) VALUES ($1, $2)`,
		spaceID, userID,
	)
	if err != nil {
		e.T.Fatalf("failed to seed space member: %v", err)
	}
}

// SeedPage inserts a page row and indexes it through the embedding pipeline.
func (e *E2ETestEnv) SeedPage(id, spaceID, workspaceID, slugID, title, text string) {
	now := time.Now().UTC()
	_, err := e.Pool.Exec(e.Ctx,
		`INSERT INTO pages (id, space_id, workspace_id, slug_id, title, text_content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, spaceID, workspaceID, slugID, title, text, now, now,
	)
	if err != nil {
		e.T.Fatalf("failed to seed page: %v", err)
	}
	if err := e.Pipeline.RegeneratePage(e.Ctx, id); err != nil {
		e.T.Fatalf("failed to index page: %v", err)
	}
}

// CreateToken mints an API token for the user.
func (e *E2ETestEnv) CreateToken(userID, workspaceID string) string {
	tokenRepo := repository.NewTokenRepository(e.Pool)
	_, plaintext, err := tokenRepo.Create(e.Ctx, userID, workspaceID, "e2e token")
	if err != nil {
		e.T.Fatalf("failed to create token: %v", err)
	}
	return plaintext
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Post performs a POST request and decodes the response envelope.
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, int, error) {
	resp, err := e.rawPost(path, body, authToken, "")
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return &apiResp, resp.StatusCode, nil
}

// PostStream performs a POST request and returns the raw response for
// NDJSON endpoints.
func (e *E2ETestEnv) PostStream(path string, body interface{}, authToken string) (*http.Response, error) {
	return e.rawPost(path, body, authToken, "application/x-ndjson")
}

func (e *E2ETestEnv) rawPost(path string, body interface{}, authToken, accept string) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", e.ServerURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	return e.HTTPClient.Do(req)
}

// ReadNDJSON splits an NDJSON stream body into its payload lines, excluding
// the terminal sentinel.
func ReadNDJSON(t *testing.T, body io.Reader) []string {
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("failed to read stream: %v", err)
	}

	var payloads []string
	sawDone := false
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "[DONE]" {
			sawDone = true
			break
		}
		payloads = append(payloads, line)
	}
	if !sawDone {
		t.Fatalf("stream did not end with [DONE]: %q", string(data))
	}
	return payloads
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// fakeEmbedder produces deterministic bag-of-words vectors: each word hashes
// into one of the dimensions. Texts sharing words end up close under cosine
// distance, which is enough for retrieval ordering in tests.
type fakeEmbedder struct{}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, fakeEmbedDim)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(word))
			vec[h.Sum32()%fakeEmbedDim]++
		}

		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if norm > 0 {
			scale := float32(1 / math.Sqrt(norm))
			for j := range vec {
				vec[j] *= scale
			}
		} else {
			vec[0] = 1
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (f *fakeEmbedder) Model() string   { return "test-embed" }
func (f *fakeEmbedder) Dimensions() int { return fakeEmbedDim }

// fakeCompletionClient streams a fixed two-delta answer.
type fakeCompletionClient struct{}

func (f *fakeCompletionClient) StreamCompletion(ctx context.Context, system, user string) (service.CompletionStream, error) {
	return &fakeCompletionStream{deltas: []string{"The answer is ", "grounded in the context."}}, nil
}

type fakeCompletionStream struct {
	deltas []string
	pos    int
}

func (s *fakeCompletionStream) Recv() (string, error) {
	if s.pos >= len(s.deltas) {
		return "", io.EOF
	}
	delta := s.deltas[s.pos]
	s.pos++
	return delta, nil
}

func (s *fakeCompletionStream) Close() error { return nil }
