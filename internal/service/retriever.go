package service

import (
	"context"
	"strings"

	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/telemetry"
)

const (
	// RetrieveLimit bounds how many chunks a query returns.
	RetrieveLimit = 10
	// ExcerptMaxRunes bounds the citation excerpt shown to callers.
	ExcerptMaxRunes = 200
)

// ChunkMatch is a raw nearest-neighbor hit from the vector store.
type ChunkMatch struct {
	PageID     string
	SpaceID    string
	ChunkIndex int
	Text       string
	Distance   float64
}

// RetrievedSource is a chunk enriched with citation metadata for one query.
// It is never persisted.
type RetrievedSource struct {
	PageID     string
	Title      string
	SlugID     string
	SpaceID    string
	SpaceSlug  string
	ChunkIndex int
	Distance   float64
	Similarity float64
	Excerpt    string
	Text       string
}

// AccessResolver reports which spaces a user may query in a workspace.
// Membership administration lives outside this service.
type AccessResolver interface {
	AccessibleSpaces(ctx context.Context, userID, workspaceID string) ([]string, error)
}

// RetrieverChunkRepository defines the nearest-neighbor read the retriever
// needs.
type RetrieverChunkRepository interface {
	NearestNeighbors(ctx context.Context, embedding []float32, workspaceID string, spaceIDs []string, model string, limit int) ([]*ChunkMatch, error)
}

// RetrieverPageRepository resolves citation metadata for matched pages.
type RetrieverPageRepository interface {
	GetRefs(ctx context.Context, ids []string) (map[string]*domain.PageRef, error)
}

// Retriever answers "which chunks ground this question" with access scoping
// applied before any store query.
type Retriever struct {
	client EmbeddingClient
	access AccessResolver
	chunks RetrieverChunkRepository
	pages  RetrieverPageRepository
}

// NewRetriever creates a Retriever.
func NewRetriever(client EmbeddingClient, access AccessResolver, chunks RetrieverChunkRepository, pages RetrieverPageRepository) *Retriever {
	return &Retriever{
		client: client,
		access: access,
		chunks: chunks,
		pages:  pages,
	}
}

// Retrieve embeds the query, scopes it to the user's accessible spaces, and
// returns up to RetrieveLimit ranked sources. An explicit spaceID narrows
// the scope but is still checked against the resolver: a space outside the
// user's access yields an empty result, never a leak. A user with no
// accessible spaces gets an empty result without any store query.
func (r *Retriever) Retrieve(ctx context.Context, query, workspaceID, userID, spaceID string) ([]*RetrievedSource, error) {
	ctx, span := telemetry.StartSpan(ctx, "Retriever.Retrieve", telemetry.SpanAttributes{
		WorkspaceID: workspaceID,
		SpaceID:     spaceID,
		Operation:   "retrieve",
	})
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return []*RetrievedSource{}, nil
	}

	allowed, err := r.access.AccessibleSpaces(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}

	if spaceID != "" {
		if !containsString(allowed, spaceID) {
			return []*RetrievedSource{}, nil
		}
		allowed = []string{spaceID}
	}
	if len(allowed) == 0 {
		return []*RetrievedSource{}, nil
	}

	vectors, err := r.client.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	matches, err := r.chunks.NearestNeighbors(ctx, vectors[0], workspaceID, allowed, r.client.Model(), RetrieveLimit)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return []*RetrievedSource{}, nil
	}

	pageIDs := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if _, ok := seen[m.PageID]; ok {
			continue
		}
		seen[m.PageID] = struct{}{}
		pageIDs = append(pageIDs, m.PageID)
	}

	refs, err := r.pages.GetRefs(ctx, pageIDs)
	if err != nil {
		return nil, err
	}

	results := make([]*RetrievedSource, 0, len(matches))
	for _, m := range matches {
		ref, ok := refs[m.PageID]
		if !ok {
			// Page deleted between index and lookup; drop silently.
			continue
		}
		results = append(results, &RetrievedSource{
			PageID:     m.PageID,
			Title:      ref.Title,
			SlugID:     ref.SlugID,
			SpaceID:    m.SpaceID,
			SpaceSlug:  ref.SpaceSlug,
			ChunkIndex: m.ChunkIndex,
			Distance:   m.Distance,
			Similarity: 1 - m.Distance,
			Excerpt:    truncateRunes(m.Text, ExcerptMaxRunes),
			Text:       m.Text,
		})
	}

	return results, nil
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
