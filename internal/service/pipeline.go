package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/telemetry"
)

// EmbedBatchSize is the number of chunks sent to the embedding backend per
// call. Batches are issued sequentially to respect backend rate limits.
const EmbedBatchSize = 100

// EmbeddingClient defines the interface for generating embeddings.
type EmbeddingClient interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimensions() int
}

// PipelinePageRepository defines the page reads the pipeline needs.
type PipelinePageRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Page, error)
	ListIDsByWorkspace(ctx context.Context, workspaceID string) ([]string, error)
}

// PipelineChunkRepository defines the chunk writes the pipeline needs.
type PipelineChunkRepository interface {
	InsertChunks(ctx context.Context, chunks []*domain.PageChunk) error
	DeleteByPage(ctx context.Context, pageID string) error
	DeleteByWorkspace(ctx context.Context, workspaceID string) error
}

// EmbeddingPipeline rebuilds a page's chunk rows: delete, chunk, embed in
// batches, insert. Every operation is safe to replay, so at-least-once job
// delivery needs no coordination here.
type EmbeddingPipeline struct {
	client   EmbeddingClient
	pages    PipelinePageRepository
	chunks   PipelineChunkRepository
	chunkCfg ChunkConfig
}

// NewEmbeddingPipeline creates an EmbeddingPipeline with default chunking.
func NewEmbeddingPipeline(client EmbeddingClient, pages PipelinePageRepository, chunks PipelineChunkRepository) *EmbeddingPipeline {
	return &EmbeddingPipeline{
		client:   client,
		pages:    pages,
		chunks:   chunks,
		chunkCfg: DefaultChunkConfig(),
	}
}

// RegeneratePage replaces the page's chunks with a freshly embedded set.
// A page with no non-empty text is left untouched: a page that never had
// embeddings stays absent, and a prior regeneration already cleared stale
// rows when its text last became empty.
//
// The delete and the per-batch inserts are not one transaction. A crash in
// between can leave the page with zero chunks; the next regeneration
// trigger heals it.
func (p *EmbeddingPipeline) RegeneratePage(ctx context.Context, pageID string) error {
	ctx, span := telemetry.StartSpan(ctx, "EmbeddingPipeline.RegeneratePage", telemetry.SpanAttributes{
		PageID:    pageID,
		Operation: "regenerate",
	})
	defer span.End()

	page, err := p.pages.GetByID(ctx, pageID)
	if err != nil {
		return err
	}

	if strings.TrimSpace(page.Text) == "" {
		return nil
	}

	if err := p.chunks.DeleteByPage(ctx, pageID); err != nil {
		return fmt.Errorf("failed to delete existing chunks: %w", err)
	}

	segments := SplitText(page.Text, p.chunkCfg)
	if len(segments) == 0 {
		return nil
	}

	model := p.client.Model()
	dimensions := p.client.Dimensions()
	offsets := segmentOffsets(page.Text, segments)
	createdAt := time.Now().UTC()

	for start := 0; start < len(segments); start += EmbedBatchSize {
		end := start + EmbedBatchSize
		if end > len(segments) {
			end = len(segments)
		}
		batch := segments[start:end]

		vectors, err := p.client.EmbedTexts(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to embed chunk batch: %w", err)
		}

		rows := make([]*domain.PageChunk, 0, len(batch))
		for i, text := range batch {
			rows = append(rows, &domain.PageChunk{
				ID:          uuid.NewString(),
				PageID:      page.ID,
				SpaceID:     page.SpaceID,
				WorkspaceID: page.WorkspaceID,
				Model:       model,
				Dimension:   dimensions,
				ChunkIndex:  start + i,
				StartOffset: offsets[start+i],
				Length:      utf8.RuneCountInString(text),
				Text:        text,
				Embedding:   vectors[i],
				CreatedAt:   createdAt,
			})
		}

		if err := p.chunks.InsertChunks(ctx, rows); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
	}

	return nil
}

// RegenerateWorkspace rebuilds embeddings for every page in the workspace.
// Pages are processed sequentially and in isolation: one page's failure is
// logged and does not abort the rest.
func (p *EmbeddingPipeline) RegenerateWorkspace(ctx context.Context, workspaceID string) error {
	ctx, span := telemetry.StartSpan(ctx, "EmbeddingPipeline.RegenerateWorkspace", telemetry.SpanAttributes{
		WorkspaceID: workspaceID,
		Operation:   "regenerate",
	})
	defer span.End()

	pageIDs, err := p.pages.ListIDsByWorkspace(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to list workspace pages: %w", err)
	}

	var failed int
	for _, id := range pageIDs {
		if err := p.RegeneratePage(ctx, id); err != nil {
			failed++
			log.Printf("embedding regeneration failed for page %s: %v", id, err)
		}
	}

	if failed > 0 {
		log.Printf("workspace %s regeneration finished with %d/%d pages failed", workspaceID, failed, len(pageIDs))
	}
	return nil
}

// DeletePageEmbeddings removes all chunks for one page. Deleting when none
// exist is a no-op.
func (p *EmbeddingPipeline) DeletePageEmbeddings(ctx context.Context, pageID string) error {
	return p.chunks.DeleteByPage(ctx, pageID)
}

// DeleteWorkspaceEmbeddings removes all chunks for every page in the
// workspace.
func (p *EmbeddingPipeline) DeleteWorkspaceEmbeddings(ctx context.Context, workspaceID string) error {
	return p.chunks.DeleteByWorkspace(ctx, workspaceID)
}

// segmentOffsets locates each segment's rune offset in the source text.
// Segments overlap, so each search starts one rune past the previous match.
func segmentOffsets(text string, segments []string) []int {
	offsets := make([]int, len(segments))
	byteFrom := 0
	runeFrom := 0

	for i, seg := range segments {
		idx := strings.Index(text[byteFrom:], seg)
		if idx < 0 {
			// Not expected for chunker output; fall back to the search base.
			offsets[i] = runeFrom
			continue
		}
		offsets[i] = runeFrom + utf8.RuneCountInString(text[byteFrom:byteFrom+idx])

		_, size := utf8.DecodeRuneInString(text[byteFrom+idx:])
		byteFrom += idx + size
		runeFrom = offsets[i] + 1
	}
	return offsets
}
