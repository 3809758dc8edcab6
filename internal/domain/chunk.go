package domain

import "time"

// PageChunk is one embedded segment of a page. Chunks are never updated in
// place: regeneration deletes every chunk of the page and inserts a fresh,
// contiguous set (chunk_index 0..N-1 per page and model).
type PageChunk struct {
	ID          string
	PageID      string
	SpaceID     string
	WorkspaceID string
	Model       string
	Dimension   int
	ChunkIndex  int
	StartOffset int
	Length      int
	Text        string
	Embedding   []float32
	CreatedAt   time.Time
}
