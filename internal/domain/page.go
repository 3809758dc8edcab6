package domain

import "time"

// Page represents a document that can be embedded for semantic search.
// Page CRUD lives outside this service; we only read pages to index them.
type Page struct {
	ID          string
	SpaceID     string
	WorkspaceID string
	SlugID      string
	Title       string
	Text        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PageRef is the lightweight projection used to decorate retrieval results
// with citation metadata.
type PageRef struct {
	ID        string
	SlugID    string
	Title     string
	SpaceID   string
	SpaceSlug string
}

// Space groups pages inside a workspace and is the unit of access control.
type Space struct {
	ID          string
	WorkspaceID string
	Slug        string
	Name        string
}
