package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/lorekeep/lorekeep/internal/api"
	"github.com/lorekeep/lorekeep/internal/api/middleware"
	"github.com/lorekeep/lorekeep/internal/service"
)

// SearchService retrieves ranked sources for a query without synthesis.
type SearchService interface {
	Retrieve(ctx context.Context, query, workspaceID, userID, spaceID string) ([]*service.RetrievedSource, error)
}

// SearchHandler serves non-streaming retrieval.
type SearchHandler struct {
	svc SearchService
}

// NewSearchHandler creates a new SearchHandler instance
func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// SearchRequest is the request body for POST /search
type SearchRequest struct {
	Query   string `json:"query"`
	SpaceID string `json:"space_id,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// SearchResponse is the response body for POST /search
type SearchResponse struct {
	Results []*SourceResponse `json:"results"`
}

// Search handles POST /search. Results come back ranked by similarity; the
// optional limit only narrows the fixed retrieval window.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.GetWorkspaceID(r.Context())
	userID := middleware.GetUserID(r.Context())
	if workspaceID == "" || userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	sources, err := h.svc.Retrieve(r.Context(), req.Query, workspaceID, userID, req.SpaceID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	if req.Limit > 0 && req.Limit < len(sources) {
		sources = sources[:req.Limit]
	}

	api.Success(w, http.StatusOK, SearchResponse{Results: toSourceResponses(sources)})
}
