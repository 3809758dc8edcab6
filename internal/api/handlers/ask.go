package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/lorekeep/lorekeep/internal/api"
	"github.com/lorekeep/lorekeep/internal/api/middleware"
	"github.com/lorekeep/lorekeep/internal/service"
)

// doneSentinel terminates every answer stream, including failed ones.
const doneSentinel = "[DONE]"

// AnswerService produces a grounded answer stream for a question.
type AnswerService interface {
	Ask(ctx context.Context, query, workspaceID, userID, spaceID string) <-chan service.AnswerEvent
}

// AskHandler streams grounded answers over NDJSON.
type AskHandler struct {
	svc AnswerService
}

// NewAskHandler creates a new AskHandler instance
func NewAskHandler(svc AnswerService) *AskHandler {
	return &AskHandler{svc: svc}
}

// AskRequest is the request body for POST /ask
type AskRequest struct {
	Query   string `json:"query"`
	SpaceID string `json:"space_id,omitempty"`
}

type contentPayload struct {
	Content string `json:"content"`
}

type sourcesPayload struct {
	Sources []*SourceResponse `json:"sources"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// SourceResponse is one citation in the sources event.
type SourceResponse struct {
	PageID     string  `json:"pageId"`
	Title      string  `json:"title"`
	SlugID     string  `json:"slugId"`
	SpaceSlug  string  `json:"spaceSlug"`
	Similarity float64 `json:"similarity"`
	Distance   float64 `json:"distance"`
	ChunkIndex int     `json:"chunkIndex"`
	Excerpt    string  `json:"excerpt"`
}

func toSourceResponses(sources []*service.RetrievedSource) []*SourceResponse {
	out := make([]*SourceResponse, len(sources))
	for i, s := range sources {
		out[i] = &SourceResponse{
			PageID:     s.PageID,
			Title:      s.Title,
			SlugID:     s.SlugID,
			SpaceSlug:  s.SpaceSlug,
			Similarity: s.Similarity,
			Distance:   s.Distance,
			ChunkIndex: s.ChunkIndex,
			Excerpt:    s.Excerpt,
		}
	}
	return out
}

// Ask handles POST /ask. The response is an NDJSON stream: content events
// in model order, one sources event, then a [DONE] line. Errors that occur
// after the stream has started are reported in-band, because the 200 status
// is already on the wire.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.GetWorkspaceID(r.Context())
	userID := middleware.GetUserID(r.Context())
	if workspaceID == "" || userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	writePayload := func(v any) bool {
		payload, err := json.Marshal(v)
		if err != nil {
			return false
		}
		if _, err := w.Write(append(payload, '\n', '\n')); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	for event := range h.svc.Ask(r.Context(), req.Query, workspaceID, userID, req.SpaceID) {
		var ok bool
		switch event.Kind {
		case service.AnswerEventContent:
			ok = writePayload(contentPayload{Content: event.Content})
		case service.AnswerEventSources:
			ok = writePayload(sourcesPayload{Sources: toSourceResponses(event.Sources)})
		case service.AnswerEventError:
			ok = writePayload(errorPayload{Error: event.Err.Error()})
		default:
			continue
		}
		if !ok {
			// Client went away; the producer stops via request context.
			return
		}
	}

	if _, err := w.Write([]byte(doneSentinel + "\n\n")); err != nil {
		return
	}
	flusher.Flush()
}
