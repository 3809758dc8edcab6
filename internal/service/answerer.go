package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// NoRelevantContentMessage is emitted when retrieval finds nothing the
// caller may see.
const NoRelevantContentMessage = "I could not find any relevant content in this workspace for your question."

const answerInstructions = `You are a workspace knowledge assistant. Answer the question using only the context passages below. Cite nothing beyond them. If the context does not contain the information needed, say explicitly that the knowledge base has no relevant information. Do not invent facts.`

// AnswerEventKind discriminates the events in an answer stream.
type AnswerEventKind int

const (
	// AnswerEventContent carries one answer-text increment.
	AnswerEventContent AnswerEventKind = iota
	// AnswerEventSources carries the citations, always after all content.
	AnswerEventSources
	// AnswerEventError terminates the stream after a failure.
	AnswerEventError
)

// AnswerEvent is one element of an answer stream. Content events arrive in
// model order, then exactly one Sources event; the channel closing is the
// terminal marker. An Error event precludes any further events.
type AnswerEvent struct {
	Kind    AnswerEventKind
	Content string
	Sources []*RetrievedSource
	Err     error
}

// SourceRetriever is the retrieval dependency of the Answerer.
type SourceRetriever interface {
	Retrieve(ctx context.Context, query, workspaceID, userID, spaceID string) ([]*RetrievedSource, error)
}

// CompletionStream yields answer text increments; io.EOF ends it cleanly.
type CompletionStream interface {
	Recv() (string, error)
	Close() error
}

// CompletionClient starts streaming completions.
type CompletionClient interface {
	StreamCompletion(ctx context.Context, system, user string) (CompletionStream, error)
}

// Answerer produces grounded, streamed answers: retrieve, prompt, pass the
// model's increments through, then emit citations.
type Answerer struct {
	retriever   SourceRetriever
	completions CompletionClient
}

// NewAnswerer creates an Answerer.
func NewAnswerer(retriever SourceRetriever, completions CompletionClient) *Answerer {
	return &Answerer{
		retriever:   retriever,
		completions: completions,
	}
}

// Ask streams the answer for one question. The returned channel is closed
// when the stream ends; closing is the terminal marker. Cancelling ctx
// stops the stream and the underlying model call.
func (a *Answerer) Ask(ctx context.Context, query, workspaceID, userID, spaceID string) <-chan AnswerEvent {
	events := make(chan AnswerEvent)

	go func() {
		defer close(events)

		send := func(ev AnswerEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		sources, err := a.retriever.Retrieve(ctx, query, workspaceID, userID, spaceID)
		if err != nil {
			send(AnswerEvent{Kind: AnswerEventError, Err: err})
			return
		}

		if len(sources) == 0 {
			if !send(AnswerEvent{Kind: AnswerEventContent, Content: NoRelevantContentMessage}) {
				return
			}
			send(AnswerEvent{Kind: AnswerEventSources, Sources: []*RetrievedSource{}})
			return
		}

		stream, err := a.completions.StreamCompletion(ctx, answerInstructions, buildGroundingPrompt(query, sources))
		if err != nil {
			send(AnswerEvent{Kind: AnswerEventError, Err: err})
			return
		}
		defer stream.Close()

		for {
			delta, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				send(AnswerEvent{Kind: AnswerEventError, Err: err})
				return
			}
			if delta == "" {
				continue
			}
			if !send(AnswerEvent{Kind: AnswerEventContent, Content: delta}) {
				return
			}
		}

		send(AnswerEvent{Kind: AnswerEventSources, Sources: sources})
	}()

	return events
}

// buildGroundingPrompt renders the retrieved chunks as a numbered context
// list followed by the question.
func buildGroundingPrompt(query string, sources []*RetrievedSource) string {
	var b strings.Builder

	b.WriteString("Context passages:\n\n")
	for i, s := range sources {
		fmt.Fprintf(&b, "%d. [%s]\n%s\n\n", i+1, s.Title, s.Text)
	}
	b.WriteString("Question: ")
	b.WriteString(query)

	return b.String()
}
