package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSourceRetriever struct {
	sources []*RetrievedSource
	err     error
}

func (s *stubSourceRetriever) Retrieve(ctx context.Context, query, workspaceID, userID, spaceID string) ([]*RetrievedSource, error) {
	return s.sources, s.err
}

type scriptedStream struct {
	deltas []string
	err    error // returned after deltas are exhausted, instead of io.EOF
	pos    int
	closed bool
}

func (s *scriptedStream) Recv() (string, error) {
	if s.pos >= len(s.deltas) {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	delta := s.deltas[s.pos]
	s.pos++
	return delta, nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

type stubCompletionClient struct {
	stream    *scriptedStream
	err       error
	gotSystem string
	gotUser   string
}

func (s *stubCompletionClient) StreamCompletion(ctx context.Context, system, user string) (CompletionStream, error) {
	s.gotSystem = system
	s.gotUser = user
	if s.err != nil {
		return nil, s.err
	}
	return s.stream, nil
}

func collect(t *testing.T, events <-chan AnswerEvent) []AnswerEvent {
	t.Helper()
	var out []AnswerEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func answerSources() []*RetrievedSource {
	return []*RetrievedSource{
		{PageID: "p1", Title: "Deploy Guide", Text: "Deploy with the blue-green script.", Similarity: 0.9},
		{PageID: "p2", Title: "Rollback Guide", Text: "Roll back by repointing the alias.", Similarity: 0.8},
	}
}

func TestAsk_StreamOrdering(t *testing.T) {
	stream := &scriptedStream{deltas: []string{"Deploy ", "with ", "blue-green."}}
	completions := &stubCompletionClient{stream: stream}
	answerer := NewAnswerer(&stubSourceRetriever{sources: answerSources()}, completions)

	events := collect(t, answerer.Ask(context.Background(), "how do I deploy?", "ws-1", "user-1", ""))

	require.Len(t, events, 4)
	assert.Equal(t, AnswerEventContent, events[0].Kind)
	assert.Equal(t, "Deploy ", events[0].Content)
	assert.Equal(t, AnswerEventContent, events[1].Kind)
	assert.Equal(t, AnswerEventContent, events[2].Kind)
	// The sources event is always the last payload before the terminal close.
	assert.Equal(t, AnswerEventSources, events[3].Kind)
	assert.Len(t, events[3].Sources, 2)
	assert.True(t, stream.closed)
}

func TestAsk_NoRelevantContent(t *testing.T) {
	completions := &stubCompletionClient{stream: &scriptedStream{}}
	answerer := NewAnswerer(&stubSourceRetriever{sources: nil}, completions)

	events := collect(t, answerer.Ask(context.Background(), "anything?", "ws-1", "user-1", ""))

	require.Len(t, events, 2)
	assert.Equal(t, AnswerEventContent, events[0].Kind)
	assert.Equal(t, NoRelevantContentMessage, events[0].Content)
	assert.Equal(t, AnswerEventSources, events[1].Kind)
	assert.Empty(t, events[1].Sources)
	// The model must not be invoked when there is nothing to ground on.
	assert.Empty(t, completions.gotUser)
}

func TestAsk_RetrievalError(t *testing.T) {
	answerer := NewAnswerer(&stubSourceRetriever{err: errors.New("store down")}, &stubCompletionClient{})

	events := collect(t, answerer.Ask(context.Background(), "q", "ws-1", "user-1", ""))

	require.Len(t, events, 1)
	assert.Equal(t, AnswerEventError, events[0].Kind)
	assert.Error(t, events[0].Err)
}

func TestAsk_MidStreamError(t *testing.T) {
	stream := &scriptedStream{deltas: []string{"partial "}, err: errors.New("upstream reset")}
	answerer := NewAnswerer(&stubSourceRetriever{sources: answerSources()}, &stubCompletionClient{stream: stream})

	events := collect(t, answerer.Ask(context.Background(), "q", "ws-1", "user-1", ""))

	require.Len(t, events, 2)
	assert.Equal(t, AnswerEventContent, events[0].Kind)
	assert.Equal(t, AnswerEventError, events[1].Kind)
	// No sources event after an error; the close is the terminal marker.
	assert.True(t, stream.closed)
}

func TestAsk_CompletionStartError(t *testing.T) {
	answerer := NewAnswerer(
		&stubSourceRetriever{sources: answerSources()},
		&stubCompletionClient{err: errors.New("model unavailable")},
	)

	events := collect(t, answerer.Ask(context.Background(), "q", "ws-1", "user-1", ""))

	require.Len(t, events, 1)
	assert.Equal(t, AnswerEventError, events[0].Kind)
}

func TestAsk_CancellationStopsStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stream := &scriptedStream{deltas: []string{"a", "b", "c", "d"}}
	answerer := NewAnswerer(&stubSourceRetriever{sources: answerSources()}, &stubCompletionClient{stream: stream})

	events := answerer.Ask(ctx, "q", "ws-1", "user-1", "")

	// Consume one event, then walk away.
	first, ok := <-events
	require.True(t, ok)
	assert.Equal(t, AnswerEventContent, first.Kind)
	cancel()

	// The producer must close the channel instead of blocking forever.
	for range events {
	}
}

func TestAsk_PromptGroundsOnSources(t *testing.T) {
	completions := &stubCompletionClient{stream: &scriptedStream{deltas: []string{"ok"}}}
	answerer := NewAnswerer(&stubSourceRetriever{sources: answerSources()}, completions)

	collect(t, answerer.Ask(context.Background(), "how do I roll back?", "ws-1", "user-1", ""))

	assert.Contains(t, completions.gotSystem, "only the context passages")
	assert.Contains(t, completions.gotUser, "1. [Deploy Guide]")
	assert.Contains(t, completions.gotUser, "2. [Rollback Guide]")
	assert.Contains(t, completions.gotUser, "Question: how do I roll back?")
}

func TestBuildGroundingPrompt(t *testing.T) {
	prompt := buildGroundingPrompt("where are the runbooks?", answerSources())

	require.True(t, strings.HasPrefix(prompt, "Context passages:"))
	assert.Contains(t, prompt, "Deploy with the blue-green script.")
	assert.True(t, strings.HasSuffix(prompt, "Question: where are the runbooks?"))
}
