// Package ai resolves the configured embedding/completion backend into a
// single client. The driver set is closed: openai, azure, and ollama (any
// self-hosted OpenAI-compatible endpoint). All three speak the OpenAI wire
// protocol, so one SDK client serves them.
package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lorekeep/lorekeep/internal/domain"
)

// Driver names the supported AI backends.
type Driver string

const (
	DriverOpenAI Driver = "openai"
	DriverAzure  Driver = "azure"
	DriverOllama Driver = "ollama"
)

const (
	// DefaultEmbeddingModel is used when no model is configured.
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultCompletionModel is used when no completion model is configured.
	DefaultCompletionModel = "gpt-4o-mini"
	// DefaultEmbeddingDimensions applies when neither the config nor the
	// preset table resolves a dimension.
	DefaultEmbeddingDimensions = 1536

	defaultOllamaEndpoint = "http://localhost:11434/v1"
)

// modelDimensions maps known embedding model names to their output size.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
}

// Config selects and parameterizes a backend.
type Config struct {
	Driver              Driver
	APIKey              string
	Endpoint            string
	EmbeddingModel      string
	EmbeddingDimensions int
	CompletionModel     string
}

// Client wraps a resolved backend. The resolved embedding dimension is
// authoritative for every chunk row written through this client.
type Client struct {
	api             embeddingAPI
	embeddingModel  string
	completionModel string
	dimensions      int
}

// embeddingAPI is the slice of the SDK client the Client depends on,
// narrowed so tests can substitute it.
type embeddingAPI interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
}

// Resolve builds a Client for the configured driver. An unknown driver is a
// configuration error: fatal, not retryable.
func Resolve(cfg Config) (*Client, error) {
	var sdkCfg openai.ClientConfig

	switch cfg.Driver {
	case DriverOpenAI:
		sdkCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.Endpoint != "" {
			sdkCfg.BaseURL = cfg.Endpoint
		}
	case DriverAzure:
		if cfg.Endpoint == "" {
			return nil, domain.NewDomainError(domain.ErrCodeConfiguration, "azure driver requires an endpoint")
		}
		sdkCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	case DriverOllama:
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOllamaEndpoint
		}
		sdkCfg = openai.DefaultConfig(cfg.APIKey)
		sdkCfg.BaseURL = endpoint
	default:
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration,
			fmt.Sprintf("unsupported AI driver %q (supported: openai, azure, ollama)", cfg.Driver),
			domain.ErrUnsupportedDriver)
	}

	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	completionModel := cfg.CompletionModel
	if completionModel == "" {
		completionModel = DefaultCompletionModel
	}

	return &Client{
		api:             openai.NewClientWithConfig(sdkCfg),
		embeddingModel:  embeddingModel,
		completionModel: completionModel,
		dimensions:      resolveDimensions(embeddingModel, cfg.EmbeddingDimensions),
	}, nil
}

// resolveDimensions: explicit config wins, then the preset table, then the
// 1536 default.
func resolveDimensions(model string, explicit int) int {
	if explicit > 0 {
		return explicit
	}
	if d, ok := modelDimensions[strings.ToLower(model)]; ok {
		return d
	}
	return DefaultEmbeddingDimensions
}

// Model returns the embedding model name stored on every chunk row.
func (c *Client) Model() string {
	return c.embeddingModel
}

// Dimensions returns the resolved embedding dimension.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// EmbedTexts embeds a batch of texts in a single backend call. The returned
// slice is parallel to the input.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// The backend may return data out of order; place by index.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		if len(d.Embedding) != c.dimensions {
			return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(d.Embedding), c.dimensions)
		}
		vectors[d.Index] = d.Embedding
	}

	return vectors, nil
}

// StreamCompletion starts a streaming chat completion with a system
// instruction and a user message. Increments arrive in model order through
// the returned stream.
func (c *Client) StreamCompletion(ctx context.Context, system, user string) (*CompletionStream, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: c.completionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Stream: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start completion stream: %w", err)
	}

	return &CompletionStream{inner: stream}, nil
}

// CompletionStream yields answer text increments in arrival order.
type CompletionStream struct {
	inner *openai.ChatCompletionStream
}

// Recv returns the next text increment. io.EOF marks a cleanly finished
// stream. Empty increments (role deltas, finish markers) are skipped.
func (s *CompletionStream) Recv() (string, error) {
	for {
		resp, err := s.inner.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

// Close releases the underlying HTTP stream.
func (s *CompletionStream) Close() error {
	return s.inner.Close()
}
