package ai

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/internal/domain"
)

type fakeEmbeddingAPI struct {
	resp openai.EmbeddingResponse
	err  error

	gotInput []string
	gotModel string
}

func (f *fakeEmbeddingAPI) CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	conv := req.Convert()
	if input, ok := conv.Input.([]string); ok {
		f.gotInput = input
	}
	f.gotModel = string(conv.Model)
	return f.resp, f.err
}

func (f *fakeEmbeddingAPI) CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error) {
	return nil, errors.New("not implemented")
}

func TestResolve_UnknownDriver(t *testing.T) {
	_, err := Resolve(Config{Driver: "bedrock"})

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeConfiguration, domainErr.Code)
}

func TestResolve_AzureRequiresEndpoint(t *testing.T) {
	_, err := Resolve(Config{Driver: DriverAzure, APIKey: "key"})

	assert.Error(t, err)
}

func TestResolve_Defaults(t *testing.T) {
	client, err := Resolve(Config{Driver: DriverOpenAI, APIKey: "key"})

	require.NoError(t, err)
	assert.Equal(t, DefaultEmbeddingModel, client.Model())
	assert.Equal(t, 1536, client.Dimensions())
}

func TestResolve_OllamaDefaultsEndpoint(t *testing.T) {
	client, err := Resolve(Config{
		Driver:         DriverOllama,
		EmbeddingModel: "nomic-embed-text",
	})

	require.NoError(t, err)
	assert.Equal(t, 768, client.Dimensions())
}

func TestResolveDimensions(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		explicit int
		want     int
	}{
		{"explicit wins over preset", "text-embedding-3-large", 256, 256},
		{"preset small", "text-embedding-3-small", 0, 1536},
		{"preset large", "text-embedding-3-large", 0, 3072},
		{"preset ollama", "mxbai-embed-large", 0, 1024},
		{"unknown model falls back", "my-custom-model", 0, 1536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveDimensions(tt.model, tt.explicit))
		})
	}
}

func TestEmbedTexts_OrdersByIndex(t *testing.T) {
	api := &fakeEmbeddingAPI{
		resp: openai.EmbeddingResponse{
			Data: []openai.Embedding{
				{Index: 1, Embedding: []float32{0.4, 0.5}},
				{Index: 0, Embedding: []float32{0.1, 0.2}},
			},
		},
	}
	client := &Client{api: api, embeddingModel: "text-embedding-3-small", dimensions: 2}

	vectors, err := client.EmbedTexts(context.Background(), []string{"first", "second"})

	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
	assert.Equal(t, []float32{0.4, 0.5}, vectors[1])
	assert.Equal(t, []string{"first", "second"}, api.gotInput)
	assert.Equal(t, "text-embedding-3-small", api.gotModel)
}

func TestEmbedTexts_CountMismatch(t *testing.T) {
	api := &fakeEmbeddingAPI{
		resp: openai.EmbeddingResponse{
			Data: []openai.Embedding{{Index: 0, Embedding: []float32{0.1, 0.2}}},
		},
	}
	client := &Client{api: api, embeddingModel: "m", dimensions: 2}

	_, err := client.EmbedTexts(context.Background(), []string{"a", "b"})

	assert.Error(t, err)
}

func TestEmbedTexts_WrongDimensions(t *testing.T) {
	api := &fakeEmbeddingAPI{
		resp: openai.EmbeddingResponse{
			Data: []openai.Embedding{{Index: 0, Embedding: []float32{0.1, 0.2, 0.3}}},
		},
	}
	client := &Client{api: api, embeddingModel: "m", dimensions: 2}

	_, err := client.EmbedTexts(context.Background(), []string{"a"})

	assert.Error(t, err)
}

func TestEmbedTexts_EmptyInput(t *testing.T) {
	client := &Client{api: &fakeEmbeddingAPI{}, embeddingModel: "m", dimensions: 2}

	vectors, err := client.EmbedTexts(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEmbedTexts_UpstreamError(t *testing.T) {
	api := &fakeEmbeddingAPI{err: errors.New("rate limited")}
	client := &Client{api: api, embeddingModel: "m", dimensions: 2}

	_, err := client.EmbedTexts(context.Background(), []string{"a"})

	assert.ErrorContains(t, err, "rate limited")
}
