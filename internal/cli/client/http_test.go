package client

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_Post_SuccessEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"results":[]}}`))
	}))
	defer srv.Close()

	api, err := NewAPIClientWithConfig("test-key", srv.URL)
	require.NoError(t, err)

	resp, err := api.Post("/search", SearchRequest{Query: "hello"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[]}`, string(resp.Data))
}

func TestAPIClient_Post_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid token"}`))
	}))
	defer srv.Close()

	api, err := NewAPIClientWithConfig("bad-key", srv.URL)
	require.NoError(t, err)

	_, err = api.Post("/search", SearchRequest{Query: "hello"})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid token", apiErr.Message)
}

func TestAPIClient_PostStream_ReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-ndjson", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte("{\"content\":\"hi\"}\n\n[DONE]\n\n"))
	}))
	defer srv.Close()

	api, err := NewAPIClientWithConfig("test-key", srv.URL)
	require.NoError(t, err)

	body, err := api.PostStream("/ask", AskRequest{Query: "hello"})
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `{"content":"hi"}`)
	assert.Contains(t, string(data), "[DONE]")
}

func TestAPIClient_PostStream_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"space access denied"}`))
	}))
	defer srv.Close()

	api, err := NewAPIClientWithConfig("test-key", srv.URL)
	require.NoError(t, err)

	_, err = api.PostStream("/ask", AskRequest{Query: "hello"})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "space access denied", apiErr.Message)
}
