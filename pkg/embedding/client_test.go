package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laodong-rag-go/internal/config"
)

func TestCreateEmbedding_ReturnsVector(t *testing.T) {
	var gotReq embeddingRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer server.Close()

	client := NewClient(config.EmbeddingConfig{
		BaseURL:    server.URL,
		Model:      "embed-model",
		Dimensions: 3,
	})

	vec, err := client.CreateEmbedding(context.Background(), "勞工保險")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)

	assert.Equal(t, "embed-model", gotReq.Model)
	assert.Equal(t, []string{"勞工保險"}, gotReq.Input)
	assert.Equal(t, 3, gotReq.Dimensions)
}

func TestCreateEmbedding_429MapsToQuotaExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(config.EmbeddingConfig{BaseURL: server.URL})
	_, err := client.CreateEmbedding(context.Background(), "t")
	assert.ErrorIs(t, err, ErrQuotaExhausted)
}

func TestCreateEmbedding_EmptyDataIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	client := NewClient(config.EmbeddingConfig{BaseURL: server.URL})
	_, err := client.CreateEmbedding(context.Background(), "t")
	assert.Error(t, err)
}
