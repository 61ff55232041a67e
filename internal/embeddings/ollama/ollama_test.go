package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float64{0.5, -1}})
	}))
	defer srv.Close()

	p := New(srv.URL, "nomic-embed-text")
	vec, err := p.Embed(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1}, vec)
}

func TestEmbed_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "m").Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestEmbed_EmptyText(t *testing.T) {
	_, err := New("localhost:1", "m").Embed(context.Background(), "  ")
	require.Error(t, err)
}

func TestHealthPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest"}]}`))
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL, "nomic-embed-text").HealthPing(context.Background()))
	require.Error(t, New(srv.URL, "mxbai-embed-large").HealthPing(context.Background()))
}
