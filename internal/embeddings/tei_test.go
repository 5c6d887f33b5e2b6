package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTEIEmbedderEmbedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)

		var req teiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "is the flu viral", req.Inputs)
		assert.True(t, req.Truncate)

		_ = json.NewEncoder(w).Encode([][]float32{{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	embedder, err := NewTEIEmbedder(TEIConfig{BaseURL: srv.URL, Dimension: 3})
	require.NoError(t, err)

	vec, err := embedder.EmbedText(context.Background(), "is the flu viral")
	require.NoError(t, err)
	assert.Equal(t, TextVector{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, embedder.Dimension())
}

func TestTEIEmbedderRejectsWrongDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([][]float32{{0.1, 0.2}})
	}))
	defer srv.Close()

	embedder, err := NewTEIEmbedder(TEIConfig{BaseURL: srv.URL, Dimension: 3})
	require.NoError(t, err)

	_, err = embedder.EmbedText(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestTEIEmbedderErrors(t *testing.T) {
	t.Run("empty text", func(t *testing.T) {
		embedder, err := NewTEIEmbedder(TEIConfig{BaseURL: "http://localhost:1", Dimension: 3})
		require.NoError(t, err)

		_, err = embedder.EmbedText(context.Background(), "")
		assert.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		embedder, err := NewTEIEmbedder(TEIConfig{BaseURL: srv.URL, Dimension: 3})
		require.NoError(t, err)

		_, err = embedder.EmbedText(context.Background(), "hello")
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
	})

	t.Run("missing base URL", func(t *testing.T) {
		_, err := NewTEIEmbedder(TEIConfig{Dimension: 3})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestCLIPEmbedderTextForImageSpace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed/text", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "anatomical heart diagram", req["text"])

		_ = json.NewEncoder(w).Encode(clipResponse{Vector: []float32{1, 0, 0, 0}})
	}))
	defer srv.Close()

	embedder, err := NewCLIPEmbedder(CLIPConfig{BaseURL: srv.URL, Dimension: 4})
	require.NoError(t, err)

	vec, err := embedder.EmbedTextForImageSpace(context.Background(), "anatomical heart diagram")
	require.NoError(t, err)
	assert.Equal(t, ImageVector{1, 0, 0, 0}, vec)
}

func TestCLIPEmbedderEmbedImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed/image", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "scan.png", header.Filename)

		_ = json.NewEncoder(w).Encode(clipResponse{Vector: []float32{0, 1}})
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := dir + "/scan.png"
	require.NoError(t, writeTestFile(path, []byte("not a real png")))

	embedder, err := NewCLIPEmbedder(CLIPConfig{BaseURL: srv.URL, Dimension: 2})
	require.NoError(t, err)

	vec, err := embedder.EmbedImage(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, ImageVector{0, 1}, vec)
}

func TestCLIPEmbedderMissingImage(t *testing.T) {
	embedder, err := NewCLIPEmbedder(CLIPConfig{BaseURL: "http://localhost:1", Dimension: 2})
	require.NoError(t, err)

	_, err = embedder.EmbedImage(context.Background(), "/nonexistent/scan.png")
	assert.Error(t, err)
}
