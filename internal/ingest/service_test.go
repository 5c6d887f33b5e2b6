package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/healthguardlabs/verifyd/internal/embeddings"
	"github.com/healthguardlabs/verifyd/internal/memory"
	"github.com/healthguardlabs/verifyd/internal/vectorstore"
	"github.com/healthguardlabs/verifyd/internal/verdict"
)

type stubTextEmbedder struct{ err error }

func (s stubTextEmbedder) EmbedText(_ context.Context, text string) (embeddings.TextVector, error) {
	if s.err != nil {
		return nil, s.err
	}
	// Cheap deterministic vector so distinct texts stay distinct.
	v := embeddings.TextVector{1, 0, 0}
	for _, r := range text {
		v[1] += float32(r) / 1e5
	}
	return v, nil
}

func (stubTextEmbedder) Dimension() int { return 3 }

type stubImageEmbedder struct {
	imageCalls   int
	captionCalls int
}

func (s *stubImageEmbedder) EmbedImage(context.Context, string) (embeddings.ImageVector, error) {
	s.imageCalls++
	return embeddings.ImageVector{0, 1}, nil
}

func (s *stubImageEmbedder) EmbedTextForImageSpace(context.Context, string) (embeddings.ImageVector, error) {
	s.captionCalls++
	return embeddings.ImageVector{1, 0}, nil
}

func (*stubImageEmbedder) Dimension() int { return 2 }

func newTestService(t *testing.T) (*Service, vectorstore.Store, *stubImageEmbedder) {
	t.Helper()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{}, zap.NewNop())
	require.NoError(t, err)

	image := &stubImageEmbedder{}
	svc, err := NewService(store, stubTextEmbedder{}, image, verdict.Config{}, memory.Config{}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, svc.EnsureCollections(context.Background()))
	return svc, store, image
}

func TestPointIDIsDeterministic(t *testing.T) {
	a := PointID("fact_flu_0")
	b := PointID("fact_flu_0")
	c := PointID("fact_flu_1")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestIngestFacts(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	docs := []TextDoc{
		{DocID: "f1", Title: "Fact", Body: "Fiber aids digestion.", Source: "GHA", Date: "2025-06-01", Topic: "nutrition"},
		{DocID: "f2", Title: "Fact", Body: "Protein builds muscle.", Source: "GHA", Date: "2025-06-01", Topic: "nutrition"},
	}
	count, err := svc.IngestFacts(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	hits, err := store.Search(ctx, verdict.DefaultFactsCollection, []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "fact", hits[0].Payload["veracity"])
	assert.Equal(t, "text", hits[0].Payload["content_type"])
}

func TestIngestIsIdempotent(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	doc := TextDoc{DocID: "f1", Body: "Fiber aids digestion.", Topic: "nutrition"}
	_, err := svc.IngestFacts(ctx, []TextDoc{doc})
	require.NoError(t, err)

	doc.Body = "Fiber aids digestion and gut health."
	_, err = svc.IngestFacts(ctx, []TextDoc{doc})
	require.NoError(t, err)

	hits, err := store.Search(ctx, verdict.DefaultFactsCollection, []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Fiber aids digestion and gut health.", hits[0].Payload["body"])
}

func TestIngestSkipsInvalidDocs(t *testing.T) {
	svc, _, _ := newTestService(t)

	count, err := svc.IngestMyths(context.Background(), []TextDoc{
		{DocID: "", Body: "no id"},
		{DocID: "m1", Body: ""},
		{DocID: "m2", Body: "Carbs are evil.", Topic: "nutrition"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIngestEmbeddingFailureSkipsDoc(t *testing.T) {
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{}, zap.NewNop())
	require.NoError(t, err)
	svc, err := NewService(store, stubTextEmbedder{err: fmt.Errorf("embedder down")}, &stubImageEmbedder{}, verdict.Config{}, memory.Config{}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, svc.EnsureCollections(context.Background()))

	count, err := svc.IngestFacts(context.Background(), []TextDoc{{DocID: "f1", Body: "body"}})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngestImagesFallsBackToCaption(t *testing.T) {
	svc, store, image := newTestService(t)
	ctx := context.Background()

	count, err := svc.IngestImages(ctx, []ImageDoc{
		{ImgID: "i1", Caption: "Anatomical reference of human heart", FilePath: "/nonexistent/heart.png"},
		{ImgID: "i2", Caption: "Anatomical reference of human brain"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Zero(t, image.imageCalls)
	assert.Equal(t, 2, image.captionCalls)

	hits, err := store.Search(ctx, verdict.DefaultImagesCollection, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "image", hits[0].Payload["content_type"])
}

func TestSeedCorpus(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	facts, myths, images, err := svc.Seed(ctx)
	require.NoError(t, err)

	assert.Equal(t, len(SeedFacts()), facts)
	assert.Equal(t, len(SeedMyths()), myths)
	assert.Equal(t, len(SeedImages()), images)
	assert.Equal(t, 21, facts)
	assert.Equal(t, 16, myths)
	assert.Equal(t, 5, images)

	hits, err := store.Search(ctx, memory.DefaultCollection, []float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, hits, "seeding must not write memories")
}
