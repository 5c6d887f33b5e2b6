package verdict

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/healthguardlabs/verifyd/internal/compose"
	"github.com/healthguardlabs/verifyd/internal/embeddings"
	"github.com/healthguardlabs/verifyd/internal/memory"
	"github.com/healthguardlabs/verifyd/internal/vectorstore"
)

// fakeSearcher returns canned hits per collection and supports injected
// per-collection failures. Only Search matters to the engine.
type fakeSearcher struct {
	hits map[string][]vectorstore.ScoredPoint
	errs map[string]error
}

func (f *fakeSearcher) Search(_ context.Context, collection string, _ []float32, _ int, _ map[string]any) ([]vectorstore.ScoredPoint, error) {
	if err := f.errs[collection]; err != nil {
		return nil, err
	}
	return f.hits[collection], nil
}

func (f *fakeSearcher) EnsureCollection(context.Context, string, int) error { return nil }
func (f *fakeSearcher) Upsert(context.Context, string, []vectorstore.Point) error {
	return nil
}
func (f *fakeSearcher) DeletePoint(context.Context, string, string) error { return nil }
func (f *fakeSearcher) UpdatePayload(context.Context, string, string, map[string]any) error {
	return nil
}
func (f *fakeSearcher) Close() error { return nil }

type stubTextEmbedder struct{ err error }

func (s stubTextEmbedder) EmbedText(context.Context, string) (embeddings.TextVector, error) {
	if s.err != nil {
		return nil, s.err
	}
	return embeddings.TextVector{0.1, 0.2, 0.3}, nil
}

type stubImageEmbedder struct{ err error }

func (s stubImageEmbedder) EmbedTextForImageSpace(context.Context, string) (embeddings.ImageVector, error) {
	if s.err != nil {
		return nil, s.err
	}
	return embeddings.ImageVector{0.4, 0.5}, nil
}

// fakeMemory records Add calls and serves canned context.
type fakeMemory struct {
	records    []memory.Record
	getErr     error
	addErr     error
	addedTexts []string
	addedTypes []memory.Type
}

func (f *fakeMemory) GetContext(_ context.Context, _, _ string, _ int) ([]memory.Record, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.records, nil
}

func (f *fakeMemory) Add(_ context.Context, _, _, text string, memType memory.Type) (string, error) {
	if f.addErr != nil {
		return "", f.addErr
	}
	f.addedTexts = append(f.addedTexts, text)
	f.addedTypes = append(f.addedTypes, memType)
	return "mem-1", nil
}

func factHit(id string, score float32, body, source, topic string) vectorstore.ScoredPoint {
	return vectorstore.ScoredPoint{
		ID:    id,
		Score: score,
		Payload: map[string]any{
			"body":   body,
			"source": source,
			"topic":  topic,
		},
	}
}

func imageHit(id string, score float32, caption string) vectorstore.ScoredPoint {
	return vectorstore.ScoredPoint{
		ID:    id,
		Score: score,
		Payload: map[string]any{
			"caption": caption,
		},
	}
}

func newTestEngine(t *testing.T, searcher *fakeSearcher, mem *fakeMemory) *Engine {
	t.Helper()
	engine, err := NewEngine(
		searcher,
		stubTextEmbedder{},
		stubImageEmbedder{},
		mem,
		compose.NewComposer(nil, zap.NewNop()),
		nil,
		Config{},
		zap.NewNop(),
	)
	require.NoError(t, err)
	return engine
}

func TestProcessQueryValidation(t *testing.T) {
	engine := newTestEngine(t, &fakeSearcher{}, &fakeMemory{})

	_, err := engine.ProcessQuery(context.Background(), "", "s1", "query")
	assert.ErrorIs(t, err, ErrEmptyUserID)

	_, err = engine.ProcessQuery(context.Background(), "u1", "s1", "")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestNoEvidenceYieldsInsufficient(t *testing.T) {
	engine := newTestEngine(t, &fakeSearcher{}, &fakeMemory{})

	result, err := engine.ProcessQuery(context.Background(), "u1", "s1", "does vitamin Z exist")
	require.NoError(t, err)

	assert.Equal(t, VerdictInsufficient, result.Verdict)
	assert.Equal(t, "I could not verify this claim based on trusted medical data.", result.FinalAnswer)
	assert.Equal(t, []string{
		"Consult a doctor for personal medical advice.",
		"Check WHO.org for latest guidelines.",
	}, result.Recommendations)
	assert.Empty(t, result.Evidence)
}

func TestFactConfirmation(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]vectorstore.ScoredPoint{
		DefaultFactsCollection: {
			factHit("f1", 0.82, "Annual flu shots reduce hospitalization risk.", "CDC", "flu"),
			factHit("f2", 0.41, "Flu vaccines are reformulated yearly.", "WHO", "flu"),
		},
		DefaultMisinfoCollection: {
			factHit("m1", 0.12, "Flu shots give you the flu.", "forum", "flu"),
		},
	}}
	engine := newTestEngine(t, searcher, &fakeMemory{})

	result, err := engine.ProcessQuery(context.Background(), "u1", "s1", "do flu shots reduce hospitalization")
	require.NoError(t, err)

	assert.Equal(t, VerdictTrue, result.Verdict)
	assert.Contains(t, result.ReasoningTrace, "CDC")
	assert.Equal(t, "**CONFIRMED**: Annual flu shots reduce hospitalization risk.", result.FinalAnswer)
	assert.Contains(t, result.Recommendations, "Learn more about flu.")
}

func TestFactTopicDefaultsToHealth(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]vectorstore.ScoredPoint{
		DefaultFactsCollection: {
			factHit("f1", 0.5, "Hydration matters.", "NIH", ""),
		},
	}}
	engine := newTestEngine(t, searcher, &fakeMemory{})

	result, err := engine.ProcessQuery(context.Background(), "u1", "s1", "does hydration matter")
	require.NoError(t, err)
	assert.Contains(t, result.Recommendations, "Learn more about health.")
}

func TestMisinformationDebunk(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]vectorstore.ScoredPoint{
		DefaultFactsCollection: {
			factHit("f1", 0.1, "The earth is an oblate spheroid.", "NASA", "science"),
		},
		DefaultMisinfoCollection: {
			factHit("m1", 0.85, "The earth is flat.", "forum", "conspiracy"),
		},
	}}
	engine := newTestEngine(t, searcher, &fakeMemory{})

	result, err := engine.ProcessQuery(context.Background(), "u1", "s1", "Is it true that the earth is flat?")
	require.NoError(t, err)

	assert.Equal(t, VerdictFalse, result.Verdict)
	assert.Contains(t, result.ReasoningTrace, "The earth is flat.")
	assert.Contains(t, result.FinalAnswer, "**DEBUNKED**")
	assert.Contains(t, result.Recommendations, "Be cautious of sources promoting this claim.")

	var misinfoItems []EvidenceRecord
	for _, e := range result.Evidence {
		if e.Kind == KindMisinformation {
			misinfoItems = append(misinfoItems, e)
		}
	}
	require.NotEmpty(t, misinfoItems)
	assert.Equal(t, "m1", misinfoItems[0].ID)
	assert.Equal(t, "The earth is flat.", misinfoItems[0].Content)
}

func TestFactMisinfoTieFallsThrough(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]vectorstore.ScoredPoint{
		DefaultFactsCollection: {
			factHit("f1", 0.5, "Fact body.", "CDC", "flu"),
		},
		DefaultMisinfoCollection: {
			factHit("m1", 0.5, "Myth body.", "forum", "flu"),
		},
	}}
	engine := newTestEngine(t, searcher, &fakeMemory{})

	result, err := engine.ProcessQuery(context.Background(), "u1", "s1", "tie breaking query")
	require.NoError(t, err)

	// Neither the confirm nor the debunk rule may fire on an exact tie.
	assert.Equal(t, "Evidence found but confidence is moderate. Context is required.", result.ReasoningTrace)
	assert.Equal(t, VerdictTrue, result.Verdict)
	assert.Equal(t, "Likely True: Evidence suggests Fact body.", result.FinalAnswer)
}

func TestVisualIntentOverridesStrongerFact(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]vectorstore.ScoredPoint{
		DefaultFactsCollection: {
			factHit("f1", 0.95, "The heart has four chambers.", "NIH", "anatomy"),
		},
		DefaultImagesCollection: {
			imageHit("i1", 0.9, "Anatomical reference of human heart"),
		},
	}}
	engine := newTestEngine(t, searcher, &fakeMemory{})

	result, err := engine.ProcessQuery(context.Background(), "u1", "s1", "show me the heart chambers")
	require.NoError(t, err)

	assert.Equal(t, VerdictTrue, result.Verdict)
	assert.Contains(t, result.ReasoningTrace, "medical imagery")
	assert.NotContains(t, result.ReasoningTrace, "NIH")
	assert.Contains(t, result.FinalAnswer, "Anatomical reference of human heart")
	assert.Contains(t, result.Recommendations, "View the attached anatomical references.")
}

func TestVisualIntentQueryWithModerateImageScore(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]vectorstore.ScoredPoint{
		DefaultImagesCollection: {
			imageHit("i1", 0.4, "Cell tower diagram"),
		},
	}}
	engine := newTestEngine(t, searcher, &fakeMemory{})

	result, err := engine.ProcessQuery(context.Background(), "u1", "s1", "Show me images about 5G towers and viruses")
	require.NoError(t, err)

	assert.Equal(t, VerdictTrue, result.Verdict)
	assert.Contains(t, result.FinalAnswer, "Cell tower diagram")
}

func TestImageWinsWithoutVisualIntent(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]vectorstore.ScoredPoint{
		DefaultFactsCollection: {
			factHit("f1", 0.1, "Fact body.", "CDC", "anatomy"),
		},
		DefaultImagesCollection: {
			imageHit("i1", 0.5, "Anatomical reference of human lungs"),
		},
	}}
	engine := newTestEngine(t, searcher, &fakeMemory{})

	result, err := engine.ProcessQuery(context.Background(), "u1", "s1", "lung anatomy reference")
	require.NoError(t, err)

	assert.Equal(t, VerdictTrue, result.Verdict)
	assert.Contains(t, result.FinalAnswer, "Anatomical reference of human lungs")
}

func TestModerateMisinfoIsMisleading(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]vectorstore.ScoredPoint{
		DefaultMisinfoCollection: {
			factHit("m1", 0.17, "Garlic cures infections.", "forum", "nutrition"),
		},
	}}
	engine := newTestEngine(t, searcher, &fakeMemory{})

	result, err := engine.ProcessQuery(context.Background(), "u1", "s1", "does garlic cure infections")
	require.NoError(t, err)

	assert.Equal(t, VerdictMisleading, result.Verdict)
	assert.Equal(t, "Likely False: This resembles known myths about nutrition.", result.FinalAnswer)
}

func TestSearchFailureDegradesToAbsence(t *testing.T) {
	searcher := &fakeSearcher{
		hits: map[string][]vectorstore.ScoredPoint{
			DefaultMisinfoCollection: {
				factHit("m1", 0.85, "Myth body.", "forum", "flu"),
			},
		},
		errs: map[string]error{
			DefaultFactsCollection:  fmt.Errorf("connection refused"),
			DefaultImagesCollection: fmt.Errorf("connection refused"),
		},
	}
	engine := newTestEngine(t, searcher, &fakeMemory{})

	result, err := engine.ProcessQuery(context.Background(), "u1", "s1", "failing collections query")
	require.NoError(t, err)

	assert.Equal(t, VerdictFalse, result.Verdict)
	require.Len(t, result.Evidence, 1)
	assert.Equal(t, KindMisinformation, result.Evidence[0].Kind)
}

func TestEmbeddingFailureDegradesToAbsence(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]vectorstore.ScoredPoint{
		DefaultFactsCollection: {factHit("f1", 0.9, "Fact body.", "CDC", "flu")},
	}}
	engine, err := NewEngine(
		searcher,
		stubTextEmbedder{err: fmt.Errorf("embedder down")},
		stubImageEmbedder{err: fmt.Errorf("embedder down")},
		&fakeMemory{},
		compose.NewComposer(nil, zap.NewNop()),
		nil,
		Config{},
		zap.NewNop(),
	)
	require.NoError(t, err)

	result, err := engine.ProcessQuery(context.Background(), "u1", "s1", "query")
	require.NoError(t, err)
	assert.Equal(t, VerdictInsufficient, result.Verdict)
}

func TestEvidenceOrdering(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string][]vectorstore.ScoredPoint{
		DefaultFactsCollection: {
			factHit("f1", 0.8, "Fact one.", "CDC", "flu"),
			factHit("f2", 0.6, "Fact two.", "WHO", "flu"),
		},
		DefaultMisinfoCollection: {
			factHit("m1", 0.3, "Myth one.", "forum", "flu"),
		},
		DefaultImagesCollection: {
			imageHit("i1", 0.2, "Diagram one"),
		},
	}}
	engine := newTestEngine(t, searcher, &fakeMemory{})

	result, err := engine.ProcessQuery(context.Background(), "u1", "s1", "evidence ordering query")
	require.NoError(t, err)

	require.Len(t, result.Evidence, 4)
	assert.Equal(t, []string{"f1", "f2", "m1", "i1"}, []string{
		result.Evidence[0].ID, result.Evidence[1].ID, result.Evidence[2].ID, result.Evidence[3].ID,
	})
	assert.Equal(t, KindFact, result.Evidence[0].Kind)
	assert.Equal(t, KindMisinformation, result.Evidence[2].Kind)
	assert.Equal(t, KindImage, result.Evidence[3].Kind)
	assert.Equal(t, DefaultImagesCollection, result.Evidence[3].SourceCollection)
	assert.Equal(t, "Diagram one", result.Evidence[3].Content)
}

func TestInteractionSummaryStored(t *testing.T) {
	mem := &fakeMemory{}
	engine := newTestEngine(t, &fakeSearcher{}, mem)

	result, err := engine.ProcessQuery(context.Background(), "u1", "s1", "unverifiable claim")
	require.NoError(t, err)

	require.Len(t, mem.addedTexts, 1)
	assert.Equal(t, "Query: unverifiable claim | Verdict: Insufficient Evidence", mem.addedTexts[0])
	assert.Equal(t, memory.TypeHistory, mem.addedTypes[0])
	assert.Equal(t, []string{"stored_interaction"}, result.MemoryActions)
}

func TestMemoryFailuresAreNonFatal(t *testing.T) {
	mem := &fakeMemory{
		getErr: fmt.Errorf("memory backend down"),
		addErr: fmt.Errorf("memory backend down"),
	}
	searcher := &fakeSearcher{hits: map[string][]vectorstore.ScoredPoint{
		DefaultFactsCollection: {factHit("f1", 0.8, "Fact body.", "CDC", "flu")},
	}}
	engine := newTestEngine(t, searcher, mem)

	result, err := engine.ProcessQuery(context.Background(), "u1", "s1", "query with broken memory")
	require.NoError(t, err)

	assert.Equal(t, VerdictTrue, result.Verdict)
	assert.Empty(t, result.MemoryActions)
	assert.Empty(t, result.Memories)
}

func TestRecalledMemoriesSurfaced(t *testing.T) {
	mem := &fakeMemory{records: []memory.Record{
		{ID: "mem-1", UserID: "u1", RawText: "Query: old claim | Verdict: False"},
	}}
	engine := newTestEngine(t, &fakeSearcher{}, mem)

	result, err := engine.ProcessQuery(context.Background(), "u1", "s1", "another claim")
	require.NoError(t, err)
	require.Len(t, result.Memories, 1)
	assert.Equal(t, "mem-1", result.Memories[0].ID)
}

func TestKeywordIntentDetector(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"Show me images about 5G towers", true},
		{"can I see a diagram of the heart", true},
		{"PICTURE of lungs", true},
		{"is a CT scan safe", true},
		{"do flu shots work", false},
		{"", false},
	}

	detector := KeywordIntentDetector{}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, detector.DetectsVisualIntent(tt.query))
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.InDelta(t, 0.20, cfg.Threshold, 1e-6)
	assert.InDelta(t, 0.15, cfg.FallbackThreshold, 1e-6)
	assert.Equal(t, 2, cfg.TopK)
	assert.Equal(t, "medical_facts", cfg.FactsCollection)
	assert.Equal(t, "medical_misinfo", cfg.MisinfoCollection)
	assert.Equal(t, "medical_images", cfg.ImagesCollection)
}
