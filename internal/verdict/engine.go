package verdict

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/healthguardlabs/verifyd/internal/compose"
	"github.com/healthguardlabs/verifyd/internal/embeddings"
	"github.com/healthguardlabs/verifyd/internal/memory"
	"github.com/healthguardlabs/verifyd/internal/observability"
	"github.com/healthguardlabs/verifyd/internal/vectorstore"
)

// Default collections and decision thresholds. The thresholds are tuned
// to one embedding model's cosine score distribution and are exposed as
// configuration because they do not port across models.
const (
	DefaultFactsCollection   = "medical_facts"
	DefaultMisinfoCollection = "medical_misinfo"
	DefaultImagesCollection  = "medical_images"

	DefaultThreshold         = 0.20
	DefaultFallbackThreshold = 0.15
	DefaultTopK              = 2
)

// Baseline recommendations present on every result.
var baselineRecommendations = []string{
	"Consult a doctor for personal medical advice.",
	"Check WHO.org for latest guidelines.",
}

// Config holds configuration for the verdict engine.
type Config struct {
	// Threshold is the primary confidence cutoff. Default: 0.20.
	Threshold float32 `koanf:"threshold"`

	// FallbackThreshold is the moderate-confidence cutoff. Default: 0.15.
	FallbackThreshold float32 `koanf:"fallback_threshold"`

	// TopK is the number of hits requested per collection. Default: 2.
	TopK int `koanf:"top_k"`

	// FactsCollection names the verified-facts collection.
	FactsCollection string `koanf:"facts_collection"`

	// MisinfoCollection names the known-misinformation collection.
	MisinfoCollection string `koanf:"misinfo_collection"`

	// ImagesCollection names the reference-imagery collection.
	ImagesCollection string `koanf:"images_collection"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	if c.FallbackThreshold == 0 {
		c.FallbackThreshold = DefaultFallbackThreshold
	}
	if c.TopK == 0 {
		c.TopK = DefaultTopK
	}
	if c.FactsCollection == "" {
		c.FactsCollection = DefaultFactsCollection
	}
	if c.MisinfoCollection == "" {
		c.MisinfoCollection = DefaultMisinfoCollection
	}
	if c.ImagesCollection == "" {
		c.ImagesCollection = DefaultImagesCollection
	}
}

// TextEmbedder is the query-side text embedding dependency.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) (embeddings.TextVector, error)
}

// ImageQueryEmbedder embeds query text into the image vector space.
type ImageQueryEmbedder interface {
	EmbedTextForImageSpace(ctx context.Context, text string) (embeddings.ImageVector, error)
}

// MemoryStore is the per-user memory dependency.
type MemoryStore interface {
	GetContext(ctx context.Context, userID, query string, topK int) ([]memory.Record, error)
	Add(ctx context.Context, userID, sessionID, text string, memType memory.Type) (string, error)
}

// Composer produces the final answer; it never fails.
type Composer interface {
	Compose(ctx context.Context, query, verdict, fallbackText string, evidence []compose.Evidence) string
}

// Engine fuses evidence from three collections into one verdict.
//
// The engine is stateless between calls and safe for concurrent use as
// long as its dependencies are.
type Engine struct {
	vectors  vectorstore.Store
	text     TextEmbedder
	image    ImageQueryEmbedder
	memories MemoryStore
	composer Composer
	intent   IntentDetector
	config   Config
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewEngine creates a verdict engine.
//
// The intent detector may be nil, in which case the keyword matcher is
// used. Metrics may be nil.
func NewEngine(
	vectors vectorstore.Store,
	text TextEmbedder,
	image ImageQueryEmbedder,
	memories MemoryStore,
	composer Composer,
	intent IntentDetector,
	config Config,
	logger *zap.Logger,
) (*Engine, error) {
	if vectors == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}
	if text == nil {
		return nil, fmt.Errorf("text embedder cannot be nil")
	}
	if image == nil {
		return nil, fmt.Errorf("image-space embedder cannot be nil")
	}
	if memories == nil {
		return nil, fmt.Errorf("memory store cannot be nil")
	}
	if composer == nil {
		return nil, fmt.Errorf("composer cannot be nil")
	}
	if intent == nil {
		intent = KeywordIntentDetector{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	return &Engine{
		vectors:  vectors,
		text:     text,
		image:    image,
		memories: memories,
		composer: composer,
		intent:   intent,
		config:   config,
		logger:   logger,
	}, nil
}

// SetMetrics attaches Prometheus instruments.
func (e *Engine) SetMetrics(m *observability.Metrics) {
	e.metrics = m
}

// ProcessQuery runs the full verification pipeline for one query.
//
// Evidence search and embedding failures degrade to zero-score absences
// rather than aborting: a verdict is always produced from whatever
// evidence arrived. The generator call happens last so its latency never
// delays verdict computation, and the interaction summary write is
// best-effort.
func (e *Engine) ProcessQuery(ctx context.Context, userID, sessionID, query string) (*Result, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	if query == "" {
		return nil, ErrEmptyQuery
	}
	start := time.Now()

	// Prior context is recalled (and reinforced as a side effect) for
	// display only; it does not enter the scoring below.
	memories, err := e.memories.GetContext(ctx, userID, query, 0)
	if err != nil {
		e.logger.Warn("memory recall failed",
			zap.String("user_id", userID),
			zap.Error(err))
		memories = nil
	}

	textVec, err := e.text.EmbedText(ctx, query)
	if err != nil {
		e.logger.Warn("text embedding failed", zap.Error(err))
		textVec = nil
	}
	imageVec, err := e.image.EmbedTextForImageSpace(ctx, query)
	if err != nil {
		e.logger.Warn("image-space embedding failed", zap.Error(err))
		imageVec = nil
	}

	var (
		wg                     sync.WaitGroup
		facts, misinfo, images []vectorstore.ScoredPoint
	)
	wg.Add(3)
	go func() { defer wg.Done(); facts = e.searchEvidence(ctx, e.config.FactsCollection, textVec) }()
	go func() { defer wg.Done(); misinfo = e.searchEvidence(ctx, e.config.MisinfoCollection, textVec) }()
	go func() { defer wg.Done(); images = e.searchEvidence(ctx, e.config.ImagesCollection, imageVec) }()
	wg.Wait()

	decision := e.decide(query, facts, misinfo, images)

	evidence := assembleEvidence(e.config, facts, misinfo, images)

	finalAnswer := e.composer.Compose(ctx, query, decision.verdict, decision.fallback, toComposeEvidence(evidence))

	result := &Result{
		FinalAnswer:     finalAnswer,
		Verdict:         decision.verdict,
		ReasoningTrace:  decision.reasoning,
		Evidence:        evidence,
		Recommendations: decision.recommendations,
		Memories:        memories,
	}

	summary := fmt.Sprintf("Query: %s | Verdict: %s", query, decision.verdict)
	if _, err := e.memories.Add(ctx, userID, sessionID, summary, memory.TypeHistory); err != nil {
		// The verdict stands even when the interaction summary is lost.
		e.logger.Warn("failed to store interaction memory",
			zap.String("user_id", userID),
			zap.Error(err))
	} else {
		result.MemoryActions = []string{"stored_interaction"}
	}

	e.metrics.ObserveQuery(decision.verdict, time.Since(start))
	e.logger.Info("processed query",
		zap.String("user_id", userID),
		zap.String("verdict", decision.verdict),
		zap.Int("evidence", len(evidence)),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

// searchEvidence runs one collection search, treating any failure or a
// nil query vector as an empty result set.
func (e *Engine) searchEvidence(ctx context.Context, collection string, vector []float32) []vectorstore.ScoredPoint {
	if vector == nil {
		return nil
	}
	hits, err := e.vectors.Search(ctx, collection, vector, e.config.TopK, nil)
	if err != nil {
		e.logger.Warn("evidence search failed",
			zap.String("collection", collection),
			zap.Error(err))
		e.metrics.IncSearchFailure(collection)
		return nil
	}
	return hits
}

type decision struct {
	verdict         string
	reasoning       string
	fallback        string
	recommendations []string
}

// decide applies the threshold rules in priority order. Comparisons use
// strict greater-than: a fact/misinfo score tie fires neither rule and
// falls through.
func (e *Engine) decide(query string, facts, misinfo, images []vectorstore.ScoredPoint) decision {
	var bestFact, bestMisinfo, bestImage *vectorstore.ScoredPoint
	if len(facts) > 0 {
		bestFact = &facts[0]
	}
	if len(misinfo) > 0 {
		bestMisinfo = &misinfo[0]
	}
	if len(images) > 0 {
		bestImage = &images[0]
	}

	factScore := hitScore(bestFact)
	misinfoScore := hitScore(bestMisinfo)
	imageScore := hitScore(bestImage)

	visualIntent := e.intent.DetectsVisualIntent(query)
	threshold := e.config.Threshold

	d := decision{
		verdict:         VerdictInsufficient,
		reasoning:       "No strong evidence was found in the medical knowledge base.",
		fallback:        "I could not verify this claim based on trusted medical data.",
		recommendations: append([]string{}, baselineRecommendations...),
	}

	switch {
	// Explicit user intent for imagery overrides passive ranking.
	case visualIntent && imageScore > threshold:
		d.verdict = VerdictTrue
		d.reasoning = fmt.Sprintf("Found verifiable medical imagery with high confidence (%.2f).", imageScore)
		d.fallback = fmt.Sprintf("**VISUAL CONFIRMATION**: Found relevant medical diagrams for '%s'.", payloadString(bestImage, "caption"))
		d.recommendations = append(d.recommendations, "View the attached anatomical references.")

	case factScore > threshold && factScore > misinfoScore:
		d.verdict = VerdictTrue
		d.reasoning = fmt.Sprintf("Matched verifiable medical fact from %s with high confidence (%.2f).", payloadString(bestFact, "source"), factScore)
		d.fallback = fmt.Sprintf("**CONFIRMED**: %s", payloadString(bestFact, "body"))
		topic := payloadString(bestFact, "topic")
		if topic == "" {
			topic = "health"
		}
		d.recommendations = append(d.recommendations, fmt.Sprintf("Learn more about %s.", topic))

	case misinfoScore > threshold && misinfoScore > factScore:
		d.verdict = VerdictFalse
		d.reasoning = fmt.Sprintf("Matched known health misinformation (Myth: '%s') with high confidence (%.2f).", payloadString(bestMisinfo, "body"), misinfoScore)
		d.fallback = "**DEBUNKED**: This claim is likely false. Accurate information: Medical consensus does not support this."
		d.recommendations = append(d.recommendations, "Be cautious of sources promoting this claim.")

	// Image is the strongest signal even without visual wording.
	case imageScore > threshold:
		d.verdict = VerdictTrue
		d.reasoning = fmt.Sprintf("Found verifiable medical imagery with high confidence (%.2f).", imageScore)
		d.fallback = fmt.Sprintf("**VISUAL CONFIRMATION**: Found relevant medical diagrams for '%s'.", payloadString(bestImage, "caption"))
		d.recommendations = append(d.recommendations, "View the attached anatomical references.")

	case factScore > e.config.FallbackThreshold || misinfoScore > e.config.FallbackThreshold:
		d.reasoning = "Evidence found but confidence is moderate. Context is required."
		if misinfoScore > factScore {
			d.verdict = VerdictMisleading
			d.fallback = fmt.Sprintf("Likely False: This resembles known myths about %s.", payloadString(bestMisinfo, "topic"))
		} else {
			d.verdict = VerdictTrue
			d.fallback = fmt.Sprintf("Likely True: Evidence suggests %s", payloadString(bestFact, "body"))
		}
	}

	return d
}

func hitScore(hit *vectorstore.ScoredPoint) float32 {
	if hit == nil {
		return 0.0
	}
	return hit.Score
}

func payloadString(hit *vectorstore.ScoredPoint, key string) string {
	if hit == nil {
		return ""
	}
	s, _ := hit.Payload[key].(string)
	return s
}

// assembleEvidence concatenates all fact hits, then misinfo hits, then
// image hits, preserving per-collection score order.
func assembleEvidence(cfg Config, facts, misinfo, images []vectorstore.ScoredPoint) []EvidenceRecord {
	evidence := make([]EvidenceRecord, 0, len(facts)+len(misinfo)+len(images))
	for _, f := range facts {
		evidence = append(evidence, EvidenceRecord{
			ID:               f.ID,
			Score:            f.Score,
			Content:          stringField(f.Payload, "body"),
			Metadata:         f.Payload,
			Kind:             KindFact,
			SourceCollection: cfg.FactsCollection,
		})
	}
	for _, m := range misinfo {
		evidence = append(evidence, EvidenceRecord{
			ID:               m.ID,
			Score:            m.Score,
			Content:          stringField(m.Payload, "body"),
			Metadata:         m.Payload,
			Kind:             KindMisinformation,
			SourceCollection: cfg.MisinfoCollection,
		})
	}
	for _, i := range images {
		evidence = append(evidence, EvidenceRecord{
			ID:               i.ID,
			Score:            i.Score,
			Content:          stringField(i.Payload, "caption"),
			Metadata:         i.Payload,
			Kind:             KindImage,
			SourceCollection: cfg.ImagesCollection,
		})
	}
	return evidence
}

func stringField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

func toComposeEvidence(evidence []EvidenceRecord) []compose.Evidence {
	items := make([]compose.Evidence, 0, len(evidence))
	for _, e := range evidence {
		items = append(items, compose.Evidence{
			Kind:    e.Kind,
			Score:   e.Score,
			Content: e.Content,
			Source:  stringField(e.Metadata, "source"),
		})
	}
	return items
}
