package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("verifyd.vectorstore.chromem")

// payloadKey is the metadata key the full payload is serialized under.
// String-valued payload fields are additionally flattened into metadata so
// equality filters work natively.
const payloadKey = "payload"

// ChromemConfig holds configuration for the chromem-go embedded database.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty means in-memory
	// only (used by tests and the CLI demo).
	Path string `koanf:"path"`

	// Compress enables gzip compression for stored data.
	Compress bool `koanf:"compress"`
}

// ChromemStore implements the Store interface using chromem-go.
//
// chromem-go is an embeddable vector database with no external service
// requirement, which makes it the zero-setup backend: in-memory by default,
// optionally persisted to gob files.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger

	// dims records the vector dimension per collection for validation.
	dims sync.Map
}

// NewChromemStore creates a new ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		expanded, err := expandChromemPath(config.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(expanded, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", expanded, err)
		}
		db, err = chromem.NewPersistentDB(expanded, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	logger.Info("ChromemStore initialized",
		zap.String("path", config.Path),
		zap.Bool("compress", config.Compress),
	)

	return &ChromemStore{
		db:     db,
		config: config,
		logger: logger,
	}, nil
}

// expandChromemPath expands ~ to home directory.
func expandChromemPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// noEmbeddingFunc is installed on every collection. All vectors are computed
// by the caller, so chromem must never fall back to its own embedding path.
func noEmbeddingFunc(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("vectors are precomputed; embedding function must not be called")
}

func (s *ChromemStore) collection(name string) (*chromem.Collection, error) {
	c := s.db.GetCollection(name, noEmbeddingFunc)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return c, nil
}

// EnsureCollection creates a collection if it does not already exist.
func (s *ChromemStore) EnsureCollection(_ context.Context, name string, dim int) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if dim <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}

	if _, err := s.db.GetOrCreateCollection(name, nil, noEmbeddingFunc); err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	s.dims.Store(name, dim)
	return nil
}

// Upsert inserts or replaces points in a collection.
func (s *ChromemStore) Upsert(ctx context.Context, collection string, points []Point) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if len(points) == 0 {
		return ErrEmptyPoints
	}

	c, err := s.collection(collection)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		if dim, ok := s.dims.Load(collection); ok && len(p.Vector) != dim.(int) {
			return fmt.Errorf("%w: collection %s expects %d, got %d", ErrDimensionMismatch, collection, dim, len(p.Vector))
		}
		meta, content, err := encodeChromemMetadata(p.ID, p.Payload)
		if err != nil {
			return fmt.Errorf("encoding payload for point %s: %w", p.ID, err)
		}
		docs[i] = chromem.Document{
			ID:        p.ID,
			Content:   content,
			Embedding: p.Vector,
			Metadata:  meta,
		}
	}

	if err := c.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("upserting points to collection %s: %w", collection, err)
	}
	return nil
}

// Search performs similarity search in a collection.
func (s *ChromemStore) Search(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]ScoredPoint, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Search")
	defer span.End()

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults greater than the number of stored documents.
	count := c.Count()
	if count == 0 {
		return []ScoredPoint{}, nil
	}
	if topK > count {
		topK = count
	}

	where := make(map[string]string, len(filter))
	for k, v := range filter {
		sv, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: filter field %q has unsupported type %T", ErrMalformedPayload, k, v)
		}
		where[k] = sv
	}

	results, err := c.QueryEmbedding(ctx, vector, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("searching collection %s: %w", collection, err)
	}

	hits := make([]ScoredPoint, 0, len(results))
	for _, res := range results {
		payload, err := decodeChromemMetadata(res.Metadata)
		if err != nil {
			s.logger.Warn("skipping point with malformed payload",
				zap.String("collection", collection),
				zap.String("id", res.ID),
				zap.Error(err))
			continue
		}
		hits = append(hits, ScoredPoint{
			ID:      res.ID,
			Score:   res.Similarity,
			Payload: payload,
		})
	}
	return hits, nil
}

// DeletePoint removes a single point by ID.
func (s *ChromemStore) DeletePoint(ctx context.Context, collection, id string) error {
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}

	c, err := s.collection(collection)
	if err != nil {
		return err
	}

	if err := c.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("deleting point %s from %s: %w", id, collection, err)
	}
	return nil
}

// UpdatePayload replaces a point's payload while keeping its stored vector.
// chromem has no payload-only write, so the document is re-added with the
// embedding it already holds.
func (s *ChromemStore) UpdatePayload(ctx context.Context, collection, id string, payload map[string]any) error {
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}

	c, err := s.collection(collection)
	if err != nil {
		return err
	}

	doc, err := c.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("loading point %s from %s: %w", id, collection, err)
	}

	meta, content, err := encodeChromemMetadata(id, payload)
	if err != nil {
		return fmt.Errorf("encoding payload for point %s: %w", id, err)
	}

	if err := c.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   content,
		Embedding: doc.Embedding,
		Metadata:  meta,
	}); err != nil {
		return fmt.Errorf("updating payload for point %s in %s: %w", id, collection, err)
	}
	return nil
}

// Close is a no-op: chromem persists on write.
func (s *ChromemStore) Close() error {
	return nil
}

// encodeChromemMetadata serializes a payload for chromem's string-typed
// metadata. The full payload travels as JSON under payloadKey; string fields
// are flattened alongside it so equality filters can match them.
func encodeChromemMetadata(id string, payload map[string]any) (map[string]string, string, error) {
	for k, v := range payload {
		switch v.(type) {
		case string, int, int64, float64, bool, nil:
		default:
			return nil, "", fmt.Errorf("%w: field %q has unsupported type %T", ErrMalformedPayload, k, v)
		}
	}

	blob, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	meta := map[string]string{payloadKey: string(blob)}
	for k, v := range payload {
		if sv, ok := v.(string); ok {
			meta[k] = sv
		}
	}

	// chromem requires non-empty content when no embedding func is usable;
	// pick the display text the payload carries, falling back to the blob.
	content := id
	for _, key := range []string{"raw_text", "body", "caption"} {
		if sv, ok := payload[key].(string); ok && sv != "" {
			content = sv
			break
		}
	}
	return meta, content, nil
}

// decodeChromemMetadata restores the payload map from chromem metadata.
func decodeChromemMetadata(meta map[string]string) (map[string]any, error) {
	blob, ok := meta[payloadKey]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s key", ErrMalformedPayload, payloadKey)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(blob), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return payload, nil
}

// Ensure ChromemStore implements Store interface.
var _ Store = (*ChromemStore)(nil)
