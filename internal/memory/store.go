// Package memory manages per-user long-term memory records.
//
// Records are recalled by semantic similarity scoped to one user, and every
// recall reinforces the record: access count and decay weight go up, and the
// new payload is written back without resending the vector. Reinforcement
// never decrements, and a record's embedding is immutable after creation.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/healthguardlabs/verifyd/internal/embeddings"
	"github.com/healthguardlabs/verifyd/internal/observability"
	"github.com/healthguardlabs/verifyd/internal/vectorstore"
)

const (
	// DefaultCollection is the memory collection name.
	DefaultCollection = "user_memory"

	// DefaultTopK is the default number of memories recalled per query.
	DefaultTopK = 3

	// DefaultReinforceIncrement is added to a record's decay weight on
	// every recall.
	DefaultReinforceIncrement = 0.1
)

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// Config holds configuration for the memory store.
type Config struct {
	// Collection is the memory collection name. Default: "user_memory".
	Collection string `koanf:"collection"`

	// TopK is the number of memories recalled per query. Default: 3.
	TopK int `koanf:"top_k"`

	// ReinforceIncrement is the decay-weight boost per recall. Default: 0.1.
	ReinforceIncrement float64 `koanf:"reinforce_increment"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.TopK == 0 {
		c.TopK = DefaultTopK
	}
	if c.ReinforceIncrement == 0 {
		c.ReinforceIncrement = DefaultReinforceIncrement
	}
}

// Store provides per-user memory storage, recall and reinforcement.
type Store struct {
	vectors  vectorstore.Store
	embedder embeddings.TextEmbedder
	config   Config
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewStore creates a new memory store.
func NewStore(vectors vectorstore.Store, embedder embeddings.TextEmbedder, config Config, logger *zap.Logger) (*Store, error) {
	if vectors == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("text embedder cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	return &Store{
		vectors:  vectors,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}, nil
}

// SetMetrics attaches Prometheus instruments. A nil metrics value keeps
// the store uninstrumented.
func (s *Store) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// Collection returns the memory collection name.
func (s *Store) Collection() string {
	return s.config.Collection
}

// Add embeds text and stores a fresh memory record for the user.
//
// Unlike recall-side reinforcement, failures here propagate: a memory that
// was never written must not be silently dropped.
func (s *Store) Add(ctx context.Context, userID, sessionID, text string, memType Type) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}
	if text == "" {
		return "", ErrEmptyText
	}
	if !memType.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, memType)
	}

	vector, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embedding memory text: %w", err)
	}

	now := timeNow()
	record := Record{
		ID:           uuid.New().String(),
		UserID:       userID,
		SessionID:    sessionID,
		MemoryType:   memType,
		Timestamp:    fmt.Sprintf("%d", now.Unix()),
		RawText:      text,
		DecayWeight:  1.0,
		AccessCount:  1,
		LastAccessed: float64(now.Unix()),
	}

	err = s.vectors.Upsert(ctx, s.config.Collection, []vectorstore.Point{{
		ID:      record.ID,
		Vector:  vector,
		Payload: record.payload(),
	}})
	if err != nil {
		return "", fmt.Errorf("storing memory: %w", err)
	}

	s.logger.Debug("stored memory",
		zap.String("memory_id", record.ID),
		zap.String("user_id", userID),
		zap.String("memory_type", string(memType)))

	return record.ID, nil
}

// GetContext recalls up to topK memories semantically similar to the query,
// restricted to records owned by userID, ordered by descending similarity.
//
// Every recalled record is reinforced: access count +1, decay weight
// +ReinforceIncrement, last-accessed set to now. The updated payload is
// written back without resending the vector; a write failure on one record
// is logged and skipped, and the locally-updated record is still returned.
// Reinforcement never fails the recall.
func (s *Store) GetContext(ctx context.Context, userID, query string, topK int) ([]Record, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	if query == "" {
		return nil, ErrEmptyText
	}
	if topK <= 0 {
		topK = s.config.TopK
	}

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := s.vectors.Search(ctx, s.config.Collection, vector, topK, map[string]any{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("searching memories: %w", err)
	}

	now := float64(timeNow().Unix())
	records := make([]Record, 0, len(hits))
	for _, hit := range hits {
		record, err := recordFromHit(hit)
		if err != nil {
			s.logger.Warn("skipping malformed memory record",
				zap.String("memory_id", hit.ID),
				zap.Error(err))
			continue
		}

		record.AccessCount++
		record.DecayWeight += s.config.ReinforceIncrement
		record.LastAccessed = now

		if err := s.vectors.UpdatePayload(ctx, s.config.Collection, record.ID, record.payload()); err != nil {
			// Non-fatal: the caller still gets the locally-updated
			// record, and siblings still get reinforced.
			s.logger.Warn("failed to reinforce memory",
				zap.String("memory_id", record.ID),
				zap.Error(err))
			s.metrics.IncMemoryWriteFailure()
		} else {
			s.metrics.IncReinforcement()
		}

		records = append(records, record)
	}

	s.logger.Debug("reinforced memories",
		zap.String("user_id", userID),
		zap.Int("count", len(records)))

	return records, nil
}

// Forget deletes the identified memory record unconditionally. Ownership
// checks are the caller's responsibility.
func (s *Store) Forget(ctx context.Context, memoryID string) error {
	if memoryID == "" {
		return ErrEmptyMemoryID
	}

	if err := s.vectors.DeletePoint(ctx, s.config.Collection, memoryID); err != nil {
		return fmt.Errorf("deleting memory %s: %w", memoryID, err)
	}

	s.logger.Debug("deleted memory", zap.String("memory_id", memoryID))
	return nil
}
