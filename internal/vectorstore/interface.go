// Package vectorstore defines the interface for vector storage operations.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyPoints indicates empty or nil points.
	ErrEmptyPoints = errors.New("empty or nil points")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrInvalidPointID indicates a point ID that is not a valid UUID.
	ErrInvalidPointID = errors.New("point id must be a valid UUID")

	// ErrMalformedPayload indicates a payload value of an unsupported type.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrDimensionMismatch indicates a vector of the wrong dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Store is the interface for vector storage operations.
//
// The interface is vector-level rather than text-level: callers embed their
// own content because the system maintains two incompatible embedding spaces
// (384-dimension text space and 512-dimension image space), and a collection
// only ever holds vectors from one of them.
//
// All collections use cosine similarity; Search results are ordered by
// descending score. Filters are equality-only and applied to payload fields.
//
// Implementations:
//   - QdrantStore: external Qdrant via native gRPC client
//   - ChromemStore: embedded chromem-go database (no external service)
type Store interface {
	// EnsureCollection creates a collection with the given vector dimension
	// if it does not already exist. Existing collections are left untouched.
	EnsureCollection(ctx context.Context, name string, dim int) error

	// Upsert inserts or replaces points in a collection. Point IDs must be
	// valid UUIDs; the ID is also mirrored into the payload under "id".
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns up to topK points ordered by descending cosine
	// similarity to the query vector. filter, if non-nil, restricts results
	// to points whose payload fields equal the given values.
	Search(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]ScoredPoint, error)

	// DeletePoint removes a single point by ID. Deleting a missing point is
	// not an error.
	DeletePoint(ctx context.Context, collection, id string) error

	// UpdatePayload replaces a point's payload without recomputing or
	// resending its vector. The point keeps its position in the index.
	UpdatePayload(ctx context.Context, collection, id string, payload map[string]any) error

	// Close releases the underlying connection or database handle.
	Close() error
}
