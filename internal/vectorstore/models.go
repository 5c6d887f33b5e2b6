package vectorstore

// Point is one vector with its payload, addressed by a UUID string.
type Point struct {
	// ID is the unique point identifier (UUID string).
	ID string

	// Vector is the embedding for this point. Its dimension must match the
	// collection it is stored in.
	Vector []float32

	// Payload contains additional key-value pairs for filtering and display.
	// Supported value types: string, int, int64, float64, bool.
	Payload map[string]any
}

// ScoredPoint is one search hit.
type ScoredPoint struct {
	// ID is the point identifier.
	ID string

	// Score is the cosine similarity to the query vector (higher = more
	// similar).
	Score float32

	// Payload contains the stored payload fields.
	Payload map[string]any
}
