// Package embeddings provides embedding generation for the two vector
// spaces the verifier searches: a text space (sentence embeddings, 384
// dimensions by default) and an image space (CLIP-style joint embeddings,
// 512 dimensions by default).
//
// The two spaces are modeled as distinct types. A TextVector indexes and
// queries the fact, misinformation and memory collections; an ImageVector
// indexes reference imagery and carries text queries into image space.
// Vectors from different spaces are never comparable.
package embeddings

import (
	"context"
	"errors"
)

var (
	// ErrEmptyInput indicates empty input text.
	ErrEmptyInput = errors.New("empty input text")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrDimensionMismatch indicates the provider returned a vector of an
	// unexpected dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// TextVector is an embedding in text space.
type TextVector []float32

// ImageVector is an embedding in image space.
type ImageVector []float32

// TextEmbedder produces text-space vectors.
type TextEmbedder interface {
	// EmbedText embeds a sentence or short passage.
	EmbedText(ctx context.Context, text string) (TextVector, error)

	// Dimension returns the text-space dimensionality.
	Dimension() int
}

// ImageEmbedder produces image-space vectors: from image files for indexing,
// and from text for querying image collections.
type ImageEmbedder interface {
	// EmbedImage embeds an image file.
	EmbedImage(ctx context.Context, path string) (ImageVector, error)

	// EmbedTextForImageSpace embeds text into image space so it can be
	// searched against image vectors.
	EmbedTextForImageSpace(ctx context.Context, text string) (ImageVector, error)

	// Dimension returns the image-space dimensionality.
	Dimension() int
}
