// Package compose turns a verdict and its supporting evidence into the
// final patient-facing answer. A deterministic, rule-derived fallback is
// always available; an optional grounded-text generator refines the
// wording when configured. The package guarantees non-empty output no
// matter what the generator does.
package compose

import (
	"context"
	"errors"
)

// Sentinel errors for generator configuration and calls.
var (
	// ErrInvalidConfig indicates invalid generator configuration.
	ErrInvalidConfig = errors.New("invalid generator config")
	// ErrGenerationFailed indicates the generator call failed.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrEmptyResponse indicates the generator returned no usable text.
	ErrEmptyResponse = errors.New("empty generator response")
)

// Evidence is one retrieval hit rendered for the generator context.
// It mirrors the engine's evidence records without importing them, so
// the composer stays usable from any caller.
type Evidence struct {
	// Kind is the evidence category: fact, misinformation, or image.
	Kind string
	// Score is the retrieval similarity score.
	Score float32
	// Content is the display text (fact body, myth body, image caption).
	Content string
	// Source names where the evidence came from, if known.
	Source string
}

// Generator produces grounded prose from a query, verdict, and evidence.
// Implementations own their own timeout and retry policy; the composer
// treats any returned error as a signal to fall back.
type Generator interface {
	Generate(ctx context.Context, query, verdict string, evidence []Evidence) (string, error)
}
