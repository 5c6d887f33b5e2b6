// Package verdict implements the evidence-fusion decision engine.
//
// For each query it recalls the user's prior memories, searches the fact,
// misinformation, and image collections in parallel, fuses the top score
// from each into one verdict through an ordered set of threshold rules,
// and hands the result to the response composer. Score comparisons use
// strict greater-than, so a fact/misinfo tie falls through to the next
// rule instead of resolving arbitrarily.
package verdict

import (
	"errors"

	"github.com/healthguardlabs/verifyd/internal/memory"
)

// Sentinel errors for query processing.
var (
	// ErrEmptyQuery indicates the query text was empty.
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrEmptyUserID indicates the user ID was empty.
	ErrEmptyUserID = errors.New("user ID cannot be empty")
)

// Verdict values, ordered from confirm to abstain.
const (
	VerdictTrue         = "True"
	VerdictFalse        = "False"
	VerdictMisleading   = "Misleading"
	VerdictInsufficient = "Insufficient Evidence"
)

// Evidence kinds.
const (
	KindFact           = "fact"
	KindMisinformation = "misinformation"
	KindImage          = "image"
)

// EvidenceRecord is one scored retrieval hit, normalized across
// collections. Records are transient: built fresh per query, never
// persisted.
type EvidenceRecord struct {
	ID               string         `json:"id"`
	Score            float32        `json:"score"`
	Content          string         `json:"content"`
	Metadata         map[string]any `json:"metadata"`
	Kind             string         `json:"kind"`
	SourceCollection string         `json:"source_collection"`
}

// Result is the engine's decision for one query.
type Result struct {
	FinalAnswer     string           `json:"final_answer"`
	Verdict         string           `json:"verdict"`
	ReasoningTrace  string           `json:"reasoning_trace"`
	Evidence        []EvidenceRecord `json:"evidence"`
	Recommendations []string         `json:"recommendations"`
	MemoryActions   []string         `json:"memory_actions"`
	// Memories holds the prior context recalled for this query. It is
	// surfaced for display and does not influence the verdict.
	Memories []memory.Record `json:"memories,omitempty"`
}
