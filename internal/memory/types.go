package memory

import (
	"errors"
	"fmt"

	"github.com/healthguardlabs/verifyd/internal/vectorstore"
)

// Common errors for memory operations.
var (
	ErrEmptyUserID     = errors.New("user ID cannot be empty")
	ErrEmptyText       = errors.New("memory text cannot be empty")
	ErrInvalidType     = errors.New("invalid memory type")
	ErrEmptyMemoryID   = errors.New("memory ID cannot be empty")
	ErrMalformedRecord = errors.New("malformed memory record")
)

// Type categorizes a memory record.
type Type string

const (
	// TypePreference records a stated user preference.
	TypePreference Type = "preference"

	// TypePriorClaim records a claim the user previously asked about.
	TypePriorClaim Type = "prior_claim"

	// TypeSummary records a condensed interaction summary.
	TypeSummary Type = "summary"

	// TypeHistory records one query/verdict interaction.
	TypeHistory Type = "history"
)

// Valid reports whether t is a known memory type.
func (t Type) Valid() bool {
	switch t {
	case TypePreference, TypePriorClaim, TypeSummary, TypeHistory:
		return true
	}
	return false
}

// Record is one remembered fact about a user/session interaction.
//
// DecayWeight and AccessCount mutate only as a side effect of recall, and
// only upward: the policy is pure reinforcement. The record's embedding
// vector is written once at creation and never recomputed, even though the
// payload fields change.
type Record struct {
	// ID is the unique record identifier (UUID).
	ID string `json:"id"`

	// UserID and SessionID identify ownership.
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`

	// MemoryType categorizes the record.
	MemoryType Type `json:"memory_type"`

	// Timestamp is the creation time (unix seconds, stringified for
	// payload compatibility).
	Timestamp string `json:"timestamp"`

	// RawText is the remembered content; it is also the text that was
	// embedded to produce the record's search vector.
	RawText string `json:"raw_text"`

	// DecayWeight starts at 1.0 and grows by a fixed increment per recall.
	DecayWeight float64 `json:"decay_weight"`

	// AccessCount starts at 1 and grows by one per recall.
	AccessCount int64 `json:"access_count"`

	// LastAccessed is the unix time (seconds) of the most recent recall.
	LastAccessed float64 `json:"last_accessed"`
}

// payload converts the record to a store payload.
func (r Record) payload() map[string]any {
	return map[string]any{
		"user_id":       r.UserID,
		"session_id":    r.SessionID,
		"memory_type":   string(r.MemoryType),
		"timestamp":     r.Timestamp,
		"raw_text":      r.RawText,
		"decay_weight":  r.DecayWeight,
		"access_count":  r.AccessCount,
		"last_accessed": r.LastAccessed,
	}
}

// recordFromHit validates and decodes a search hit into a Record.
// Missing or mistyped required fields are an error, never a silent zero.
func recordFromHit(hit vectorstore.ScoredPoint) (Record, error) {
	p := hit.Payload

	userID, ok := p["user_id"].(string)
	if !ok || userID == "" {
		return Record{}, fmt.Errorf("%w: missing user_id", ErrMalformedRecord)
	}
	rawText, ok := p["raw_text"].(string)
	if !ok || rawText == "" {
		return Record{}, fmt.Errorf("%w: missing raw_text", ErrMalformedRecord)
	}
	memType, ok := p["memory_type"].(string)
	if !ok || !Type(memType).Valid() {
		return Record{}, fmt.Errorf("%w: invalid memory_type %q", ErrInvalidType, p["memory_type"])
	}

	sessionID, _ := p["session_id"].(string)
	timestamp, _ := p["timestamp"].(string)

	decayWeight, ok := toFloat(p["decay_weight"])
	if !ok {
		return Record{}, fmt.Errorf("%w: missing decay_weight", ErrMalformedRecord)
	}
	accessCount, ok := toInt(p["access_count"])
	if !ok {
		return Record{}, fmt.Errorf("%w: missing access_count", ErrMalformedRecord)
	}
	lastAccessed, _ := toFloat(p["last_accessed"])

	return Record{
		ID:           hit.ID,
		UserID:       userID,
		SessionID:    sessionID,
		MemoryType:   Type(memType),
		Timestamp:    timestamp,
		RawText:      rawText,
		DecayWeight:  decayWeight,
		AccessCount:  accessCount,
		LastAccessed: lastAccessed,
	}, nil
}

// toFloat accepts the numeric types payloads come back as, depending on the
// store backend (float64 from JSON, int64 from Qdrant).
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
