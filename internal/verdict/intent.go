package verdict

import "strings"

// IntentDetector classifies whether a query explicitly asks for
// image-based evidence. The engine only consults it to decide whether
// the visual-confirmation rule may fire first.
type IntentDetector interface {
	DetectsVisualIntent(query string) bool
}

// visualKeywords trigger the visual-confirmation path. Matching is a
// plain substring check on the lowercased query.
var visualKeywords = []string{"show", "image", "picture", "diagram", "scan", "photo", "see"}

// KeywordIntentDetector matches a fixed keyword list. It is the default
// IntentDetector; swap in a classifier without touching the engine.
type KeywordIntentDetector struct{}

// DetectsVisualIntent reports whether the query contains any visual
// keyword.
func (KeywordIntentDetector) DetectsVisualIntent(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range visualKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
