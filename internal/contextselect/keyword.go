package contextselect

import "strings"

// DefaultReferenceKeywords is the configurable REFERENCE_KEYWORDS list (spec
// §6 configuration). A message containing any of these as a whole word is a
// phase-1 candidate for "needs context".
var DefaultReferenceKeywords = []string{
	"it", "that", "this", "them", "those",
	"above", "earlier", "continue", "elaborate", "more",
}

// ShortMessageWordThreshold is the phase-2 trigger: messages shorter than
// this many words are checked against the oracle even without a keyword hit.
const ShortMessageWordThreshold = 5

// matchesKeyword reports whether message contains any reference keyword as a
// standalone word (case-insensitive).
func matchesKeyword(message string, keywords []string) bool {
	words := strings.Fields(strings.ToLower(message))
	set := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		set[strings.ToLower(k)] = struct{}{}
	}
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'()")
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

func isShortMessage(message string) bool {
	return len(strings.Fields(message)) < ShortMessageWordThreshold
}
