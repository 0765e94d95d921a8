package validator

import (
	"context"
	"strings"
)

// errorWords is scanned over the first 200 characters of a response,
// matching _basic_validation's `response.lower()[:200]` window.
var errorWords = []string{"error", "failed", "cannot", "unable"}

// Fallback is the deterministic validator used when no oracle is
// configured, or the oracle call fails. Ported from _basic_validation.
type Fallback struct{}

func NewFallback() *Fallback { return &Fallback{} }

func (Fallback) Validate(_ context.Context, _, response, _ string) Result {
	return basicValidation(response)
}

func basicValidation(response string) Result {
	lowerHead := strings.ToLower(response)
	if len(lowerHead) > 200 {
		lowerHead = lowerHead[:200]
	}

	isError := false
	for _, w := range errorWords {
		if strings.Contains(lowerHead, w) {
			isError = true
			break
		}
	}
	isTooShort := len(strings.TrimSpace(response)) < 10

	var quality float64
	switch {
	case isError, isTooShort:
		quality = 3
	default:
		quality = 7
	}
	shouldRetry := isError || isTooShort

	return Result{
		IsComplete:   !shouldRetry,
		QualityScore: quality,
		ShouldRetry:  shouldRetry,
		Reasoning:    "basic validation (no oracle)",
		Confidence:   0.5,
	}
}
