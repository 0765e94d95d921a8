package validator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBasicValidationFlagsErrorResponses(t *testing.T) {
	result := Fallback{}.Validate(context.Background(), "task", "Error: something went wrong", "worker-1")
	require.False(t, result.IsComplete)
	require.True(t, result.ShouldRetry)
	require.Equal(t, float64(3), result.QualityScore)
}

func TestBasicValidationFlagsTooShortResponses(t *testing.T) {
	result := Fallback{}.Validate(context.Background(), "task", "ok", "worker-1")
	require.True(t, result.ShouldRetry)
	require.Equal(t, float64(3), result.QualityScore)
}

func TestBasicValidationAcceptsGoodResponse(t *testing.T) {
	result := Fallback{}.Validate(context.Background(), "task", "Here is a complete and correct answer to your question.", "worker-1")
	require.True(t, result.IsComplete)
	require.False(t, result.ShouldRetry)
	require.Equal(t, float64(7), result.QualityScore)
}

func TestBasicValidationOnlyScansFirst200Chars(t *testing.T) {
	padding := strings.Repeat("x", 250)
	result := Fallback{}.Validate(context.Background(), "task", padding+" error", "worker-1")
	require.False(t, result.ShouldRetry, "an error word beyond the first 200 chars must not be seen")
}
