package validator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeJSONOracle struct {
	obj map[string]any
	err error
}

func (f fakeJSONOracle) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	return f.obj, f.err
}

func TestOracleValidatorParsesResult(t *testing.T) {
	v := NewOracle(fakeJSONOracle{obj: map[string]any{
		"is_complete":   true,
		"quality_score": 9.0,
		"should_retry":  false,
		"reasoning":     "looks great",
		"confidence":    0.95,
	}})
	result := v.Validate(context.Background(), "task", "a fine answer", "coder-1")
	require.True(t, result.IsComplete)
	require.Equal(t, 9.0, result.QualityScore)
	require.Equal(t, "looks great", result.Reasoning)
}

func TestOracleValidatorClampsOutOfRangeScores(t *testing.T) {
	v := NewOracle(fakeJSONOracle{obj: map[string]any{
		"quality_score": 99.0,
		"confidence":    5.0,
	}})
	result := v.Validate(context.Background(), "task", "answer", "coder-1")
	require.Equal(t, 10.0, result.QualityScore)
	require.Equal(t, 1.0, result.Confidence)
}

func TestOracleValidatorDegradesOnError(t *testing.T) {
	v := NewOracle(fakeJSONOracle{err: errors.New("boom")})
	result := v.Validate(context.Background(), "task", "Error: cannot comply", "coder-1")
	require.True(t, result.ShouldRetry)
}

func TestOracleValidatorStatsAggregatesHistory(t *testing.T) {
	v := NewOracle(fakeJSONOracle{obj: map[string]any{"quality_score": 8.0, "is_complete": true, "should_retry": false}})
	v.Validate(context.Background(), "t1", "r1", "w1")
	v.Validate(context.Background(), "t2", "r2", "w1")

	stats := v.Stats()
	require.Equal(t, 2, stats.Total)
	require.InDelta(t, 8.0, stats.AvgQualityScore, 0.0001)
	require.InDelta(t, 100.0, stats.CompletionRate, 0.0001)
}

func TestOracleValidatorStatsEmptyHistory(t *testing.T) {
	v := NewOracle(fakeJSONOracle{})
	require.Equal(t, Stats{}, v.Stats())
}
