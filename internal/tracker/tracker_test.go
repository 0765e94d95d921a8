package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetctl/masterctl/internal/domain"
)

func quality(v float64) *float64 { return &v }

func TestScoreDefaultsToFiftyForUntrackedWorker(t *testing.T) {
	trk := New()
	require.Equal(t, float64(50), trk.Score("unknown-worker", "coding"))
}

func TestLogResultAccumulatesAndScoresRise(t *testing.T) {
	trk := New()
	for i := 0; i < 12; i++ {
		trk.LogResult("coder-1", "coding", true, 1.0, 100, 0.001, quality(9))
	}
	snap := trk.Stats("coder-1")
	require.Equal(t, 12, snap.TotalTasks)
	require.Equal(t, 12, snap.SuccessCount)
	require.Greater(t, trk.Score("coder-1", "coding"), float64(50))
}

func TestAnalyzeTrendDegradingOnRecentFailures(t *testing.T) {
	trk := New()
	for i := 0; i < 10; i++ {
		trk.LogResult("flaky", "coding", true, 1.0, 0, 0, nil)
	}
	for i := 0; i < 10; i++ {
		trk.LogResult("flaky", "coding", false, 1.0, 0, 0, nil)
	}
	snap := trk.Stats("flaky")
	require.Equal(t, domain.TrendDegrading, snap.PerformanceTrend)
}

func TestDetectSpecializationAboveThreshold(t *testing.T) {
	trk := New()
	for i := 0; i < 20; i++ {
		trk.LogResult("specialist", "coding", true, 1.0, 0, 0, nil)
	}
	for i := 0; i < 5; i++ {
		trk.LogResult("specialist", "analysis", true, 1.0, 0, 0, nil)
	}
	snap := trk.Stats("specialist")
	require.Contains(t, snap.OptimalTaskTypes, "coding")
	require.NotContains(t, snap.OptimalTaskTypes, "analysis")
}

func TestIsHealthyFailsAfterConsecutiveFailures(t *testing.T) {
	trk := New()
	for i := 0; i < 3; i++ {
		trk.LogResult("brittle", "coding", false, 1.0, 0, 0, nil)
	}
	require.False(t, trk.IsHealthy("brittle", 3))
}

func TestIsHealthyAllowsExtraGraceWhileLearning(t *testing.T) {
	trk := New()
	// totalTasks < 5: maxFailures grows to maxConsecutiveFailures+2
	trk.LogResult("newcomer", "coding", false, 1.0, 0, 0, nil)
	trk.LogResult("newcomer", "coding", false, 1.0, 0, 0, nil)
	require.True(t, trk.IsHealthy("newcomer", 3))
}

func TestResetWorkerClearsFailureState(t *testing.T) {
	trk := New()
	for i := 0; i < 5; i++ {
		trk.LogResult("w", "coding", false, 1.0, 0, 0, nil)
	}
	require.False(t, trk.IsHealthy("w", 3))
	trk.ResetWorker("w")
	require.True(t, trk.IsHealthy("w", 3))
}

func TestLastFailureTimeReportsOkOnlyAfterFailure(t *testing.T) {
	trk := New()
	_, ok := trk.LastFailureTime("fresh")
	require.False(t, ok)

	trk.LogResult("fresh", "coding", false, 1.0, 0, 0, nil)
	last, ok := trk.LastFailureTime("fresh")
	require.True(t, ok)
	require.WithinDuration(t, time.Now(), last, time.Second)
}

func TestSystemInsightsRecommendsLowAvailability(t *testing.T) {
	trk := New()
	trk.LogResult("solo", "coding", true, 1.0, 0, 0, nil)
	insights := trk.SystemInsights()
	require.Equal(t, 1, insights.TotalWorkers)
	require.Contains(t, insights.Recommendations, "low worker availability - consider starting more workers")
}
