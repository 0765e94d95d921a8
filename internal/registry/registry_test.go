package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetctl/masterctl/internal/domain"
)

func TestRegisterIsIdempotentByName(t *testing.T) {
	r := New()
	r.Register(domain.Worker{Name: "coder-1", Host: "a", Port: 1, Capability: domain.CapabilityCoding})
	r.Register(domain.Worker{Name: "coder-1", Host: "b", Port: 2, Capability: domain.CapabilityCoding})

	require.Equal(t, 1, len(r.All()))
	w, ok := r.Get("coder-1")
	require.True(t, ok)
	require.Equal(t, "b", w.Host)
	require.Equal(t, domain.WorkerIdle, w.Status)
}

func TestHeartbeatIgnoresUnknownWorker(t *testing.T) {
	r := New()
	r.Heartbeat("ghost", domain.WorkerIdle, 1, 1, 1)
	_, ok := r.Get("ghost")
	require.False(t, ok)
}

func TestHeartbeatBusyToIdleNotifiesIdleSignal(t *testing.T) {
	r := New()
	r.Register(domain.Worker{Name: "w1", Capability: domain.CapabilityCoding})
	r.MarkBusy("w1")
	r.Heartbeat("w1", domain.WorkerIdle, 0, 0, 0)

	select {
	case <-r.IdleSignal():
	case <-time.After(time.Second):
		t.Fatal("expected idle signal after busy->idle transition")
	}
}

func TestRecordOutcomeUpdatesRunningMeanAndResetsToIdle(t *testing.T) {
	r := New()
	r.Register(domain.Worker{Name: "w1", Capability: domain.CapabilityCoding})
	r.MarkBusy("w1")

	r.RecordOutcome("w1", true, 2.0)
	r.RecordOutcome("w1", false, 4.0)

	w, ok := r.Get("w1")
	require.True(t, ok)
	require.Equal(t, 2, w.TotalTasks)
	require.Equal(t, 1, w.SuccessfulTasks)
	require.Equal(t, 1, w.FailedTasks)
	require.InDelta(t, 3.0, w.AvgExecutionTime, 0.0001)
	require.Equal(t, domain.WorkerIdle, w.Status)
}

func TestQueryExcludesStaleHeartbeats(t *testing.T) {
	r := New()
	r.Register(domain.Worker{Name: "fresh", Capability: domain.CapabilityCoding})
	r.Register(domain.Worker{Name: "stale", Capability: domain.CapabilityCoding})

	r.mu.Lock()
	r.workers["stale"].LastHeartbeat = time.Now().Add(-time.Hour)
	r.mu.Unlock()

	live := r.Query("coding", DefaultFreshnessWindow)
	names := make([]string, 0, len(live))
	for _, w := range live {
		names = append(names, w.Name)
	}
	require.Equal(t, []string{"fresh"}, names)
}

func TestQueryOrdersIdleBeforeBusyThenByLoad(t *testing.T) {
	r := New()
	r.Register(domain.Worker{Name: "busy-low-cpu", Capability: domain.CapabilityCoding})
	r.MarkBusy("busy-low-cpu")
	r.Register(domain.Worker{Name: "idle-high-cpu", Capability: domain.CapabilityCoding})
	r.Heartbeat("idle-high-cpu", domain.WorkerIdle, 90, 10, 0)
	r.Register(domain.Worker{Name: "idle-low-cpu", Capability: domain.CapabilityCoding})
	r.Heartbeat("idle-low-cpu", domain.WorkerIdle, 10, 10, 0)

	live := r.Query("coding", DefaultFreshnessWindow)
	require.Len(t, live, 3)
	require.Equal(t, "idle-low-cpu", live[0].Name)
	require.Equal(t, "idle-high-cpu", live[1].Name)
	require.Equal(t, "busy-low-cpu", live[2].Name)
}

func TestQueryMatchesCapabilitySubstringOrGeneral(t *testing.T) {
	r := New()
	r.Register(domain.Worker{Name: "general-1", Capability: domain.CapabilityGeneral})
	r.Register(domain.Worker{Name: "coder-1", Capability: domain.CapabilityCoding})

	live := r.Query("coding", DefaultFreshnessWindow)
	names := make([]string, 0, len(live))
	for _, w := range live {
		names = append(names, w.Name)
	}
	require.ElementsMatch(t, []string{"general-1", "coder-1"}, names)
}
