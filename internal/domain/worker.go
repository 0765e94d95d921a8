// Package domain holds the shared value types and gorm models that every
// controller component builds on: workers, tasks, plans, conversations, and
// the durable records that back them.
package domain

import (
	"strings"
	"time"
)

// Capability is the declared kind of work a worker can perform, and doubles
// as the step-kind vocabulary the planner chooses from.
type Capability string

const (
	CapabilityCoding           Capability = "coding"
	CapabilityDocumentation    Capability = "documentation"
	CapabilityAnalysis         Capability = "analysis"
	CapabilityImageGeneration  Capability = "image_generation"
	CapabilityGeneral          Capability = "general"
)

// IsStepKind reports whether c is one of the four kinds the planner may
// emit (image_generation is a worker capability but not a planner step kind
// in this specification's scope).
func (c Capability) IsStepKind() bool {
	switch c {
	case CapabilityCoding, CapabilityDocumentation, CapabilityAnalysis, CapabilityGeneral:
		return true
	default:
		return false
	}
}

// WorkerStatus is the live dynamic status of a registered worker.
type WorkerStatus string

const (
	WorkerIdle   WorkerStatus = "idle"
	WorkerBusy   WorkerStatus = "busy"
	WorkerFailed WorkerStatus = "failed"
)

// Trend is the performance tracker's moving-comparison classification.
type Trend string

const (
	TrendLearning   Trend = "learning"
	TrendImproving  Trend = "improving"
	TrendStable     Trend = "stable"
	TrendDegrading  Trend = "degrading"
)

// HealthClass is the health monitor's liveness classification.
type HealthClass string

const (
	HealthHealthy   HealthClass = "healthy"
	HealthDegraded  HealthClass = "degraded"
	HealthUnhealthy HealthClass = "unhealthy"
	HealthDead      HealthClass = "dead"
	HealthUnknown   HealthClass = "unknown"
)

// Worker is the registry's durable + live record for one worker process.
// The rolling windows and derived trend/specialization/predicted-success
// fields live in the tracker's own in-memory snapshot (see tracker.Snapshot)
// and are persisted separately via PerformanceSnapshot rows; Worker itself
// only carries the identity and hardware/heartbeat state the registry owns.
type Worker struct {
	Name       string     `gorm:"primaryKey" json:"name"`
	Host       string     `json:"host"`
	Port       int        `json:"port"`
	Capability Capability `json:"capability"`

	Status        WorkerStatus `json:"status"`
	LastHeartbeat time.Time    `json:"last_heartbeat"`
	CPUPercent    float64      `json:"cpu_percent"`
	MemoryPercent float64      `json:"memory_percent"`
	TemperatureC  float64      `json:"temperature_c"`

	TotalTasks       int     `json:"total_tasks"`
	SuccessfulTasks  int     `json:"successful_tasks"`
	FailedTasks      int     `json:"failed_tasks"`
	AvgExecutionTime float64 `json:"avg_execution_time"`
	CostPerTask      float64 `json:"cost_per_task"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Worker) TableName() string { return "agents" }

// HeartbeatAge reports how long ago the worker last heartbeat, relative to now.
func (w *Worker) HeartbeatAge(now time.Time) time.Duration {
	if w.LastHeartbeat.IsZero() {
		return time.Duration(1<<62 - 1) // "unknown age = expired" per spec §4.1 failure semantics
	}
	return now.Sub(w.LastHeartbeat)
}

// MatchesCapability implements the C5 substring-or-general matching rule:
// when the requested type is neither "general" nor "image_generation", a
// worker matches if its capability contains the requested substring or the
// worker itself declares "general". Otherwise every live worker matches.
func (w *Worker) MatchesCapability(requested string) bool {
	if requested == "" || requested == string(CapabilityGeneral) || requested == string(CapabilityImageGeneration) {
		return true
	}
	if string(w.Capability) == string(CapabilityGeneral) {
		return true
	}
	return strings.Contains(string(w.Capability), requested)
}
