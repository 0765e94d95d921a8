package domain

import "time"

// PerformanceSnapshot is one durable row recording a single task outcome for
// a worker, appended by the router for each accepted result. The tracker's own
// in-memory rolling windows are the runtime source of truth; this table lets
// /stats report durable history across restarts.
type PerformanceSnapshot struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	WorkerName string    `gorm:"index" json:"worker_name"`
	TaskType   Capability `json:"task_type"`
	Success    bool      `json:"success"`
	Duration   float64   `json:"duration"`
	Quality    float64   `json:"quality"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (PerformanceSnapshot) TableName() string { return "performance_metrics" }

// ControllerReplica is one replica's leader-election heartbeat row.
// Invariant: at most one replica has Active=true within the heartbeat timeout.
type ControllerReplica struct {
	MasterID      string    `gorm:"primaryKey" json:"master_id"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Active        bool      `json:"active"`
}

func (ControllerReplica) TableName() string { return "controller_heartbeats" }

// QueueSnapshot is an observability-only durable record of an enqueue event;
// the live queue itself is in-memory (internal/queue).
type QueueSnapshot struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID     int64     `json:"task_id"`
	Priority   Priority  `json:"priority"`
	WorkerName string    `json:"worker_name,omitempty"`
	Reason     string    `json:"reason"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func (QueueSnapshot) TableName() string { return "queue_snapshots" }

// SystemLog is a best-effort durable record of a notable controller event,
// independent of the structured logger's own output stream.
type SystemLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Fields    string    `gorm:"type:jsonb" json:"fields,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (SystemLog) TableName() string { return "system_logs" }
