package domain

import "time"

// TaskStatus is the lifecycle state of a Task. Transitions are monotonic
// forward except that a retryable failure may re-enter queued (spec
// invariant i); an operator reset is required to rewind a completed row.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskQueued     TaskStatus = "queued"
	TaskAssigned   TaskStatus = "assigned"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
)

// ContextTag classifies how a task's context slice was derived, recorded so
// later related-task detection has something to compare against.
type ContextTag string

const (
	ContextTagSingle     ContextTag = "single"
	ContextTagMultiStep  ContextTag = "multi_step"
	ContextTagContextual ContextTag = "contextual"
)

// Priority mirrors the four-level queue priority used throughout routing.
type Priority int

const (
	PriorityCritical Priority = 1
	PriorityHigh     Priority = 2
	PriorityNormal   Priority = 3
	PriorityLow      Priority = 4
)

// Task is one unit of work derived from a plan step (or the whole message,
// for a single-step plan).
type Task struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string     `gorm:"index" json:"conversation_id"`
	UserID         string     `json:"user_id,omitempty"`
	Description    string     `json:"description"`
	TaskType       Capability `json:"task_type"`
	Priority       Priority   `json:"priority"`
	RetryCount     int        `json:"retry_count"`
	Status         TaskStatus `json:"status"`
	ContextTag     ContextTag `json:"context_tag,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Task) TableName() string { return "tasks" }

// Assignment records which worker, in which order within a multi-step plan,
// was bound to a task.
type Assignment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID    int64      `gorm:"index" json:"task_id"`
	WorkerName string    `json:"worker_name"`
	Order      int       `json:"order"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Assignment) TableName() string { return "assignments" }

// Result is the outcome of one dispatch attempt for a task. At most one
// result row exists per (task, attempt).
type Result struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID        int64     `gorm:"index" json:"task_id"`
	Attempt       int       `json:"attempt"`
	WorkerName    string    `json:"worker_name"`
	Success       bool      `json:"success"`
	Output        string    `json:"output"`
	ExecutionTime float64   `json:"execution_time"`
	Quality       float64   `json:"quality"`
	Tokens        int       `json:"tokens,omitempty"`
	Cost          float64   `json:"cost,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (Result) TableName() string { return "results" }

// ContextSlice records the subset of prior-turn indices selected for a task,
// for observability and for the related-task word-overlap heuristic.
type ContextSlice struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID         int64     `gorm:"index" json:"task_id"`
	ConversationID string    `json:"conversation_id"`
	NeedsContext   bool      `json:"needs_context"`
	Indices        IntSlice  `gorm:"type:jsonb" json:"indices"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (ContextSlice) TableName() string { return "context_data" }
