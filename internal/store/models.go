package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TaskType string
type TaskStatus string
type TaskPriority string

const (
	TypeMarketing   TaskType = "marketing"
	TypeDesign      TaskType = "design"
	TypeDevelopment TaskType = "development"
)

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

const (
	PriorityLow    TaskPriority = "low"
	PriorityNormal TaskPriority = "normal"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// ValidType reports whether t is one of the three supported task types.
func ValidType(t TaskType) bool {
	switch t {
	case TypeMarketing, TypeDesign, TypeDevelopment:
		return true
	}
	return false
}

func ValidPriority(p TaskPriority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// IsTerminal reports whether s is a terminal lifecycle state.
func IsTerminal(s TaskStatus) bool {
	return s == StatusCompleted || s == StatusFailed
}

type Task struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	Type        TaskType        `json:"type"`
	Category    string          `json:"category"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	InputData   json.RawMessage `json:"input_data,omitempty"`
	Priority    TaskPriority    `json:"priority"`
	Status      TaskStatus      `json:"status"`
	Progress    int             `json:"progress"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

type ResultType string

const (
	ResultText  ResultType = "text"
	ResultImage ResultType = "image"
)

type Result struct {
	ID           uuid.UUID       `json:"id"`
	TaskID       uuid.UUID       `json:"task_id"`
	ResultType   ResultType      `json:"result_type"`
	Content      *string         `json:"content,omitempty"`
	FileURL      *string         `json:"file_url,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	QualityScore float64         `json:"quality_score"`
	CreatedAt    time.Time       `json:"created_at"`
}

type User struct {
	ID                  uuid.UUID `json:"id"`
	Email               string    `json:"email"`
	FirstName           *string   `json:"first_name,omitempty"`
	LastName            *string   `json:"last_name,omitempty"`
	SubscriptionTier    string    `json:"subscription_tier"`
	TotalTasksCompleted int       `json:"total_tasks_completed"`
	CreatedAt           time.Time `json:"created_at"`
}

type ExecutionStatus string

const (
	ExecStarted   ExecutionStatus = "started"
	ExecSucceeded ExecutionStatus = "succeeded"
	ExecFailed    ExecutionStatus = "failed"
)

// TaskExecution is one row of the attempt ledger. The unique
// (task_id, attempt) constraint is what makes a duplicate delivery of
// the same task id harmless.
type TaskExecution struct {
	ID         uuid.UUID       `json:"id"`
	TaskID     uuid.UUID       `json:"task_id"`
	Attempt    int             `json:"attempt"`
	Status     ExecutionStatus `json:"status"`
	Error      *string         `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}
