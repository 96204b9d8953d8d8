// Package events defines the task lifecycle notifications emitted by the
// engine and the sinks that receive them.
package events

import "time"

// Event type constants for task events.
const (
	TypeTaskCreated   = "task_created"
	TypeTaskProgress  = "task_progress_updated"
	TypeTaskCompleted = "task_completed"
	TypeTaskLog       = "task_log_appended"
)

// BaseEvent holds fields common to all events.
type BaseEvent struct {
	Type      string    `json:"type"`
	TaskID    string    `json:"task_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent creates a base event with the current timestamp.
func NewBaseEvent(eventType, taskID string) BaseEvent {
	return BaseEvent{
		Type:      eventType,
		TaskID:    taskID,
		Timestamp: time.Now(),
	}
}

// TaskCreatedEvent is emitted when a task is created.
type TaskCreatedEvent struct {
	BaseEvent
	Title   string `json:"title"`
	Variant string `json:"workflow_variant"`
	Parent  string `json:"parent_task_id,omitempty"`
}

// NewTaskCreatedEvent creates a new task created event.
func NewTaskCreatedEvent(taskID, title, variant, parent string) TaskCreatedEvent {
	return TaskCreatedEvent{
		BaseEvent: NewBaseEvent(TypeTaskCreated, taskID),
		Title:     title,
		Variant:   variant,
		Parent:    parent,
	}
}

// TaskProgressEvent is emitted when a task's pointer or status changes.
type TaskProgressEvent struct {
	BaseEvent
	Status      string `json:"status"`
	CurrentStep int    `json:"current_step"`
	PhaseCount  int    `json:"phase_count"`
	Message     string `json:"message,omitempty"`
}

// NewTaskProgressEvent creates a new task progress event.
func NewTaskProgressEvent(taskID, status string, currentStep, phaseCount int, message string) TaskProgressEvent {
	return TaskProgressEvent{
		BaseEvent:   NewBaseEvent(TypeTaskProgress, taskID),
		Status:      status,
		CurrentStep: currentStep,
		PhaseCount:  phaseCount,
		Message:     message,
	}
}

// TaskCompletedEvent is emitted exactly once when a task completes.
type TaskCompletedEvent struct {
	BaseEvent
	Duration time.Duration `json:"duration"`
}

// NewTaskCompletedEvent creates a new task completed event.
func NewTaskCompletedEvent(taskID string, duration time.Duration) TaskCompletedEvent {
	return TaskCompletedEvent{
		BaseEvent: NewBaseEvent(TypeTaskCompleted, taskID),
		Duration:  duration,
	}
}

// TaskLogEvent is emitted when a progress message is appended to the log.
type TaskLogEvent struct {
	BaseEvent
	Message string `json:"message"`
}

// NewTaskLogEvent creates a new task log event.
func NewTaskLogEvent(taskID, message string) TaskLogEvent {
	return TaskLogEvent{
		BaseEvent: NewBaseEvent(TypeTaskLog, taskID),
		Message:   message,
	}
}
