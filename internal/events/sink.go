package events

import (
	"context"
	"time"

	"github.com/dantiel/aethercodex/internal/core"
	"github.com/dantiel/aethercodex/internal/logging"
)

// LogSink implements core.NotificationSink by emitting structured log
// records. Rendering beyond that is someone else's concern.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a sink that logs lifecycle events.
func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// TaskCreated logs a task_created event.
func (s *LogSink) TaskCreated(_ context.Context, task *core.Task) error {
	e := NewTaskCreatedEvent(string(task.ID), task.Title, task.Variant.String(), string(task.ParentID))
	s.logger.Info("notification", "event", e.Type, "task_id", e.TaskID,
		"title", e.Title, "variant", e.Variant)
	return nil
}

// TaskProgress logs a task_progress_updated event.
func (s *LogSink) TaskProgress(_ context.Context, task *core.Task, message string) error {
	e := NewTaskProgressEvent(string(task.ID), string(task.Status),
		task.CurrentStep, task.PhaseCount(), message)
	s.logger.Info("notification", "event", e.Type, "task_id", e.TaskID,
		"status", e.Status, "current_step", e.CurrentStep, "message", e.Message)
	return nil
}

// TaskCompleted logs a task_completed event.
func (s *LogSink) TaskCompleted(_ context.Context, task *core.Task, elapsed time.Duration) error {
	e := NewTaskCompletedEvent(string(task.ID), elapsed)
	s.logger.Info("notification", "event", e.Type, "task_id", e.TaskID,
		"duration", e.Duration.String())
	return nil
}

// TaskLog logs a task_log_appended event.
func (s *LogSink) TaskLog(_ context.Context, id core.TaskID, message string) error {
	e := NewTaskLogEvent(string(id), message)
	s.logger.Info("notification", "event", e.Type, "task_id", e.TaskID, "message", e.Message)
	return nil
}

// NopSink discards all notifications. Useful in tests.
type NopSink struct{}

// TaskCreated discards the event.
func (NopSink) TaskCreated(context.Context, *core.Task) error { return nil }

// TaskProgress discards the event.
func (NopSink) TaskProgress(context.Context, *core.Task, string) error { return nil }

// TaskCompleted discards the event.
func (NopSink) TaskCompleted(context.Context, *core.Task, time.Duration) error { return nil }

// TaskLog discards the event.
func (NopSink) TaskLog(context.Context, core.TaskID, string) error { return nil }
