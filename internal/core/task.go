package core

import (
	"fmt"
	"time"
)

// TaskID uniquely identifies a task.
type TaskID string

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusActive    TaskStatus = "active"
	TaskStatusPaused    TaskStatus = "paused"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCancelled TaskStatus = "cancelled"
	TaskStatusInvalid   TaskStatus = "invalid"
)

// ValidTaskStatus checks if a status string is one of the known states.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusPending, TaskStatusActive, TaskStatusPaused, TaskStatusFailed,
		TaskStatusCompleted, TaskStatusCancelled, TaskStatusInvalid:
		return true
	default:
		return false
	}
}

// Task represents a unit of work driven through a phased pipeline.
type Task struct {
	ID          TaskID          `json:"id"`
	Title       string          `json:"title,omitempty"`
	Plan        string          `json:"plan,omitempty"`
	Description string          `json:"description,omitempty"`
	Status      TaskStatus      `json:"status"`
	Variant     WorkflowVariant `json:"workflow_variant"`
	CurrentStep int             `json:"current_step"`
	ParentID    TaskID          `json:"parent_task_id,omitempty"`
	StepResults map[int]string  `json:"step_results"`
	CreatedAt   time.Time       `json:"created_at"`
	Log         []string        `json:"log,omitempty"`
}

// NewTask creates a pending task at step zero.
func NewTask(id TaskID, title string, variant WorkflowVariant) *Task {
	return &Task{
		ID:          id,
		Title:       title,
		Status:      TaskStatusPending,
		Variant:     variant,
		StepResults: make(map[int]string),
		CreatedAt:   time.Now(),
	}
}

// WithPlan sets the task plan.
func (t *Task) WithPlan(plan string) *Task {
	t.Plan = plan
	return t
}

// WithDescription sets the task description.
func (t *Task) WithDescription(desc string) *Task {
	t.Description = desc
	return t
}

// WithParent links the task to an owning task.
func (t *Task) WithParent(parent TaskID) *Task {
	t.ParentID = parent
	return t
}

// PhaseCount returns N, the number of phases for this task's variant.
func (t *Task) PhaseCount() int {
	return t.Variant.PhaseCount()
}

// Halted reports whether the task must not execute further phases
// until its status is externally reset.
func (t *Task) Halted() bool {
	switch t.Status {
	case TaskStatusCancelled, TaskStatusPaused, TaskStatusFailed, TaskStatusInvalid:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the task is in a terminal state.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted ||
		t.Status == TaskStatusFailed ||
		t.Status == TaskStatusCancelled
}

// ClampStep clamps a step pointer into [0, N]. Out-of-range requests are
// expected from imprecise external signals and are never an error.
func (t *Task) ClampStep(step int) int {
	return ClampStep(step, t.PhaseCount())
}

// ClampStep clamps step into [0, n].
func ClampStep(step, n int) int {
	if step < 0 {
		return 0
	}
	if step > n {
		return n
	}
	return step
}

// ClampOrdinal clamps a phase ordinal into [1, n].
func ClampOrdinal(ordinal, n int) int {
	if ordinal < 1 {
		return 1
	}
	if ordinal > n {
		return n
	}
	return ordinal
}

// Result returns the stored result text for a step, if any.
func (t *Task) Result(step int) (string, bool) {
	r, ok := t.StepResults[step]
	return r, ok
}

// SetResult records the result text for a step, overwriting any prior value.
func (t *Task) SetResult(step int, text string) {
	if t.StepResults == nil {
		t.StepResults = make(map[int]string)
	}
	t.StepResults[step] = text
}

// AppendLog appends a human-readable progress message.
func (t *Task) AppendLog(msg string) {
	t.Log = append(t.Log, msg)
}

// Apply mutates the task in place according to a partial update.
func (t *Task) Apply(patch TaskPatch) {
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.CurrentStep != nil {
		t.CurrentStep = *patch.CurrentStep
	}
	if patch.StepResult != nil {
		t.SetResult(patch.StepResult.Step, patch.StepResult.Text)
	}
	if patch.LogAppend != "" {
		t.AppendLog(patch.LogAppend)
	}
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	cp := *t
	cp.StepResults = make(map[int]string, len(t.StepResults))
	for k, v := range t.StepResults {
		cp.StepResults[k] = v
	}
	cp.Log = append([]string(nil), t.Log...)
	return &cp
}

// Duration returns the elapsed time since task creation.
func (t *Task) Duration() time.Duration {
	return time.Since(t.CreatedAt)
}

// Validate checks task invariants.
func (t *Task) Validate() error {
	if t.ID == "" {
		return ErrValidation(CodeTaskIDRequired, "task ID cannot be empty")
	}
	if !ValidTaskStatus(t.Status) {
		return ErrValidation(CodeInvalidStatus, fmt.Sprintf("unknown task status: %s", t.Status))
	}
	if !ValidVariant(t.Variant) {
		return ErrValidation(CodeInvalidVariant, fmt.Sprintf("unknown workflow variant: %s", t.Variant))
	}
	if t.CurrentStep < 0 || t.CurrentStep > t.PhaseCount() {
		return ErrValidation(CodeStepOutOfRange,
			fmt.Sprintf("current step %d outside [0, %d]", t.CurrentStep, t.PhaseCount()))
	}
	if t.Status == TaskStatusCompleted && t.CurrentStep != t.PhaseCount() {
		return ErrValidation(CodeInvalidStatus,
			fmt.Sprintf("completed task at step %d of %d", t.CurrentStep, t.PhaseCount()))
	}
	return nil
}
