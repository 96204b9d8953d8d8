package core

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// Oracle Port
// =============================================================================

// Oracle defines the contract for the text-generation backend that
// produces phase responses. Transport, retry and prompt formatting
// internals live behind this boundary; the engine only interprets the
// returned outcome.
type Oracle interface {
	// Invoke runs one phase prompt. Transport-level failures should be
	// encoded as status tags on the returned outcome so the classifier
	// can map them; a non-nil error is reserved for conditions the
	// adapter could not express as an outcome.
	Invoke(ctx context.Context, req InvokeRequest) (*RawOutcome, error)
}

// InvokeRequest carries one phase invocation.
type InvokeRequest struct {
	Prompt      string
	Tools       []Tool
	Temperature float64
	Deadline    time.Duration // deadline hint; tier-resolved by the executor
	TaskID      TaskID
	Step        int
	Purpose     string
}

// RawOutcome is the uninterpreted result of an oracle invocation.
// Status carries one of the nine category tags when present; the
// structured Completion/Rejection signals are produced when a tool
// callback invokes the step-completion or step-rejection primitive.
type RawOutcome struct {
	Status     string            `json:"status,omitempty"`
	Response   Response          `json:"response"`
	Completion *CompletionSignal `json:"completion,omitempty"`
	Rejection  *RejectionSignal  `json:"rejection,omitempty"`
}

// Response is the payload of an oracle outcome.
type Response struct {
	Answer    string `json:"answer,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
	Result    string `json:"result,omitempty"`
}

// Text returns the most specific non-empty payload field.
func (r Response) Text() string {
	if r.Result != "" {
		return r.Result
	}
	if r.Answer != "" {
		return r.Answer
	}
	return r.Reasoning
}

// CompletionSignal reports that the phase explicitly finished.
type CompletionSignal struct {
	Result string `json:"result,omitempty"`
}

// RejectionSignal reports that the phase explicitly rejected its input.
// RestartStep of zero means no explicit restart ordinal was given.
type RejectionSignal struct {
	Reason      string `json:"reason,omitempty"`
	RestartStep int    `json:"restart_step,omitempty"`
}

// =============================================================================
// TaskStore Port
// =============================================================================

// CreateTaskParams carries the fields for task creation.
type CreateTaskParams struct {
	Title       string
	Plan        string
	Description string
	Variant     WorkflowVariant
	ParentID    TaskID
}

// StepResult pairs a step ordinal with its result text for partial updates.
type StepResult struct {
	Step int
	Text string
}

// TaskPatch describes a partial task update. Nil fields are left
// untouched; LogAppend appends rather than rewriting the log.
type TaskPatch struct {
	Status      *TaskStatus
	CurrentStep *int
	StepResult  *StepResult
	LogAppend   string
}

// TaskStore defines the contract for durable task persistence.
type TaskStore interface {
	// Create persists a new pending task and returns it.
	Create(ctx context.Context, params CreateTaskParams) (*Task, error)

	// Get retrieves a task by id. Returns nil and no error when the
	// task does not exist.
	Get(ctx context.Context, id TaskID) (*Task, error)

	// Update applies a partial update without rewriting the full record.
	Update(ctx context.Context, id TaskID, patch TaskPatch) error

	// ListChildren returns tasks referencing parent, oldest first.
	ListChildren(ctx context.Context, parent TaskID) ([]*Task, error)

	// List returns all tasks, oldest first.
	List(ctx context.Context) ([]*Task, error)
}

// =============================================================================
// Continuity Port
// =============================================================================

// Continuity stores per-phase result text and renders the size-bounded
// digest of prior results forwarded into the next phase's prompt.
type Continuity interface {
	// Store persists result text for a step, overwriting any prior value.
	Store(ctx context.Context, id TaskID, step int, text string) error

	// Digest renders prior-phase context for the phase about to run at
	// uptoStep. Steps at or beyond uptoStep are never included.
	Digest(ctx context.Context, id TaskID, uptoStep int) (string, error)
}

// =============================================================================
// NotificationSink Port
// =============================================================================

// NotificationSink receives fire-and-forget lifecycle notifications.
// Sink failures are non-fatal: callers log and continue.
type NotificationSink interface {
	TaskCreated(ctx context.Context, task *Task) error
	TaskProgress(ctx context.Context, task *Task, message string) error
	TaskCompleted(ctx context.Context, task *Task, elapsed time.Duration) error
	TaskLog(ctx context.Context, id TaskID, message string) error
}

// =============================================================================
// Tool bindings
// =============================================================================

// ToolHandler executes a tool invocation with validated arguments.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (string, error)

// ParamSpec declares one tool parameter.
type ParamSpec struct {
	Type        string // "string", "integer", "boolean"
	Description string
	Required    bool
}

// ParamSchema declares a tool's parameters by name.
type ParamSchema map[string]ParamSpec

// Validate checks arguments against the schema before dispatch.
func (s ParamSchema) Validate(args map[string]interface{}) error {
	for name, spec := range s {
		v, ok := args[name]
		if !ok {
			if spec.Required {
				return ErrValidation(CodeInvalidArgs, fmt.Sprintf("missing required argument %q", name))
			}
			continue
		}
		if !typeMatches(spec.Type, v) {
			return ErrValidation(CodeInvalidArgs,
				fmt.Sprintf("argument %q: expected %s, got %T", name, spec.Type, v))
		}
	}
	for name := range args {
		if _, ok := s[name]; !ok {
			return ErrValidation(CodeInvalidArgs, fmt.Sprintf("unknown argument %q", name))
		}
	}
	return nil
}

func typeMatches(typ string, v interface{}) bool {
	switch typ {
	case "string":
		_, ok := v.(string)
		return ok
	case "integer":
		// JSON decoding yields float64 for all numbers.
		switch v.(type) {
		case int, int64, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	default:
		return true
	}
}

// Tool is a typed binding the oracle may invoke during a phase.
type Tool struct {
	Name        string
	Description string
	Mutating    bool // capable of mutating external state
	Control     bool // step-control primitive, always available
	Params      ParamSchema
	Handler     ToolHandler
}

// Call validates args against the schema and dispatches to the handler.
func (t Tool) Call(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := t.Params.Validate(args); err != nil {
		return "", err
	}
	if t.Handler == nil {
		return "", ErrValidation(CodeInvalidArgs, fmt.Sprintf("tool %q has no handler", t.Name))
	}
	return t.Handler(ctx, args)
}
