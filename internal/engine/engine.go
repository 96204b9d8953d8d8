package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/dantiel/aethercodex/internal/core"
	"github.com/dantiel/aethercodex/internal/logging"
)

// DefaultRecursionBudget bounds nested child-task executions per run
// when no budget is configured.
const DefaultRecursionBudget = 8

const elapsedRounding = 10 * time.Millisecond

// WorkflowEngine owns the task lifecycle. It is the only component
// that mutates the persisted task record: the executor returns
// outcomes and the engine applies pointer and status transitions.
type WorkflowEngine struct {
	store    core.TaskStore
	executor *StepExecutor
	sink     core.NotificationSink
	logger   *logging.Logger
	budget   int
}

// NewWorkflowEngine creates an engine. A budget below one falls back
// to DefaultRecursionBudget.
func NewWorkflowEngine(store core.TaskStore, executor *StepExecutor, sink core.NotificationSink, logger *logging.Logger, recursionBudget int) *WorkflowEngine {
	if recursionBudget < 1 {
		recursionBudget = DefaultRecursionBudget
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &WorkflowEngine{
		store:    store,
		executor: executor,
		sink:     sink,
		logger:   logger,
		budget:   recursionBudget,
	}
}

// recursionBudget is the shared counter threaded through nested runs.
// Decremented once per nested invocation across the whole sub-tree,
// never increased, floor at zero.
type recursionBudget struct {
	remaining int
}

func (b *recursionBudget) take() bool {
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// Run drives the task's phase loop until completion, a halting
// condition, or a quiescent stop. Retryable conditions surface as
// retryable errors; the caller decides whether and when to re-invoke.
func (e *WorkflowEngine) Run(ctx context.Context, id core.TaskID) error {
	return e.run(ctx, id, &recursionBudget{remaining: e.budget})
}

func (e *WorkflowEngine) run(ctx context.Context, id core.TaskID, budget *recursionBudget) error {
	task, err := e.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("loading task %s: %w", id, err)
	}
	if task == nil {
		return core.ErrTaskNotFound(id)
	}
	if task.Halted() {
		return core.ErrTaskHalted(task.ID, task.Status)
	}
	if task.Status == core.TaskStatusCompleted {
		return nil
	}

	log := e.logger.WithTask(string(id))

	if task.Status != core.TaskStatusActive {
		if err := e.setStatus(ctx, task, core.TaskStatusActive); err != nil {
			return err
		}
	}

	n := task.PhaseCount()
	for task.CurrentStep < n {
		// Cooperative cancellation checkpoint: an external pause or
		// cancel takes effect here, never mid-phase.
		fresh, err := e.store.Get(ctx, task.ID)
		if err != nil {
			return fmt.Errorf("reloading task %s: %w", task.ID, err)
		}
		if fresh != nil {
			task = fresh
		}
		if task.Halted() {
			return core.ErrTaskHalted(task.ID, task.Status)
		}

		ordinal := task.CurrentStep + 1
		outcome, err := e.executor.Execute(ctx, task, ordinal)
		if err != nil {
			return err
		}

		switch outcome.Kind {
		case core.OutcomeAdvance:
			next := core.ClampStep(task.CurrentStep+1, n)
			if err := e.setStep(ctx, task, next,
				fmt.Sprintf("phase %d completed", ordinal)); err != nil {
				return err
			}
			e.notifyProgress(ctx, task, fmt.Sprintf("phase %d of %d completed", ordinal, n))

		case core.OutcomeRewind:
			restart := core.ClampStep(core.ClampOrdinal(outcome.RestartStep, n), n)
			if err := e.setStep(ctx, task, restart,
				fmt.Sprintf("phase %d rejected, restarting from step %d: %s",
					ordinal, restart, outcome.Reason)); err != nil {
				return err
			}
			e.notifyProgress(ctx, task, fmt.Sprintf("phase %d rejected", ordinal))

		case core.OutcomeRetryLater:
			// Status stays as-is so the same step can be re-invoked.
			e.appendLog(ctx, task, fmt.Sprintf("phase %d retryable: %s", ordinal, outcome.Diagnostic))
			return core.ErrStepRetryable(outcome.Category, outcome.Diagnostic)

		case core.OutcomeFatal:
			if err := e.setStatus(ctx, task, core.TaskStatusFailed); err != nil {
				return err
			}
			e.appendLog(ctx, task, fmt.Sprintf("phase %d failed: %s", ordinal, outcome.Diagnostic))
			return core.ErrStepFatal(outcome.Diagnostic)

		case core.OutcomeNoProgress:
			// Quiescent wait: the phase produced output but emitted no
			// control signal. Stop without error and without moving the
			// pointer; progression resumes only on a later Run.
			log.Info("phase quiescent, awaiting re-invocation", "step", ordinal)
			e.appendLog(ctx, task, fmt.Sprintf("phase %d awaiting control signal", ordinal))
			return nil

		default:
			return core.ErrStepFatal(fmt.Sprintf("unrecognized step outcome %q", outcome.Kind))
		}
	}

	return e.complete(ctx, task, budget)
}

// complete marks the task completed, emits the completion notification
// exactly once, and then drives child tasks within the shared budget.
func (e *WorkflowEngine) complete(ctx context.Context, task *core.Task, budget *recursionBudget) error {
	if err := e.setStatus(ctx, task, core.TaskStatusCompleted); err != nil {
		return err
	}
	elapsed := task.Duration()
	e.appendLog(ctx, task, fmt.Sprintf("completed in %s", elapsed.Round(elapsedRounding)))
	if err := e.sink.TaskCompleted(ctx, task, elapsed); err != nil {
		e.logger.Warn("completion notification failed", "task_id", task.ID, "error", err)
	}

	e.runChildren(ctx, task.ID, budget)
	return nil
}

// runChildren executes child tasks sequentially, oldest first. Each
// nested run consumes one unit of the shared budget; exhaustion stops
// spawning silently. A child's failure never fails the parent.
func (e *WorkflowEngine) runChildren(ctx context.Context, parent core.TaskID, budget *recursionBudget) {
	if budget.remaining <= 0 {
		return
	}
	children, err := e.store.ListChildren(ctx, parent)
	if err != nil {
		e.logger.Warn("listing child tasks failed", "task_id", parent, "error", err)
		return
	}
	for _, child := range children {
		if child.Halted() || child.Status == core.TaskStatusCompleted {
			continue
		}
		if !budget.take() {
			return
		}
		if err := e.run(ctx, child.ID, budget); err != nil {
			e.logger.Warn("child task run stopped", "task_id", child.ID,
				"parent_id", parent, "error", err)
		}
	}
}

func (e *WorkflowEngine) setStatus(ctx context.Context, task *core.Task, status core.TaskStatus) error {
	if err := e.store.Update(ctx, task.ID, core.TaskPatch{Status: &status}); err != nil {
		return fmt.Errorf("updating task %s status: %w", task.ID, err)
	}
	task.Status = status
	return nil
}

func (e *WorkflowEngine) setStep(ctx context.Context, task *core.Task, step int, logMsg string) error {
	patch := core.TaskPatch{CurrentStep: &step, LogAppend: logMsg}
	if err := e.store.Update(ctx, task.ID, patch); err != nil {
		return fmt.Errorf("updating task %s step: %w", task.ID, err)
	}
	task.Apply(patch)
	return nil
}

func (e *WorkflowEngine) appendLog(ctx context.Context, task *core.Task, msg string) {
	if err := e.store.Update(ctx, task.ID, core.TaskPatch{LogAppend: msg}); err != nil {
		e.logger.Warn("appending task log failed", "task_id", task.ID, "error", err)
	}
	task.AppendLog(msg)
	if err := e.sink.TaskLog(ctx, task.ID, msg); err != nil {
		e.logger.Warn("log notification failed", "task_id", task.ID, "error", err)
	}
}

func (e *WorkflowEngine) notifyProgress(ctx context.Context, task *core.Task, msg string) {
	if err := e.sink.TaskProgress(ctx, task, msg); err != nil {
		e.logger.Warn("progress notification failed", "task_id", task.ID, "error", err)
	}
}
