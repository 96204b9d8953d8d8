// Package engine drives tasks through their phase pipeline: the
// StepExecutor runs exactly one phase and normalizes its outcome, the
// WorkflowEngine owns the task lifecycle around it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dantiel/aethercodex/internal/core"
	"github.com/dantiel/aethercodex/internal/logging"
	"github.com/dantiel/aethercodex/internal/tools"
)

// Deadlines holds the two invocation deadline tiers passed through to
// the oracle. The concrete durations come from configuration.
type Deadlines struct {
	Normal   time.Duration
	Extended time.Duration
}

// For resolves the deadline for a phase's tier.
func (d Deadlines) For(tier core.DeadlineTier) time.Duration {
	if tier == core.TierExtended {
		return d.Extended
	}
	return d.Normal
}

// StepExecutor executes a single phase of a task. It reads task state
// and persists step results through the continuity service, but never
// mutates the task record itself; pointer and status transitions belong
// to the WorkflowEngine.
type StepExecutor struct {
	oracle     core.Oracle
	continuity core.Continuity
	toolSet    []core.Tool
	deadlines  Deadlines
	logger     *logging.Logger
}

// NewStepExecutor creates a step executor.
func NewStepExecutor(oracle core.Oracle, continuity core.Continuity, toolSet []core.Tool, deadlines Deadlines, logger *logging.Logger) *StepExecutor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StepExecutor{
		oracle:     oracle,
		continuity: continuity,
		toolSet:    toolSet,
		deadlines:  deadlines,
		logger:     logger,
	}
}

// placeholder substitutes for absent task fields in the phase prompt.
const placeholder = "--"

// Execute runs one phase of the task and returns the normalized
// outcome. A halted task is rejected before any external call. The
// step ordinal is clamped into [1, N] rather than rejected.
func (e *StepExecutor) Execute(ctx context.Context, task *core.Task, stepOrdinal int) (core.StepOutcome, error) {
	if task.Halted() {
		return core.StepOutcome{}, core.ErrTaskHalted(task.ID, task.Status)
	}

	n := task.PhaseCount()
	ordinal := core.ClampOrdinal(stepOrdinal, n)
	phase := core.PhaseAt(task.Variant, ordinal)

	digest, err := e.continuity.Digest(ctx, task.ID, ordinal)
	if err != nil {
		return core.StepOutcome{}, fmt.Errorf("building continuity digest: %w", err)
	}

	req := core.InvokeRequest{
		Prompt:      buildPrompt(task, phase, n, digest),
		Tools:       tools.Gate(e.toolSet, phase.Access),
		Temperature: phase.Temperature,
		Deadline:    e.deadlines.For(phase.Tier),
		TaskID:      task.ID,
		Step:        ordinal,
		Purpose:     phase.Purpose,
	}

	log := e.logger.WithTask(string(task.ID)).WithStep(ordinal)
	log.Debug("invoking oracle", "purpose", phase.Purpose,
		"temperature", phase.Temperature, "tools", len(req.Tools))

	raw, err := e.oracle.Invoke(ctx, req)
	if err != nil {
		// The adapter should encode transport failures as status tags;
		// anything that still escapes as an error is mapped here so a
		// flaky oracle never takes down the run.
		cat := core.CategoryNetworkError
		if errors.Is(err, context.DeadlineExceeded) {
			cat = core.CategoryTimeout
		}
		diag := fmt.Sprintf("%s: %v", cat.Tag(), err)
		return e.persistOutcome(ctx, task.ID, ordinal, core.RetryLater(cat, diag), diag)
	}

	if raw == nil {
		diag := "ERROR: Unknown response status: <nil>"
		return e.persistOutcome(ctx, task.ID, ordinal,
			core.RetryLater(core.CategoryUnknown, diag), diag)
	}

	cat := core.Classify(raw)
	log.Debug("classified outcome", "category", cat)

	switch cat {
	case core.CategoryStepCompleted:
		result := raw.Response.Text()
		if raw.Completion != nil && raw.Completion.Result != "" {
			result = raw.Completion.Result
		}
		outcome := core.Advance(result)
		if result == "" {
			return outcome, nil
		}
		return e.persistOutcome(ctx, task.ID, ordinal, outcome, result)

	case core.CategoryStepRejected:
		reason := raw.Response.Text()
		restart := 0
		if raw.Rejection != nil {
			if raw.Rejection.Reason != "" {
				reason = raw.Rejection.Reason
			}
			restart = raw.Rejection.RestartStep
		}
		if restart == 0 {
			restart = ordinal - 1
			if restart < 1 {
				restart = 1
			}
		}
		diag := "REJECTED: " + reason
		return e.persistOutcome(ctx, task.ID, ordinal, core.Rewind(reason, restart), diag)

	case core.CategorySuccess:
		// Response without a control signal. Progression is driven by
		// the explicit signals alone, so the pointer must stay put; the
		// provisional text is kept for the next invocation of this step.
		text := raw.Response.Text()
		if text == "" {
			return core.NoProgress(""), nil
		}
		return e.persistOutcome(ctx, task.ID, ordinal, core.NoProgress(text), text)

	case core.CategoryFailure:
		diag := "FAILED: " + orText(raw.Response.Text(), "phase reported failure")
		return e.persistOutcome(ctx, task.ID, ordinal, core.Fatal(diag), diag)

	case core.CategoryUnknown:
		diag := fmt.Sprintf("ERROR: Unknown response status: %s", raw.Status)
		return e.persistOutcome(ctx, task.ID, ordinal, core.RetryLater(cat, diag), diag)

	default:
		// timeout, network_error, context_length_error, rate_limit_error,
		// empty_response
		diag := fmt.Sprintf("%s: %s", cat.Tag(), orText(raw.Response.Text(), "no detail"))
		return e.persistOutcome(ctx, task.ID, ordinal, core.RetryLater(cat, diag), diag)
	}
}

// persistOutcome stores the step's result or diagnostic text before
// returning the outcome, so history survives even when the run stops.
func (e *StepExecutor) persistOutcome(ctx context.Context, id core.TaskID, step int, outcome core.StepOutcome, text string) (core.StepOutcome, error) {
	if err := e.continuity.Store(ctx, id, step, text); err != nil {
		return core.StepOutcome{}, fmt.Errorf("persisting step %d result: %w", step, err)
	}
	return outcome, nil
}

func buildPrompt(task *core.Task, phase core.PhaseDescriptor, n int, digest string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Phase %d of %d: %s\n", phase.Ordinal, n, phase.Purpose)
	b.WriteString(phase.Guidance)
	b.WriteString("\n\nPrior phase results:\n")
	b.WriteString(digest)
	fmt.Fprintf(&b, "\n\nTitle: %s\nPlan: %s\nDescription: %s\n",
		orText(task.Title, placeholder),
		orText(task.Plan, placeholder),
		orText(task.Description, placeholder))
	b.WriteString("\nComplete the phase, then call complete_step with the result, " +
		"or reject_step with a reason if the prior work cannot be built upon.\n")
	return b.String()
}

func orText(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
