package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dantiel/aethercodex/internal/adapters/state"
	"github.com/dantiel/aethercodex/internal/continuity"
	"github.com/dantiel/aethercodex/internal/core"
	"github.com/dantiel/aethercodex/internal/logging"
)

// scripted is one canned oracle response.
type scripted struct {
	raw *core.RawOutcome
	err error
}

// fakeOracle replays a fixed script and records every request. An
// exhausted script yields a bare success so runs stop quiescently.
type fakeOracle struct {
	script []scripted
	calls  []core.InvokeRequest
	onCall func(n int, req core.InvokeRequest)
}

func (f *fakeOracle) Invoke(_ context.Context, req core.InvokeRequest) (*core.RawOutcome, error) {
	f.calls = append(f.calls, req)
	if f.onCall != nil {
		f.onCall(len(f.calls), req)
	}
	if len(f.script) == 0 {
		return &core.RawOutcome{Status: "success"}, nil
	}
	next := f.script[0]
	f.script = f.script[1:]
	return next.raw, next.err
}

func completion(result string) scripted {
	return scripted{raw: &core.RawOutcome{Completion: &core.CompletionSignal{Result: result}}}
}

func rejection(reason string, restart int) scripted {
	return scripted{raw: &core.RawOutcome{
		Rejection: &core.RejectionSignal{Reason: reason, RestartStep: restart},
	}}
}

func status(tag, text string) scripted {
	return scripted{raw: &core.RawOutcome{Status: tag, Response: core.Response{Answer: text}}}
}

// recordingSink counts lifecycle notifications.
type recordingSink struct {
	created   int
	completed int
	progress  []string
	logs      []string
}

func (s *recordingSink) TaskCreated(context.Context, *core.Task) error {
	s.created++
	return nil
}

func (s *recordingSink) TaskProgress(_ context.Context, _ *core.Task, msg string) error {
	s.progress = append(s.progress, msg)
	return nil
}

func (s *recordingSink) TaskCompleted(context.Context, *core.Task, time.Duration) error {
	s.completed++
	return nil
}

func (s *recordingSink) TaskLog(_ context.Context, _ core.TaskID, msg string) error {
	s.logs = append(s.logs, msg)
	return nil
}

type harness struct {
	store  *state.MemoryTaskStore
	oracle *fakeOracle
	sink   *recordingSink
	engine *WorkflowEngine
}

func newHarness(script []scripted, budget int) *harness {
	store := state.NewMemoryTaskStore()
	oracle := &fakeOracle{script: script}
	sink := &recordingSink{}
	exec := NewStepExecutor(oracle, continuity.New(store), nil,
		Deadlines{Normal: time.Second, Extended: 2 * time.Second}, logging.NewNop())
	return &harness{
		store:  store,
		oracle: oracle,
		sink:   sink,
		engine: NewWorkflowEngine(store, exec, sink, logging.NewNop(), budget),
	}
}

func (h *harness) seed(t *testing.T, task *core.Task) *core.Task {
	t.Helper()
	h.store.Put(task)
	return task
}

func (h *harness) reload(t *testing.T, id core.TaskID) *core.Task {
	t.Helper()
	task, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, task)
	return task
}

func TestRunAdvancesOnCompletionSignal(t *testing.T) {
	h := newHarness([]scripted{
		completion("ok"),
		status("success", ""),
	}, 0)
	task := h.seed(t, core.NewTask("t1", "Small fix", core.VariantSimple))

	err := h.engine.Run(context.Background(), task.ID)
	require.NoError(t, err)

	got := h.reload(t, task.ID)
	assert.Equal(t, 1, got.CurrentStep)
	assert.Equal(t, core.TaskStatusActive, got.Status)
	result, ok := got.Result(1)
	require.True(t, ok)
	assert.Equal(t, "ok", result)
}

func TestRunRewindsOnRejection(t *testing.T) {
	h := newHarness([]scripted{
		rejection("needs rework", 1),
		status("success", ""),
	}, 0)
	task := core.NewTask("t1", "Small fix", core.VariantSimple)
	task.Status = core.TaskStatusActive
	task.CurrentStep = 1
	task.SetResult(1, "ok")
	h.seed(t, task)

	err := h.engine.Run(context.Background(), task.ID)
	require.NoError(t, err)

	got := h.reload(t, task.ID)
	assert.Equal(t, 1, got.CurrentStep)
	result, ok := got.Result(2)
	require.True(t, ok)
	assert.Equal(t, "REJECTED: needs rework", result)
}

func TestRunTimeoutIsRetryable(t *testing.T) {
	h := newHarness([]scripted{status("timeout", "upstream stalled")}, 0)
	task := h.seed(t, core.NewTask("t1", "Small fix", core.VariantSimple))

	err := h.engine.Run(context.Background(), task.ID)
	require.Error(t, err)
	assert.True(t, core.IsRetryable(err))

	got := h.reload(t, task.ID)
	assert.Equal(t, 0, got.CurrentStep)
	assert.NotEqual(t, core.TaskStatusFailed, got.Status)
	result, ok := got.Result(1)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(result, "TIMEOUT:"), "got %q", result)
}

func TestRunFatalMarksFailed(t *testing.T) {
	h := newHarness([]scripted{status("failure", "unrecoverable")}, 0)
	task := h.seed(t, core.NewTask("t1", "Small fix", core.VariantSimple))

	err := h.engine.Run(context.Background(), task.ID)
	require.Error(t, err)
	assert.False(t, core.IsRetryable(err))
	assert.True(t, core.IsCategory(err, core.ErrCatExecution))

	got := h.reload(t, task.ID)
	assert.Equal(t, core.TaskStatusFailed, got.Status)
	result, _ := got.Result(1)
	assert.True(t, strings.HasPrefix(result, "FAILED:"), "got %q", result)
}

func TestRunQuiescentWithoutSignal(t *testing.T) {
	h := newHarness([]scripted{status("success", "still thinking")}, 0)
	task := h.seed(t, core.NewTask("t1", "Small fix", core.VariantSimple))

	err := h.engine.Run(context.Background(), task.ID)
	require.NoError(t, err)

	got := h.reload(t, task.ID)
	assert.Equal(t, 0, got.CurrentStep, "pointer must not move without a control signal")
	assert.Equal(t, core.TaskStatusActive, got.Status)
	result, ok := got.Result(1)
	require.True(t, ok)
	assert.Equal(t, "still thinking", result)
}

func TestRunFullPipelineCompletes(t *testing.T) {
	script := make([]scripted, 0, 10)
	for i := 0; i < 10; i++ {
		script = append(script, completion("done"))
	}
	h := newHarness(script, 0)
	task := h.seed(t, core.NewTask("t1", "Big refactor", core.VariantFull))

	err := h.engine.Run(context.Background(), task.ID)
	require.NoError(t, err)

	got := h.reload(t, task.ID)
	assert.Equal(t, core.TaskStatusCompleted, got.Status)
	assert.Equal(t, 10, got.CurrentStep)
	assert.Equal(t, 1, h.sink.completed, "completion notification must fire exactly once")
	assert.Zero(t, h.sink.created, "creation notifications belong to the creating surface, not the run")
	assert.Len(t, h.oracle.calls, 10)
}

func TestRunCompletedTaskIsNoOp(t *testing.T) {
	h := newHarness(nil, 0)
	task := core.NewTask("t1", "Done already", core.VariantSimple)
	task.Status = core.TaskStatusCompleted
	task.CurrentStep = 3
	h.seed(t, task)

	err := h.engine.Run(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Empty(t, h.oracle.calls)
	assert.Zero(t, h.sink.completed)
}

func TestRunHaltedTask(t *testing.T) {
	for _, st := range []core.TaskStatus{
		core.TaskStatusPaused, core.TaskStatusCancelled,
		core.TaskStatusFailed, core.TaskStatusInvalid,
	} {
		t.Run(string(st), func(t *testing.T) {
			h := newHarness(nil, 0)
			task := core.NewTask("t1", "Halted", core.VariantSimple)
			task.Status = st
			h.seed(t, task)

			err := h.engine.Run(context.Background(), task.ID)
			require.Error(t, err)
			assert.True(t, core.IsCategory(err, core.ErrCatState))
			assert.Empty(t, h.oracle.calls, "halted task must not reach the oracle")
		})
	}
}

func TestRunMissingTask(t *testing.T) {
	h := newHarness(nil, 0)
	err := h.engine.Run(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatNotFound))
}

func TestRunRewindClampsAdversarialRestart(t *testing.T) {
	h := newHarness([]scripted{
		rejection("way off", 99),
		status("success", ""),
	}, 0)
	task := core.NewTask("t1", "Small fix", core.VariantSimple)
	task.Status = core.TaskStatusActive
	task.CurrentStep = 1
	h.seed(t, task)

	err := h.engine.Run(context.Background(), task.ID)
	require.NoError(t, err)

	got := h.reload(t, task.ID)
	assert.GreaterOrEqual(t, got.CurrentStep, 0)
	assert.LessOrEqual(t, got.CurrentStep, got.PhaseCount())
}

func TestRecursionBudgetLimitsChildren(t *testing.T) {
	script := make([]scripted, 0, 6)
	for i := 0; i < 6; i++ {
		script = append(script, completion("done"))
	}
	h := newHarness(script, 1)

	parent := h.seed(t, core.NewTask("parent", "Parent", core.VariantSimple))
	child1 := h.seed(t, core.NewTask("child1", "First child", core.VariantSimple).WithParent(parent.ID))
	child2 := h.seed(t, core.NewTask("child2", "Second child", core.VariantSimple).WithParent(parent.ID))

	err := h.engine.Run(context.Background(), parent.ID)
	require.NoError(t, err)

	assert.Equal(t, core.TaskStatusCompleted, h.reload(t, parent.ID).Status)
	assert.Equal(t, core.TaskStatusCompleted, h.reload(t, child1.ID).Status)

	second := h.reload(t, child2.ID)
	assert.Equal(t, core.TaskStatusPending, second.Status, "budget of one admits a single child run")
	assert.Equal(t, 0, second.CurrentStep)
	assert.Len(t, h.oracle.calls, 6, "parent and one child, three phases each")
}

func TestRunChildrenSkipsHalted(t *testing.T) {
	h := newHarness([]scripted{
		completion("a"), completion("b"), completion("c"),
	}, 5)

	parent := h.seed(t, core.NewTask("parent", "Parent", core.VariantSimple))
	halted := core.NewTask("child1", "Cancelled child", core.VariantSimple).WithParent(parent.ID)
	halted.Status = core.TaskStatusCancelled
	h.seed(t, halted)

	err := h.engine.Run(context.Background(), parent.ID)
	require.NoError(t, err)
	assert.Len(t, h.oracle.calls, 3, "cancelled child must not execute")
	assert.Equal(t, core.TaskStatusCancelled, h.reload(t, halted.ID).Status)
}

func TestRunHaltTakesEffectBetweenPhases(t *testing.T) {
	h := newHarness([]scripted{completion("one"), completion("two")}, 0)
	task := h.seed(t, core.NewTask("t1", "Pausable", core.VariantFull))

	// Pause externally while the first phase is in flight; the next
	// checkpoint must pick it up before phase two starts.
	paused := core.TaskStatusPaused
	h.oracle.onCall = func(n int, _ core.InvokeRequest) {
		if n == 1 {
			require.NoError(t, h.store.Update(context.Background(), task.ID,
				core.TaskPatch{Status: &paused}))
		}
	}

	err := h.engine.Run(context.Background(), task.ID)
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatState))
	assert.Len(t, h.oracle.calls, 1, "pause must stop the run before the next phase")

	got := h.reload(t, task.ID)
	assert.Equal(t, core.TaskStatusPaused, got.Status)
	assert.Equal(t, 1, got.CurrentStep)
}
