package engine

import (
	"context"
	"errors"
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

func newExecutor(oracle *fakeOracle, store *state.MemoryTaskStore, toolSet []core.Tool) *StepExecutor {
	return NewStepExecutor(oracle, continuity.New(store), toolSet,
		Deadlines{Normal: time.Second, Extended: 5 * time.Second}, logging.NewNop())
}

func TestExecuteRejectsHaltedTask(t *testing.T) {
	store := state.NewMemoryTaskStore()
	oracle := &fakeOracle{}
	exec := newExecutor(oracle, store, nil)

	task := core.NewTask("t1", "Halted", core.VariantSimple)
	task.Status = core.TaskStatusCancelled
	store.Put(task)

	_, err := exec.Execute(context.Background(), task, 1)
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatState))
	assert.Empty(t, oracle.calls)
}

func TestExecuteClampsOrdinal(t *testing.T) {
	store := state.NewMemoryTaskStore()
	oracle := &fakeOracle{script: []scripted{completion("ok"), completion("ok")}}
	exec := newExecutor(oracle, store, nil)

	task := core.NewTask("t1", "Clamped", core.VariantSimple)
	store.Put(task)

	_, err := exec.Execute(context.Background(), task, 99)
	require.NoError(t, err)
	assert.Equal(t, 3, oracle.calls[0].Step)

	_, err = exec.Execute(context.Background(), task, -5)
	require.NoError(t, err)
	assert.Equal(t, 1, oracle.calls[1].Step)
}

func TestExecutePromptPlaceholders(t *testing.T) {
	store := state.NewMemoryTaskStore()
	oracle := &fakeOracle{script: []scripted{completion("ok")}}
	exec := newExecutor(oracle, store, nil)

	task := core.NewTask("t1", "", core.VariantSimple)
	store.Put(task)

	_, err := exec.Execute(context.Background(), task, 1)
	require.NoError(t, err)

	prompt := oracle.calls[0].Prompt
	assert.Contains(t, prompt, "Title: --")
	assert.Contains(t, prompt, "Plan: --")
	assert.Contains(t, prompt, "Description: --")
	assert.Contains(t, prompt, continuity.NoPriorResults)
}

func TestExecutePromptCarriesPriorResults(t *testing.T) {
	store := state.NewMemoryTaskStore()
	oracle := &fakeOracle{script: []scripted{completion("ok")}}
	cont := continuity.New(store)
	exec := NewStepExecutor(oracle, cont, nil,
		Deadlines{Normal: time.Second, Extended: 5 * time.Second}, logging.NewNop())

	task := core.NewTask("t1", "Indexed", core.VariantSimple).
		WithPlan("rebuild the index").
		WithDescription("stale entries linger")
	task.CurrentStep = 1
	store.Put(task)
	require.NoError(t, cont.Store(context.Background(), task.ID, 1, "scoped the change"))

	_, err := exec.Execute(context.Background(), task, 2)
	require.NoError(t, err)

	prompt := oracle.calls[0].Prompt
	assert.Contains(t, prompt, "Step 1: scoped the change")
	assert.Contains(t, prompt, "Title: Indexed")
	assert.Contains(t, prompt, "Plan: rebuild the index")
	assert.NotContains(t, prompt, "--")
}

func TestExecuteDeadlineTiers(t *testing.T) {
	store := state.NewMemoryTaskStore()
	oracle := &fakeOracle{script: []scripted{completion("ok"), completion("ok")}}
	exec := newExecutor(oracle, store, nil)

	task := core.NewTask("t1", "Tiers", core.VariantSimple)
	store.Put(task)

	// Phase 1 of the simple pipeline is normal tier, phase 2 extended.
	_, err := exec.Execute(context.Background(), task, 1)
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), task, 2)
	require.NoError(t, err)

	assert.Equal(t, time.Second, oracle.calls[0].Deadline)
	assert.Equal(t, 5*time.Second, oracle.calls[1].Deadline)
}

func TestExecuteGatesToolsByPhaseAccess(t *testing.T) {
	store := state.NewMemoryTaskStore()
	oracle := &fakeOracle{script: []scripted{completion("ok"), completion("ok")}}
	toolSet := []core.Tool{
		{Name: "read_file"},
		{Name: "write_file", Mutating: true},
		{Name: "complete_step", Mutating: true, Control: true},
	}
	exec := newExecutor(oracle, store, toolSet)

	task := core.NewTask("t1", "Gated", core.VariantSimple)
	store.Put(task)

	// Simple phase 1 is read-only, phase 2 full access.
	_, err := exec.Execute(context.Background(), task, 1)
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), task, 2)
	require.NoError(t, err)

	names := func(ts []core.Tool) []string {
		var out []string
		for _, tool := range ts {
			out = append(out, tool.Name)
		}
		return out
	}
	assert.Equal(t, []string{"read_file", "complete_step"}, names(oracle.calls[0].Tools))
	assert.Equal(t, []string{"read_file", "write_file", "complete_step"}, names(oracle.calls[1].Tools))
}

func TestExecuteCompletionPrefersSignalPayload(t *testing.T) {
	store := state.NewMemoryTaskStore()
	oracle := &fakeOracle{script: []scripted{{raw: &core.RawOutcome{
		Response:   core.Response{Answer: "narration"},
		Completion: &core.CompletionSignal{Result: "the real result"},
	}}}}
	exec := newExecutor(oracle, store, nil)

	task := core.NewTask("t1", "Payloads", core.VariantSimple)
	store.Put(task)

	outcome, err := exec.Execute(context.Background(), task, 1)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeAdvance, outcome.Kind)
	assert.Equal(t, "the real result", outcome.Result)
}

func TestExecuteCompletionWithEmptyResult(t *testing.T) {
	store := state.NewMemoryTaskStore()
	oracle := &fakeOracle{script: []scripted{{raw: &core.RawOutcome{
		Completion: &core.CompletionSignal{},
	}}}}
	exec := newExecutor(oracle, store, nil)

	task := core.NewTask("t1", "Empty", core.VariantSimple)
	store.Put(task)

	outcome, err := exec.Execute(context.Background(), task, 1)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeAdvance, outcome.Kind)

	got, err := store.Get(context.Background(), task.ID)
	require.NoError(t, err)
	_, stored := got.Result(1)
	assert.False(t, stored, "empty completion result must not be persisted")
}

func TestExecuteRejectionDefaultsRestart(t *testing.T) {
	tests := []struct {
		name        string
		ordinal     int
		restart     int
		wantRestart int
	}{
		{"explicit restart", 3, 1, 1},
		{"default is previous step", 3, 0, 2},
		{"floor at one", 1, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := state.NewMemoryTaskStore()
			oracle := &fakeOracle{script: []scripted{rejection("bad", tt.restart)}}
			exec := newExecutor(oracle, store, nil)

			task := core.NewTask("t1", "Rejections", core.VariantSimple)
			task.CurrentStep = tt.ordinal - 1
			store.Put(task)

			outcome, err := exec.Execute(context.Background(), task, tt.ordinal)
			require.NoError(t, err)
			assert.Equal(t, core.OutcomeRewind, outcome.Kind)
			assert.Equal(t, tt.wantRestart, outcome.RestartStep)
		})
	}
}

func TestExecuteSymbolEncodedStatus(t *testing.T) {
	store := state.NewMemoryTaskStore()
	oracle := &fakeOracle{script: []scripted{status(":step-completed", "done")}}
	exec := newExecutor(oracle, store, nil)

	task := core.NewTask("t1", "Symbols", core.VariantSimple)
	store.Put(task)

	outcome, err := exec.Execute(context.Background(), task, 1)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeAdvance, outcome.Kind)
	assert.Equal(t, "done", outcome.Result)
}

func TestExecuteUnknownStatusDiagnostic(t *testing.T) {
	store := state.NewMemoryTaskStore()
	oracle := &fakeOracle{script: []scripted{status("weird", "garbled")}}
	exec := newExecutor(oracle, store, nil)

	task := core.NewTask("t1", "Unknowns", core.VariantSimple)
	store.Put(task)

	outcome, err := exec.Execute(context.Background(), task, 1)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeRetryLater, outcome.Kind)
	assert.Equal(t, core.CategoryUnknown, outcome.Category)
	assert.Equal(t, "ERROR: Unknown response status: weird", outcome.Diagnostic)

	got, err := store.Get(context.Background(), task.ID)
	require.NoError(t, err)
	stored, _ := got.Result(1)
	assert.Equal(t, outcome.Diagnostic, stored)
}

func TestExecuteNilOutcomeIsRetryable(t *testing.T) {
	store := state.NewMemoryTaskStore()
	oracle := &fakeOracle{script: []scripted{{}}}
	exec := newExecutor(oracle, store, nil)

	task := core.NewTask("t1", "Nils", core.VariantSimple)
	store.Put(task)

	outcome, err := exec.Execute(context.Background(), task, 1)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeRetryLater, outcome.Kind)
	assert.Equal(t, core.CategoryUnknown, outcome.Category)
	assert.Equal(t, "ERROR: Unknown response status: <nil>", outcome.Diagnostic)

	got, err := store.Get(context.Background(), task.ID)
	require.NoError(t, err)
	stored, _ := got.Result(1)
	assert.Equal(t, outcome.Diagnostic, stored)
}

func TestExecuteRetryableCategoriesTagDiagnostics(t *testing.T) {
	tags := map[string]string{
		"timeout":              "TIMEOUT:",
		"network_error":        "NETWORK_ERROR:",
		"rate-limit-error":     "RATE_LIMIT_ERROR:",
		"context_length_error": "CONTEXT_LENGTH_ERROR:",
		"empty_response":       "EMPTY_RESPONSE:",
	}
	for tag, prefix := range tags {
		t.Run(tag, func(t *testing.T) {
			store := state.NewMemoryTaskStore()
			oracle := &fakeOracle{script: []scripted{status(tag, "detail")}}
			exec := newExecutor(oracle, store, nil)

			task := core.NewTask("t1", "Retryables", core.VariantSimple)
			store.Put(task)

			outcome, err := exec.Execute(context.Background(), task, 1)
			require.NoError(t, err)
			assert.Equal(t, core.OutcomeRetryLater, outcome.Kind)
			assert.True(t, strings.HasPrefix(outcome.Diagnostic, prefix),
				"diagnostic %q missing prefix %q", outcome.Diagnostic, prefix)
		})
	}
}

func TestExecuteMapsTransportErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   core.Category
		prefix string
	}{
		{"deadline", context.DeadlineExceeded, core.CategoryTimeout, "TIMEOUT:"},
		{"generic", errors.New("connection reset"), core.CategoryNetworkError, "NETWORK_ERROR:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := state.NewMemoryTaskStore()
			oracle := &fakeOracle{script: []scripted{{err: tt.err}}}
			exec := newExecutor(oracle, store, nil)

			task := core.NewTask("t1", "Transport", core.VariantSimple)
			store.Put(task)

			outcome, err := exec.Execute(context.Background(), task, 1)
			require.NoError(t, err)
			assert.Equal(t, core.OutcomeRetryLater, outcome.Kind)
			assert.Equal(t, tt.want, outcome.Category)
			assert.True(t, strings.HasPrefix(outcome.Diagnostic, tt.prefix))
		})
	}
}
