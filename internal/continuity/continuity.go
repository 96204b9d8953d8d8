// Package continuity persists per-phase result text and renders the
// size-bounded digest of prior results carried into the next phase.
package continuity

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dantiel/aethercodex/internal/core"
)

// Truncation contract. The concrete numbers are load-bearing: persisted
// step-result history depends on them, so they must not drift.
const (
	// PreviousStepLimit bounds the step immediately preceding the one
	// about to run.
	PreviousStepLimit = 300

	// EarlierStepLimit bounds every older step.
	EarlierStepLimit = 50

	// TotalLimit hard-caps the whole digest, truncating from the tail.
	TotalLimit = 1000
)

// NoPriorResults is returned instead of an empty string when no eligible
// entries exist, so downstream prompt assembly stays uniform.
const NoPriorResults = "No prior phase results available."

// Service implements core.Continuity on top of a TaskStore.
type Service struct {
	store core.TaskStore
}

// New creates a continuity service backed by the given store.
func New(store core.TaskStore) *Service {
	return &Service{store: store}
}

// Store persists result text for a step. Storing twice for the same step
// overwrites: the operation is idempotent with respect to the final value.
func (s *Service) Store(ctx context.Context, id core.TaskID, step int, text string) error {
	return s.store.Update(ctx, id, core.TaskPatch{
		StepResult: &core.StepResult{Step: step, Text: text},
	})
}

// Digest renders prior-phase context for the phase about to run at
// uptoStep, most recent first. Steps at or beyond uptoStep are excluded:
// a phase never sees its own or a future phase's result. Entries rewound
// past remain in storage for audit but fall outside the window here
// because uptoStep tracks the rewound pointer.
func (s *Service) Digest(ctx context.Context, id core.TaskID, uptoStep int) (string, error) {
	task, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if task == nil {
		return NoPriorResults, nil
	}

	var steps []int
	for step := range task.StepResults {
		if step < uptoStep {
			steps = append(steps, step)
		}
	}
	if len(steps) == 0 {
		return NoPriorResults, nil
	}
	sort.Sort(sort.Reverse(sort.IntSlice(steps)))

	entries := make([]string, 0, len(steps))
	for _, step := range steps {
		limit := EarlierStepLimit
		if step == uptoStep-1 {
			limit = PreviousStepLimit
		}
		entries = append(entries, fmt.Sprintf("Step %d: %s", step, truncate(task.StepResults[step], limit)))
	}

	return truncate(strings.Join(entries, "\n"), TotalLimit), nil
}

// truncate bounds s to at most limit characters.
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
