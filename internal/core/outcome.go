package core

// OutcomeKind discriminates the StepOutcome variants.
type OutcomeKind string

const (
	// OutcomeAdvance moves the step pointer forward with a result.
	OutcomeAdvance OutcomeKind = "advance"

	// OutcomeRewind moves the step pointer back to a restart ordinal.
	OutcomeRewind OutcomeKind = "rewind"

	// OutcomeRetryLater stops the loop leaving the task retryable.
	OutcomeRetryLater OutcomeKind = "retry_later"

	// OutcomeFatal marks the task failed.
	OutcomeFatal OutcomeKind = "fatal"

	// OutcomeNoProgress is the quiescent state: the phase produced a
	// response but emitted no control signal. The pointer must not move
	// and execution stops awaiting an external re-invocation.
	OutcomeNoProgress OutcomeKind = "no_progress"
)

// StepOutcome is the normalized result of executing one phase.
// Exactly one variant applies; progression decisions belong to the engine.
type StepOutcome struct {
	Kind        OutcomeKind
	Result      string   // Advance, NoProgress: result or provisional response text
	Reason      string   // Rewind: rejection reason
	RestartStep int      // Rewind: requested restart ordinal (pre-clamp)
	Diagnostic  string   // RetryLater, Fatal: tagged diagnostic text
	Category    Category // classification that produced this outcome
}

// Advance builds an advance outcome carrying the phase result.
func Advance(result string) StepOutcome {
	return StepOutcome{Kind: OutcomeAdvance, Result: result, Category: CategoryStepCompleted}
}

// Rewind builds a rewind outcome targeting a restart ordinal.
func Rewind(reason string, restartStep int) StepOutcome {
	return StepOutcome{
		Kind:        OutcomeRewind,
		Reason:      reason,
		RestartStep: restartStep,
		Category:    CategoryStepRejected,
	}
}

// RetryLater builds a retryable outcome with a tagged diagnostic.
func RetryLater(cat Category, diagnostic string) StepOutcome {
	return StepOutcome{Kind: OutcomeRetryLater, Diagnostic: diagnostic, Category: cat}
}

// Fatal builds an unconditionally terminal outcome.
func Fatal(diagnostic string) StepOutcome {
	return StepOutcome{Kind: OutcomeFatal, Diagnostic: diagnostic, Category: CategoryFailure}
}

// NoProgress builds the quiescent outcome with the provisional response text.
func NoProgress(result string) StepOutcome {
	return StepOutcome{Kind: OutcomeNoProgress, Result: result, Category: CategorySuccess}
}
