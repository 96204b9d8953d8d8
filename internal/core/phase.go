package core

import "fmt"

// WorkflowVariant selects the phase catalog for a task.
type WorkflowVariant string

const (
	// VariantFull is the complete ten-phase development pipeline.
	VariantFull WorkflowVariant = "full"

	// VariantSimple is a compressed three-phase pipeline for small tasks.
	VariantSimple WorkflowVariant = "simple"

	// VariantAnalysis is a five-phase read-only investigation pipeline.
	VariantAnalysis WorkflowVariant = "analysis"
)

// ValidVariant checks if a variant string is valid.
func ValidVariant(v WorkflowVariant) bool {
	switch v {
	case VariantFull, VariantSimple, VariantAnalysis:
		return true
	default:
		return false
	}
}

// ParseVariant converts a string to a WorkflowVariant with validation.
func ParseVariant(s string) (WorkflowVariant, error) {
	v := WorkflowVariant(s)
	if !ValidVariant(v) {
		return "", fmt.Errorf("invalid workflow variant: %s", s)
	}
	return v, nil
}

// String returns the string representation of the variant.
func (v WorkflowVariant) String() string {
	return string(v)
}

// PhaseCount returns N, the number of phases for the variant.
func (v WorkflowVariant) PhaseCount() int {
	return len(Phases(v))
}

// ToolAccess classifies which tools a phase may use.
type ToolAccess string

const (
	// AccessReadOnly strips tools that mutate external state.
	AccessReadOnly ToolAccess = "read-only"

	// AccessFull leaves the tool set unchanged.
	AccessFull ToolAccess = "full"
)

// DeadlineTier selects the invocation deadline hint passed to the oracle.
type DeadlineTier string

const (
	// TierNormal is the default invocation deadline.
	TierNormal DeadlineTier = "normal"

	// TierExtended is used for phases expected to reason longer.
	TierExtended DeadlineTier = "extended"
)

// PhaseDescriptor is the immutable definition of one pipeline phase.
type PhaseDescriptor struct {
	Ordinal     int
	Purpose     string
	Guidance    string
	Temperature float64
	Access      ToolAccess
	Tier        DeadlineTier
}

var fullPhases = []PhaseDescriptor{
	{1, "orientation",
		"Read the task statement, locate the relevant parts of the codebase and note entry points. Do not change anything yet.",
		0.3, AccessReadOnly, TierNormal},
	{2, "analysis",
		"Examine the code paths involved. Identify constraints, invariants and hidden couplings that affect the work.",
		0.4, AccessReadOnly, TierExtended},
	{3, "planning",
		"Lay out an ordered sequence of concrete changes. Prefer small reversible steps over sweeping rewrites.",
		0.5, AccessReadOnly, TierExtended},
	{4, "design",
		"Decide interfaces, data shapes and naming for the planned changes before touching code.",
		0.5, AccessReadOnly, TierNormal},
	{5, "implementation",
		"Apply the planned changes. Keep each edit consistent with the surrounding code.",
		0.6, AccessFull, TierExtended},
	{6, "integration",
		"Wire the new pieces into their call sites. Resolve compilation or import fallout.",
		0.5, AccessFull, TierNormal},
	{7, "refinement",
		"Revisit the diff. Simplify, remove dead ends and align naming with the rest of the module.",
		0.6, AccessFull, TierNormal},
	{8, "verification",
		"Exercise the changed behavior. Run or write checks covering the edge cases from the analysis phase.",
		0.3, AccessFull, TierExtended},
	{9, "review",
		"Re-read the full change as a reviewer would. Flag anything inconsistent with the plan.",
		0.4, AccessReadOnly, TierNormal},
	{10, "summary",
		"Summarize what was done, what was left out and anything a follow-up task should pick up.",
		0.5, AccessReadOnly, TierNormal},
}

var simplePhases = []PhaseDescriptor{
	{1, "analysis",
		"Understand the task and the code it touches. Note the smallest change that satisfies it.",
		0.4, AccessReadOnly, TierNormal},
	{2, "implementation",
		"Apply the change directly. Stay within the identified scope.",
		0.6, AccessFull, TierExtended},
	{3, "review",
		"Check the result against the task statement and tidy up loose ends.",
		0.4, AccessReadOnly, TierNormal},
}

var analysisPhases = []PhaseDescriptor{
	{1, "orientation",
		"Map the area under investigation. List the files, components and boundaries involved.",
		0.3, AccessReadOnly, TierNormal},
	{2, "structure",
		"Describe how the pieces fit together: ownership, data flow and lifecycle.",
		0.4, AccessReadOnly, TierNormal},
	{3, "behavior",
		"Trace the runtime behavior along the paths that matter for the question asked.",
		0.4, AccessReadOnly, TierExtended},
	{4, "risks",
		"Identify fragile spots, implicit assumptions and places likely to break under change.",
		0.5, AccessReadOnly, TierNormal},
	{5, "synthesis",
		"Condense the findings into a direct answer with pointers into the code.",
		0.5, AccessReadOnly, TierNormal},
}

// Phases returns the ordered phase list for a workflow variant.
// Panics on an unknown variant.
func Phases(v WorkflowVariant) []PhaseDescriptor {
	switch v {
	case VariantFull:
		return fullPhases
	case VariantSimple:
		return simplePhases
	case VariantAnalysis:
		return analysisPhases
	default:
		panic(fmt.Sprintf("unknown workflow variant: %q", v))
	}
}

// PhaseAt returns the descriptor for a 1-based phase ordinal,
// clamping the ordinal into [1, N].
func PhaseAt(v WorkflowVariant, ordinal int) PhaseDescriptor {
	phases := Phases(v)
	return phases[ClampOrdinal(ordinal, len(phases))-1]
}
