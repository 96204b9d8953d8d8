// Package tools supplies the tool bindings offered to the oracle and the
// per-phase access gate applied to them.
package tools

import "github.com/dantiel/aethercodex/internal/core"

// Gate filters a tool set by a phase's access class. Read-only phases
// lose every tool classified as mutating; the step-control primitives
// pass regardless of class so a phase can always complete or reject.
// The gate has no opinion on why a tool is mutating: it trusts the
// registry's classification.
func Gate(toolSet []core.Tool, access core.ToolAccess) []core.Tool {
	if access == core.AccessFull {
		return toolSet
	}
	gated := make([]core.Tool, 0, len(toolSet))
	for _, t := range toolSet {
		if t.Control || !t.Mutating {
			gated = append(gated, t)
		}
	}
	return gated
}
