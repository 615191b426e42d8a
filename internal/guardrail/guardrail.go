// Package guardrail provides the deterministic checkers that sit between the
// non-deterministic generation oracle and an accepted artifact. A guardrail
// is a pure function of its inputs: given identical governing material and
// candidate, it returns an identical verdict on every invocation.
package guardrail

import "context"

// Verdict is the outcome of one guardrail check.
type Verdict struct {
	// Name identifies the guardrail that produced the verdict.
	Name string `json:"name"`

	// Passed is true when no violations were found.
	Passed bool `json:"passed"`

	// Violations are human-readable contradiction or gap descriptions,
	// in deterministic order.
	Violations []string `json:"violations"`

	// SuggestedFixes are corrective instructions, aligned with
	// Violations where applicable.
	SuggestedFixes []string `json:"suggested_fixes"`
}

// CheckRequest bundles everything a guardrail may consult. Guardrails read
// it, never mutate it.
type CheckRequest struct {
	// Governing holds the rendered texts of already-accepted artifacts
	// that constrain the candidate (e.g. the vision constraining a story).
	Governing []string

	// ReferenceDocs holds plain-text reference documents whose hard
	// requirements the candidate must satisfy.
	ReferenceDocs []string

	// CandidateText is the candidate artifact rendered as prose.
	CandidateText string

	// Conditions is the candidate's verifiable-conditions field
	// (acceptance criteria), empty when the schema has none.
	Conditions string
}

// Guardrail checks a candidate against deterministic constraints.
type Guardrail interface {
	// Name returns the guardrail identifier.
	Name() string

	// Check returns a verdict. An error indicates a checker failure, not
	// a candidate violation; violations always come back in the verdict.
	Check(ctx context.Context, req *CheckRequest) (*Verdict, error)
}

// passed builds a passing verdict for a guardrail.
func passed(name string) *Verdict {
	return &Verdict{Name: name, Passed: true, Violations: []string{}, SuggestedFixes: []string{}}
}
