// Package oracle models the non-deterministic generation step as an opaque
// contract: a prompt context goes in, a text payload comes out. Two calls
// with identical context may return different payloads, so nothing in the
// engine relies on output stability; parse and schema failures are
// first-class recoverable outcomes.
package oracle

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/draftd/internal/artifact"
	"github.com/fyrsmithlabs/draftd/internal/guardrail"
	"github.com/fyrsmithlabs/draftd/internal/schema"
)

// Errors distinguishing recoverable oracle outcomes.
var (
	// ErrMalformed marks a payload that does not parse at all.
	ErrMalformed = errors.New("malformed oracle payload")

	// ErrSchema marks a payload that parses but does not conform to the
	// artifact schema.
	ErrSchema = errors.New("oracle payload violates artifact schema")
)

// Context is the full prompt context for one generation call. The oracle is
// stateless: every call receives everything it needs, which keeps replay and
// debugging possible by recording each Context with its payload.
type Context struct {
	// Def is the schema of the target artifact type.
	Def *schema.Definition

	// Prior is the accumulated artifact state for the active phase.
	Prior *artifact.Artifact

	// History holds the raw user utterances relevant to the phase, oldest
	// first.
	History []string

	// Governing holds rendered texts of accepted artifacts constraining
	// this one.
	Governing []string

	// Feedback carries the guardrail verdicts of the previous iteration
	// on refinement passes; nil on the first draft.
	Feedback []*guardrail.Verdict

	// Attempt is the 1-based iteration index within the convergence loop.
	Attempt int
}

// Generator is the call contract to the generation step.
type Generator interface {
	// Generate returns a text payload expected to parse into the target
	// artifact schema. Implementations may be slow and non-idempotent.
	Generate(ctx context.Context, gc *Context) (string, error)
}
