// Package merge implements the state merge engine. It combines a prior
// artifact with field updates proposed from new user input without ever
// discarding previously confirmed fields: untouched fields carry forward,
// addressed fields are replaced, and a field only moves from present to
// absent through an explicit retraction.
package merge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/draftd/internal/artifact"
	"github.com/fyrsmithlabs/draftd/internal/schema"
)

// FieldUpdate is one proposed change to an artifact field.
type FieldUpdate struct {
	// Field names the target field.
	Field string `json:"field"`

	// Value is the new field value. Ignored when Retract is set.
	Value string `json:"value,omitempty"`

	// Retract explicitly withdraws a previously confirmed value. Silence
	// is never treated as retraction.
	Retract bool `json:"retract,omitempty"`
}

// ProposalSource turns raw user text into field updates for one artifact
// type. The generation oracle is the production implementation; the engine
// itself never interprets natural language.
type ProposalSource interface {
	Propose(ctx context.Context, def *schema.Definition, prior *artifact.Artifact, rawText string) ([]FieldUpdate, error)
}

// Engine applies the merge policy.
type Engine struct {
	registry *schema.Registry
	logger   *zap.Logger
}

// NewEngine creates a merge engine bound to a schema registry.
func NewEngine(registry *schema.Registry, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{registry: registry, logger: logger}
}

// Apply merges field updates into a copy of the prior artifact. The prior
// artifact is never mutated. Updates naming fields unknown to the schema are
// dropped with a warning rather than failing the turn: a drifting extractor
// must not destroy accumulated state. Updates with an empty value and no
// retraction flag are skipped, so a field can never be blanked implicitly.
func (e *Engine) Apply(prior *artifact.Artifact, updates []FieldUpdate) (*artifact.Artifact, error) {
	def, err := e.registry.Get(prior.Type)
	if err != nil {
		return nil, fmt.Errorf("merging %s: %w", prior.Type, err)
	}

	merged := prior.Clone()
	for _, u := range updates {
		if _, ok := def.Field(u.Field); !ok {
			e.logger.Warn("dropping update for unknown field",
				zap.String("artifact_type", string(prior.Type)),
				zap.String("field", u.Field))
			continue
		}
		if u.Retract {
			merged.ClearField(u.Field)
			continue
		}
		if u.Value == "" {
			continue
		}
		merged.SetField(u.Field, u.Value)
	}

	e.registry.Refresh(merged)
	return merged, nil
}

// Merge asks the proposal source what the new input addresses and applies the
// update policy. Repeated merges of the same input are idempotent, and merges
// of unrelated input leave previously confirmed fields bit-for-bit unchanged.
func (e *Engine) Merge(ctx context.Context, src ProposalSource, prior *artifact.Artifact, rawText string) (*artifact.Artifact, error) {
	def, err := e.registry.Get(prior.Type)
	if err != nil {
		return nil, fmt.Errorf("merging %s: %w", prior.Type, err)
	}

	updates, err := src.Propose(ctx, def, prior, rawText)
	if err != nil {
		return nil, fmt.Errorf("extracting field updates: %w", err)
	}

	e.logger.Debug("applying field updates",
		zap.String("artifact_type", string(prior.Type)),
		zap.Int("update_count", len(updates)))

	return e.Apply(prior, updates)
}
