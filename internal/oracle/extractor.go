package oracle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/draftd/internal/artifact"
	"github.com/fyrsmithlabs/draftd/internal/merge"
	"github.com/fyrsmithlabs/draftd/internal/schema"
)

// PromptRunner runs a single prompt to completion. *LLM satisfies it via
// Extract; tests substitute scripted runners.
type PromptRunner interface {
	Extract(ctx context.Context, prompt string) (string, error)
}

// Extractor implements the merge engine's proposal contract by asking the
// oracle which fields a user utterance addresses.
type Extractor struct {
	runner PromptRunner
	logger *zap.Logger
}

// NewExtractor creates an extractor on a prompt runner.
func NewExtractor(runner PromptRunner, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{runner: runner, logger: logger}
}

// Propose returns the field updates the utterance addresses. A malformed
// extraction payload is an error the caller surfaces as a failed turn; it
// never partially applies.
func (e *Extractor) Propose(ctx context.Context, def *schema.Definition, prior *artifact.Artifact, rawText string) ([]merge.FieldUpdate, error) {
	prompt := BuildExtractionPrompt(def, prior, rawText)
	out, err := e.runner.Extract(ctx, prompt)
	if err != nil {
		return nil, err
	}
	updates, err := ParseUpdates(out)
	if err != nil {
		return nil, fmt.Errorf("parsing extraction payload: %w", err)
	}
	e.logger.Debug("extracted field updates",
		zap.String("artifact_type", string(def.Type)),
		zap.Int("update_count", len(updates)))
	return updates, nil
}

// Interface check against the merge engine contract.
var _ merge.ProposalSource = (*Extractor)(nil)
