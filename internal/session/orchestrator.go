package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/draftd/internal/artifact"
	"github.com/fyrsmithlabs/draftd/internal/converge"
	"github.com/fyrsmithlabs/draftd/internal/guardrail"
	"github.com/fyrsmithlabs/draftd/internal/merge"
	"github.com/fyrsmithlabs/draftd/internal/schema"
	"github.com/fyrsmithlabs/draftd/internal/store"
	"github.com/fyrsmithlabs/draftd/internal/telemetry"
)

// ReferenceSource supplies the reference documents the guardrails bind
// against. Implementations may reload behind the scenes.
type ReferenceSource interface {
	Texts() []string
}

// TurnResult is what the caller (HTTP or MCP surface) renders back to the
// user after a turn or a confirmation.
type TurnResult struct {
	SessionID string        `json:"session_id"`
	Phase     Phase         `json:"phase"`
	Stage     artifact.Type `json:"stage,omitempty"`

	// ArtifactSnapshot is the current artifact state, nil before any
	// input reached the stage.
	ArtifactSnapshot *artifact.Artifact `json:"artifact_snapshot,omitempty"`

	// OpenQuestions lists what the interview still needs.
	OpenQuestions []string `json:"open_questions,omitempty"`

	// AwaitingConfirmation is set while the session sits in review.
	AwaitingConfirmation bool `json:"awaiting_confirmation"`

	// Violations carries guardrail findings surfaced to the user.
	Violations []string `json:"violations,omitempty"`

	// NeedsReview marks a best-effort candidate that exhausted its
	// iteration budget.
	NeedsReview bool `json:"needs_review"`

	// StoredID is the durable artifact ID after a successful commit.
	StoredID string `json:"stored_id,omitempty"`

	// Message is a human-readable explanation of the result.
	Message string `json:"message,omitempty"`
}

// Orchestrator walks sessions through the stage phases. It owns no session
// state itself; everything lives on the Session so snapshots are cheap.
type Orchestrator struct {
	registry  *schema.Registry
	merger    *merge.Engine
	extractor merge.ProposalSource
	ctrl      *converge.Controller
	refs      ReferenceSource
	st        store.Store
	idx       *store.Index
	metrics   *telemetry.EngineMetrics
	logger    *zap.Logger
}

// Options bundles the orchestrator's optional collaborators.
type Options struct {
	// References supplies guardrail reference documents. Nil means none.
	References ReferenceSource

	// Index receives committed artifacts for similarity search. Nil
	// disables indexing.
	Index *store.Index

	// Metrics records engine meters. Nil disables recording.
	Metrics *telemetry.EngineMetrics
}

// NewOrchestrator wires the engine components together.
func NewOrchestrator(registry *schema.Registry, merger *merge.Engine, extractor merge.ProposalSource, ctrl *converge.Controller, st store.Store, opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		registry:  registry,
		merger:    merger,
		extractor: extractor,
		ctrl:      ctrl,
		refs:      opts.References,
		st:        st,
		idx:       opts.Index,
		metrics:   opts.Metrics,
		logger:    logger,
	}
}

// ProcessTurn handles one raw user input. The turn is fully settled before
// the method returns; a concurrent turn on the same session blocks until
// then.
func (o *Orchestrator) ProcessTurn(ctx context.Context, s *Session, rawText string) (*TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Done() {
		return o.result(s, "all stages are already persisted; start a new session to continue"), nil
	}
	if strings.TrimSpace(rawText) == "" {
		return nil, fmt.Errorf("empty turn input")
	}

	// History is append-only, recorded before anything can fail.
	s.History = append(s.History, Utterance{Stage: s.Stage(), Text: rawText, At: time.Now().UTC()})
	s.UpdatedAt = time.Now().UTC()

	if s.Phase == PhaseRouting {
		o.route(s)
	}

	// A turn during review is a correction: back to the interview with
	// the candidate retained, never discarded.
	if s.Phase == PhaseReview {
		s.Drafts[s.Stage()] = s.Candidate
		s.Candidate = nil
		s.NeedsReview = false
		s.Phase = PhaseInterview
		o.logger.Info("correction received, returning to interview",
			zap.String("session_id", s.ID),
			zap.String("stage", string(s.Stage())))
	}

	res, err := o.interview(ctx, s, rawText)
	if err != nil {
		return nil, err
	}
	o.metrics.RecordTurn(ctx, string(s.Phase))
	return res, nil
}

// Confirm accepts the candidate under review and commits it. On persistence
// failure the session stays in review so the user can retry without
// re-entering anything.
func (o *Orchestrator) Confirm(ctx context.Context, s *Session) (*TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Phase != PhaseReview || s.Candidate == nil {
		return nil, fmt.Errorf("session %s has no artifact awaiting confirmation", s.ID)
	}

	stage := s.Stage()
	s.Phase = PhasePersistence

	id, err := o.st.Commit(ctx, s.ID, s.Candidate)
	if err != nil {
		// Never advance past a failed commit.
		s.Phase = PhaseReview
		o.logger.Error("artifact commit failed",
			zap.String("session_id", s.ID),
			zap.String("stage", string(stage)),
			zap.Error(err))
		res := o.result(s, fmt.Sprintf("persisting the %s failed: %v; the artifact is unchanged, confirm again to retry", stage, err))
		res.AwaitingConfirmation = true
		return res, nil
	}

	if o.idx != nil {
		def, derr := o.registry.Get(stage)
		if derr == nil {
			rec := &store.StoredArtifact{ID: id, SessionID: s.ID, Artifact: s.Candidate, StoredAt: time.Now().UTC()}
			if ierr := o.idx.Add(ctx, rec, s.Candidate.Text(def.FieldNames())); ierr != nil {
				o.logger.Warn("artifact indexing failed", zap.String("artifact_id", id), zap.Error(ierr))
			}
		}
	}

	s.Accepted[stage] = s.Candidate
	s.StoredIDs[stage] = id
	s.UpdatedAt = time.Now().UTC()
	s.advance()

	o.logger.Info("artifact persisted",
		zap.String("session_id", s.ID),
		zap.String("stage", string(stage)),
		zap.String("artifact_id", id))

	res := o.result(s, fmt.Sprintf("%s persisted", stage))
	res.StoredID = id
	if !s.Done() {
		res.Message = fmt.Sprintf("%s persisted; moving on to the %s", stage, s.Stage())
	}
	o.metrics.RecordTurn(ctx, string(PhasePersistence))
	return res, nil
}

// Snapshot returns the session's current state without mutating it.
func (o *Orchestrator) Snapshot(s *Session) *TurnResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return o.result(s, "")
}

// route initializes the active stage's draft and enters the interview.
func (o *Orchestrator) route(s *Session) {
	stage := s.Stage()
	if s.Drafts[stage] == nil {
		s.Drafts[stage] = artifact.New(stage)
	}
	s.Phase = PhaseInterview
	o.logger.Debug("stage routed",
		zap.String("session_id", s.ID),
		zap.String("stage", string(stage)))
}

// interview merges the turn and, once the draft is complete, runs the
// convergence loop.
func (o *Orchestrator) interview(ctx context.Context, s *Session, rawText string) (*TurnResult, error) {
	stage := s.Stage()
	def, err := o.registry.Get(stage)
	if err != nil {
		return nil, err
	}

	merged, err := o.merger.Merge(ctx, o.extractor, s.Drafts[stage], rawText)
	if err != nil {
		// The turn failed before touching state; the draft is intact.
		res := o.result(s, fmt.Sprintf("could not process that input: %v; the %s state is unchanged", err, stage))
		return res, nil
	}
	s.Drafts[stage] = merged

	if !merged.IsComplete {
		res := o.result(s, fmt.Sprintf("the %s still has %d open question(s)", stage, len(merged.OpenQuestions)))
		return res, nil
	}

	run, err := o.ctrl.Run(ctx, &converge.Request{
		Def:           def,
		Prior:         merged,
		History:       s.stageHistory(),
		Governing:     o.governing(s),
		ReferenceDocs: o.referenceDocs(),
	})
	if err != nil {
		return nil, fmt.Errorf("convergence run for %s: %w", stage, err)
	}
	o.metrics.RecordConvergence(ctx, string(run.Outcome), len(run.Records))

	switch run.Outcome {
	case converge.OutcomeRejected:
		res := o.result(s, fmt.Sprintf("the %s contradicts an accepted artifact; resolve the conflicts below", stage))
		res.Violations = collectViolations(run.Verdicts)
		return res, nil

	case converge.OutcomeAccepted:
		o.registry.Refresh(run.Artifact)
		s.Candidate = run.Artifact
		s.NeedsReview = false
		s.Phase = PhaseReview
		res := o.result(s, fmt.Sprintf("the %s is ready; confirm to persist it or reply with corrections", stage))
		return res, nil

	default: // budget exhausted
		if run.Artifact == nil {
			res := o.result(s, fmt.Sprintf("no usable %s draft was produced; please add detail or rephrase", stage))
			res.Violations = collectViolations(run.Verdicts)
			return res, nil
		}
		o.registry.Refresh(run.Artifact)
		s.Candidate = run.Artifact
		s.NeedsReview = true
		s.Phase = PhaseReview
		res := o.result(s, fmt.Sprintf("best-effort %s after %d iteration(s); review the remaining findings before confirming", stage, len(run.Records)))
		res.Violations = collectViolations(run.Verdicts)
		return res, nil
	}
}

// governing renders the accepted artifacts of earlier stages.
func (o *Orchestrator) governing(s *Session) []string {
	var texts []string
	for _, stage := range s.Stages {
		a, ok := s.Accepted[stage]
		if !ok {
			continue
		}
		def, err := o.registry.Get(stage)
		if err != nil {
			continue
		}
		texts = append(texts, a.Text(def.FieldNames()))
	}
	return texts
}

func (o *Orchestrator) referenceDocs() []string {
	if o.refs == nil {
		return nil
	}
	return o.refs.Texts()
}

// result builds a TurnResult from the session's current state. Callers must
// hold the session mutex.
func (o *Orchestrator) result(s *Session, message string) *TurnResult {
	res := &TurnResult{
		SessionID:            s.ID,
		Phase:                s.Phase,
		Stage:                s.Stage(),
		AwaitingConfirmation: s.Phase == PhaseReview,
		NeedsReview:          s.NeedsReview,
		Message:              message,
	}
	if s.Phase == PhaseReview && s.Candidate != nil {
		res.ArtifactSnapshot = s.Candidate.Clone()
	} else if d := s.Drafts[s.Stage()]; d != nil {
		res.ArtifactSnapshot = d.Clone()
		res.OpenQuestions = append([]string{}, d.OpenQuestions...)
	}
	return res
}

// collectViolations flattens failing verdicts into user-facing findings.
func collectViolations(verdicts []*guardrail.Verdict) []string {
	var out []string
	for _, v := range verdicts {
		if v == nil || v.Passed {
			continue
		}
		for i, violation := range v.Violations {
			line := violation
			if i < len(v.SuggestedFixes) {
				line = fmt.Sprintf("%s (%s)", violation, v.SuggestedFixes[i])
			}
			out = append(out, line)
		}
	}
	return out
}
