// Package converge runs the bounded generate-validate loop that turns oracle
// payloads into accepted artifacts. The loop never trusts a payload: every
// candidate passes the deterministic guardrails, and the iteration budget
// guarantees termination whether the oracle converges or not.
package converge

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/draftd/internal/artifact"
	"github.com/fyrsmithlabs/draftd/internal/guardrail"
	"github.com/fyrsmithlabs/draftd/internal/oracle"
	"github.com/fyrsmithlabs/draftd/internal/schema"
)

// Decision is the controller's call on a single iteration.
type Decision string

const (
	DecisionAccept        Decision = "accept"
	DecisionRefine        Decision = "refine"
	DecisionBudgetExhaust Decision = "reject_budget_exhausted"
)

// Outcome is the final disposition of a convergence run.
type Outcome string

const (
	// OutcomeAccepted means a candidate passed every gate within budget.
	OutcomeAccepted Outcome = "accepted"

	// OutcomeRejected means the pre-generation check found a contradiction
	// and no oracle call was spent.
	OutcomeRejected Outcome = "rejected"

	// OutcomeBudgetExhausted means no candidate passed within the
	// iteration budget; the best candidate is returned flagged for review.
	OutcomeBudgetExhausted Outcome = "budget_exhausted"
)

// Record captures one iteration for audit and replay.
type Record struct {
	// Iteration is the 1-based attempt index.
	Iteration int `json:"iteration"`

	// Candidate is a snapshot of the parsed candidate, nil when the
	// payload did not parse.
	Candidate *artifact.Artifact `json:"candidate,omitempty"`

	// Verdicts holds every guardrail verdict for the iteration.
	Verdicts []*guardrail.Verdict `json:"verdicts"`

	// Decision is the controller's call.
	Decision Decision `json:"decision"`

	// Score is the candidate's quality score, 0 when unparsed.
	Score float64 `json:"score"`

	// Err describes an oracle or parse failure, empty otherwise.
	Err string `json:"error,omitempty"`
}

// Result is the outcome of a full convergence run.
type Result struct {
	Outcome  Outcome              `json:"outcome"`
	Artifact *artifact.Artifact   `json:"artifact,omitempty"`
	Score    float64              `json:"score"`
	Records  []Record             `json:"records"`
	Verdicts []*guardrail.Verdict `json:"verdicts"`

	// NeedsReview is set when the returned artifact did not pass every
	// gate and must not be persisted without explicit confirmation.
	NeedsReview bool `json:"needs_review"`
}

// Request carries everything one convergence run needs.
type Request struct {
	// Def is the schema of the target artifact.
	Def *schema.Definition

	// Prior is the accumulated state for the phase; never mutated.
	Prior *artifact.Artifact

	// History holds the raw user utterances for the phase, oldest first.
	History []string

	// Governing holds rendered texts of accepted upstream artifacts.
	Governing []string

	// ReferenceDocs holds plain-text documents whose hard requirements the
	// candidate must satisfy.
	ReferenceDocs []string
}

// Config bounds a convergence run.
type Config struct {
	// MaxIterations caps oracle calls per run. Values below 1 are lifted
	// to 1.
	MaxIterations int

	// QualityThreshold is the minimum accepted score. Zero or negative
	// uses DefaultThreshold.
	QualityThreshold float64
}

func (c Config) normalized() Config {
	if c.MaxIterations < 1 {
		c.MaxIterations = 1
	}
	if c.QualityThreshold <= 0 {
		c.QualityThreshold = DefaultThreshold
	}
	return c
}

// Controller drives the generate-validate loop.
type Controller struct {
	gen    oracle.Generator
	pre    []guardrail.Guardrail
	post   []guardrail.Guardrail
	cfg    Config
	logger *zap.Logger
}

// NewController builds a controller. Pre guardrails run against the raw input
// before any oracle call; post guardrails validate every candidate.
func NewController(gen oracle.Generator, pre, post []guardrail.Guardrail, cfg Config, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{gen: gen, pre: pre, post: post, cfg: cfg.normalized(), logger: logger}
}

// Run executes one bounded convergence run. It returns an error only on
// checker failure or context cancellation; oracle misbehavior is absorbed
// into failed iterations.
func (c *Controller) Run(ctx context.Context, req *Request) (*Result, error) {
	// Contradictions already present in the user's input cannot be fixed
	// by regeneration, so they reject before any budget is spent.
	if verdicts, failed, err := c.precheck(ctx, req); err != nil {
		return nil, err
	} else if failed {
		c.logger.Info("input rejected before generation",
			zap.String("artifact_type", string(req.Def.Type)))
		return &Result{
			Outcome:  OutcomeRejected,
			Records:  []Record{},
			Verdicts: verdicts,
		}, nil
	}

	var (
		records   []Record
		feedback  []*guardrail.Verdict
		best      *artifact.Artifact
		bestScore = -1.0
		bestVerds []*guardrail.Verdict
	)

	for i := 1; i <= c.cfg.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, verdicts, err := c.iterate(ctx, req, feedback, i)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)

		if rec.Decision == DecisionAccept {
			accepted := rec.Candidate.Clone()
			return &Result{
				Outcome:  OutcomeAccepted,
				Artifact: accepted,
				Score:    rec.Score,
				Records:  records,
				Verdicts: verdicts,
			}, nil
		}

		if rec.Candidate != nil && rec.Score > bestScore {
			best = rec.Candidate.Clone()
			bestScore = rec.Score
			bestVerds = verdicts
		}
		feedback = verdicts
	}

	if len(records) > 0 {
		records[len(records)-1].Decision = DecisionBudgetExhaust
	}
	c.logger.Warn("iteration budget exhausted",
		zap.String("artifact_type", string(req.Def.Type)),
		zap.Int("iterations", c.cfg.MaxIterations),
		zap.Float64("best_score", bestScore))

	if bestScore < 0 {
		bestScore = 0
	}
	return &Result{
		Outcome:     OutcomeBudgetExhausted,
		Artifact:    best,
		Score:       bestScore,
		Records:     records,
		Verdicts:    bestVerds,
		NeedsReview: true,
	}, nil
}

// precheck runs the pre guardrails against the raw input. It returns the
// failing verdicts and whether any check failed.
func (c *Controller) precheck(ctx context.Context, req *Request) ([]*guardrail.Verdict, bool, error) {
	if len(c.pre) == 0 {
		return nil, false, nil
	}

	var parts []string
	if req.Prior != nil {
		if t := req.Prior.Text(req.Def.FieldNames()); t != "" {
			parts = append(parts, t)
		}
	}
	parts = append(parts, req.History...)
	input := strings.Join(parts, "\n")
	if input == "" {
		return nil, false, nil
	}

	check := &guardrail.CheckRequest{
		Governing:     req.Governing,
		ReferenceDocs: req.ReferenceDocs,
		CandidateText: input,
	}

	var verdicts []*guardrail.Verdict
	failed := false
	for _, g := range c.pre {
		v, err := g.Check(ctx, check)
		if err != nil {
			return nil, false, fmt.Errorf("guardrail %s: %w", g.Name(), err)
		}
		verdicts = append(verdicts, v)
		if !v.Passed {
			failed = true
		}
	}
	return verdicts, failed, nil
}

// iterate performs one draft-validate pass.
func (c *Controller) iterate(ctx context.Context, req *Request, feedback []*guardrail.Verdict, attempt int) (*Record, []*guardrail.Verdict, error) {
	gc := &oracle.Context{
		Def:       req.Def,
		Prior:     req.Prior,
		History:   req.History,
		Governing: req.Governing,
		Feedback:  feedback,
		Attempt:   attempt,
	}

	payload, err := c.gen.Generate(ctx, gc)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		c.logger.Warn("oracle call failed",
			zap.Int("attempt", attempt), zap.Error(err))
		rec := &Record{Iteration: attempt, Verdicts: []*guardrail.Verdict{}, Decision: DecisionRefine, Err: err.Error()}
		return rec, feedback, nil
	}

	cand, err := oracle.ParseCandidate(req.Def, payload)
	if err != nil {
		c.logger.Warn("candidate rejected by parser",
			zap.Int("attempt", attempt), zap.Error(err))
		v := payloadVerdict(err)
		rec := &Record{Iteration: attempt, Verdicts: []*guardrail.Verdict{v}, Decision: DecisionRefine, Err: err.Error()}
		return rec, []*guardrail.Verdict{v}, nil
	}

	cand.IterationCount = attempt

	verdicts, passedAll, err := c.validate(ctx, req, cand)
	if err != nil {
		return nil, nil, err
	}

	score := Score(req.Def, cand)
	cand.QualityScore = score

	decision := DecisionRefine
	if passedAll && score >= c.cfg.QualityThreshold {
		decision = DecisionAccept
	} else if passedAll {
		// Guardrails passed but the draft is too thin; tell the oracle
		// what the score gate wants.
		verdicts = append(verdicts, qualityVerdict(req.Def, cand, score, c.cfg.QualityThreshold))
	}

	c.logger.Debug("iteration validated",
		zap.Int("attempt", attempt),
		zap.Float64("score", score),
		zap.Bool("guardrails_passed", passedAll),
		zap.String("decision", string(decision)))

	rec := &Record{
		Iteration: attempt,
		Candidate: cand.Clone(),
		Verdicts:  verdicts,
		Decision:  decision,
		Score:     score,
	}
	return rec, verdicts, nil
}

// validate runs every post guardrail against a parsed candidate.
func (c *Controller) validate(ctx context.Context, req *Request, cand *artifact.Artifact) ([]*guardrail.Verdict, bool, error) {
	conditions := ""
	if name, ok := req.Def.VerifiableField(); ok {
		conditions, _ = cand.Field(name)
	}

	check := &guardrail.CheckRequest{
		Governing:     req.Governing,
		ReferenceDocs: req.ReferenceDocs,
		CandidateText: cand.Text(req.Def.FieldNames()),
		Conditions:    conditions,
	}

	verdicts := make([]*guardrail.Verdict, 0, len(c.post))
	passedAll := true
	for _, g := range c.post {
		v, err := g.Check(ctx, check)
		if err != nil {
			return nil, false, fmt.Errorf("guardrail %s: %w", g.Name(), err)
		}
		verdicts = append(verdicts, v)
		if !v.Passed {
			passedAll = false
		}
	}
	return verdicts, passedAll, nil
}

// payloadVerdict turns a parse failure into refinement feedback.
func payloadVerdict(err error) *guardrail.Verdict {
	return &guardrail.Verdict{
		Name:           "payload",
		Passed:         false,
		Violations:     []string{err.Error()},
		SuggestedFixes: []string{"respond with a single JSON object {\"fields\": {...}} using only the schema's field names"},
	}
}

// qualityVerdict tells the oracle which gaps keep the score below threshold.
func qualityVerdict(def *schema.Definition, cand *artifact.Artifact, score, threshold float64) *guardrail.Verdict {
	var fixes []string
	for _, f := range def.Fields {
		if !f.Required {
			continue
		}
		if _, ok := cand.Field(f.Name); !ok {
			fixes = append(fixes, fmt.Sprintf("fill the %s field", f.Name))
		}
	}
	if name, ok := def.VerifiableField(); ok {
		fixes = append(fixes, fmt.Sprintf("make every entry in %s concretely verifiable (numbers, given/when/then, observable behavior)", name))
	}
	return &guardrail.Verdict{
		Name:           "quality",
		Passed:         false,
		Violations:     []string{fmt.Sprintf("quality score %.2f below threshold %.2f", score, threshold)},
		SuggestedFixes: fixes,
	}
}
