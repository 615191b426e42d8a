package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/draftd/internal/artifact"
	"github.com/fyrsmithlabs/draftd/internal/converge"
	"github.com/fyrsmithlabs/draftd/internal/guardrail"
	"github.com/fyrsmithlabs/draftd/internal/merge"
	"github.com/fyrsmithlabs/draftd/internal/oracle"
	"github.com/fyrsmithlabs/draftd/internal/schema"
	"github.com/fyrsmithlabs/draftd/internal/store"
)

// lineExtractor proposes updates from "field=value" lines; "field=-"
// retracts. It stands in for the oracle extractor in tests.
type lineExtractor struct{}

func (lineExtractor) Propose(_ context.Context, _ *schema.Definition, _ *artifact.Artifact, rawText string) ([]merge.FieldUpdate, error) {
	var updates []merge.FieldUpdate
	for _, line := range strings.Split(rawText, "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if parts[1] == "-" {
			updates = append(updates, merge.FieldUpdate{Field: parts[0], Retract: true})
			continue
		}
		updates = append(updates, merge.FieldUpdate{Field: parts[0], Value: parts[1]})
	}
	return updates, nil
}

// echoGenerator drafts a candidate by echoing the merged prior state, which
// is what a well-behaved oracle does once the interview is complete.
func echoGenerator() oracle.Generator {
	return oracle.GeneratorFunc(func(_ context.Context, gc *oracle.Context) (string, error) {
		fields := make(map[string]string)
		for _, name := range gc.Def.FieldNames() {
			if v, ok := gc.Prior.Field(name); ok {
				fields[name] = v
			}
		}
		payload, err := json.Marshal(map[string]any{"fields": fields})
		if err != nil {
			return "", err
		}
		return string(payload), nil
	})
}

// failStore fails the first n commits, then delegates to a file store.
type failStore struct {
	store.Store
	failures int
}

func (f *failStore) Commit(ctx context.Context, sessionID string, a *artifact.Artifact) (string, error) {
	if f.failures > 0 {
		f.failures--
		return "", fmt.Errorf("disk full")
	}
	return f.Store.Commit(ctx, sessionID, a)
}

func newTestOrchestrator(t *testing.T, st store.Store, gen oracle.Generator) (*Orchestrator, *Manager) {
	t.Helper()
	registry := schema.Default()
	merger := merge.NewEngine(registry, nil)
	if gen == nil {
		gen = echoGenerator()
	}
	pre := []guardrail.Guardrail{guardrail.NewAlignmentChecker()}
	post := []guardrail.Guardrail{guardrail.NewAlignmentChecker(), guardrail.NewRequirementBinder()}
	ctrl := converge.NewController(gen, pre, post, converge.Config{MaxIterations: 3}, nil)
	if st == nil {
		var err error
		st, err = store.NewFileStore(t.TempDir(), nil)
		require.NoError(t, err)
	}
	o := NewOrchestrator(registry, merger, lineExtractor{}, ctrl, st, Options{}, nil)
	return o, NewManager(nil, nil)
}

// visionTurns fills every required vision field.
func visionTurns() []string {
	return []string{
		"product_name=FieldTrack\nproblem=surveyors lose samples collected offline",
		"target_users=agricultural surveyors\nvalue_proposition=collect and sync field data reliably",
		"platform=mobile-only\ndifferentiators=offline-first sync engine\nsuccess_metrics=95 percent of samples synced within 24 hours",
	}
}

func TestProcessTurn_InterviewSurfacesOpenQuestions(t *testing.T) {
	o, m := newTestOrchestrator(t, nil, nil)
	s := m.Create()

	res, err := o.ProcessTurn(context.Background(), s, "product_name=FieldTrack")
	require.NoError(t, err)

	assert.Equal(t, PhaseInterview, res.Phase)
	assert.Equal(t, artifact.TypeVision, res.Stage)
	assert.False(t, res.AwaitingConfirmation)
	assert.Len(t, res.OpenQuestions, 6)

	v, ok := res.ArtifactSnapshot.Field("product_name")
	require.True(t, ok)
	assert.Equal(t, "FieldTrack", v)
}

func TestProcessTurn_CompleteInterviewReachesReview(t *testing.T) {
	o, m := newTestOrchestrator(t, nil, nil)
	s := m.Create()

	var res *TurnResult
	var err error
	for _, turn := range visionTurns() {
		res, err = o.ProcessTurn(context.Background(), s, turn)
		require.NoError(t, err)
	}

	assert.Equal(t, PhaseReview, res.Phase)
	assert.True(t, res.AwaitingConfirmation)
	assert.False(t, res.NeedsReview)
	require.NotNil(t, res.ArtifactSnapshot)
	assert.True(t, res.ArtifactSnapshot.IsComplete)
	assert.Empty(t, res.OpenQuestions)
}

func TestConfirm_PersistsAndAdvances(t *testing.T) {
	o, m := newTestOrchestrator(t, nil, nil)
	s := m.Create()

	for _, turn := range visionTurns() {
		_, err := o.ProcessTurn(context.Background(), s, turn)
		require.NoError(t, err)
	}

	res, err := o.Confirm(context.Background(), s)
	require.NoError(t, err)

	assert.NotEmpty(t, res.StoredID)
	assert.Equal(t, PhaseRouting, res.Phase)
	assert.Equal(t, artifact.TypeRoadmap, res.Stage)
	assert.False(t, res.AwaitingConfirmation)
	assert.Contains(t, res.Message, "roadmap")
}

func TestConfirm_PersistenceFailureStaysInReview(t *testing.T) {
	base, err := store.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	fs := &failStore{Store: base, failures: 1}

	o, m := newTestOrchestrator(t, fs, nil)
	s := m.Create()

	for _, turn := range visionTurns() {
		_, err := o.ProcessTurn(context.Background(), s, turn)
		require.NoError(t, err)
	}

	res, err := o.Confirm(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, PhaseReview, res.Phase)
	assert.True(t, res.AwaitingConfirmation)
	assert.Empty(t, res.StoredID)
	assert.Contains(t, res.Message, "retry")

	// The retry succeeds with the same state; nothing was re-entered.
	res, err = o.Confirm(context.Background(), s)
	require.NoError(t, err)
	assert.NotEmpty(t, res.StoredID)
	assert.Equal(t, artifact.TypeRoadmap, res.Stage)
}

func TestProcessTurn_CorrectionDuringReview(t *testing.T) {
	o, m := newTestOrchestrator(t, nil, nil)
	s := m.Create()

	for _, turn := range visionTurns() {
		_, err := o.ProcessTurn(context.Background(), s, turn)
		require.NoError(t, err)
	}
	require.Equal(t, PhaseReview, s.Phase)

	res, err := o.ProcessTurn(context.Background(), s, "product_name=FieldTrack Pro")
	require.NoError(t, err)

	// The correction re-converges and comes back for review with every
	// other field retained.
	assert.Equal(t, PhaseReview, res.Phase)
	name, _ := res.ArtifactSnapshot.Field("product_name")
	assert.Equal(t, "FieldTrack Pro", name)
	platform, ok := res.ArtifactSnapshot.Field("platform")
	require.True(t, ok)
	assert.Equal(t, "mobile-only", platform)
}

func TestProcessTurn_HistoryIsAppendOnly(t *testing.T) {
	o, m := newTestOrchestrator(t, nil, nil)
	s := m.Create()

	turns := []string{"product_name=FieldTrack", "problem=offline sample loss", "nonsense input with no fields"}
	for _, turn := range turns {
		_, err := o.ProcessTurn(context.Background(), s, turn)
		require.NoError(t, err)
	}

	require.Len(t, s.History, 3)
	for i, turn := range turns {
		assert.Equal(t, turn, s.History[i].Text)
	}
}

func TestProcessTurn_ContradictionRejectedBeforeGeneration(t *testing.T) {
	calls := 0
	counting := oracle.GeneratorFunc(func(ctx context.Context, gc *oracle.Context) (string, error) {
		calls++
		return echoGenerator().Generate(ctx, gc)
	})

	o, m := newTestOrchestrator(t, nil, counting)
	s := m.Create()

	for _, turn := range visionTurns() {
		_, err := o.ProcessTurn(context.Background(), s, turn)
		require.NoError(t, err)
	}
	_, err := o.Confirm(context.Background(), s)
	require.NoError(t, err)
	callsAfterVision := calls

	// The roadmap turn contradicts the accepted vision's platform.
	res, err := o.ProcessTurn(context.Background(), s,
		"horizon=two quarters\nmilestones=ship a web dashboard for enterprise admins\ndependencies=none")
	require.NoError(t, err)

	assert.Equal(t, PhaseInterview, res.Phase)
	assert.NotEmpty(t, res.Violations)
	assert.Equal(t, callsAfterVision, calls, "contradiction must spend no oracle budget")
}

func TestProcessTurn_AfterAllStagesPersisted(t *testing.T) {
	o, m := newTestOrchestrator(t, nil, nil)
	s := m.Create()

	for _, turn := range visionTurns() {
		_, err := o.ProcessTurn(context.Background(), s, turn)
		require.NoError(t, err)
	}
	_, err := o.Confirm(context.Background(), s)
	require.NoError(t, err)

	_, err = o.ProcessTurn(context.Background(), s,
		"horizon=two quarters\nmilestones=offline sync in Q1, reporting in Q2\ndependencies=mobile sync engine")
	require.NoError(t, err)
	_, err = o.Confirm(context.Background(), s)
	require.NoError(t, err)

	_, err = o.ProcessTurn(context.Background(), s,
		"title=Capture soil sample\npersona=surveyor\ngoal=record a sample offline\nbenefit=no data loss in the field\nacceptance_criteria=Given no connectivity, when a sample is saved, then it syncs within 24 hours of reconnecting")
	require.NoError(t, err)
	res, err := o.Confirm(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, PhaseDone, res.Phase)
	assert.True(t, s.Done())

	res, err = o.ProcessTurn(context.Background(), s, "anything else")
	require.NoError(t, err)
	assert.Contains(t, res.Message, "new session")
}
