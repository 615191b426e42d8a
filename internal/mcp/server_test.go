package mcp

import (
	"context"
	"encoding/json"
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
	"github.com/fyrsmithlabs/draftd/internal/session"
	"github.com/fyrsmithlabs/draftd/internal/store"
)

type kvExtractor struct{}

func (kvExtractor) Propose(_ context.Context, _ *schema.Definition, _ *artifact.Artifact, rawText string) ([]merge.FieldUpdate, error) {
	var updates []merge.FieldUpdate
	for _, line := range strings.Split(rawText, "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), "=", 2)
		if len(parts) == 2 {
			updates = append(updates, merge.FieldUpdate{Field: parts[0], Value: parts[1]})
		}
	}
	return updates, nil
}

func newTestMCPServer(t *testing.T) *Server {
	t.Helper()

	registry := schema.Default()
	merger := merge.NewEngine(registry, nil)
	gen := oracle.GeneratorFunc(func(_ context.Context, gc *oracle.Context) (string, error) {
		fields := make(map[string]string)
		for _, name := range gc.Def.FieldNames() {
			if v, ok := gc.Prior.Field(name); ok {
				fields[name] = v
			}
		}
		payload, err := json.Marshal(map[string]any{"fields": fields})
		return string(payload), err
	})
	guards := []guardrail.Guardrail{guardrail.NewAlignmentChecker(), guardrail.NewRequirementBinder()}
	ctrl := converge.NewController(gen,
		[]guardrail.Guardrail{guardrail.NewAlignmentChecker()}, guards,
		converge.Config{MaxIterations: 3}, nil)

	st, err := store.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	orch := session.NewOrchestrator(registry, merger, kvExtractor{}, ctrl, st, session.Options{}, nil)
	return NewServer(orch, session.NewManager(nil, nil), "test", nil)
}

func TestProcessTurn_CreatesSession(t *testing.T) {
	srv := newTestMCPServer(t)

	_, out, err := srv.handleProcessTurn(context.Background(), nil,
		processTurnInput{RawText: "product_name=FieldTrack"})
	require.NoError(t, err)

	assert.NotEmpty(t, out.SessionID)
	assert.Equal(t, "interview", out.Phase)
	assert.Equal(t, "vision", out.Stage)
	assert.Len(t, out.OpenQuestions, 6)
}

func TestProcessTurn_RequiresRawText(t *testing.T) {
	srv := newTestMCPServer(t)
	_, _, err := srv.handleProcessTurn(context.Background(), nil, processTurnInput{})
	assert.Error(t, err)
}

func TestProcessTurn_ReusesSession(t *testing.T) {
	srv := newTestMCPServer(t)

	_, first, err := srv.handleProcessTurn(context.Background(), nil,
		processTurnInput{RawText: "product_name=FieldTrack"})
	require.NoError(t, err)

	_, second, err := srv.handleProcessTurn(context.Background(), nil,
		processTurnInput{SessionID: first.SessionID, RawText: "problem=offline sample loss"})
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Len(t, second.OpenQuestions, 5)
}

func TestConfirmArtifact_WithoutReview(t *testing.T) {
	srv := newTestMCPServer(t)

	_, out, err := srv.handleProcessTurn(context.Background(), nil,
		processTurnInput{RawText: "product_name=FieldTrack"})
	require.NoError(t, err)

	_, _, err = srv.handleConfirmArtifact(context.Background(), nil,
		confirmArtifactInput{SessionID: out.SessionID})
	assert.Error(t, err)
}

func TestSessionStatus(t *testing.T) {
	srv := newTestMCPServer(t)

	_, out, err := srv.handleProcessTurn(context.Background(), nil,
		processTurnInput{RawText: "product_name=FieldTrack"})
	require.NoError(t, err)

	_, status, err := srv.handleSessionStatus(context.Background(), nil,
		sessionStatusInput{SessionID: out.SessionID})
	require.NoError(t, err)
	assert.Equal(t, "interview", status.Phase)

	_, _, err = srv.handleSessionStatus(context.Background(), nil,
		sessionStatusInput{SessionID: "unknown"})
	assert.Error(t, err)
}
