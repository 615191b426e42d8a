package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/draftd/internal/artifact"
	"github.com/fyrsmithlabs/draftd/internal/converge"
	"github.com/fyrsmithlabs/draftd/internal/guardrail"
	"github.com/fyrsmithlabs/draftd/internal/merge"
	"github.com/fyrsmithlabs/draftd/internal/oracle"
	"github.com/fyrsmithlabs/draftd/internal/schema"
	"github.com/fyrsmithlabs/draftd/internal/session"
	"github.com/fyrsmithlabs/draftd/internal/store"
)

// kvExtractor proposes updates from "field=value" lines.
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

func newTestServer(t *testing.T) (*Server, *session.Manager) {
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
	sessions := session.NewManager(nil, nil)

	srv, err := NewServer(orch, sessions, nil, zap.NewNop(), nil)
	require.NoError(t, err)
	return srv, sessions
}

func do(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echoHeaderContentType, "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestServer_CreateSessionAndTurn(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(srv, http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var created SessionCreatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.SessionID)

	rec = do(srv, http.MethodPost, "/api/v1/sessions/"+created.SessionID+"/turns",
		`{"raw_text": "product_name=FieldTrack"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res session.TurnResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, session.PhaseInterview, res.Phase)
	assert.Len(t, res.OpenQuestions, 6)
}

func TestServer_TurnValidation(t *testing.T) {
	srv, sessions := newTestServer(t)
	s := sessions.Create()

	rec := do(srv, http.MethodPost, "/api/v1/sessions/"+s.ID+"/turns", `{"raw_text": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodPost, "/api/v1/sessions/unknown/turns", `{"raw_text": "hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ConfirmWithoutReview(t *testing.T) {
	srv, sessions := newTestServer(t)
	s := sessions.Create()

	rec := do(srv, http.MethodPost, "/api/v1/sessions/"+s.ID+"/confirm", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_SnapshotAndEnd(t *testing.T) {
	srv, sessions := newTestServer(t)
	s := sessions.Create()

	rec := do(srv, http.MethodGet, "/api/v1/sessions/"+s.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(srv, http.MethodDelete, "/api/v1/sessions/"+s.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(srv, http.MethodGet, "/api/v1/sessions/"+s.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_SearchDisabled(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(srv, http.MethodGet, "/api/v1/artifacts/search?q=export", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_SearchValidation(t *testing.T) {
	idx, err := store.NewIndex(t.TempDir(), nil, nil)
	require.NoError(t, err)

	base, _ := newTestServer(t)
	srv := base
	srv.index = idx

	rec := do(srv, http.MethodGet, "/api/v1/artifacts/search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodGet, "/api/v1/artifacts/search?q=export&limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodGet, "/api/v1/artifacts/search?q=export", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
