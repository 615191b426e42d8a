// Package mcp exposes the refinement engine as MCP tools over stdio, so
// agent hosts can drive sessions without the HTTP surface.
package mcp

import (
	"context"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/draftd/internal/artifact"
	"github.com/fyrsmithlabs/draftd/internal/session"
)

// Server wraps the MCP SDK server around the session orchestrator.
type Server struct {
	MCPServer *sdkmcp.Server
	orch      *session.Orchestrator
	sessions  *session.Manager
	logger    *zap.Logger
}

// NewServer creates an MCP server with the engine tools registered. Run it
// with s.Run(ctx).
func NewServer(orch *session.Orchestrator, sessions *session.Manager, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		MCPServer: sdkmcp.NewServer(
			&sdkmcp.Implementation{Name: "draftd", Version: version},
			nil,
		),
		orch:     orch,
		sessions: sessions,
		logger:   logger,
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "process_turn",
		Description: "Send one user utterance to a refinement session. Omit session_id to start a new session. Returns the phase, artifact snapshot, and open questions.",
	}, s.handleProcessTurn)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "confirm_artifact",
		Description: "Confirm the artifact currently awaiting review, persisting it and advancing to the next stage.",
	}, s.handleConfirmArtifact)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "session_status",
		Description: "Get the current phase, stage, and artifact snapshot of a session without sending input.",
	}, s.handleSessionStatus)
}

// --- Tool input/output types ---

type processTurnInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"session ID; omit to start a new session"`
	RawText   string `json:"raw_text" jsonschema:"the user's utterance"`
}

type confirmArtifactInput struct {
	SessionID string `json:"session_id" jsonschema:"session ID from process_turn"`
}

type sessionStatusInput struct {
	SessionID string `json:"session_id" jsonschema:"session ID from process_turn"`
}

type turnOutput struct {
	SessionID            string             `json:"session_id"`
	Phase                string             `json:"phase"`
	Stage                string             `json:"stage,omitempty"`
	ArtifactSnapshot     *artifact.Artifact `json:"artifact_snapshot,omitempty"`
	OpenQuestions        []string           `json:"open_questions,omitempty"`
	AwaitingConfirmation bool               `json:"awaiting_confirmation"`
	Violations           []string           `json:"violations,omitempty"`
	NeedsReview          bool               `json:"needs_review"`
	StoredID             string             `json:"stored_id,omitempty"`
	Message              string             `json:"message,omitempty"`
}

func toOutput(res *session.TurnResult) turnOutput {
	return turnOutput{
		SessionID:            res.SessionID,
		Phase:                string(res.Phase),
		Stage:                string(res.Stage),
		ArtifactSnapshot:     res.ArtifactSnapshot,
		OpenQuestions:        res.OpenQuestions,
		AwaitingConfirmation: res.AwaitingConfirmation,
		Violations:           res.Violations,
		NeedsReview:          res.NeedsReview,
		StoredID:             res.StoredID,
		Message:              res.Message,
	}
}

func (s *Server) handleProcessTurn(ctx context.Context, _ *sdkmcp.CallToolRequest, input processTurnInput) (*sdkmcp.CallToolResult, turnOutput, error) {
	if input.RawText == "" {
		return nil, turnOutput{}, fmt.Errorf("raw_text is required")
	}

	sess := s.sessions.GetOrCreate(input.SessionID)
	res, err := s.orch.ProcessTurn(ctx, sess, input.RawText)
	if err != nil {
		return nil, turnOutput{}, err
	}
	return nil, toOutput(res), nil
}

func (s *Server) handleConfirmArtifact(ctx context.Context, _ *sdkmcp.CallToolRequest, input confirmArtifactInput) (*sdkmcp.CallToolResult, turnOutput, error) {
	sess, err := s.sessions.Get(input.SessionID)
	if err != nil {
		return nil, turnOutput{}, err
	}
	res, err := s.orch.Confirm(ctx, sess)
	if err != nil {
		return nil, turnOutput{}, err
	}
	return nil, toOutput(res), nil
}

func (s *Server) handleSessionStatus(_ context.Context, _ *sdkmcp.CallToolRequest, input sessionStatusInput) (*sdkmcp.CallToolResult, turnOutput, error) {
	sess, err := s.sessions.Get(input.SessionID)
	if err != nil {
		return nil, turnOutput{}, err
	}
	return nil, toOutput(s.orch.Snapshot(sess)), nil
}
