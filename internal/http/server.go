// Package http provides the HTTP API for draftd.
package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/draftd/internal/session"
	"github.com/fyrsmithlabs/draftd/internal/store"
)

// Server exposes the refinement engine over HTTP.
type Server struct {
	echo     *echo.Echo
	orch     *session.Orchestrator
	sessions *session.Manager
	index    *store.Index
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates the HTTP server. The index may be nil; search then
// returns 404.
func NewServer(orch *session.Orchestrator, sessions *session.Manager, index *store.Index, logger *zap.Logger, cfg *Config) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session manager cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8520}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		orch:     orch,
		sessions: sessions,
		index:    index,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/sessions", s.handleCreateSession)
	v1.GET("/sessions/:id", s.handleSnapshot)
	v1.POST("/sessions/:id/turns", s.handleTurn)
	v1.POST("/sessions/:id/confirm", s.handleConfirm)
	v1.DELETE("/sessions/:id", s.handleEnd)
	v1.GET("/artifacts/search", s.handleSearch)
}

// Echo exposes the underlying router so the daemon can mount extra handlers
// (prometheus metrics).
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// TurnRequest is the body for POST /api/v1/sessions/:id/turns.
type TurnRequest struct {
	RawText string `json:"raw_text"`
}

// HealthResponse is the body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// SessionCreatedResponse is the body for POST /api/v1/sessions.
type SessionCreatedResponse struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleCreateSession(c echo.Context) error {
	sess := s.sessions.Create()
	return c.JSON(http.StatusCreated, SessionCreatedResponse{SessionID: sess.ID})
}

func (s *Server) handleSnapshot(c echo.Context) error {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, s.orch.Snapshot(sess))
}

func (s *Server) handleTurn(c echo.Context) error {
	var req TurnRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid turn request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.RawText == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "raw_text field is required")
	}

	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	res, err := s.orch.ProcessTurn(c.Request().Context(), sess, req.RawText)
	if err != nil {
		s.logger.Error("turn processing failed",
			zap.String("session_id", sess.ID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleConfirm(c echo.Context) error {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	res, err := s.orch.Confirm(c.Request().Context(), sess)
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleEnd(c echo.Context) error {
	s.sessions.End(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSearch(c echo.Context) error {
	if s.index == nil {
		return echo.NewHTTPError(http.StatusNotFound, "artifact search is not enabled")
	}

	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q parameter is required")
	}
	limit := 5
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	matches, err := s.index.Search(c.Request().Context(), query, limit, c.QueryParam("session_id"))
	if err != nil {
		s.logger.Error("artifact search failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, matches)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
