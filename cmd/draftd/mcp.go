package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/draftd/internal/config"
	"github.com/fyrsmithlabs/draftd/internal/logging"
	"github.com/fyrsmithlabs/draftd/internal/mcp"
	"github.com/fyrsmithlabs/draftd/internal/telemetry"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the refinement engine as MCP tools over stdio",
	Long: `Runs draftd as an MCP server on stdin/stdout so agent hosts can call
process_turn, confirm_artifact, and session_status as tools. Logs go to
stderr; stdout carries only the protocol stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

func runMCP() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	eng, err := buildEngine(cfg, tel, logger)
	if err != nil {
		return err
	}
	if eng.refWatcher != nil {
		go func() { _ = eng.refWatcher.Run(ctx) }()
	}

	srv := mcp.NewServer(eng.orchestrator, eng.sessions, version, logger.Named("mcp"))
	logger.Info("draftd mcp server starting", zap.String("version", version))
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
