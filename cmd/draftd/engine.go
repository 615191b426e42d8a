package main

import (
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/draftd/internal/config"
	"github.com/fyrsmithlabs/draftd/internal/converge"
	"github.com/fyrsmithlabs/draftd/internal/guardrail"
	"github.com/fyrsmithlabs/draftd/internal/merge"
	"github.com/fyrsmithlabs/draftd/internal/oracle"
	"github.com/fyrsmithlabs/draftd/internal/reference"
	"github.com/fyrsmithlabs/draftd/internal/schema"
	"github.com/fyrsmithlabs/draftd/internal/session"
	"github.com/fyrsmithlabs/draftd/internal/store"
	"github.com/fyrsmithlabs/draftd/internal/telemetry"
)

// engine bundles the wired refinement components shared by the HTTP and MCP
// surfaces.
type engine struct {
	orchestrator *session.Orchestrator
	sessions     *session.Manager
	index        *store.Index
	refWatcher   *reference.Watcher
}

// buildEngine wires the full pipeline from configuration: schema registry,
// merge engine, oracle client, guardrails, convergence controller, store,
// and session orchestrator.
func buildEngine(cfg *config.Config, tel *telemetry.Telemetry, logger *zap.Logger) (*engine, error) {
	registry := schema.Default()
	if cfg.Engine.SchemaPath != "" {
		data, err := os.ReadFile(cfg.Engine.SchemaPath)
		if err != nil {
			return nil, fmt.Errorf("reading schema file: %w", err)
		}
		if err := registry.LoadYAML(data); err != nil {
			return nil, fmt.Errorf("loading schema file %s: %w", cfg.Engine.SchemaPath, err)
		}
	}
	merger := merge.NewEngine(registry, logger.Named("merge"))

	model, err := newModel(cfg.Oracle)
	if err != nil {
		return nil, fmt.Errorf("creating oracle client: %w", err)
	}
	llm := oracle.NewLLM(model, oracle.LLMConfig{
		Temperature:       cfg.Oracle.Temperature,
		MaxTokens:         cfg.Oracle.MaxTokens,
		RequestsPerMinute: cfg.Oracle.RequestsPerMinute,
		Timeout:           cfg.Oracle.Timeout,
	}, logger.Named("oracle"))
	extractor := oracle.NewExtractor(llm, logger.Named("extractor"))

	// The alignment checker runs as both pre-check and drift catch; the
	// requirement binder only ever refines, never pre-rejects.
	pre := []guardrail.Guardrail{guardrail.NewAlignmentChecker()}
	post := []guardrail.Guardrail{guardrail.NewAlignmentChecker(), guardrail.NewRequirementBinder()}
	ctrl := converge.NewController(llm, pre, post, converge.Config{
		MaxIterations:    cfg.Engine.MaxIterations,
		QualityThreshold: cfg.Engine.QualityThreshold,
	}, logger.Named("converge"))

	st, err := store.NewFileStore(cfg.Store.BasePath, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("creating artifact store: %w", err)
	}

	var idx *store.Index
	if cfg.Store.IndexPath != "" {
		idx, err = store.NewIndex(cfg.Store.IndexPath, nil, logger.Named("index"))
		if err != nil {
			return nil, fmt.Errorf("opening artifact index: %w", err)
		}
	}

	var refs *reference.Library
	var watcher *reference.Watcher
	if cfg.Reference.Dir != "" {
		refs, err = reference.NewLibrary(cfg.Reference.Dir, logger.Named("reference"))
		if err != nil {
			return nil, fmt.Errorf("loading reference documents: %w", err)
		}
		if cfg.Reference.Watch {
			watcher, err = reference.NewWatcher(refs, logger.Named("reference"))
			if err != nil {
				return nil, fmt.Errorf("watching reference documents: %w", err)
			}
		}
	}

	metrics, err := telemetry.NewEngineMetrics(tel.Meter("draftd/engine"))
	if err != nil {
		return nil, fmt.Errorf("registering engine metrics: %w", err)
	}

	opts := session.Options{Index: idx, Metrics: metrics}
	if refs != nil {
		opts.References = refs
	}
	orch := session.NewOrchestrator(registry, merger, extractor, ctrl, st, opts, logger.Named("session"))

	return &engine{
		orchestrator: orch,
		sessions:     session.NewManager(nil, logger.Named("session")),
		index:        idx,
		refWatcher:   watcher,
	}, nil
}

// newModel creates the langchaingo client for the configured provider.
func newModel(cfg config.OracleConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "openai":
		return openai.New(openai.WithModel(cfg.Model))
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.ServerURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.ServerURL))
		}
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}
}
