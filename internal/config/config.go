// Package config provides configuration loading for draftd.
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/draftd/internal/telemetry"
)

// Config is the full daemon configuration.
type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Logging   LoggingConfig    `koanf:"logging"`
	Engine    EngineConfig     `koanf:"engine"`
	Oracle    OracleConfig     `koanf:"oracle"`
	Store     StoreConfig      `koanf:"store"`
	Reference ReferenceConfig  `koanf:"reference"`
	Telemetry telemetry.Config `koanf:"telemetry"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`
}

// EngineConfig bounds the convergence loop.
type EngineConfig struct {
	// MaxIterations caps oracle calls per convergence run.
	MaxIterations int `koanf:"max_iterations"`

	// QualityThreshold is the minimum accepted candidate score.
	QualityThreshold float64 `koanf:"quality_threshold"`

	// SchemaPath points at a YAML file of additional artifact schemas.
	// Empty uses the built-ins only.
	SchemaPath string `koanf:"schema_path"`
}

// OracleConfig configures the generation provider.
type OracleConfig struct {
	// Provider selects the langchaingo backend: openai or ollama.
	Provider string `koanf:"provider"`

	// Model is the provider model name.
	Model string `koanf:"model"`

	// ServerURL overrides the provider endpoint (ollama).
	ServerURL string `koanf:"server_url"`

	Temperature       float64       `koanf:"temperature"`
	MaxTokens         int           `koanf:"max_tokens"`
	RequestsPerMinute int           `koanf:"requests_per_minute"`
	Timeout           time.Duration `koanf:"timeout"`
}

// StoreConfig configures artifact persistence.
type StoreConfig struct {
	// BasePath is the artifact file store root.
	BasePath string `koanf:"base_path"`

	// IndexPath is the similarity index directory. Empty disables the
	// index.
	IndexPath string `koanf:"index_path"`
}

// ReferenceConfig configures the reference document library.
type ReferenceConfig struct {
	// Dir holds the .txt/.md reference documents. Empty disables them.
	Dir string `koanf:"dir"`

	// Watch reloads the library on filesystem changes.
	Watch bool `koanf:"watch"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8520,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Engine: EngineConfig{
			MaxIterations:    3,
			QualityThreshold: 0.80,
		},
		Oracle: OracleConfig{
			Provider:          "ollama",
			Model:             "llama3",
			Temperature:       0.7,
			MaxTokens:         2048,
			RequestsPerMinute: 30,
			Timeout:           60 * time.Second,
		},
		Store: StoreConfig{
			BasePath:  "artifacts",
			IndexPath: "artifacts/index",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Validate checks the configuration for operator mistakes.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q", c.Logging.Format)
	}
	if c.Engine.MaxIterations < 1 {
		return fmt.Errorf("engine max_iterations must be at least 1, got %d", c.Engine.MaxIterations)
	}
	if c.Engine.QualityThreshold <= 0 || c.Engine.QualityThreshold > 1 {
		return fmt.Errorf("engine quality_threshold must be in (0, 1], got %v", c.Engine.QualityThreshold)
	}
	switch c.Oracle.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unknown oracle provider %q", c.Oracle.Provider)
	}
	if c.Store.BasePath == "" {
		return fmt.Errorf("store base_path must not be empty")
	}
	return nil
}
