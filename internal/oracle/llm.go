package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// LLMConfig configures the langchaingo-backed generator.
type LLMConfig struct {
	// Temperature for generation calls.
	Temperature float64

	// MaxTokens caps the response length. Zero uses the provider default.
	MaxTokens int

	// RequestsPerMinute rate-limits calls to the provider. Zero disables
	// limiting.
	RequestsPerMinute int

	// Timeout bounds a single generation call. A timeout surfaces as an
	// error the convergence controller treats as a failed iteration.
	Timeout time.Duration
}

// LLM adapts any langchaingo model to the Generator contract.
type LLM struct {
	model   llms.Model
	limiter *rate.Limiter
	cfg     LLMConfig
	logger  *zap.Logger
}

// NewLLM wraps a langchaingo model.
func NewLLM(model llms.Model, cfg LLMConfig, logger *zap.Logger) *LLM {
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}
	return &LLM{model: model, limiter: limiter, cfg: cfg, logger: logger}
}

// Generate renders the prompt for the context and calls the model once.
func (l *LLM) Generate(ctx context.Context, gc *Context) (string, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for rate limit: %w", err)
		}
	}

	if l.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
		defer cancel()
	}

	prompt := BuildGenerationPrompt(gc)
	start := time.Now()

	opts := []llms.CallOption{llms.WithTemperature(l.cfg.Temperature)}
	if l.cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(l.cfg.MaxTokens))
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, l.model, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("generation call: %w", err)
	}

	l.logger.Debug("oracle call complete",
		zap.String("artifact_type", string(gc.Def.Type)),
		zap.Int("attempt", gc.Attempt),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("response_chars", len(out)),
		zap.Duration("duration", time.Since(start)))

	return out, nil
}

// Extract runs an extraction prompt at temperature zero. The Extractor type
// uses it to implement the merge engine's proposal contract on the same
// provider connection as drafting.
func (l *LLM) Extract(ctx context.Context, prompt string) (string, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for rate limit: %w", err)
		}
	}
	if l.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
		defer cancel()
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, l.model, prompt,
		llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("extraction call: %w", err)
	}
	return out, nil
}
