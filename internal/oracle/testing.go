package oracle

import (
	"context"
	"sync"
)

// Scripted is a Generator returning queued payloads in order. It records each
// Context it is called with so tests can assert on prompt construction inputs.
type Scripted struct {
	mu       sync.Mutex
	payloads []string
	err      error

	// Calls holds every generation context received, in order.
	Calls []*Context
}

// NewScripted queues the given payloads.
func NewScripted(payloads ...string) *Scripted {
	return &Scripted{payloads: payloads}
}

// Fail makes every subsequent call return err.
func (s *Scripted) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Generate returns the next queued payload. Once the queue is exhausted the
// last payload repeats, which keeps budget-exhaustion tests short.
func (s *Scripted) Generate(_ context.Context, gc *Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, gc)
	if s.err != nil {
		return "", s.err
	}
	if len(s.payloads) == 0 {
		return "", nil
	}
	out := s.payloads[0]
	if len(s.payloads) > 1 {
		s.payloads = s.payloads[1:]
	}
	return out, nil
}

// CallCount returns how many times Generate has been invoked.
func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

// GeneratorFunc adapts a function to the Generator contract.
type GeneratorFunc func(ctx context.Context, gc *Context) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, gc *Context) (string, error) {
	return f(ctx, gc)
}

// RunnerFunc adapts a function to the PromptRunner contract.
type RunnerFunc func(ctx context.Context, prompt string) (string, error)

// Extract calls f.
func (f RunnerFunc) Extract(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
