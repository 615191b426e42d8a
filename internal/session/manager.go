package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/draftd/internal/artifact"
)

// Manager owns the live sessions. Distinct sessions are fully independent;
// the manager only guards the map itself.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	stages   []artifact.Type
	logger   *zap.Logger
}

// NewManager creates a manager producing sessions with the given stage
// progression. Nil stages use DefaultStages.
func NewManager(stages []artifact.Type, logger *zap.Logger) *Manager {
	if len(stages) == 0 {
		stages = DefaultStages()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		stages:   stages,
		logger:   logger,
	}
}

// Create starts a new session and returns it.
func (m *Manager) Create() *Session {
	s := newSession(uuid.New().String(), m.stages)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("session created", zap.String("session_id", s.ID))
	return s
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("unknown session %q", id)
	}
	return s, nil
}

// GetOrCreate returns the named session, creating it when id is empty or
// unknown. First user turn creates the session.
func (m *Manager) GetOrCreate(id string) *Session {
	if id != "" {
		if s, err := m.Get(id); err == nil {
			return s
		}
	}
	return m.Create()
}

// End abandons a session. Unpersisted state is simply dropped; nothing was
// durable, so no compensation is needed.
func (m *Manager) End(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		m.logger.Info("session ended", zap.String("session_id", id))
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
