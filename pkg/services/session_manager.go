package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agrovision-ai/agrovision-engine/pkg/apperrors"
	"github.com/agrovision-ai/agrovision-engine/pkg/llm"
	"github.com/agrovision-ai/agrovision-engine/pkg/metrics"
	"github.com/agrovision-ai/agrovision-engine/pkg/models"
)

// DefaultSessionTTL is how long an idle chat session is kept.
const DefaultSessionTTL = 30 * time.Minute

// SessionManager owns the in-memory chat sessions. Sessions idle for longer than
// the TTL are removed by Sweep.
type SessionManager struct {
	provider llm.Provider
	cfg      ChatConfig
	ttl      time.Duration
	metrics  *metrics.Recorder
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*ChatSession
}

// NewSessionManager creates an empty manager. A non-positive ttl uses DefaultSessionTTL.
func NewSessionManager(provider llm.Provider, cfg ChatConfig, ttl time.Duration, recorder *metrics.Recorder, logger *zap.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		provider: provider,
		cfg:      cfg,
		ttl:      ttl,
		metrics:  recorder,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*ChatSession),
	}
}

// Create starts a new session with the given context.
func (m *SessionManager) Create(sc models.SessionContext) *ChatSession {
	s := NewChatSession(uuid.NewString(), m.provider, m.cfg, m.metrics, m.logger)
	s.now = m.now
	s.UpdateContext(sc)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveSessions(n)
	return s
}

// Get returns the session with id, or an error wrapping apperrors.ErrNotFound.
func (m *SessionManager) Get(id string) (*ChatSession, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("chat session %s: %w", id, apperrors.ErrNotFound)
	}
	return s, nil
}

// Delete closes and removes a session.
func (m *SessionManager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("chat session %s: %w", id, apperrors.ErrNotFound)
	}
	s.Close()
	m.metrics.SetActiveSessions(n)
	return nil
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes idle sessions and returns how many were removed. Sessions with a
// turn in flight are kept.
func (m *SessionManager) Sweep() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	var expired []*ChatSession
	for id, s := range m.sessions {
		if s.InFlight() || s.LastActive().After(cutoff) {
			continue
		}
		expired = append(expired, s)
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		m.logger.Info("Expired idle chat sessions",
			zap.Int("expired", len(expired)),
			zap.Int("remaining", n))
	}
	m.metrics.SetActiveSessions(n)
	return len(expired)
}

// Run sweeps periodically until ctx is done.
func (m *SessionManager) Run(ctx context.Context) {
	interval := m.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
