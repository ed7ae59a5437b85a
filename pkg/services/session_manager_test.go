package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agrovision-ai/agrovision-engine/pkg/apperrors"
	"github.com/agrovision-ai/agrovision-engine/pkg/llm"
	"github.com/agrovision-ai/agrovision-engine/pkg/metrics"
	"github.com/agrovision-ai/agrovision-engine/pkg/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(provider llm.Provider, ttl time.Duration) (*SessionManager, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	m := NewSessionManager(provider, ChatConfig{}, ttl, metrics.New(), zap.NewNop())
	m.now = clock.Now
	return m, clock
}

func TestSessionManager_CreateGetDelete(t *testing.T) {
	m, _ := newTestManager(&llm.MockProvider{}, time.Minute)

	s := m.Create(dashboard(models.LanguageHindi))
	require.NotEmpty(t, s.ID())
	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, 1, m.Len())

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	other := m.Create(dashboard(models.LanguageEnglish))
	assert.NotEqual(t, s.ID(), other.ID())

	require.NoError(t, m.Delete(s.ID()))
	_, err = m.Get(s.ID())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, m.Delete(s.ID()), apperrors.ErrNotFound)
	assert.Equal(t, 1, m.Len())
}

func TestSessionManager_DefaultTTL(t *testing.T) {
	m := NewSessionManager(&llm.MockProvider{}, ChatConfig{}, 0, nil, zap.NewNop())
	assert.Equal(t, DefaultSessionTTL, m.ttl)
}

func TestSessionManager_SweepRemovesIdleSessions(t *testing.T) {
	m, clock := newTestManager(&llm.MockProvider{}, 10*time.Minute)

	idle := m.Create(dashboard(models.LanguageEnglish))
	clock.Advance(6 * time.Minute)
	active := m.Create(dashboard(models.LanguageEnglish))
	clock.Advance(6 * time.Minute)

	assert.Equal(t, 1, m.Sweep())
	_, err := m.Get(idle.ID())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = m.Get(active.ID())
	assert.NoError(t, err)
}

func TestSessionManager_SweepKeepsInFlightSessions(t *testing.T) {
	mock, started, release := blockingProvider()
	m, clock := newTestManager(mock, time.Minute)

	s := m.Create(dashboard(models.LanguageEnglish))
	done := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "hello", nil)
		done <- err
	}()
	<-started

	clock.Advance(time.Hour)
	assert.Zero(t, m.Sweep())
	assert.Equal(t, 1, m.Len())

	close(release)
	require.NoError(t, <-done)

	clock.Advance(time.Hour)
	assert.Equal(t, 1, m.Sweep())
	assert.Zero(t, m.Len())
}

func TestSessionManager_RunStopsWithContext(t *testing.T) {
	m, _ := newTestManager(&llm.MockProvider{}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
