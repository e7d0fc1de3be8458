package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tabletalk/tabletalk/internal/observability"
	"github.com/tabletalk/tabletalk/internal/query"
)

type ManagerConfig struct {
	Factory       query.Factory
	TTL           time.Duration
	SweepInterval time.Duration
	Logger        *slog.Logger
	Clock         func() time.Time
}

// Manager tracks live sessions and evicts idle ones. Access through the
// manager extends a session's idle deadline.
type Manager struct {
	factory       query.Factory
	ttl           time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger
	clock         func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(cfg ManagerConfig) *Manager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = time.Minute
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		factory:       cfg.Factory,
		ttl:           ttl,
		sweepInterval: sweep,
		logger:        logger,
		clock:         clock,
		sessions:      map[string]*Session{},
	}
}

func (m *Manager) Create() (*Session, error) {
	if m.factory == nil {
		return nil, fmt.Errorf("engine factory is not configured")
	}
	engine, err := m.factory()
	if err != nil {
		return nil, fmt.Errorf("open session engine: %w", err)
	}

	now := m.clock()
	session := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		expiresAt: now.Add(m.ttl),
		engine:    engine,
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	count := len(m.sessions)
	m.mu.Unlock()

	observability.SetActiveSessions(count)
	return session, nil
}

// Get returns a live session and extends its idle deadline. Expired
// sessions are closed on access and reported as not found.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	session, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	now := m.clock()
	if session.expired(now) {
		_ = m.Delete(id)
		return nil, ErrNotFound
	}
	session.touch(m.ttl, now)
	return session, nil
}

func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	session.close()
	observability.SetActiveSessions(count)
	return nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run sweeps expired sessions until the context is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return
		case <-ticker.C:
			if evicted := m.sweep(m.clock()); evicted > 0 {
				m.logger.Info("evicted idle sessions", slog.Int("count", evicted))
			}
		}
	}
}

func (m *Manager) sweep(now time.Time) int {
	m.mu.Lock()
	var expired []*Session
	for id, session := range m.sessions {
		if session.expired(now) {
			delete(m.sessions, id)
			expired = append(expired, session)
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()

	for _, session := range expired {
		session.close()
	}
	observability.SetActiveSessions(count)
	return len(expired)
}

// CloseAll drops every session, closing the engines they own.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	for _, session := range sessions {
		session.close()
	}
	observability.SetActiveSessions(0)
}
