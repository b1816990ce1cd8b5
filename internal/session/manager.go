package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/quisling/quisling-go/internal/engine"
	"github.com/quisling/quisling-go/internal/kvstore"
	"github.com/quisling/quisling-go/internal/obslog"
)

// Manager owns the single active session. The in-memory value is
// authoritative; the store is a durability mirror written through on every
// update so a restart can resume mid-mission. Mirror writes are best-effort.
// The mutex covers the countdown tick racing the command loop.
type Manager struct {
	store kvstore.Store

	mu      sync.Mutex
	current *engine.Session
}

func NewManager(store kvstore.Store) *Manager {
	return &Manager{store: store}
}

// Load hydrates the persisted session, if any, and adopts it as current.
func (m *Manager) Load(ctx context.Context) (engine.Session, bool) {
	var stored engine.Session
	if !m.store.Get(ctx, kvstore.KeyGameSession, &stored) || stored.ID == "" {
		return engine.Session{}, false
	}
	s := engine.Hydrate(stored)
	m.mu.Lock()
	m.current = &s
	m.mu.Unlock()
	obslog.L().Info("session_resume",
		zap.String("session_id", s.ID),
		zap.String("room_code", s.RoomCode),
		zap.String("phase", string(s.Phase)),
	)
	return s, true
}

// Current returns the active session value.
func (m *Manager) Current() (engine.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return engine.Session{}, false
	}
	return *m.current, true
}

// Start creates a fresh session from params and adopts it.
func (m *Manager) Start(ctx context.Context, p Params) engine.Session {
	s := New(p)
	m.adopt(ctx, s)
	obslog.L().Info("session_create",
		zap.String("session_id", s.ID),
		zap.String("room_code", s.RoomCode),
		zap.String("user_id", s.UserID),
		zap.String("role", string(s.Role)),
	)
	return s
}

// Apply runs a transition against the current session and adopts the result.
// With no active session it is a no-op returning the zero session.
func (m *Manager) Apply(ctx context.Context, fn func(engine.Session) engine.Session) (engine.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return engine.Session{}, false
	}
	next := fn(*m.current)
	m.current = &next
	m.store.Set(ctx, kvstore.KeyGameSession, next)
	return next, true
}

// Clear drops the active session and its persisted mirror.
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	if m.current != nil {
		obslog.L().Info("session_clear", zap.String("session_id", m.current.ID))
	}
	m.current = nil
	m.mu.Unlock()
	m.store.Delete(ctx, kvstore.KeyGameSession)
}

func (m *Manager) adopt(ctx context.Context, s engine.Session) {
	m.mu.Lock()
	m.current = &s
	m.mu.Unlock()
	m.store.Set(ctx, kvstore.KeyGameSession, s)
}
