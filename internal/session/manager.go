package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/centinelalabs/centinela/pkg/recognizer"
)

// Sentinel errors for session lookup and admission. HTTP and WebSocket
// handlers map these onto status codes.
var (
	ErrDuplicateSession = errors.New("session already exists")
	ErrSessionNotFound  = errors.New("session not found")
	ErrCapacityExceeded = errors.New("session capacity exceeded")
	ErrManagerClosed    = errors.New("session manager closed")
)

// defaultSweepInterval is how often the sweeper scans for expired sessions.
const defaultSweepInterval = 1 * time.Second

// ManagerConfig configures a [Manager].
type ManagerConfig struct {
	// Provider opens recognizer streams for new sessions.
	Provider recognizer.Provider

	// Session is the template applied to every created session.
	Session Config

	// MaxSessions caps concurrent sessions. Zero means unlimited.
	MaxSessions int

	// RetainFor keeps decided or expired sessions queryable for this long
	// past their deadline before the sweeper removes them.
	RetainFor time.Duration

	// SweepInterval overrides the sweeper period. Defaults to 1 second.
	SweepInterval time.Duration

	// OnEvict, when set, is invoked once per session as it leaves the
	// table, whether by Remove, the sweeper, or Close.
	OnEvict func(*Session)
}

// Manager owns the live session table. Creation reserves the identifier
// before dialing the recognizer so the table lock is never held across a
// network round trip.
//
// All methods are safe for concurrent use.
type Manager struct {
	cfg ManagerConfig

	mu       sync.RWMutex
	sessions map[string]*Session
	reserved map[string]struct{}
	closing  bool
}

// NewManager creates a Manager with an empty session table.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
		reserved: make(map[string]struct{}),
	}
}

// Create opens a new session for the given call identifier. The overrides
// function, when non-nil, may adjust the session template before the
// recognizer stream is dialed.
func (m *Manager) Create(ctx context.Context, id string, overrides func(*Config)) (*Session, error) {
	cfg := m.cfg.Session
	if overrides != nil {
		overrides(&cfg)
	}

	if err := m.reserve(id); err != nil {
		return nil, err
	}

	sess, err := New(ctx, id, m.cfg.Provider, cfg)

	m.mu.Lock()
	delete(m.reserved, id)
	if err == nil {
		if m.closing {
			m.mu.Unlock()
			sess.Close()
			return nil, ErrManagerClosed
		}
		m.sessions[id] = sess
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	slog.Info("session created", "session_id", id, "deadline", cfg.Deadline)
	return sess, nil
}

// reserve claims the identifier and a capacity slot, or reports why not.
func (m *Manager) reserve(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closing {
		return ErrManagerClosed
	}
	if _, exists := m.sessions[id]; exists {
		return ErrDuplicateSession
	}
	if _, pending := m.reserved[id]; pending {
		return ErrDuplicateSession
	}
	if m.cfg.MaxSessions > 0 && len(m.sessions)+len(m.reserved) >= m.cfg.MaxSessions {
		return ErrCapacityExceeded
	}
	m.reserved[id] = struct{}{}
	return nil
}

// Get returns the session for the given identifier.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Remove closes and deletes the session. Removing an unknown identifier is
// not an error; teardown is idempotent.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		sess.Close()
		m.evict(sess)
		slog.Debug("session removed", "session_id", id)
	}
}

// evict runs the eviction hook for a session that left the table.
func (m *Manager) evict(sess *Session) {
	if m.cfg.OnEvict != nil {
		m.cfg.OnEvict(sess)
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Run sweeps expired sessions until ctx is cancelled. Sessions stay
// queryable for RetainFor past their deadline so late GET polls still see
// the decision.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

// sweep removes every session whose retention window has passed.
func (m *Manager) sweep(now time.Time) {
	m.mu.Lock()
	var expired []*Session
	for id, sess := range m.sessions {
		if now.After(sess.DeadlineAt().Add(m.cfg.RetainFor)) {
			expired = append(expired, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, sess := range expired {
		sess.Close()
		m.evict(sess)
		slog.Debug("session swept", "session_id", sess.ID())
	}
}

// Close rejects further creations and tears down every live session.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closing = true
	remaining := make([]*Session, 0, len(m.sessions))
	for id, sess := range m.sessions {
		remaining = append(remaining, sess)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, sess := range remaining {
		sess.Close()
		m.evict(sess)
	}
	return nil
}
