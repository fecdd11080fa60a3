package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chriscow/voicebridge-go/internal/metrics"
)

var (
	// ErrSessionNotFound means the id is unknown or already destroyed.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists means a session with the id is already registered.
	ErrSessionExists = errors.New("session already exists")
)

// RegistryError reports an operation on an unknown or duplicate session id.
type RegistryError struct {
	ID  string
	Op  string
	Err error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("%s session %s: %v", e.Op, e.ID, e.Err)
}

func (e *RegistryError) Unwrap() error { return e.Err }

// Manager is the registry of active sessions keyed by connection id. Create
// and Destroy are atomic with respect to each other.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewManager creates an empty registry.
func NewManager(m *metrics.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		metrics:  m,
		logger:   logger,
	}
}

// Create registers a new session whose context derives from ctx.
func (m *Manager) Create(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; exists {
		return nil, &RegistryError{ID: id, Op: "create", Err: ErrSessionExists}
	}

	s := newSession(ctx, id, m.logger)
	m.sessions[id] = s
	m.metrics.RecordSessionCreated()

	s.logger.Info("Session created", slog.Int("active_sessions", len(m.sessions)))
	return s, nil
}

// Get looks up a session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Require is Get that returns a RegistryError for unknown ids.
func (m *Manager) Require(id string) (*Session, error) {
	if s, ok := m.Get(id); ok {
		return s, nil
	}
	return nil, &RegistryError{ID: id, Op: "get", Err: ErrSessionNotFound}
}

// Destroy unregisters and closes a session. Destroying an unknown or already
// destroyed id is a no-op; it reports whether this call did the teardown.
func (m *Manager) Destroy(id, reason string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		m.logger.Debug("Destroy ignored for unknown session",
			slog.String("connection_id", id),
			slog.String("reason", reason))
		return false
	}

	s.close(reason)
	m.metrics.RecordSessionDestroyed(reason, s.Age())

	s.logger.Info("Session destroyed",
		slog.String("reason", reason),
		slog.Duration("age", s.Age()),
		slog.Int("active_sessions", remaining))
	return true
}

// Snapshot returns the currently registered sessions.
func (m *Manager) Snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll destroys every registered session.
func (m *Manager) CloseAll(reason string) int {
	closed := 0
	for _, s := range m.Snapshot() {
		if m.Destroy(s.ID(), reason) {
			closed++
		}
	}
	return closed
}
