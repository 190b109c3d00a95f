// Package store provides session storage backends for the assessment service.
//
// The in-memory store is the default and the single source of truth during a
// session's life. The SQLite and Postgres backends persist the same aggregate
// as JSON for warm-restart convenience.
package store

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/models"
)

// Store is the session storage contract the orchestrator depends on.
// GetSession returns (nil, nil) when the session is absent.
type Store interface {
	GetSession(sessionID string) (*models.Session, error)
	SaveSession(session *models.Session) error
	DeleteSession(sessionID string) error
	ListSessionIDs() ([]string, error)
}

// Opts holds store configuration options.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a store backend.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" for file paths.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a mutex-guarded in-memory session store. Its lifetime
// equals the process lifetime; contents are lost on restart.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*models.Session)}
}

// GetSession returns the stored session or (nil, nil) when absent.
func (s *InMemoryStore) GetSession(sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return session, nil
}

// SaveSession stores or replaces the session.
func (s *InMemoryStore) SaveSession(session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.SessionID] = session
	slog.Debug("InMemoryStore.SaveSession: session saved", "session_id", session.SessionID, "response_count", len(session.Responses))
	return nil
}

// DeleteSession removes the session; deleting an absent session is a no-op.
func (s *InMemoryStore) DeleteSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// ListSessionIDs returns the IDs of all stored sessions.
func (s *InMemoryStore) ListSessionIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}
