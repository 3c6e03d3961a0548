// Package store provides session storage backends for QuoteBot.
//
// It includes an in-memory store for development and tests, plus SQLite,
// PostgreSQL and Redis backends for durable sessions. Every backend enforces
// the same contract: whole-record overwrite with a monotonic version check,
// and automatic expiry after SessionTTL.
package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/brightvolt/quotebot/internal/models"
)

// SessionTTL is how long an abandoned session survives before expiring.
const SessionTTL = 24 * time.Hour

// Store is the session persistence contract consumed by the flow engine.
type Store interface {
	// LoadSession returns the session for a conversation, or nil if absent
	// or expired.
	LoadSession(ctx context.Context, conversationID string) (*models.Session, error)
	// SaveSession overwrites the whole session record and refreshes its TTL.
	// The stored version must match session.Version; on success the stored
	// and in-memory versions both advance by one. A mismatch returns
	// models.ErrVersionConflict and leaves the record untouched.
	SaveSession(ctx context.Context, session *models.Session) error
	// DeleteSession removes the session. Deleting an absent session is not
	// an error.
	DeleteSession(ctx context.Context, conversationID string) error
	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a store backend.
type Option func(*Opts)

// WithDSN sets the backend connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres", "redis" or "sqlite".
// File paths and anything unrecognized fall back to SQLite.
func DetectDSNType(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return "postgres"
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return "redis"
	default:
		return "sqlite"
	}
}

// InMemoryStore keeps sessions in a map. It honors the same TTL and version
// semantics as the durable backends.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]models.Session)}
}

// LoadSession returns a copy of the stored session, pruning it if expired.
func (s *InMemoryStore) LoadSession(ctx context.Context, conversationID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[conversationID]
	if !ok {
		return nil, nil
	}
	if stored.Expired(time.Now()) {
		delete(s.sessions, conversationID)
		return nil, nil
	}
	copied := stored
	copied.Answers = make(map[models.Field]string, len(stored.Answers))
	for k, v := range stored.Answers {
		copied.Answers[k] = v
	}
	return &copied, nil
}

// SaveSession overwrites the session after checking the stored version.
func (s *InMemoryStore) SaveSession(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	stored, ok := s.sessions[session.ConversationID]
	if ok && stored.Expired(now) {
		delete(s.sessions, session.ConversationID)
		ok = false
	}
	if ok {
		if stored.Version != session.Version {
			return models.ErrVersionConflict
		}
	} else if session.Version != 0 {
		return models.ErrVersionConflict
	}
	session.Version++
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(SessionTTL)
	copied := *session
	copied.Answers = make(map[models.Field]string, len(session.Answers))
	for k, v := range session.Answers {
		copied.Answers[k] = v
	}
	s.sessions[session.ConversationID] = copied
	return nil
}

// DeleteSession removes the session if present.
func (s *InMemoryStore) DeleteSession(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, conversationID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
