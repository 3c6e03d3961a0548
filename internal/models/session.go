// Package models defines session state structures for the quotation flow.
package models

import "time"

// Session represents one conversation's progress through the quotation flow.
// It is written back as a whole record on every accepted answer.
type Session struct {
	ConversationID string           `json:"conversation_id"`
	Step           Step             `json:"step"`
	Answers        map[Field]string `json:"answers"`
	// Version increments on every save. Stores reject a save whose Version
	// does not match the stored record, so a lost-update race surfaces as
	// ErrVersionConflict instead of silently dropping an answer.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSession creates a fresh session positioned at the given first step.
func NewSession(conversationID string, first Field) *Session {
	now := time.Now()
	return &Session{
		ConversationID: conversationID,
		Step:           AwaitingField(first),
		Answers:        make(map[Field]string),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Expired reports whether the session's TTL has passed at the given instant.
// A zero ExpiresAt means the store manages expiry itself (e.g. Redis).
func (s *Session) Expired(at time.Time) bool {
	return !s.ExpiresAt.IsZero() && at.After(s.ExpiresAt)
}
