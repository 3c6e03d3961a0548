// Package store provides session storage backends for QuoteBot.
//
// This file implements the PostgreSQL-backed session store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/brightvolt/quotebot/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists sessions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied")

	return &PostgresStore{db: db}, nil
}

// LoadSession returns the session for a conversation, pruning expired rows.
func (s *PostgresStore) LoadSession(ctx context.Context, conversationID string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT conversation_id, step_kind, step_field, answers::text, version, created_at, updated_at, expires_at
		FROM sessions WHERE conversation_id = $1`, conversationID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore LoadSession failed", "error", err, "conversation_id", conversationID)
		return nil, fmt.Errorf("failed to load session %s: %w", conversationID, err)
	}
	if sess.Expired(timeNow()) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE conversation_id = $1 AND expires_at <= now()`,
			conversationID); err != nil {
			slog.Error("PostgresStore expired-session prune failed", "error", err, "conversation_id", conversationID)
			return nil, fmt.Errorf("failed to prune expired session: %w", err)
		}
		slog.Debug("PostgresStore pruned expired session", "conversation_id", conversationID)
		return nil, nil
	}
	slog.Debug("PostgresStore LoadSession succeeded", "conversation_id", conversationID, "step", sess.Step.Field)
	return sess, nil
}

// SaveSession overwrites the session row after checking the stored version.
func (s *PostgresStore) SaveSession(ctx context.Context, session *models.Session) error {
	now := timeNow()
	answers, err := marshalAnswers(session.Answers)
	if err != nil {
		return err
	}
	expires := now.Add(SessionTTL)

	if session.Version == 0 {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE conversation_id = $1 AND expires_at <= $2`,
			session.ConversationID, now); err != nil {
			return fmt.Errorf("failed to reclaim expired session: %w", err)
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO sessions (conversation_id, step_kind, step_field, answers, version, created_at, updated_at, expires_at)
			VALUES ($1, $2, $3, $4::jsonb, 1, $5, $6, $7)`,
			session.ConversationID, string(session.Step.Kind), string(session.Step.Field),
			answers, session.CreatedAt, now, expires)
		if err != nil {
			slog.Warn("PostgresStore insert conflicted", "error", err, "conversation_id", session.ConversationID)
			return models.ErrVersionConflict
		}
	} else {
		res, err := s.db.ExecContext(ctx, `
			UPDATE sessions
			SET step_kind = $1, step_field = $2, answers = $3::jsonb, version = version + 1, updated_at = $4, expires_at = $5
			WHERE conversation_id = $6 AND version = $7`,
			string(session.Step.Kind), string(session.Step.Field), answers, now, expires,
			session.ConversationID, session.Version)
		if err != nil {
			slog.Error("PostgresStore SaveSession failed", "error", err, "conversation_id", session.ConversationID)
			return fmt.Errorf("failed to save session %s: %w", session.ConversationID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			slog.Warn("PostgresStore version conflict", "conversation_id", session.ConversationID, "version", session.Version)
			return models.ErrVersionConflict
		}
	}

	session.Version++
	session.UpdatedAt = now
	session.ExpiresAt = expires
	slog.Debug("PostgresStore SaveSession succeeded", "conversation_id", session.ConversationID, "version", session.Version)
	return nil
}

// DeleteSession removes the session row if present.
func (s *PostgresStore) DeleteSession(ctx context.Context, conversationID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE conversation_id = $1`, conversationID); err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "conversation_id", conversationID)
		return fmt.Errorf("failed to delete session %s: %w", conversationID, err)
	}
	slog.Debug("PostgresStore DeleteSession succeeded", "conversation_id", conversationID)
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error { return s.db.Close() }
