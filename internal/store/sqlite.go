// Package store provides session storage backends for QuoteBot.
//
// This file implements the SQLite-backed session store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/brightvolt/quotebot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists sessions in a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN is a file path to the database file; the containing directory is
// created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied")

	return &SQLiteStore{db: db}, nil
}

// LoadSession returns the session for a conversation, pruning expired rows.
func (s *SQLiteStore) LoadSession(ctx context.Context, conversationID string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT conversation_id, step_kind, step_field, answers, version, created_at, updated_at, expires_at
		FROM sessions WHERE conversation_id = ?`, conversationID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore LoadSession failed", "error", err, "conversation_id", conversationID)
		return nil, fmt.Errorf("failed to load session %s: %w", conversationID, err)
	}
	if expired, err := s.pruneIfExpired(ctx, sess); err != nil || expired {
		return nil, err
	}
	slog.Debug("SQLiteStore LoadSession succeeded", "conversation_id", conversationID, "step", sess.Step.Field)
	return sess, nil
}

func (s *SQLiteStore) pruneIfExpired(ctx context.Context, sess *models.Session) (bool, error) {
	if !sess.Expired(timeNow()) {
		return false, nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE conversation_id = ? AND expires_at <= ?`,
		sess.ConversationID, timeNow()); err != nil {
		slog.Error("SQLiteStore expired-session prune failed", "error", err, "conversation_id", sess.ConversationID)
		return true, fmt.Errorf("failed to prune expired session: %w", err)
	}
	slog.Debug("SQLiteStore pruned expired session", "conversation_id", sess.ConversationID)
	return true, nil
}

// SaveSession overwrites the session row after checking the stored version.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *models.Session) error {
	now := timeNow()
	answers, err := marshalAnswers(session.Answers)
	if err != nil {
		return err
	}
	expires := now.Add(SessionTTL)

	if session.Version == 0 {
		// Reclaim an expired row under the same id, then insert fresh.
		if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE conversation_id = ? AND expires_at <= ?`,
			session.ConversationID, now); err != nil {
			return fmt.Errorf("failed to reclaim expired session: %w", err)
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO sessions (conversation_id, step_kind, step_field, answers, version, created_at, updated_at, expires_at)
			VALUES (?, ?, ?, ?, 1, ?, ?, ?)`,
			session.ConversationID, string(session.Step.Kind), string(session.Step.Field),
			answers, session.CreatedAt, now, expires)
		if err != nil {
			slog.Warn("SQLiteStore insert conflicted", "error", err, "conversation_id", session.ConversationID)
			return models.ErrVersionConflict
		}
	} else {
		res, err := s.db.ExecContext(ctx, `
			UPDATE sessions
			SET step_kind = ?, step_field = ?, answers = ?, version = version + 1, updated_at = ?, expires_at = ?
			WHERE conversation_id = ? AND version = ?`,
			string(session.Step.Kind), string(session.Step.Field), answers, now, expires,
			session.ConversationID, session.Version)
		if err != nil {
			slog.Error("SQLiteStore SaveSession failed", "error", err, "conversation_id", session.ConversationID)
			return fmt.Errorf("failed to save session %s: %w", session.ConversationID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			slog.Warn("SQLiteStore version conflict", "conversation_id", session.ConversationID, "version", session.Version)
			return models.ErrVersionConflict
		}
	}

	session.Version++
	session.UpdatedAt = now
	session.ExpiresAt = expires
	slog.Debug("SQLiteStore SaveSession succeeded", "conversation_id", session.ConversationID, "version", session.Version)
	return nil
}

// DeleteSession removes the session row if present.
func (s *SQLiteStore) DeleteSession(ctx context.Context, conversationID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE conversation_id = ?`, conversationID); err != nil {
		slog.Error("SQLiteStore DeleteSession failed", "error", err, "conversation_id", conversationID)
		return fmt.Errorf("failed to delete session %s: %w", conversationID, err)
	}
	slog.Debug("SQLiteStore DeleteSession succeeded", "conversation_id", conversationID)
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }
