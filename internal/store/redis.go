// Package store provides session storage backends for QuoteBot.
//
// This file implements the Redis-backed session store. Sessions are stored as
// JSON values under a key prefix with a native TTL, and the version check is
// done server-side in a small Lua script so concurrent writers cannot
// interleave between read and write.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brightvolt/quotebot/internal/models"
	backend "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "quotebot:session:"

// saveScript compares the stored version against ARGV[2] and overwrites the
// value with a refreshed TTL only when they match (absent counts as 0).
var saveScript = backend.NewScript(`
local cur = redis.call('GET', KEYS[1])
local expected = tonumber(ARGV[2])
if cur then
  local decoded = cjson.decode(cur)
  if decoded['version'] ~= expected then
    return redis.error_reply('version conflict')
  end
elseif expected ~= 0 then
  return redis.error_reply('version conflict')
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// RedisStore persists sessions in Redis.
type RedisStore struct {
	client *backend.Client
}

// NewRedisStore creates a Redis store from a redis:// DSN.
func NewRedisStore(opts ...Option) (*RedisStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewRedisStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("RedisStore DSN not set")
		return nil, fmt.Errorf("redis DSN not set")
	}
	redisOpts, err := backend.ParseURL(cfg.DSN)
	if err != nil {
		slog.Error("Failed to parse redis DSN", "error", err)
		return nil, fmt.Errorf("failed to parse redis DSN: %w", err)
	}
	client := backend.NewClient(redisOpts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		slog.Error("Redis ping failed", "error", err)
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient creates a Redis store from an existing client.
func NewRedisStoreFromClient(client *backend.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(conversationID string) string {
	return redisKeyPrefix + conversationID
}

// LoadSession returns the session for a conversation. Expiry is handled by
// the Redis TTL, so an expired session is simply absent.
func (s *RedisStore) LoadSession(ctx context.Context, conversationID string) (*models.Session, error) {
	val, err := s.client.Get(ctx, redisKey(conversationID)).Result()
	if err == backend.Nil {
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisStore LoadSession failed", "error", err, "conversation_id", conversationID)
		return nil, fmt.Errorf("failed to load session %s: %w", conversationID, err)
	}
	var sess models.Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		slog.Error("RedisStore session unmarshal failed", "error", err, "conversation_id", conversationID)
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", conversationID, err)
	}
	if sess.Answers == nil {
		sess.Answers = make(map[models.Field]string)
	}
	slog.Debug("RedisStore LoadSession succeeded", "conversation_id", conversationID, "step", sess.Step.Field)
	return &sess, nil
}

// SaveSession overwrites the session value after a server-side version check.
func (s *RedisStore) SaveSession(ctx context.Context, session *models.Session) error {
	now := timeNow()
	next := *session
	next.Version = session.Version + 1
	next.UpdatedAt = now
	next.ExpiresAt = now.Add(SessionTTL)
	payload, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	err = saveScript.Run(ctx, s.client, []string{redisKey(session.ConversationID)},
		string(payload), session.Version, SessionTTL.Milliseconds()).Err()
	if err != nil {
		if strings.Contains(err.Error(), "version conflict") {
			slog.Warn("RedisStore version conflict", "conversation_id", session.ConversationID, "version", session.Version)
			return models.ErrVersionConflict
		}
		slog.Error("RedisStore SaveSession failed", "error", err, "conversation_id", session.ConversationID)
		return fmt.Errorf("failed to save session %s: %w", session.ConversationID, err)
	}

	session.Version = next.Version
	session.UpdatedAt = next.UpdatedAt
	session.ExpiresAt = next.ExpiresAt
	slog.Debug("RedisStore SaveSession succeeded", "conversation_id", session.ConversationID, "version", session.Version)
	return nil
}

// DeleteSession removes the session key if present.
func (s *RedisStore) DeleteSession(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, redisKey(conversationID)).Err(); err != nil {
		slog.Error("RedisStore DeleteSession failed", "error", err, "conversation_id", conversationID)
		return fmt.Errorf("failed to delete session %s: %w", conversationID, err)
	}
	slog.Debug("RedisStore DeleteSession succeeded", "conversation_id", conversationID)
	return nil
}

// Close closes the redis client.
func (s *RedisStore) Close() error { return s.client.Close() }
