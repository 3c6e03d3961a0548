package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"

	"github.com/brightvolt/quotebot/internal/models"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)

	sess := sampleSession("conv-r1")
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if sess.Version != 1 {
		t.Errorf("version after first save = %d, want 1", sess.Version)
	}

	loaded, err := s.LoadSession(ctx, "conv-r1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected session, got nil")
	}
	if loaded.Answers[models.FieldClientName] != "Acme Corp" {
		t.Errorf("answers = %v, want CLIENT_NAME preserved", loaded.Answers)
	}
	if loaded.Version != 1 {
		t.Errorf("loaded version = %d, want 1", loaded.Version)
	}
}

func TestRedisVersionConflict(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)

	sess := sampleSession("conv-r2")
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	stale, err := s.LoadSession(ctx, "conv-r2")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	if err := s.SaveSession(ctx, stale); !errors.Is(err, models.ErrVersionConflict) {
		t.Errorf("stale save error = %v, want ErrVersionConflict", err)
	}
	fresh := sampleSession("conv-r2")
	if err := s.SaveSession(ctx, fresh); !errors.Is(err, models.ErrVersionConflict) {
		t.Errorf("fresh save over live session = %v, want ErrVersionConflict", err)
	}
}

func TestRedisDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)

	if err := s.SaveSession(ctx, sampleSession("conv-r3")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.DeleteSession(ctx, "conv-r3"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	loaded, err := s.LoadSession(ctx, "conv-r3")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil after delete, got %+v", loaded)
	}
	if err := s.DeleteSession(ctx, "conv-r3"); err != nil {
		t.Errorf("deleting absent session should not error: %v", err)
	}
}

func TestRedisSessionExpires(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	if err := s.SaveSession(ctx, sampleSession("conv-r4")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	mr.FastForward(SessionTTL + time.Minute)

	loaded, err := s.LoadSession(ctx, "conv-r4")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected expired session to load as nil, got %+v", loaded)
	}

	if err := s.SaveSession(ctx, sampleSession("conv-r4")); err != nil {
		t.Errorf("fresh save after expiry failed: %v", err)
	}
}
