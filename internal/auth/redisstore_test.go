package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) *RedisSessionStore {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionStore(client)
}

func testSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:         id,
		IdentityID: "U1",
		TokenHash:  "deadbeef",
		IssuedAt:   now,
		ExpiresAt:  now.Add(time.Hour),
	}
}

func TestRedisCreateFind(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, testSession("S1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	found, err := s.Find(ctx, "S1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.IdentityID != "U1" || found.TokenHash != "deadbeef" {
		t.Fatalf("found = %+v", found)
	}
}

func TestRedisFindMissing(t *testing.T) {
	s := newRedisStore(t)
	if _, err := s.Find(context.Background(), "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestRedisRejectsExpiredSession(t *testing.T) {
	s := newRedisStore(t)
	session := testSession("S1")
	session.ExpiresAt = time.Now().Add(-time.Minute)
	if err := s.Create(context.Background(), session); err == nil {
		t.Fatal("expected error storing an already expired session")
	}
}

func TestRedisRevoke(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()
	if err := s.Create(ctx, testSession("S1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Revoke(ctx, "S1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	found, err := s.Find(ctx, "S1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !found.Revoked {
		t.Fatal("session not marked revoked")
	}
}

func TestRedisRevokeByIdentity(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()
	for _, id := range []string{"S1", "S2"} {
		if err := s.Create(ctx, testSession(id)); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if err := s.RevokeByIdentity(ctx, "U1"); err != nil {
		t.Fatalf("revoke by identity: %v", err)
	}
	for _, id := range []string{"S1", "S2"} {
		found, err := s.Find(ctx, id)
		if err != nil {
			t.Fatalf("find %s: %v", id, err)
		}
		if !found.Revoked {
			t.Fatalf("session %s not revoked", id)
		}
	}
}
