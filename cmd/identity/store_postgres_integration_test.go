package identity

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests are opt-in and require CHAT_TEST_DATABASE_URL.

func TestPostgresStore_CreateUser_ConflictUsername_CaseInsensitive(t *testing.T) {
	t.Parallel()

	s := mustNewPostgresStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := s.CreateUser(ctx, CreateUserInput{Username: "Navid", Password: "very-strong-password-1"}); err != nil {
		t.Fatalf("create user 1: %v", err)
	}

	_, err := s.CreateUser(ctx, CreateUserInput{Username: "nAvId", Password: "very-strong-password-2"})
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got: %v", err)
	}
}

func TestPostgresStore_LookupAndRehash(t *testing.T) {
	t.Parallel()

	s := mustNewPostgresStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Microsecond)
	u, err := s.CreateUser(ctx, CreateUserInput{Username: "Alice", Password: "very-strong-password", Now: now})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	byName, err := s.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if byName.ID != u.ID || byName.Username != "Alice" || byName.PasswordHash != u.PasswordHash {
		t.Fatalf("unexpected user: %+v", byName)
	}

	if err := s.UpdatePasswordHash(ctx, u.ID, "replaced", now.Add(time.Minute)); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}
	byID, err := s.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if byID.PasswordHash != "replaced" {
		t.Fatalf("hash not updated: %q", byID.PasswordHash)
	}

	if _, err := s.GetByID(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.UpdatePasswordHash(ctx, "missing", "x", now); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPostgresStore_InvalidOptions(t *testing.T) {
	t.Parallel()

	if _, err := NewPostgresStore(nil, fastHasher()); err == nil {
		t.Fatalf("expected nil pool error")
	}
	if _, err := NewPostgresStore(nil, fastHasher(), WithSchema("bad-schema;")); err == nil {
		t.Fatalf("expected invalid schema error")
	}
}

func mustNewPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("CHAT_TEST_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: CHAT_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, raw)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("ping: %v", err)
	}
	t.Cleanup(pool.Close)

	id, err := NewULID(time.Now())
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	schema := "chat_it_" + strings.ToLower(id[16:])
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
	})

	s, err := NewPostgresStore(pool, fastHasher(), WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}
