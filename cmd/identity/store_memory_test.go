package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_CreateAndLookup(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(fastHasher())
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	u, err := s.CreateUser(ctx, CreateUserInput{Username: " Alice ", Password: "correct horse", Now: now})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Username != "Alice" || u.UsernameNorm != "alice" {
		t.Fatalf("unexpected names: %+v", u)
	}
	if u.PasswordHash == "" || u.PasswordHash == "correct horse" {
		t.Fatalf("password not hashed: %q", u.PasswordHash)
	}
	if !u.CreatedAt.Equal(now) || !u.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps: %+v", u)
	}

	byName, err := s.GetByUsername(ctx, "ALICE")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if byName.ID != u.ID {
		t.Fatalf("id mismatch: %s vs %s", byName.ID, u.ID)
	}

	byID, err := s.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if byID.Username != "Alice" {
		t.Fatalf("username: %q", byID.Username)
	}
}

func TestMemoryStore_Conflict_CaseInsensitive(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(fastHasher())
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, CreateUserInput{Username: "Navid", Password: "password-one"}); err != nil {
		t.Fatalf("create 1: %v", err)
	}
	_, err := s.CreateUser(ctx, CreateUserInput{Username: "nAvId", Password: "password-two"})
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var ce ConflictError
	if !errors.As(err, &ce) || ce.Field != "username" {
		t.Fatalf("expected username conflict, got %v", err)
	}
}

func TestMemoryStore_InvalidInput(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(fastHasher())
	ctx := context.Background()

	cases := []CreateUserInput{
		{Username: "", Password: "password-one"},
		{Username: "x", Password: "password-one"},
		{Username: "bad name", Password: "password-one"},
		{Username: "carol", Password: ""},
		{Username: "carol", Password: "short"},
	}
	for _, in := range cases {
		if _, err := s.CreateUser(ctx, in); !IsInvalidInput(err) {
			t.Fatalf("%+v: expected invalid input, got %v", in, err)
		}
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(fastHasher())
	ctx := context.Background()

	if _, err := s.GetByUsername(ctx, "ghost"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.GetByID(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.UpdatePasswordHash(ctx, "nope", "hash", time.Now()); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStore_UpdatePasswordHash(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(fastHasher())
	ctx := context.Background()

	u, err := s.CreateUser(ctx, CreateUserInput{Username: "dave", Password: "password-one"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	later := u.CreatedAt.Add(time.Hour)
	if err := s.UpdatePasswordHash(ctx, u.ID, "new-hash", later); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}

	got, err := s.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.PasswordHash != "new-hash" || !got.UpdatedAt.Equal(later) {
		t.Fatalf("unexpected user after update: %+v", got)
	}
}
