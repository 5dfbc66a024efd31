package identity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	hasher PasswordHasher

	mu     sync.RWMutex
	byID   map[string]User
	byNorm map[string]string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore(hasher PasswordHasher) *MemoryStore {
	return &MemoryStore{
		hasher: hasher,
		byID:   make(map[string]User),
		byNorm: make(map[string]string),
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	u, err := newUser(op, s.hasher, in)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byNorm[u.UsernameNorm]; exists {
		return User{}, ConflictError{Op: op, Field: "username"}
	}
	s.byID[u.ID] = u
	s.byNorm[u.UsernameNorm] = u.ID
	return u, nil
}

func (s *MemoryStore) GetByUsername(ctx context.Context, username string) (User, error) {
	const op = "identity.GetByUsername"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	norm := NormalizeUsername(username)
	if norm == "" {
		return User{}, invalid(op, "missing username")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byNorm[norm]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return s.byID[id], nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetByID"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, invalid(op, "missing id")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return u, nil
}

func (s *MemoryStore) UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error {
	const op = "identity.UpdatePasswordHash"

	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(hash) == "" {
		return invalid(op, "missing hash")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return NotFoundError{Op: op, Resource: "user"}
	}
	u.PasswordHash = hash
	u.UpdatedAt = now.UTC()
	s.byID[id] = u
	return nil
}
