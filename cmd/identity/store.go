package identity

import (
	"context"
	"strings"
	"time"
)

// User is a registered chat account.
type User struct {
	ID           string
	Username     string
	UsernameNorm string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUserInput describes a registration request.
type CreateUserInput struct {
	Username string
	Password string
	Now      time.Time
}

// PasswordHasher turns a plaintext password into a stored hash.
// password.Config satisfies it.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Store is the account persistence boundary.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)

	// UpdatePasswordHash replaces the stored hash, e.g. after a legacy
	// hash verified on login.
	UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error
}

// newUser validates in, hashes the password and assigns an id.
func newUser(op string, hasher PasswordHasher, in CreateUserInput) (User, error) {
	if hasher == nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil hasher"}
	}

	username := strings.TrimSpace(in.Username)
	if err := ValidateUsername(username); err != nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "username must be 3-32 characters of letters, digits, '_', '-' or '.'"}
	}
	if strings.TrimSpace(in.Password) == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "password is required"}
	}

	hash, err := hasher.Hash(in.Password)
	if err != nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error()}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	id, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	return User{
		ID:           id,
		Username:     username,
		UsernameNorm: NormalizeUsername(username),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func invalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}
