package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// LegacyBcryptCost is the cost accounts were created with before argon2id.
const LegacyBcryptCost = 10

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

func verifyBcrypt(encoded, password string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil || cost > bcrypt.MaxCost-10 {
		return false, ErrInvalidHash
	}

	// Legacy hashes were computed over the first 72 bytes only.
	pw := []byte(password)
	if len(pw) > 72 {
		pw = pw[:72]
	}

	err = bcrypt.CompareHashAndPassword([]byte(encoded), pw)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, ErrInvalidHash
	}
}
