package identity

import (
	"strings"
	"unicode/utf8"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 32
)

// NormalizeUsername performs case-insensitive canonicalization.
// Note: for now we only trim + lower-case.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateUsername checks length and charset of a trimmed username.
// Allowed: ASCII letters, digits, '_', '-', '.'.
func ValidateUsername(s string) error {
	n := utf8.RuneCountInString(s)
	if n < minUsernameLen || n > maxUsernameLen {
		return ErrInvalidInput
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return ErrInvalidInput
		}
	}
	return nil
}
