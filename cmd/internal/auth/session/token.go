package session

import (
	"strings"
	"time"
)

// Identity is what a verified token proves about its bearer.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Claims is a verified token's content.
type Claims struct {
	Identity
	IssuedAt  time.Time
	ExpiresAt time.Time // zero when the token never expires
	Issuer    string
}

// TokenManager issues and verifies session tokens.
type TokenManager interface {
	Issue(id Identity, now time.Time) (token string, exp time.Time, err error)
	Verify(token string, now time.Time) (Claims, error)
}

// NewTokenManager builds the manager selected by cfg.Format.
func NewTokenManager(cfg Config) (TokenManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Format {
	case FormatPaseto:
		return NewPasetoV4PublicManager(cfg)
	default:
		return NewJWTManager(cfg)
	}
}

func validIdentity(id Identity) bool {
	return strings.TrimSpace(id.UserID) != "" && strings.TrimSpace(id.Username) != ""
}
