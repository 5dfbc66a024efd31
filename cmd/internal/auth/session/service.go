package session

import (
	"context"
	"strings"
	"time"
)

// maxTokenBytes bounds what is handed to the token parsers.
const maxTokenBytes = 4096

// Service implements session issuance and verification.
type Service struct {
	tokens TokenManager
	now    func() time.Time
}

// NewService constructs a Service around a token manager.
func NewService(tokens TokenManager) *Service {
	return &Service{tokens: tokens, now: time.Now}
}

// NewServiceFromConfig builds the token manager selected by cfg.
func NewServiceFromConfig(cfg Config) (*Service, error) {
	tm, err := NewTokenManager(cfg)
	if err != nil {
		return nil, err
	}
	return NewService(tm), nil
}

// Issue mints a token for id.
func (s *Service) Issue(id Identity, now time.Time) (string, time.Time, error) {
	return s.tokens.Issue(id, now)
}

// VerifySession checks a cookie token and returns the identity it binds.
//
// Errors are ErrInvalidToken or ctx.Err().
func (s *Service) VerifySession(ctx context.Context, token string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}

	token = strings.TrimSpace(token)
	if token == "" || len(token) > maxTokenBytes {
		return Identity{}, ErrInvalidToken
	}

	claims, err := s.tokens.Verify(token, s.now().UTC())
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	return claims.Identity, nil
}
