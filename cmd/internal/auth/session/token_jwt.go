package session

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// jwtClaims keeps the "_id"/"username" claim names used by existing tokens.
type jwtClaims struct {
	UserID   string `json:"_id"`
	Username string `json:"username"`
	jwtlib.RegisteredClaims
}

type jwtManager struct {
	secret    []byte
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration
}

// NewJWTManager builds an HS256 TokenManager.
func NewJWTManager(cfg Config) (TokenManager, error) {
	if len(cfg.JWTSecret) < minJWTSecretBytes {
		return nil, ErrConfig
	}
	return &jwtManager{
		secret:    []byte(cfg.JWTSecret),
		issuer:    cfg.Issuer,
		ttl:       cfg.TTL,
		clockSkew: cfg.ClockSkew,
	}, nil
}

func (m *jwtManager) Issue(id Identity, now time.Time) (string, time.Time, error) {
	if !validIdentity(id) {
		return "", time.Time{}, ErrInvalidToken
	}

	claims := jwtClaims{
		UserID:   id.UserID,
		Username: id.Username,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:   m.issuer,
			IssuedAt: jwtlib.NewNumericDate(now),
		},
	}
	var exp time.Time
	if m.ttl > 0 {
		exp = now.Add(m.ttl)
		claims.ExpiresAt = jwtlib.NewNumericDate(exp)
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *jwtManager) Verify(token string, now time.Time) (Claims, error) {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg(), jwtlib.SigningMethodHS384.Alg(), jwtlib.SigningMethodHS512.Alg()}),
		jwtlib.WithTimeFunc(func() time.Time { return now }),
		jwtlib.WithLeeway(m.clockSkew),
		jwtlib.WithIssuedAt(),
	}
	if m.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(m.issuer))
	}
	if m.ttl > 0 {
		opts = append(opts, jwtlib.WithExpirationRequired())
	}

	var c jwtClaims
	parsed, err := jwtlib.ParseWithClaims(token, &c, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}

	id := Identity{UserID: c.UserID, Username: c.Username}
	if !validIdentity(id) {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{Identity: id, Issuer: c.Issuer}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}
