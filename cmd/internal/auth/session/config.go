package session

import (
	"os"
	"strings"
	"time"
)

// Token formats.
const (
	FormatJWT    = "jwt"
	FormatPaseto = "paseto"
)

const minJWTSecretBytes = 16

// Config defines the session token subsystem.
type Config struct {
	// Format selects the token encoding: FormatJWT or FormatPaseto.
	Format string

	// Issuer is set as "iss" when non-empty and then required on verify.
	Issuer string

	// TTL is the token lifetime. Zero issues tokens without expiry.
	TTL time.Duration

	// ClockSkew is tolerated on expiry and not-before checks.
	ClockSkew time.Duration

	// JWTSecret is the HMAC key for FormatJWT.
	JWTSecret string

	// PasetoV4SecretKeyHex is the hex-encoded Ed25519 key for FormatPaseto.
	PasetoV4SecretKeyHex string
}

// DefaultConfig returns JWT tokens without expiry, matching the cookie
// sessions existing clients hold.
func DefaultConfig() Config {
	return Config{
		Format:    FormatJWT,
		ClockSkew: 30 * time.Second,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
//   - CHAT_TOKEN_FORMAT: jwt (default) or paseto
//   - CHAT_JWT_SECRET: required for jwt, at least 16 bytes
//   - CHAT_PASETO_V4_SECRET_KEY_HEX: required for paseto
//   - CHAT_AUTH_ISSUER, CHAT_AUTH_TOKEN_TTL, CHAT_AUTH_CLOCK_SKEW: optional
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("CHAT_TOKEN_FORMAT"))); v != "" {
		cfg.Format = v
	}
	cfg.Issuer = strings.TrimSpace(os.Getenv("CHAT_AUTH_ISSUER"))

	if v := os.Getenv("CHAT_AUTH_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.TTL = d
	}

	if v := os.Getenv("CHAT_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	cfg.JWTSecret = os.Getenv("CHAT_JWT_SECRET")
	cfg.PasetoV4SecretKeyHex = strings.TrimSpace(os.Getenv("CHAT_PASETO_V4_SECRET_KEY_HEX"))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected format has its key material.
func (c Config) Validate() error {
	switch c.Format {
	case FormatJWT:
		if len(c.JWTSecret) < minJWTSecretBytes {
			return ErrConfig
		}
	case FormatPaseto:
		if c.PasetoV4SecretKeyHex == "" {
			return ErrConfig
		}
	default:
		return ErrConfig
	}
	if c.TTL < 0 || c.ClockSkew < 0 {
		return ErrConfig
	}
	return nil
}
