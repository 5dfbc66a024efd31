package session

import (
	"context"
	"errors"
	"testing"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	jwtlib "github.com/golang-jwt/jwt/v5"
)

var alice = Identity{UserID: "01HZZZZZZZZZZZZZZZZZZZZZZZ", Username: "alice"}

func jwtConfig() Config {
	cfg := DefaultConfig()
	cfg.JWTSecret = testJWTSecret
	return cfg
}

func pasetoConfig() Config {
	cfg := DefaultConfig()
	cfg.Format = FormatPaseto
	cfg.PasetoV4SecretKeyHex = paseto.NewV4AsymmetricSecretKey().ExportHex()
	return cfg
}

func TestTokenManagers_IssueAndVerify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  Config
	}{
		{"jwt", jwtConfig()},
		{"paseto", pasetoConfig()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mgr, err := NewTokenManager(tc.cfg)
			if err != nil {
				t.Fatalf("NewTokenManager: %v", err)
			}

			now := time.Now().UTC().Truncate(time.Second)
			tok, exp, err := mgr.Issue(alice, now)
			if err != nil {
				t.Fatalf("Issue: %v", err)
			}
			if !exp.IsZero() {
				t.Fatalf("expected no expiry with zero TTL, got %v", exp)
			}

			claims, err := mgr.Verify(tok, now.Add(time.Hour))
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if claims.Identity != alice {
				t.Fatalf("identity: got %+v", claims.Identity)
			}
			if !claims.ExpiresAt.IsZero() {
				t.Fatalf("expected zero ExpiresAt, got %v", claims.ExpiresAt)
			}
		})
	}
}

func TestTokenManagers_Expiry(t *testing.T) {
	t.Parallel()

	for _, cfg := range []Config{jwtConfig(), pasetoConfig()} {
		cfg.TTL = time.Minute
		cfg.ClockSkew = 0

		mgr, err := NewTokenManager(cfg)
		if err != nil {
			t.Fatalf("NewTokenManager(%s): %v", cfg.Format, err)
		}

		now := time.Now().UTC().Truncate(time.Second)
		tok, exp, err := mgr.Issue(alice, now)
		if err != nil {
			t.Fatalf("Issue(%s): %v", cfg.Format, err)
		}
		if !exp.Equal(now.Add(time.Minute)) {
			t.Fatalf("%s exp: got %v", cfg.Format, exp)
		}

		if _, err := mgr.Verify(tok, now.Add(30*time.Second)); err != nil {
			t.Fatalf("%s: expected valid before expiry, got %v", cfg.Format, err)
		}
		if _, err := mgr.Verify(tok, now.Add(2*time.Minute)); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken after expiry, got %v", cfg.Format, err)
		}
	}
}

func TestTokenManagers_IssuerMismatch(t *testing.T) {
	t.Parallel()

	for _, cfg := range []Config{jwtConfig(), pasetoConfig()} {
		cfg.Issuer = "a"
		issuerA, err := NewTokenManager(cfg)
		if err != nil {
			t.Fatalf("NewTokenManager: %v", err)
		}
		cfg.Issuer = "b"
		issuerB, err := NewTokenManager(cfg)
		if err != nil {
			t.Fatalf("NewTokenManager: %v", err)
		}

		now := time.Now().UTC()
		tok, _, err := issuerA.Issue(alice, now)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if _, err := issuerB.Verify(tok, now); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken for wrong issuer, got %v", cfg.Format, err)
		}
	}
}

func TestJWT_AcceptsLegacyClaims(t *testing.T) {
	t.Parallel()

	// Tokens minted by earlier deployments carried only _id,
	// username and iat.
	legacy := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"_id":      alice.UserID,
		"username": alice.Username,
		"iat":      time.Now().Add(-time.Hour).Unix(),
	})
	tok, err := legacy.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	svc, err := NewServiceFromConfig(jwtConfig())
	if err != nil {
		t.Fatalf("NewServiceFromConfig: %v", err)
	}
	got, err := svc.VerifySession(context.Background(), tok)
	if err != nil {
		t.Fatalf("VerifySession: %v", err)
	}
	if got != alice {
		t.Fatalf("identity: got %+v", got)
	}
}

func TestJWT_RejectsWrongSecretAndAlg(t *testing.T) {
	t.Parallel()

	svc, err := NewServiceFromConfig(jwtConfig())
	if err != nil {
		t.Fatalf("NewServiceFromConfig: %v", err)
	}

	claims := jwtlib.MapClaims{"_id": alice.UserID, "username": alice.Username}

	wrong, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("another-secret-of-enough-length"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	none, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, claims).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString(none): %v", err)
	}

	for _, tok := range []string{wrong, none, "", "garbage", "a.b.c"} {
		if _, err := svc.VerifySession(context.Background(), tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", tok, err)
		}
	}
}

func TestJWT_RejectsMissingIdentityClaims(t *testing.T) {
	t.Parallel()

	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{"_id": alice.UserID}).
		SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	svc, err := NewServiceFromConfig(jwtConfig())
	if err != nil {
		t.Fatalf("NewServiceFromConfig: %v", err)
	}
	if _, err := svc.VerifySession(context.Background(), tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestService_VerifySession_CanceledContext(t *testing.T) {
	t.Parallel()

	svc, err := NewServiceFromConfig(jwtConfig())
	if err != nil {
		t.Fatalf("NewServiceFromConfig: %v", err)
	}
	tok, _, err := svc.Issue(alice, time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.VerifySession(ctx, tok); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIssue_RejectsIncompleteIdentity(t *testing.T) {
	t.Parallel()

	mgr, err := NewJWTManager(jwtConfig())
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	if _, _, err := mgr.Issue(Identity{UserID: "x"}, time.Now()); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
