package session

import (
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

type pasetoV4PublicManager struct {
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration

	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

// NewPasetoV4PublicManager builds a TokenManager on PASETO v4.public (Ed25519).
func NewPasetoV4PublicManager(cfg Config) (TokenManager, error) {
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(cfg.PasetoV4SecretKeyHex)
	if err != nil {
		return nil, ErrConfig
	}

	return &pasetoV4PublicManager{
		issuer:    cfg.Issuer,
		ttl:       cfg.TTL,
		clockSkew: cfg.ClockSkew,
		secret:    secret,
		public:    secret.Public(),
	}, nil
}

func (m *pasetoV4PublicManager) Issue(id Identity, now time.Time) (string, time.Time, error) {
	if !validIdentity(id) {
		return "", time.Time{}, ErrInvalidToken
	}

	tok := paseto.NewToken()
	if m.issuer != "" {
		tok.SetIssuer(m.issuer)
	}
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)

	var exp time.Time
	if m.ttl > 0 {
		exp = now.Add(m.ttl)
		tok.SetExpiration(exp)
	}

	if err := tok.Set("_id", id.UserID); err != nil {
		return "", time.Time{}, err
	}
	if err := tok.Set("username", id.Username); err != nil {
		return "", time.Time{}, err
	}

	return tok.V4Sign(m.secret, nil), exp, nil
}

func (m *pasetoV4PublicManager) Verify(token string, now time.Time) (Claims, error) {
	// Fresh parser per call; rules must not accumulate. Expiry is optional
	// here, so it is checked below instead of by the parser.
	p := paseto.NewParserWithoutExpiryCheck()
	if m.issuer != "" {
		p.AddRule(paseto.IssuedBy(m.issuer))
	}
	p.AddRule(notBefore(now.Add(m.clockSkew)))

	parsed, err := p.ParseV4Public(m.public, token, nil)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	var out Claims
	if exp, err := parsed.GetExpiration(); err == nil {
		if !now.Add(-m.clockSkew).Before(exp) {
			return Claims{}, ErrInvalidToken
		}
		out.ExpiresAt = exp
	} else if m.ttl > 0 {
		return Claims{}, ErrInvalidToken
	}

	uid, err := parsed.GetString("_id")
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	username, err := parsed.GetString("username")
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	out.Identity = Identity{UserID: uid, Username: username}
	if !validIdentity(out.Identity) {
		return Claims{}, ErrInvalidToken
	}

	out.Issuer, _ = parsed.GetIssuer()
	out.IssuedAt, _ = parsed.GetIssuedAt()
	return out, nil
}

// notBefore rejects tokens whose "iat" or "nbf" lies after t.
func notBefore(t time.Time) paseto.Rule {
	return func(tok paseto.Token) error {
		if iat, err := tok.GetIssuedAt(); err == nil && iat.After(t) {
			return ErrInvalidToken
		}
		if nbf, err := tok.GetNotBefore(); err == nil && nbf.After(t) {
			return ErrInvalidToken
		}
		return nil
	}
}
