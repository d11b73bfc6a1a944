package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes access tokens from refresh tokens. Each kind has
// its own secret and lifetime, so a token of one kind never verifies as
// the other.
type TokenKind string

// Token kinds.
const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// TokenClaims is the payload of every issued token. The subject is the
// user ID; the JWT ID makes two tokens issued in the same second distinct.
type TokenClaims struct {
	Kind TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *TokenClaims) UserID() string {
	return c.Subject
}

// TokenCodec issues and verifies HS256-signed tokens.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration

	// now is overridable in tests.
	now func() time.Time
}

// NewTokenCodec creates a codec. Secrets must be non-empty and distinct and
// both lifetimes positive.
func NewTokenCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenCodec, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}

	return &TokenCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// keyFor returns the secret and lifetime for kind.
func (c *TokenCodec) keyFor(kind TokenKind) ([]byte, time.Duration, error) {
	switch kind {
	case AccessToken:
		return c.accessSecret, c.accessTTL, nil
	case RefreshToken:
		return c.refreshSecret, c.refreshTTL, nil
	default:
		return nil, 0, fmt.Errorf("unknown token kind %q", kind)
	}
}

// Issue signs a new token of the given kind for userID.
func (c *TokenCodec) Issue(userID string, kind TokenKind) (string, error) {
	secret, ttl, err := c.keyFor(kind)
	if err != nil {
		return "", err
	}

	now := c.now()
	claims := TokenClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", kind, err)
	}
	return signed, nil
}

// IssuePair signs a fresh access and refresh token for userID.
func (c *TokenCodec) IssuePair(userID string) (*TokenPair, error) {
	access, err := c.Issue(userID, AccessToken)
	if err != nil {
		return nil, err
	}
	refresh, err := c.Issue(userID, RefreshToken)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify reports whether token is well-formed, signed with kind's secret
// using HS256, unexpired, and carries kind. Every failure yields false.
func (c *TokenCodec) Verify(token string, kind TokenKind) bool {
	_, err := c.parse(token, kind)
	return err == nil
}

// parse verifies token as kind and returns its claims.
func (c *TokenCodec) parse(token string, kind TokenKind) (*TokenClaims, error) {
	secret, _, err := c.keyFor(kind)
	if err != nil {
		return nil, err
	}

	claims := &TokenClaims{}
	_, err = jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verifying %s token: %w", kind, err)
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("token kind %q, want %q", claims.Kind, kind)
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// Decode extracts the claims without checking the signature or expiry.
// Only call it on a token that has already passed Verify.
func (c *TokenCodec) Decode(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decoding token: %w", err)
	}
	return claims, nil
}
