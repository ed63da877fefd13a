package speech

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource issues bearer credentials for the speech endpoint.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ErrBadAPIKey is returned for keys that are not "id.secret" pairs.
var ErrBadAPIKey = errors.New("speech api key must have the form id.secret")

// SignedToken mints short-lived HS256 tokens from an "id.secret" API key.
type SignedToken struct {
	APIKey string
	TTL    time.Duration

	now func() time.Time
}

// NewSignedToken creates a token source whose tokens expire after ttl
// (one hour when ttl is zero).
func NewSignedToken(apiKey string, ttl time.Duration) *SignedToken {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SignedToken{APIKey: apiKey, TTL: ttl, now: time.Now}
}

// Token returns a freshly signed token.
func (s *SignedToken) Token(context.Context) (string, error) {
	id, secret, ok := strings.Cut(s.APIKey, ".")
	if !ok || id == "" || secret == "" || strings.Contains(secret, ".") {
		return "", ErrBadAPIKey
	}

	now := s.now()
	claims := jwt.MapClaims{
		"api_key":   id,
		"exp":       now.Add(s.TTL).UnixMilli(),
		"timestamp": now.UnixMilli(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["sign_type"] = "SIGN"
	return token.SignedString([]byte(secret))
}
