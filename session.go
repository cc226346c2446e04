package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the persisted {token, user} pair
type Session struct {
	Token string
	User  User
}

// Validate checks both halves of the pair are present
func (s Session) Validate() error {
	if isUnsetMarker(s.Token) {
		return DeriveError(ErrInvalidSession, "session token is empty", nil)
	}
	if err := s.User.Validate(); err != nil {
		return DeriveError(ErrInvalidSession, "session user is invalid", map[string]any{
			"reason": err.Error(),
		})
	}
	return nil
}

// TokenClaims are the claims we can read from a bearer token without the
// signing key. They are informational only, the backend stays authoritative.
type TokenClaims struct {
	Subject   string
	IsAdmin   *bool
	IssuedAt  *time.Time
	ExpiresAt *time.Time
}

// Expired reports whether the token carries an exp claim in the past
func (c TokenClaims) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// InspectToken decodes the claims of a JWT without verifying its signature.
// Opaque (non JWT) tokens return ErrUnableToParseToken.
func InspectToken(token string) (TokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenClaims{}, fmt.Errorf("%w: %v", ErrUnableToParseToken, err)
	}

	out := TokenClaims{}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		out.ExpiresAt = &t
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		t := iat.Time
		out.IssuedAt = &t
	}
	if raw, ok := claims["is_admin"].(bool); ok {
		out.IsAdmin = &raw
	}
	return out, nil
}

// ErrUnableToParseToken token is not a decodable JWT
var ErrUnableToParseToken = errors.New("unable to parse token")

func (s Session) String() string {
	return fmt.Sprintf("user=%d username=%s admin=%t token=%s", s.User.ID, s.User.Username, s.User.IsAdmin, maskToken(s.Token))
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "..." + token[len(token)-4:]
}
