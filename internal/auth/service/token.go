package service

import (
	"context"
	"crypto/rsa"
	"time"

	"github.com/voltplan/voltplan/internal/auth/domain"
	"github.com/voltplan/voltplan/pkg/jwtx"
)

// TokenService signs and verifies RS256 access tokens using whatever key the
// KeyStore currently holds active.
type TokenService struct {
	Keys           *KeyStore
	Issuer         string
	AccessTokenTTL time.Duration
}

// Sign mints an access token for the user. The returned claims carry the jti
// that the session row records, tying token and session together.
func (s *TokenService) Sign(ctx context.Context, user domain.User) (string, *jwtx.Claims, error) {
	ttl := s.AccessTokenTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultAccessTokenTTL
	}

	kid, key, err := s.Keys.ActiveSigningKey(ctx)
	if err != nil {
		return "", nil, err
	}

	claims := jwtx.NewAccessClaims(user.ID, user.Role, user.Name, user.Email, s.Issuer, ttl, time.Now())

	token, err := jwtx.Sign(claims, kid, key)
	if err != nil {
		return "", nil, err
	}

	return token, &claims, nil
}

// Verify validates an access token against the stored keys, rotated ones
// included. Satisfies httpx.TokenVerifier.
func (s *TokenService) Verify(tokenStr string) (*jwtx.Claims, error) {
	// Middleware hands us no context; key lookup is a primary-key read.
	ctx := context.Background()
	return jwtx.Verify(tokenStr, func(kid string) (*rsa.PublicKey, error) {
		return s.Keys.PublicKey(ctx, kid)
	})
}

// Decode parses a token without verifying it. For logging and diagnostics only.
func (s *TokenService) Decode(tokenStr string) (*jwtx.Claims, string, error) {
	return jwtx.Decode(tokenStr)
}

// ActiveKid reports the kid tokens are currently signed with.
func (s *TokenService) ActiveKid(ctx context.Context) (string, error) {
	kid, _, err := s.Keys.ActiveSigningKey(ctx)
	return kid, err
}
