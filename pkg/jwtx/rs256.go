package jwtx

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// AlgorithmRS256 is the only signing algorithm voltplan issues tokens with.
const AlgorithmRS256 = "RS256"

var (
	ErrMalformed        = errors.New("jwtx: malformed token")
	ErrUnknownKID       = errors.New("jwtx: unknown kid")
	ErrInvalidSignature = errors.New("jwtx: invalid signature")
	ErrExpired          = errors.New("jwtx: token expired")
)

// KeyResolver maps a key identifier from a token header to the RSA public key
// it was signed with. Returning ErrUnknownKID makes Verify surface it as-is.
type KeyResolver func(kid string) (*rsa.PublicKey, error)

// Sign serializes claims into a signed RS256 JWT with the kid embedded in the
// header so verifiers can resolve the matching public key.
func Sign(claims Claims, kid string, key *rsa.PrivateKey) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = kid
	return t.SignedString(key)
}

// Verify validates the JWT string and returns its parsed Claims. The kid is
// read from the unverified header and resolved through resolve; nothing from
// the token is trusted until the signature checks out.
func Verify(tokenStr string, resolve KeyResolver) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrMalformed
		}
		return resolve(kid)
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSignature
	}

	return claims, nil
}

// Decode parses the token WITHOUT verifying the signature and returns the
// claims plus the kid header. Unsafe for authorization decisions; use it only
// to read a kid hint before verification or for logging.
func Decode(tokenStr string) (*Claims, string, error) {
	claims := &Claims{}
	token, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims)
	if err != nil {
		return nil, "", ErrMalformed
	}

	kid, _ := token.Header["kid"].(string)
	return claims, kid, nil
}

// mapParseError collapses golang-jwt's error soup into our sentinel errors so
// callers can branch with errors.Is.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, ErrMalformed):
		return ErrMalformed
	case errors.Is(err, ErrUnknownKID):
		return ErrUnknownKID
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	default:
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
}
