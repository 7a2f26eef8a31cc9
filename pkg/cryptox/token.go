package cryptox

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Refresh tokens are opaque: base64url(sessionID + "." + randomness). The
// session id prefix lets the server look a session up by primary key without
// scanning hashes; the random suffix is the actual secret.
const tokenRandomBytes = 32

var ErrMalformedToken = errors.New("cryptox: malformed session token")

// GenerateToken returns numBytes of randomness as a base64url string. Used for
// key identifiers and other short unguessable strings.
func GenerateToken(numBytes int) (string, error) {
	b := make([]byte, numBytes)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("cryptox: failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewSessionToken mints a fresh opaque refresh token anchored to sessionID.
func NewSessionToken(sessionID string) (string, error) {
	if sessionID == "" {
		return "", errors.New("cryptox: empty session id")
	}

	random := make([]byte, tokenRandomBytes)
	if _, err := io.ReadFull(rand.Reader, random); err != nil {
		return "", fmt.Errorf("cryptox: failed to generate token: %w", err)
	}

	payload := sessionID + "." + base64.RawURLEncoding.EncodeToString(random)
	return base64.RawURLEncoding.EncodeToString([]byte(payload)), nil
}

// DecodeSessionToken extracts the session id from an opaque refresh token.
// It validates shape only, never authenticity; callers must still compare the
// fingerprint against the stored hash.
func DecodeSessionToken(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrMalformedToken
	}

	sessionID, random, ok := strings.Cut(string(raw), ".")
	if !ok || sessionID == "" || random == "" {
		return "", ErrMalformedToken
	}

	return sessionID, nil
}

// Fingerprint computes the storable HMAC-SHA256 digest of a refresh token.
// Only fingerprints are persisted; a database leak does not yield usable
// tokens without the salt.
func Fingerprint(salt []byte, token string) string {
	mac := hmac.New(sha256.New, salt)
	mac.Write([]byte(token))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// FingerprintEqual compares a candidate token against a stored fingerprint in
// constant time.
func FingerprintEqual(salt []byte, token, storedFingerprint string) bool {
	got := Fingerprint(salt, token)
	return hmac.Equal([]byte(got), []byte(storedFingerprint))
}
