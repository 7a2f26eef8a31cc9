package service

import (
	"errors"
	"fmt"

	"github.com/voltplan/voltplan/internal/auth/domain"
)

var (
	// ErrInvalidCredentials covers unknown email and wrong password alike, so
	// responses never reveal which half was wrong.
	ErrInvalidCredentials = errors.New("service: invalid credentials")

	// ErrAccountDisabled rejects logins for disabled accounts.
	ErrAccountDisabled = errors.New("service: account disabled")

	// ErrMalformedToken means the presented refresh token does not even have
	// the right shape. No storage lookup happens for these.
	ErrMalformedToken = errors.New("service: malformed refresh token")

	// ErrInvalidToken means the token is well-formed but matches no session,
	// or its fingerprint does not match the stored one.
	ErrInvalidToken = errors.New("service: invalid refresh token")

	// ErrSigningUnavailable means no active signing key exists. Verification
	// of already-issued tokens keeps working.
	ErrSigningUnavailable = errors.New("service: no active signing key")
)

// SessionNotActiveError reports a structurally valid refresh token whose
// session can no longer be used, carrying the derived status so callers can
// distinguish replay (rotated) from plain expiry.
type SessionNotActiveError struct {
	Status domain.SessionStatus
}

func (e *SessionNotActiveError) Error() string {
	return fmt.Sprintf("service: session not active (%s)", e.Status)
}
