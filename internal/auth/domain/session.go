package domain

import "time"

// SessionStatus is derived from a session's revocation and rotation fields
// rather than stored, so a row can never carry a stale status.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionRotated SessionStatus = "rotated"
	SessionRevoked SessionStatus = "revoked"
	SessionExpired SessionStatus = "expired"
)

// Session is one refresh-token session in a rotation chain. Each rotation
// revokes the old session and links it forward, so the chain doubles as an
// audit trail of refresh activity.
type Session struct {
	ID               string  // ULID, also embedded in the opaque refresh token
	UserID           string  // ULID
	RefreshTokenHash string  // HMAC-SHA256 fingerprint, never the raw token
	UserAgent        string  // Client metadata captured at creation
	IP               string
	JTI              string  // jti of the access token issued alongside
	RotatedFrom      *string // Predecessor session id (nil = chain head)
	RotatedTo        *string // Successor session id (nil = chain tail)
	ExpiresAt        time.Time
	RevokedAt        *time.Time
	CreatedAt        time.Time
}

// Status derives the session state at the given instant. A revoked session
// with a successor reads as rotated; revocation wins over expiry so the audit
// trail records why a session died.
func (s *Session) Status(now time.Time) SessionStatus {
	switch {
	case s.RevokedAt != nil && s.RotatedTo != nil:
		return SessionRotated
	case s.RevokedAt != nil:
		return SessionRevoked
	case !now.Before(s.ExpiresAt):
		return SessionExpired
	default:
		return SessionActive
	}
}

// IsActive reports whether the session can still mint access tokens.
func (s *Session) IsActive(now time.Time) bool {
	return s.Status(now) == SessionActive
}
