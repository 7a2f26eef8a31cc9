package store

import (
	"context"
	"errors"
	"time"

	"github.com/voltplan/voltplan/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and to stop callers from accidentally nesting transactions.
type Store interface {
	Users() Users
	Sessions() Sessions
	SigningKeys() SigningKeys

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., refresh
	// rotation). The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login. Email lookup is case-insensitive.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	// Used for password changes and for transparent rehash on login.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// IsEmpty returns true if there are no users. Used by bootstrap.
	IsEmpty(ctx context.Context) (bool, error)
}

type Sessions interface {
	// CreateSession inserts a new session row. The refresh token hash starts
	// empty because the token embeds the session id; SetSessionRefreshHash
	// fills it in within the same transaction.
	CreateSession(ctx context.Context, s domain.Session) error

	// SetSessionRefreshHash stores the refresh token fingerprint for a session.
	SetSessionRefreshHash(ctx context.Context, sessionID, hash string) error

	// GetSessionByID returns a session by id regardless of status.
	GetSessionByID(ctx context.Context, id string) (domain.Session, error)

	// GetSessionByRefreshHash finds a session by its refresh token
	// fingerprint. Only the keyed hash is ever queryable; the token
	// plaintext is not persisted in any form.
	GetSessionByRefreshHash(ctx context.Context, hash string) (domain.Session, error)

	// GetSessionByJTI finds the session that issued the access token with the
	// given jti. Used to revoke the session behind a presented access token.
	GetSessionByJTI(ctx context.Context, jti string) (domain.Session, error)

	// ListActiveUserSessions returns the user's not-revoked, not-expired
	// sessions ordered by creation date (newest first).
	ListActiveUserSessions(ctx context.Context, userID string, now time.Time) ([]domain.Session, error)

	// ClaimSessionForRotation atomically revokes the session if and only if it
	// has not been revoked yet. Returns false when another request claimed it
	// first; the losing caller must treat the token as replayed.
	ClaimSessionForRotation(ctx context.Context, sessionID string, now time.Time) (bool, error)

	// LinkRotation points the predecessor at its successor.
	LinkRotation(ctx context.Context, fromID, toID string) error

	// RevokeSessionByID sets revoked_at if not already set. Idempotent:
	// revoking a revoked session is a no-op, not an error.
	RevokeSessionByID(ctx context.Context, sessionID string, now time.Time) error

	// RevokeAllUserSessions bulk-revokes every active session for a user
	// (password reset, account disable). Returns the number revoked.
	RevokeAllUserSessions(ctx context.Context, userID string, now time.Time) (int, error)

	// DeleteExpiredSessions removes sessions whose expiry is older than the
	// cutoff. Housekeeping; returns the number deleted.
	DeleteExpiredSessions(ctx context.Context, cutoff time.Time) (int, error)

	// CountUserSessions returns the number of active sessions for a user.
	CountUserSessions(ctx context.Context, userID string, now time.Time) (int, error)
}

type SigningKeys interface {
	// CreateSigningKey stores a new signing key with encrypted private key material.
	CreateSigningKey(ctx context.Context, key domain.SigningKey) error

	// GetSigningKeyByKid fetches a signing key by its key identifier,
	// active or rotated. Verification needs rotated keys too.
	GetSigningKeyByKid(ctx context.Context, kid string) (domain.SigningKey, error)

	// GetActiveSigningKey returns the single active key, or ErrNotFound when
	// no key has been created yet.
	GetActiveSigningKey(ctx context.Context) (domain.SigningKey, error)

	// ListActiveSigningKeys returns all active keys ordered by creation date
	// (newest first). The schema enforces at most one, the list shape keeps
	// the JWKS projection straightforward.
	ListActiveSigningKeys(ctx context.Context) ([]domain.SigningKey, error)

	// ListAllSigningKeys returns every key, active and rotated, newest first.
	ListAllSigningKeys(ctx context.Context) ([]domain.SigningKey, error)

	// DeactivateActiveSigningKeys marks every active key rotated. Runs inside
	// the rotation transaction right before the replacement key is inserted.
	DeactivateActiveSigningKeys(ctx context.Context, now time.Time) error
}
