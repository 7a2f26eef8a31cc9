package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/voltplan/voltplan/internal/auth/audit"
	"github.com/voltplan/voltplan/internal/auth/domain"
	"github.com/voltplan/voltplan/internal/auth/store"
	"github.com/voltplan/voltplan/pkg/slogx"
)

// PasswordHasher abstracts password hashing so the service can be tested with
// cheap parameters. Satisfied by cryptox.Argon2Hasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	NeedsUpgrade(encoded string) bool
}

// AuthService orchestrates the credential flows: login, refresh and logout.
type AuthService struct {
	Store    store.Store
	Tokens   *TokenService
	Sessions *SessionManager
	Hasher   PasswordHasher
	Audit    audit.Recorder

	dummyOnce sync.Once
	dummyHash string
}

type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IP        string
}

type RefreshRequest struct {
	RefreshToken string
	UserAgent    string
	IP           string
}

// AuthResult is what a successful login or refresh hands back.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	User         domain.User
	Session      domain.Session
}

// Login verifies credentials and opens a fresh session.
func (a *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	user, err := a.Store.Users().GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn one hash run so unknown emails cost the same as wrong
			// passwords.
			_, _ = a.Hasher.Verify(req.Password, a.dummy())
			a.recordLoginFailure(ctx, "", req, "unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := a.Hasher.Verify(req.Password, user.PasswordHash)
	if err != nil || !ok {
		a.recordLoginFailure(ctx, user.ID, req, "wrong password")
		return nil, ErrInvalidCredentials
	}

	if !user.CanLogin() {
		a.recordLoginFailure(ctx, user.ID, req, "account disabled")
		return nil, ErrAccountDisabled
	}

	if a.Hasher.NeedsUpgrade(user.PasswordHash) {
		a.rehash(ctx, user.ID, req.Password)
	}

	accessToken, claims, err := a.Tokens.Sign(ctx, user)
	if err != nil {
		return nil, err
	}

	session, refreshToken, err := a.Sessions.Create(ctx, user.ID, claims.ID, req.UserAgent, req.IP)
	if err != nil {
		return nil, err
	}

	a.Audit.Record(ctx, audit.Event{
		Type:      audit.EventLogin,
		UserID:    user.ID,
		SessionID: session.ID,
		IP:        req.IP,
		UserAgent: req.UserAgent,
	})

	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn(claims.ExpiresAt.Time),
		User:         user,
		Session:      session,
	}, nil
}

// Refresh exchanges a refresh token for a new access token, rotating the
// session unless rotation is disabled. A replayed token burns the rest of its
// rotation chain.
func (a *AuthService) Refresh(ctx context.Context, req RefreshRequest) (*AuthResult, error) {
	session, err := a.Sessions.Validate(ctx, req.RefreshToken)
	if err != nil {
		var notActive *SessionNotActiveError
		if errors.As(err, &notActive) && notActive.Status == domain.SessionRotated {
			a.handleReplay(ctx, session, req)
		}
		return nil, err
	}

	user, err := a.Store.Users().GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if !user.CanLogin() {
		_ = a.Sessions.Revoke(ctx, session.ID)
		return nil, ErrAccountDisabled
	}

	accessToken, claims, err := a.Tokens.Sign(ctx, user)
	if err != nil {
		return nil, err
	}

	result := &AuthResult{
		AccessToken: accessToken,
		ExpiresIn:   expiresIn(claims.ExpiresAt.Time),
		User:        user,
		Session:     session,
	}

	if a.Sessions.RotationEnabled() {
		successor, refreshToken, err := a.Sessions.Rotate(ctx, session, claims.ID, req.UserAgent, req.IP)
		if err != nil {
			var notActive *SessionNotActiveError
			if errors.As(err, &notActive) {
				// Lost the rotation race; treat like a replay of the token.
				a.handleReplay(ctx, session, req)
			}
			return nil, err
		}
		result.RefreshToken = refreshToken
		result.Session = successor
	} else {
		// With rotation off the presented token stays live; the refresh
		// mints an unlinked sibling session for the new access token.
		sibling, refreshToken, err := a.Sessions.Create(ctx, user.ID, claims.ID, req.UserAgent, req.IP)
		if err != nil {
			return nil, err
		}
		result.RefreshToken = refreshToken
		result.Session = sibling
	}

	a.Audit.Record(ctx, audit.Event{
		Type:      audit.EventRefresh,
		UserID:    user.ID,
		SessionID: result.Session.ID,
		IP:        req.IP,
		UserAgent: req.UserAgent,
	})

	return result, nil
}

// Logout revokes the session behind a refresh token. Best effort: a token
// that is malformed, unknown or already dead is not an error, the client ends
// up logged out either way.
func (a *AuthService) Logout(ctx context.Context, rawToken string) error {
	session, err := a.Sessions.RevokeByToken(ctx, rawToken)
	if err != nil {
		if errors.Is(err, ErrMalformedToken) || errors.Is(err, ErrInvalidToken) {
			return nil
		}
		return err
	}

	a.Audit.Record(ctx, audit.Event{
		Type:      audit.EventLogout,
		UserID:    session.UserID,
		SessionID: session.ID,
	})

	return nil
}

// handleReplay burns the remainder of the rotation chain. Once a retired
// token resurfaces, the thief and the legitimate holder are
// indistinguishable, so every descendant session dies.
func (a *AuthService) handleReplay(ctx context.Context, session domain.Session, req RefreshRequest) {
	a.Audit.Record(ctx, audit.Event{
		Type:      audit.EventRefreshReplay,
		UserID:    session.UserID,
		SessionID: session.ID,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Detail:    "rotated refresh token replayed",
	})

	if n, err := a.Sessions.RevokeChainFrom(ctx, session.ID); err != nil {
		slogx.FromContext(ctx).Error("failed to revoke chain after replay",
			"session_id", session.ID, "err", err)
	} else if n > 0 {
		slogx.FromContext(ctx).Warn("revoked session chain after replay",
			"session_id", session.ID, "revoked", n)
	}
}

// rehash upgrades a password hash to current parameters after a successful
// verify. Best effort; login succeeds regardless.
func (a *AuthService) rehash(ctx context.Context, userID, password string) {
	newHash, err := a.Hasher.Hash(password)
	if err != nil {
		slogx.FromContext(ctx).Warn("failed to rehash password", "user_id", userID, "err", err)
		return
	}
	if err := a.Store.Users().UpdatePasswordHash(ctx, userID, newHash); err != nil {
		slogx.FromContext(ctx).Warn("failed to store upgraded hash", "user_id", userID, "err", err)
	}
}

func (a *AuthService) recordLoginFailure(ctx context.Context, userID string, req LoginRequest, detail string) {
	a.Audit.Record(ctx, audit.Event{
		Type:      audit.EventLoginFailed,
		UserID:    userID,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Detail:    detail,
	})
}

// dummy returns a hash to verify against when the email is unknown.
func (a *AuthService) dummy() string {
	a.dummyOnce.Do(func() {
		hash, err := a.Hasher.Hash("voltplan-dummy-password")
		if err != nil {
			return
		}
		a.dummyHash = hash
	})
	return a.dummyHash
}

func expiresIn(expiresAt time.Time) int {
	return int(time.Until(expiresAt).Round(time.Second).Seconds())
}
