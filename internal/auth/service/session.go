package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voltplan/voltplan/internal/auth/domain"
	"github.com/voltplan/voltplan/internal/auth/store"
	"github.com/voltplan/voltplan/pkg/cryptox"
	"github.com/voltplan/voltplan/pkg/idx"
	"github.com/voltplan/voltplan/pkg/jwtx"
	"github.com/voltplan/voltplan/pkg/slogx"
)

// SessionManager owns refresh-token sessions: minting, validation, one-time
// rotation and revocation. Raw tokens exist only in transit; the store keeps
// HMAC fingerprints.
type SessionManager struct {
	Store           store.Store
	Salt            []byte
	RefreshTokenTTL time.Duration

	// DisableRotation keeps refresh from retiring the presented session;
	// each refresh mints a sibling session instead, leaving the old token
	// reusable. Zero value keeps rotation on.
	DisableRotation bool
}

// RotationEnabled reports whether refresh rotates the session.
func (s *SessionManager) RotationEnabled() bool { return !s.DisableRotation }

func (s *SessionManager) ttl() time.Duration {
	if s.RefreshTokenTTL <= 0 {
		return jwtx.DefaultRefreshTokenTTL
	}
	return s.RefreshTokenTTL
}

// Create opens a new session for the user and mints its refresh token. The
// token embeds the session id, so the row is inserted first with an empty
// fingerprint and updated in the same transaction once the token exists.
func (s *SessionManager) Create(ctx context.Context, userID, jti, userAgent, ip string) (domain.Session, string, error) {
	now := time.Now().UTC()
	session := domain.Session{
		ID:        idx.New().String(),
		UserID:    userID,
		UserAgent: userAgent,
		IP:        ip,
		JTI:       jti,
		ExpiresAt: now.Add(s.ttl()),
		CreatedAt: now,
	}

	token, err := cryptox.NewSessionToken(session.ID)
	if err != nil {
		return domain.Session{}, "", err
	}
	session.RefreshTokenHash = cryptox.Fingerprint(s.Salt, token)

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		hash := session.RefreshTokenHash
		session.RefreshTokenHash = ""
		if err := tx.Sessions().CreateSession(ctx, session); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		session.RefreshTokenHash = hash
		return tx.Sessions().SetSessionRefreshHash(ctx, session.ID, hash)
	})
	if err != nil {
		return domain.Session{}, "", err
	}

	return session, token, nil
}

// Validate resolves a raw refresh token to its session and checks that it can
// still be used. Malformed tokens are rejected before any storage lookup.
// For structurally valid tokens whose session is dead, the session is
// returned alongside a SessionNotActiveError so callers can react to replay.
func (s *SessionManager) Validate(ctx context.Context, rawToken string) (domain.Session, error) {
	sessionID, err := cryptox.DecodeSessionToken(rawToken)
	if err != nil {
		return domain.Session{}, ErrMalformedToken
	}
	if _, err := idx.Parse(sessionID); err != nil {
		return domain.Session{}, ErrMalformedToken
	}

	session, err := s.Store.Sessions().GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, ErrInvalidToken
		}
		return domain.Session{}, err
	}

	if !cryptox.FingerprintEqual(s.Salt, rawToken, session.RefreshTokenHash) {
		return domain.Session{}, ErrInvalidToken
	}

	now := time.Now().UTC()
	status := session.Status(now)
	if status == domain.SessionExpired {
		// Lazy expiry: mark the row revoked so listings and chains agree.
		// Best effort, the validation verdict stands either way.
		if err := s.Store.Sessions().RevokeSessionByID(ctx, session.ID, now); err != nil {
			slogx.FromContext(ctx).Warn("failed to revoke expired session", "session_id", session.ID, "err", err)
		}
	}
	if status != domain.SessionActive {
		return session, &SessionNotActiveError{Status: status}
	}

	return session, nil
}

// Rotate retires the current session and opens its successor in one
// transaction. The conditional claim makes rotation one-time: when two
// requests race on the same token, exactly one wins and the other sees the
// session as already rotated.
func (s *SessionManager) Rotate(ctx context.Context, current domain.Session, jti, userAgent, ip string) (domain.Session, string, error) {
	now := time.Now().UTC()
	successor := domain.Session{
		ID:          idx.New().String(),
		UserID:      current.UserID,
		UserAgent:   userAgent,
		IP:          ip,
		JTI:         jti,
		RotatedFrom: &current.ID,
		ExpiresAt:   now.Add(s.ttl()),
		CreatedAt:   now,
	}

	token, err := cryptox.NewSessionToken(successor.ID)
	if err != nil {
		return domain.Session{}, "", err
	}
	hash := cryptox.Fingerprint(s.Salt, token)

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		claimed, err := tx.Sessions().ClaimSessionForRotation(ctx, current.ID, now)
		if err != nil {
			return fmt.Errorf("failed to claim session for rotation: %w", err)
		}
		if !claimed {
			return &SessionNotActiveError{Status: domain.SessionRotated}
		}

		if err := tx.Sessions().CreateSession(ctx, successor); err != nil {
			return fmt.Errorf("failed to create successor session: %w", err)
		}
		if err := tx.Sessions().SetSessionRefreshHash(ctx, successor.ID, hash); err != nil {
			return fmt.Errorf("failed to store refresh hash: %w", err)
		}
		return tx.Sessions().LinkRotation(ctx, current.ID, successor.ID)
	})
	if err != nil {
		return domain.Session{}, "", err
	}

	successor.RefreshTokenHash = hash
	return successor, token, nil
}

// Revoke kills one session. Idempotent.
func (s *SessionManager) Revoke(ctx context.Context, sessionID string) error {
	return s.Store.Sessions().RevokeSessionByID(ctx, sessionID, time.Now().UTC())
}

// RevokeByToken resolves a raw refresh token and revokes its session. A token
// whose session is already terminal is left untouched and reported without
// error, matching the idempotent revoke contract.
func (s *SessionManager) RevokeByToken(ctx context.Context, rawToken string) (domain.Session, error) {
	session, err := s.Validate(ctx, rawToken)
	if err != nil {
		var notActive *SessionNotActiveError
		if errors.As(err, &notActive) {
			return session, nil
		}
		return domain.Session{}, err
	}
	return session, s.Revoke(ctx, session.ID)
}

// RevokeByJTI kills the session that issued the access token with this jti.
func (s *SessionManager) RevokeByJTI(ctx context.Context, jti string) error {
	session, err := s.Store.Sessions().GetSessionByJTI(ctx, jti)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.Revoke(ctx, session.ID)
}

// RevokeAllForUser bulk-revokes every active session for a user. Returns the
// number revoked.
func (s *SessionManager) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	return s.Store.Sessions().RevokeAllUserSessions(ctx, userID, time.Now().UTC())
}

// RevokeChainFrom revokes the session and every successor after it. Called
// when a rotated token is replayed: the whole tail of the chain is burned
// because the legitimate holder can no longer be told apart from the thief.
func (s *SessionManager) RevokeChainFrom(ctx context.Context, sessionID string) (int, error) {
	now := time.Now().UTC()
	revoked := 0
	seen := make(map[string]struct{})

	id := sessionID
	for id != "" {
		if _, ok := seen[id]; ok {
			break
		}
		seen[id] = struct{}{}

		session, err := s.Store.Sessions().GetSessionByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				break
			}
			return revoked, err
		}

		if session.RevokedAt == nil {
			if err := s.Store.Sessions().RevokeSessionByID(ctx, id, now); err != nil {
				return revoked, err
			}
			revoked++
		}

		if session.RotatedTo == nil {
			break
		}
		id = *session.RotatedTo
	}

	return revoked, nil
}

// Chain returns the full rotation chain containing the given session, head
// first. Serves the admin audit surface.
func (s *SessionManager) Chain(ctx context.Context, sessionID string) ([]domain.Session, error) {
	session, err := s.Store.Sessions().GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// Walk back to the chain head.
	seen := map[string]struct{}{session.ID: {}}
	head := session
	for head.RotatedFrom != nil {
		if _, ok := seen[*head.RotatedFrom]; ok {
			break
		}
		seen[*head.RotatedFrom] = struct{}{}

		prev, err := s.Store.Sessions().GetSessionByID(ctx, *head.RotatedFrom)
		if err != nil {
			return nil, err
		}
		head = prev
	}

	// Walk forward collecting the chain.
	var chain []domain.Session
	seen = map[string]struct{}{}
	current := head
	for {
		if _, ok := seen[current.ID]; ok {
			break
		}
		seen[current.ID] = struct{}{}
		chain = append(chain, current)

		if current.RotatedTo == nil {
			break
		}
		next, err := s.Store.Sessions().GetSessionByID(ctx, *current.RotatedTo)
		if err != nil {
			return nil, err
		}
		current = next
	}

	return chain, nil
}

// ListActive returns the user's live sessions, newest first.
func (s *SessionManager) ListActive(ctx context.Context, userID string) ([]domain.Session, error) {
	return s.Store.Sessions().ListActiveUserSessions(ctx, userID, time.Now().UTC())
}

// CountActive returns how many live sessions the user has.
func (s *SessionManager) CountActive(ctx context.Context, userID string) (int, error) {
	return s.Store.Sessions().CountUserSessions(ctx, userID, time.Now().UTC())
}
