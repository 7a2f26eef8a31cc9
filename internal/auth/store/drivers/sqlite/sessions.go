package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/voltplan/voltplan/internal/auth/domain"
)

type sessionsRepo struct {
	q querier
}

const sessionColumns = `id, user_id, refresh_token_hash, user_agent, ip, jti,
	rotated_from, rotated_to, expires_at, revoked_at, created_at`

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, refresh_token_hash, user_agent, ip, jti,
		                       rotated_from, rotated_to, expires_at, revoked_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.RefreshTokenHash, s.UserAgent, s.IP, s.JTI,
		mapOptionalString(s.RotatedFrom), mapOptionalString(s.RotatedTo),
		s.ExpiresAt, mapOptionalTime(s.RevokedAt), s.CreatedAt,
	)
	return mapConflict(err)
}

func (r *sessionsRepo) SetSessionRefreshHash(ctx context.Context, sessionID, hash string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE sessions SET refresh_token_hash = ? WHERE id = ?`, hash, sessionID)
	if err != nil {
		return mapConflict(err)
	}
	return requireRowAffected(res)
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

func (r *sessionsRepo) GetSessionByRefreshHash(ctx context.Context, hash string) (domain.Session, error) {
	// The empty-hash guard keeps rows that are mid-creation (hash not yet
	// set) from matching an empty probe.
	row := r.q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE refresh_token_hash = ? AND refresh_token_hash <> ''`, hash)
	return scanSession(row)
}

func (r *sessionsRepo) GetSessionByJTI(ctx context.Context, jti string) (domain.Session, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE jti = ?`, jti)
	return scanSession(row)
}

func (r *sessionsRepo) ListActiveUserSessions(ctx context.Context, userID string, now time.Time) ([]domain.Session, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = ? AND revoked_at IS NULL AND expires_at > ?
		 ORDER BY created_at DESC`,
		userID, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ClaimSessionForRotation is the serialization point for concurrent refresh
// attempts: the conditional update succeeds for exactly one caller.
func (r *sessionsRepo) ClaimSessionForRotation(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		now, sessionID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *sessionsRepo) LinkRotation(ctx context.Context, fromID, toID string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE sessions SET rotated_to = ? WHERE id = ?`, toID, fromID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *sessionsRepo) RevokeSessionByID(ctx context.Context, sessionID string, now time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		now, sessionID,
	)
	return err
}

func (r *sessionsRepo) RevokeAllUserSessions(ctx context.Context, userID string, now time.Time) (int, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`,
		now, userID,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *sessionsRepo) CountUserSessions(ctx context.Context, userID string, now time.Time) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions
		 WHERE user_id = ? AND revoked_at IS NULL AND expires_at > ?`,
		userID, now,
	).Scan(&count)
	return count, err
}

func scanSession(row *sql.Row) (domain.Session, error) {
	var (
		s                      domain.Session
		rotatedFrom, rotatedTo sql.NullString
		revokedAt              sql.NullTime
	)
	err := row.Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &s.UserAgent, &s.IP, &s.JTI,
		&rotatedFrom, &rotatedTo, &s.ExpiresAt, &revokedAt, &s.CreatedAt)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.RotatedFrom = mapNullStringPtr(rotatedFrom)
	s.RotatedTo = mapNullStringPtr(rotatedTo)
	s.RevokedAt = mapNullTimePtr(revokedAt)
	return s, nil
}

func scanSessionRows(rows *sql.Rows) (domain.Session, error) {
	var (
		s                      domain.Session
		rotatedFrom, rotatedTo sql.NullString
		revokedAt              sql.NullTime
	)
	err := rows.Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &s.UserAgent, &s.IP, &s.JTI,
		&rotatedFrom, &rotatedTo, &s.ExpiresAt, &revokedAt, &s.CreatedAt)
	if err != nil {
		return domain.Session{}, err
	}
	s.RotatedFrom = mapNullStringPtr(rotatedFrom)
	s.RotatedTo = mapNullStringPtr(rotatedTo)
	s.RevokedAt = mapNullTimePtr(revokedAt)
	return s, nil
}
