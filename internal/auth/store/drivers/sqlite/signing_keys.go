package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/voltplan/voltplan/internal/auth/domain"
)

type signingKeysRepo struct {
	q querier
}

const signingKeyColumns = `id, kid, algorithm, public_key_pem, private_key_encrypted,
	is_active, rotated_at, created_at`

func (r *signingKeysRepo) CreateSigningKey(ctx context.Context, key domain.SigningKey) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO signing_keys (id, kid, algorithm, public_key_pem, private_key_encrypted,
		                           is_active, rotated_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID, key.Kid, key.Algorithm, key.PublicKeyPEM, key.PrivateKeyEncrypted,
		key.IsActive, mapOptionalTime(key.RotatedAt), key.CreatedAt,
	)
	return mapConflict(err)
}

func (r *signingKeysRepo) GetSigningKeyByKid(ctx context.Context, kid string) (domain.SigningKey, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+signingKeyColumns+` FROM signing_keys WHERE kid = ?`, kid)
	return scanSigningKey(row)
}

func (r *signingKeysRepo) GetActiveSigningKey(ctx context.Context) (domain.SigningKey, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+signingKeyColumns+` FROM signing_keys WHERE is_active = 1`)
	return scanSigningKey(row)
}

func (r *signingKeysRepo) ListActiveSigningKeys(ctx context.Context) ([]domain.SigningKey, error) {
	return r.list(ctx,
		`SELECT `+signingKeyColumns+` FROM signing_keys WHERE is_active = 1
		 ORDER BY created_at DESC`)
}

func (r *signingKeysRepo) ListAllSigningKeys(ctx context.Context) ([]domain.SigningKey, error) {
	return r.list(ctx,
		`SELECT `+signingKeyColumns+` FROM signing_keys ORDER BY created_at DESC`)
}

func (r *signingKeysRepo) DeactivateActiveSigningKeys(ctx context.Context, now time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE signing_keys SET is_active = 0, rotated_at = ? WHERE is_active = 1`, now)
	return err
}

func (r *signingKeysRepo) list(ctx context.Context, query string) ([]domain.SigningKey, error) {
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.SigningKey
	for rows.Next() {
		var (
			k         domain.SigningKey
			rotatedAt sql.NullTime
		)
		err := rows.Scan(&k.ID, &k.Kid, &k.Algorithm, &k.PublicKeyPEM, &k.PrivateKeyEncrypted,
			&k.IsActive, &rotatedAt, &k.CreatedAt)
		if err != nil {
			return nil, err
		}
		k.RotatedAt = mapNullTimePtr(rotatedAt)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func scanSigningKey(row *sql.Row) (domain.SigningKey, error) {
	var (
		k         domain.SigningKey
		rotatedAt sql.NullTime
	)
	err := row.Scan(&k.ID, &k.Kid, &k.Algorithm, &k.PublicKeyPEM, &k.PrivateKeyEncrypted,
		&k.IsActive, &rotatedAt, &k.CreatedAt)
	if err != nil {
		return domain.SigningKey{}, mapNotFound(err)
	}
	k.RotatedAt = mapNullTimePtr(rotatedAt)
	return k, nil
}
