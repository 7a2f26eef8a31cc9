package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/voltplan/voltplan/internal/auth/audit"
	"github.com/voltplan/voltplan/internal/auth/domain"
	"github.com/voltplan/voltplan/internal/auth/store"
	"github.com/voltplan/voltplan/internal/auth/store/drivers/sqlite"
	"github.com/voltplan/voltplan/pkg/cryptox"
	"github.com/voltplan/voltplan/pkg/idx"
)

var testSalt = []byte("0123456789abcdef0123456789abcdef")

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func newTestKeyStore(t *testing.T, s store.Store) *KeyStore {
	t.Helper()

	cipher, err := cryptox.NewKeyCipher([]byte("test master secret"))
	require.NoError(t, err)

	return &KeyStore{
		Store:   s,
		Cipher:  cipher,
		RSABits: 2048,
		Audit:   audit.Nop{},
	}
}

func newTestSessions(t *testing.T, s store.Store) *SessionManager {
	t.Helper()
	return &SessionManager{
		Store:           s,
		Salt:            testSalt,
		RefreshTokenTTL: time.Hour,
	}
}

// cheapHasher keeps argon2 fast in tests.
func cheapHasher() *cryptox.Argon2Hasher {
	return &cryptox.Argon2Hasher{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func seedUser(t *testing.T, s store.Store, email, password, role string) domain.User {
	t.Helper()

	hash, err := cheapHasher().Hash(password)
	require.NoError(t, err)

	now := time.Now().UTC()
	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), user))
	return user
}
