package cryptox_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/voltplan/voltplan/pkg/cryptox"
)

// Small parameters keep the test fast; production uses DefaultArgon2Hasher.
func testHasher() *cryptox.Argon2Hasher {
	return &cryptox.Argon2Hasher{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestArgon2HashVerify(t *testing.T) {
	t.Parallel()

	h := testHasher()
	encoded, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	ok, err := h.Verify("correct horse battery staple", encoded)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.Verify("wrong password", encoded)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestArgon2HashesAreSalted(t *testing.T) {
	t.Parallel()

	h := testHasher()
	a, err := h.Hash("pw")
	require.NoError(t, err)
	b, err := h.Hash("pw")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestArgon2VerifyRejectsGarbage(t *testing.T) {
	t.Parallel()

	h := testHasher()
	_, err := h.Verify("pw", "not-a-phc-string")
	require.ErrorIs(t, err, cryptox.ErrInvalidHash)

	_, err = h.Verify("pw", "$bcrypt$v=19$m=8,t=1,p=1$c2FsdA$aGFzaA")
	require.ErrorIs(t, err, cryptox.ErrInvalidHash)
}

func TestArgon2NeedsUpgrade(t *testing.T) {
	t.Parallel()

	weak := testHasher()
	encoded, err := weak.Hash("pw")
	require.NoError(t, err)

	require.False(t, weak.NeedsUpgrade(encoded))
	require.True(t, cryptox.DefaultArgon2Hasher().NeedsUpgrade(encoded))
	require.True(t, weak.NeedsUpgrade("garbage"))
}
