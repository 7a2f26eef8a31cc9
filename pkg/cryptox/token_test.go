package cryptox_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/voltplan/voltplan/pkg/cryptox"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	t.Parallel()

	token, err := cryptox.NewSessionToken("01JABCDEF0123456789ABCDEFG")
	require.NoError(t, err)

	id, err := cryptox.DecodeSessionToken(token)
	require.NoError(t, err)
	require.Equal(t, "01JABCDEF0123456789ABCDEFG", id)
}

func TestSessionTokensAreUnique(t *testing.T) {
	t.Parallel()

	a, err := cryptox.NewSessionToken("sid")
	require.NoError(t, err)
	b, err := cryptox.NewSessionToken("sid")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestDecodeSessionTokenRejectsMalformed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"not base64url", "!!!!"},
		{"no separator", "c2lkb25seQ"},       // "sidonly"
		{"empty session id", "LnJhbmRvbQ"},   // ".random"
		{"empty randomness", "c2Vzc2lvbi4"},  // "session."
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := cryptox.DecodeSessionToken(tc.token)
			require.ErrorIs(t, err, cryptox.ErrMalformedToken)
		})
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	salt := []byte("0123456789abcdef0123456789abcdef")
	token, err := cryptox.NewSessionToken("sid")
	require.NoError(t, err)

	fp := cryptox.Fingerprint(salt, token)
	require.NotEmpty(t, fp)
	require.NotContains(t, fp, token)

	require.True(t, cryptox.FingerprintEqual(salt, token, fp))
	require.False(t, cryptox.FingerprintEqual(salt, token+"x", fp))
	require.False(t, cryptox.FingerprintEqual([]byte("other salt"), token, fp))
}
