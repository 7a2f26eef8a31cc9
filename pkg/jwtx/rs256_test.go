package jwtx_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/voltplan/voltplan/pkg/jwtx"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	key := testKey(t)
	claims := jwtx.NewAccessClaims(
		"user-1", "member", "Ada", "ada@example.com",
		"voltplan-auth", time.Minute, time.Now(),
	)

	token, err := jwtx.Sign(claims, "voltplan-k1", key)
	require.NoError(t, err)

	got, err := jwtx.Verify(token, func(kid string) (*rsa.PublicKey, error) {
		require.Equal(t, "voltplan-k1", kid)
		return &key.PublicKey, nil
	})
	require.NoError(t, err)
	require.Equal(t, claims.Subject, got.Subject)
	require.Equal(t, claims.Role, got.Role)
	require.Equal(t, claims.ID, got.ID)
}

func TestVerifyErrors(t *testing.T) {
	t.Parallel()

	key := testKey(t)
	resolve := func(string) (*rsa.PublicKey, error) { return &key.PublicKey, nil }

	t.Run("malformed token", func(t *testing.T) {
		_, err := jwtx.Verify("not.a.jwt", resolve)
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := jwtx.NewAccessClaims("u", "member", "", "", "iss", -time.Minute, time.Now())
		token, err := jwtx.Sign(claims, "k", key)
		require.NoError(t, err)

		_, err = jwtx.Verify(token, resolve)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("unknown kid", func(t *testing.T) {
		claims := jwtx.NewAccessClaims("u", "member", "", "", "iss", time.Minute, time.Now())
		token, err := jwtx.Sign(claims, "ghost", key)
		require.NoError(t, err)

		_, err = jwtx.Verify(token, func(string) (*rsa.PublicKey, error) {
			return nil, jwtx.ErrUnknownKID
		})
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	})

	t.Run("wrong key", func(t *testing.T) {
		other := testKey(t)
		claims := jwtx.NewAccessClaims("u", "member", "", "", "iss", time.Minute, time.Now())
		token, err := jwtx.Sign(claims, "k", key)
		require.NoError(t, err)

		_, err = jwtx.Verify(token, func(string) (*rsa.PublicKey, error) {
			return &other.PublicKey, nil
		})
		require.ErrorIs(t, err, jwtx.ErrInvalidSignature)
	})
}

func TestDecodeUnverified(t *testing.T) {
	t.Parallel()

	key := testKey(t)
	claims := jwtx.NewAccessClaims("u1", "admin", "", "", "iss", time.Minute, time.Now())
	token, err := jwtx.Sign(claims, "voltplan-k2", key)
	require.NoError(t, err)

	got, kid, err := jwtx.Decode(token)
	require.NoError(t, err)
	require.Equal(t, "voltplan-k2", kid)
	require.Equal(t, "u1", got.Subject)

	_, _, err = jwtx.Decode("garbage")
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}

func TestRSAJWKRoundTrip(t *testing.T) {
	t.Parallel()

	key := testKey(t)
	jwk := jwtx.NewRSAJWK("kid-1", &key.PublicKey)

	require.Equal(t, "RSA", jwk.Kty)
	require.Equal(t, "sig", jwk.Use)
	require.Equal(t, "RS256", jwk.Alg)
	require.Equal(t, "AQAB", jwk.E)

	pub, err := jwk.PublicKey()
	require.NoError(t, err)
	require.True(t, pub.Equal(&key.PublicKey))
}
