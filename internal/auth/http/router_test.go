package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/voltplan/voltplan/internal/auth/audit"
	"github.com/voltplan/voltplan/internal/auth/domain"
	"github.com/voltplan/voltplan/internal/auth/service"
	"github.com/voltplan/voltplan/internal/auth/store"
	"github.com/voltplan/voltplan/internal/auth/store/drivers/sqlite"
	"github.com/voltplan/voltplan/pkg/cryptox"
	"github.com/voltplan/voltplan/pkg/idx"
	"github.com/voltplan/voltplan/pkg/jwtx"
)

type testEnv struct {
	router *Router
	store  store.Store
	auth   *service.AuthService

	addrSeq int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	cipher, err := cryptox.NewKeyCipher([]byte("test master secret"))
	require.NoError(t, err)

	keyStore := &service.KeyStore{Store: s, Cipher: cipher, RSABits: 2048, Audit: audit.Nop{}}
	_, err = keyStore.CreateInitialKey(context.Background())
	require.NoError(t, err)

	tokens := &service.TokenService{Keys: keyStore, Issuer: "voltplan-auth", AccessTokenTTL: time.Minute}
	sessions := &service.SessionManager{
		Store:           s,
		Salt:            []byte("0123456789abcdef0123456789abcdef"),
		RefreshTokenTTL: time.Hour,
	}
	auth := &service.AuthService{
		Store:    s,
		Tokens:   tokens,
		Sessions: sessions,
		Hasher:   testHasher(),
		Audit:    audit.Nop{},
	}

	router := NewRouter("test", s, slog.Default())
	router.AuthService = auth
	router.TokenService = tokens
	router.SessionManager = sessions
	router.KeyStore = keyStore
	router.ApplyRoutes()

	return &testEnv{router: router, store: s, auth: auth}
}

func testHasher() *cryptox.Argon2Hasher {
	return &cryptox.Argon2Hasher{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (e *testEnv) seedUser(t *testing.T, email, password, role string) domain.User {
	t.Helper()

	hash, err := testHasher().Hash(password)
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
	require.NoError(t, e.store.Users().CreateUser(context.Background(), user))
	return user
}

// do sends a JSON request through the router. Each request gets a unique
// client address so the per-IP rate limiters stay out of the way.
func (e *testEnv) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	e.addrSeq++
	req.RemoteAddr = fmt.Sprintf("198.51.100.%d:4321", e.addrSeq%250+1)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestLoginEndpoint(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	user := e.seedUser(t, "ada@example.com", "correct horse", domain.RoleMember)

	t.Run("success", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/auth/login", "",
			LoginRequest{Email: "ada@example.com", Password: "correct horse"})
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

		body := decodeBody[TokenResponse](t, rec)
		require.Equal(t, "Bearer", body.TokenType)
		require.NotEmpty(t, body.AccessToken)
		require.NotEmpty(t, body.RefreshToken)
		require.Equal(t, user.ID, body.User.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/auth/login", "",
			LoginRequest{Email: "ada@example.com", Password: "nope"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "invalid_credentials")
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/auth/login", "",
			LoginRequest{Email: "ada@example.com"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRefreshEndpoint(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	e.seedUser(t, "ada@example.com", "pw", domain.RoleMember)

	login := decodeBody[TokenResponse](t, e.do(t, http.MethodPost, "/v1/auth/login", "",
		LoginRequest{Email: "ada@example.com", Password: "pw"}))

	rec := e.do(t, http.MethodPost, "/v1/auth/refresh", "",
		RefreshRequest{RefreshToken: login.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	refreshed := decodeBody[TokenResponse](t, rec)
	require.NotEmpty(t, refreshed.AccessToken)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	t.Run("replayed token is rejected", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/auth/refresh", "",
			RefreshRequest{RefreshToken: login.RefreshToken})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "invalid_grant")
	})

	t.Run("malformed token", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/auth/refresh", "",
			RefreshRequest{RefreshToken: "garbage"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLogoutEndpoint(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	e.seedUser(t, "ada@example.com", "pw", domain.RoleMember)

	login := decodeBody[TokenResponse](t, e.do(t, http.MethodPost, "/v1/auth/login", "",
		LoginRequest{Email: "ada@example.com", Password: "pw"}))

	rec := e.do(t, http.MethodPost, "/v1/auth/logout", "",
		LogoutRequest{RefreshToken: login.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("refresh after logout fails", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/auth/refresh", "",
			RefreshRequest{RefreshToken: login.RefreshToken})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("logout is always 200", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/auth/logout", "",
			LogoutRequest{RefreshToken: "garbage"})
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestJWKSEndpoint(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/.well-known/jwks.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	jwks := decodeBody[jwtx.JWKS](t, rec)
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "RSA", jwks.Keys[0].Kty)
	require.Equal(t, "RS256", jwks.Keys[0].Alg)
}

func TestKeysEndpoints(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	e.seedUser(t, "admin@example.com", "pw", domain.RoleAdmin)
	e.seedUser(t, "member@example.com", "pw", domain.RoleMember)

	adminLogin := decodeBody[TokenResponse](t, e.do(t, http.MethodPost, "/v1/auth/login", "",
		LoginRequest{Email: "admin@example.com", Password: "pw"}))
	memberLogin := decodeBody[TokenResponse](t, e.do(t, http.MethodPost, "/v1/auth/login", "",
		LoginRequest{Email: "member@example.com", Password: "pw"}))

	t.Run("rotation requires admin role", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/keys/rotate", memberLogin.AccessToken, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("rotation requires authentication", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/keys/rotate", "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("admin rotates and lists keys", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/keys/rotate", adminLogin.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rotated := decodeBody[KeyResponse](t, rec)
		require.True(t, rotated.IsActive)

		rec = e.do(t, http.MethodGet, "/v1/keys", adminLogin.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		list := decodeBody[map[string][]KeyResponse](t, rec)
		require.Len(t, list["keys"], 2)
	})

	t.Run("old access tokens survive rotation", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/v1/sessions", memberLogin.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestSessionsEndpoints(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	user := e.seedUser(t, "ada@example.com", "pw", domain.RoleMember)
	e.seedUser(t, "admin@example.com", "pw", domain.RoleAdmin)

	first := decodeBody[TokenResponse](t, e.do(t, http.MethodPost, "/v1/auth/login", "",
		LoginRequest{Email: "ada@example.com", Password: "pw"}))
	second := decodeBody[TokenResponse](t, e.do(t, http.MethodPost, "/v1/auth/login", "",
		LoginRequest{Email: "ada@example.com", Password: "pw"}))
	adminLogin := decodeBody[TokenResponse](t, e.do(t, http.MethodPost, "/v1/auth/login", "",
		LoginRequest{Email: "admin@example.com", Password: "pw"}))

	secondSessionID, err := cryptox.DecodeSessionToken(second.RefreshToken)
	require.NoError(t, err)

	t.Run("list own sessions", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/v1/sessions", first.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody[map[string][]SessionResponse](t, rec)
		require.Len(t, body["sessions"], 2)
		for _, s := range body["sessions"] {
			require.Equal(t, user.ID, s.UserID)
			require.Equal(t, "active", s.Status)
		}
	})

	t.Run("requires authentication", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/v1/sessions", "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("revoke own session", func(t *testing.T) {
		rec := e.do(t, http.MethodDelete, "/v1/sessions/"+secondSessionID, first.AccessToken, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		refresh := e.do(t, http.MethodPost, "/v1/auth/refresh", "",
			RefreshRequest{RefreshToken: second.RefreshToken})
		require.Equal(t, http.StatusUnauthorized, refresh.Code)
	})

	t.Run("cannot revoke another user's session", func(t *testing.T) {
		adminSessionID, err := cryptox.DecodeSessionToken(adminLogin.RefreshToken)
		require.NoError(t, err)

		rec := e.do(t, http.MethodDelete, "/v1/sessions/"+adminSessionID, first.AccessToken, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("admin chain view", func(t *testing.T) {
		refreshed := decodeBody[TokenResponse](t, e.do(t, http.MethodPost, "/v1/auth/refresh", "",
			RefreshRequest{RefreshToken: first.RefreshToken}))
		require.NotEmpty(t, refreshed.RefreshToken)

		successorID, err := cryptox.DecodeSessionToken(refreshed.RefreshToken)
		require.NoError(t, err)

		rec := e.do(t, http.MethodGet, "/v1/admin/sessions/"+successorID+"/chain", adminLogin.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		chain := decodeBody[map[string][]SessionResponse](t, rec)
		require.Len(t, chain["chain"], 2)
		require.Equal(t, "rotated", chain["chain"][0].Status)
		require.Equal(t, "active", chain["chain"][1].Status)

		t.Run("members may not view chains", func(t *testing.T) {
			rec := e.do(t, http.MethodGet, "/v1/admin/sessions/"+successorID+"/chain", refreshed.AccessToken, nil)
			require.Equal(t, http.StatusForbidden, rec.Code)
		})
	})

	t.Run("revoke all sessions", func(t *testing.T) {
		login := decodeBody[TokenResponse](t, e.do(t, http.MethodPost, "/v1/auth/login", "",
			LoginRequest{Email: "ada@example.com", Password: "pw"}))

		rec := e.do(t, http.MethodDelete, "/v1/sessions", login.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody[map[string]int](t, rec)
		require.Greater(t, body["revoked"], 0)

		refresh := e.do(t, http.MethodPost, "/v1/auth/refresh", "",
			RefreshRequest{RefreshToken: login.RefreshToken})
		require.Equal(t, http.StatusUnauthorized, refresh.Code)
	})
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeBody[HealthResponse](t, rec).Status)

	rec = e.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
