package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gatekit/gatekit/internal/admin/domain"
	"github.com/gatekit/gatekit/internal/admin/service"
	"github.com/gatekit/gatekit/internal/admin/session/drivers/memory"
	"github.com/gatekit/gatekit/internal/admin/store/drivers/sqlite"
	"github.com/gatekit/gatekit/pkg/cryptox"
	"github.com/gatekit/gatekit/pkg/idx"
	"github.com/gatekit/gatekit/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "gatekit-http-test")
	if err != nil {
		os.Exit(1)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

type fixture struct {
	router *Router
	store  *sqlite.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	sessions := memory.NewStore()
	t.Cleanup(func() { _ = sessions.Close() })

	codec, err := jwtx.NewCodec([]byte("test-signing-key-0123456789abcdef"), "HS256")
	require.NoError(t, err)

	revoker := &service.Revoker{Sessions: sessions}
	tokens := &service.TokenService{
		Codec:      codec,
		Sessions:   sessions,
		Store:      st,
		Revoker:    revoker,
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter("test", st, sessions, logger)
	router.TokenService = tokens
	router.UserService = &service.UserService{Store: st, Tokens: tokens, Revoker: revoker}
	router.Authenticator = &service.Authenticator{Codec: codec, Sessions: sessions, Store: st}
	router.Authorizer = &service.Authorizer{Store: st}
	router.ApplyRoutes()

	return &fixture{router: router, store: st}
}

func (f *fixture) createUser(t *testing.T, username, password string, superuser bool) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
		IsSuperuser:  superuser,
		IsActive:     true,
	}
	require.NoError(t, f.store.Users().CreateUser(context.Background(), u))
	return u
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func (f *fixture) login(t *testing.T, username, password string) domain.TokenPair {
	t.Helper()

	rec, resp := f.do(t, http.MethodPost, "/api/v1/base/access_token", "",
		map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, resp.Msg)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var pair domain.TokenPair
	require.NoError(t, json.Unmarshal(raw, &pair))
	return pair
}

func TestLoginEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.createUser(t, "alice", "password123", false)

	t.Run("issues a pair on valid credentials", func(t *testing.T) {
		pair := f.login(t, "alice", "password123")
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)
		require.Equal(t, "alice", pair.Username)
	})

	t.Run("sets no-store on token responses", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodPost, "/api/v1/base/access_token", "",
			map[string]string{"username": "alice", "password": "password123"})
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	})

	t.Run("rejects wrong password with 401 envelope", func(t *testing.T) {
		rec, resp := f.do(t, http.MethodPost, "/api/v1/base/access_token", "",
			map[string]string{"username": "alice", "password": "wrong"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
		require.Equal(t, "invalid username or password", resp.Msg)
	})

	t.Run("rejects missing fields with 400", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodPost, "/api/v1/base/access_token", "",
			map[string]string{"username": "alice"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRefreshEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.createUser(t, "alice", "password123", false)
	pair := f.login(t, "alice", "password123")

	rec, resp := f.do(t, http.MethodPost, "/api/v1/base/refresh_token", "",
		map[string]string{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var rotated domain.TokenPair
	require.NoError(t, json.Unmarshal(raw, &rotated))
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	t.Run("spent token yields 401", func(t *testing.T) {
		rec, resp := f.do(t, http.MethodPost, "/api/v1/base/refresh_token", "",
			map[string]string{"refresh_token": pair.RefreshToken})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "invalid refresh token", resp.Msg)
	})
}

func TestTokenHeaderAuthentication(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	user := f.createUser(t, "alice", "password123", false)
	pair := f.login(t, "alice", "password123")

	t.Run("userinfo with valid token", func(t *testing.T) {
		rec, resp := f.do(t, http.MethodGet, "/api/v1/base/userinfo", pair.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		data := resp.Data.(map[string]any)
		require.Equal(t, user.ID, data["user_id"])
		require.Equal(t, "alice", data["username"])
	})

	t.Run("missing token yields 401", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodGet, "/api/v1/base/userinfo", "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("refresh token is not an access credential", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodGet, "/api/v1/base/userinfo", pair.RefreshToken, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLogoutRevokesSessions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.createUser(t, "alice", "password123", false)
	pair := f.login(t, "alice", "password123")

	rec, _ := f.do(t, http.MethodPost, "/api/v1/base/logout", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/base/userinfo", pair.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/base/refresh_token", "",
		map[string]string{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdatePasswordEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.createUser(t, "alice", "password123", false)
	pair := f.login(t, "alice", "password123")

	rec, _ := f.do(t, http.MethodPost, "/api/v1/base/update_password", pair.AccessToken,
		map[string]string{"old_password": "password123", "new_password": "newpassword456"})
	require.Equal(t, http.StatusOK, rec.Code)

	// All sessions are gone; only the new password logs in.
	rec, _ = f.do(t, http.MethodGet, "/api/v1/base/userinfo", pair.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/base/access_token", "",
		map[string]string{"username": "alice", "password": "password123"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	f.login(t, "alice", "newpassword456")
}

func TestCapabilityGatedRoute(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	f.createUser(t, "roleless", "password123", false)
	granted := f.createUser(t, "granted", "password123", false)
	f.createUser(t, "root", "password123", true)

	role := domain.Role{ID: idx.New().String(), Name: "operators"}
	require.NoError(t, f.store.Roles().CreateRole(ctx, role))
	require.NoError(t, f.store.Roles().AssignRole(ctx, granted.ID, role.ID))
	api := domain.API{ID: idx.New().String(), Method: "GET", Path: "/api/v1/api/list"}
	require.NoError(t, f.store.APIs().CreateAPI(ctx, api))
	require.NoError(t, f.store.APIs().GrantToRole(ctx, role.ID, api.ID))

	t.Run("unbound user gets distinct 403", func(t *testing.T) {
		pair := f.login(t, "roleless", "password123")
		rec, resp := f.do(t, http.MethodGet, "/api/v1/api/list", pair.AccessToken, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "user has no roles bound", resp.Msg)
	})

	t.Run("granted role passes", func(t *testing.T) {
		pair := f.login(t, "granted", "password123")
		rec, _ := f.do(t, http.MethodGet, "/api/v1/api/list", pair.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("superuser bypasses capabilities", func(t *testing.T) {
		pair := f.login(t, "root", "password123")
		rec, _ := f.do(t, http.MethodGet, "/api/v1/api/list", pair.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestUserAPIEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	user := f.createUser(t, "alice", "password123", false)
	role := domain.Role{ID: idx.New().String(), Name: "readers"}
	require.NoError(t, f.store.Roles().CreateRole(ctx, role))
	require.NoError(t, f.store.Roles().AssignRole(ctx, user.ID, role.ID))
	api := domain.API{ID: idx.New().String(), Method: "GET", Path: "/api/v1/x"}
	require.NoError(t, f.store.APIs().CreateAPI(ctx, api))
	require.NoError(t, f.store.APIs().GrantToRole(ctx, role.ID, api.ID))

	pair := f.login(t, "alice", "password123")
	rec, resp := f.do(t, http.MethodGet, "/api/v1/base/userapi", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []any{"get/api/v1/x"}, resp.Data)
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)

	var health healthResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &health))
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "ok", health.Checks.Database)
	require.Equal(t, "ok", health.Checks.Sessions)
}
