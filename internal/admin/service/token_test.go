package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gatekit/gatekit/internal/admin/domain"
	"github.com/gatekit/gatekit/internal/admin/session"
	"github.com/gatekit/gatekit/internal/admin/session/drivers/memory"
	"github.com/gatekit/gatekit/internal/admin/store/drivers/sqlite"
	"github.com/gatekit/gatekit/pkg/cryptox"
	"github.com/gatekit/gatekit/pkg/idx"
	"github.com/gatekit/gatekit/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store    *sqlite.Store
	sessions *memory.Store
	codec    *jwtx.Codec

	tokens *TokenService
	authn  *Authenticator
	authz  *Authorizer
	revoke *Revoker
	users  *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	sessions := memory.NewStore()
	t.Cleanup(func() { _ = sessions.Close() })

	codec, err := jwtx.NewCodec([]byte("test-signing-key-0123456789abcdef"), "HS256")
	require.NoError(t, err)

	revoke := &Revoker{Sessions: sessions}
	tokens := &TokenService{
		Codec:      codec,
		Sessions:   sessions,
		Store:      st,
		Revoker:    revoke,
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	}

	return &testEnv{
		store:    st,
		sessions: sessions,
		codec:    codec,
		tokens:   tokens,
		authn:    &Authenticator{Codec: codec, Sessions: sessions, Store: st},
		authz:    &Authorizer{Store: st},
		revoke:   revoke,
		users:    &UserService{Store: st, Tokens: tokens, Revoker: revoke},
	}
}

func (e *testEnv) createUser(t *testing.T, username string, superuser bool) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword("password123")
	require.NoError(t, err)

	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
		IsSuperuser:  superuser,
		IsActive:     true,
	}
	require.NoError(t, e.store.Users().CreateUser(context.Background(), u))
	return u
}

func TestIssuePairThenAuthenticate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", false)

	pair, err := env.tokens.IssuePair(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "alice", pair.Username)

	identity, err := env.authn.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, identity.UserID)
	require.Equal(t, "alice", identity.Username)
	require.False(t, identity.IsSuperuser)
}

func TestRefreshTokenIsNotAnAccessCredential(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", false)

	pair, err := env.tokens.IssuePair(ctx, user)
	require.NoError(t, err)

	_, err = env.authn.Authenticate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRotateConsumesRefreshToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", false)

	pair, err := env.tokens.IssuePair(ctx, user)
	require.NoError(t, err)

	rotated, err := env.tokens.Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, rotated.AccessToken)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The new pair works.
	identity, err := env.authn.Authenticate(ctx, rotated.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, identity.UserID)

	// The original refresh token is spent: every further use fails.
	for range 3 {
		_, err = env.tokens.Rotate(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefreshToken)
	}
}

func TestRotateSparesOtherSessions(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", false)

	first, err := env.tokens.IssuePair(ctx, user)
	require.NoError(t, err)
	second, err := env.tokens.IssuePair(ctx, user)
	require.NoError(t, err)

	_, err = env.tokens.Rotate(ctx, first.RefreshToken)
	require.NoError(t, err)

	// The second session is untouched by the first session's rotation.
	_, err = env.authn.Authenticate(ctx, second.AccessToken)
	require.NoError(t, err)
	_, err = env.tokens.Rotate(ctx, second.RefreshToken)
	require.NoError(t, err)
}

func TestRevokeAllKillsEveryToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", false)

	first, err := env.tokens.IssuePair(ctx, user)
	require.NoError(t, err)
	second, err := env.tokens.IssuePair(ctx, user)
	require.NoError(t, err)

	require.NoError(t, env.revoke.RevokeAll(ctx, user.ID))

	for _, token := range []string{first.AccessToken, second.AccessToken} {
		_, err = env.authn.Authenticate(ctx, token)
		require.ErrorIs(t, err, ErrUnauthenticated)
	}
	for _, token := range []string{first.RefreshToken, second.RefreshToken} {
		_, err = env.tokens.Rotate(ctx, token)
		require.ErrorIs(t, err, ErrInvalidRefreshToken)
	}

	// Idempotent: revoking again succeeds.
	require.NoError(t, env.revoke.RevokeAll(ctx, user.ID))
}

func TestStoreAbsenceBeatsValidSignature(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", false)

	pair, err := env.tokens.IssuePair(ctx, user)
	require.NoError(t, err)

	// Delete the session record; the signature still verifies.
	require.NoError(t, env.sessions.Delete(ctx, session.ClassAccess, user.ID, pair.AccessToken))
	_, err = env.codec.VerifyClass(pair.AccessToken, jwtx.ClassAccess)
	require.NoError(t, err)

	_, err = env.authn.Authenticate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestConcurrentDoubleRotation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", false)

	pair, err := env.tokens.IssuePair(ctx, user)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.tokens.Rotate(ctx, pair.RefreshToken)
		}()
	}
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		default:
			require.ErrorIs(t, err, ErrInvalidRefreshToken)
			losses++
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, losses)
}

func TestRotateRejectsGarbageAndExpired(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", false)

	t.Run("garbage token", func(t *testing.T) {
		_, err := env.tokens.Rotate(ctx, "not-a-token")
		require.ErrorIs(t, err, ErrInvalidRefreshToken)
	})

	t.Run("expired refresh with live record", func(t *testing.T) {
		// Sign an already-expired refresh token and seed its record by
		// hand: the store check passes, the expiry check must not.
		expired, err := env.codec.Sign(jwtx.NewClaims(user.ID, user.Username, false, jwtx.ClassRefresh, -time.Minute, time.Now()))
		require.NoError(t, err)

		rec := session.Record{UserID: user.ID, Username: user.Username, Token: expired, CreatedAt: time.Now().Unix()}
		access := rec
		access.Token = "placeholder-access"
		require.NoError(t, env.sessions.PutPair(ctx, access, rec, time.Minute, time.Hour))

		_, err = env.tokens.Rotate(ctx, expired)
		require.ErrorIs(t, err, ErrExpiredRefreshToken)

		// The unusable record is dropped, not left to idle out its TTL.
		exists, err := env.sessions.Exists(ctx, session.ClassRefresh, user.ID, expired)
		require.NoError(t, err)
		require.False(t, exists)
	})
}

func TestRevokeOneKillsSingleSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", false)

	first, err := env.tokens.IssuePair(ctx, user)
	require.NoError(t, err)
	second, err := env.tokens.IssuePair(ctx, user)
	require.NoError(t, err)

	require.NoError(t, env.revoke.RevokeOne(ctx, user.ID, session.ClassAccess, first.AccessToken))

	// The revoked access token is dead even though its signature still
	// verifies.
	_, err = env.authn.Authenticate(ctx, first.AccessToken)
	require.ErrorIs(t, err, ErrUnauthenticated)

	// Its sibling refresh token and the user's other session survive.
	_, err = env.authn.AuthenticateRefresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	_, err = env.authn.Authenticate(ctx, second.AccessToken)
	require.NoError(t, err)

	// Revoking an already-dead token is a no-op success.
	require.NoError(t, env.revoke.RevokeOne(ctx, user.ID, session.ClassAccess, first.AccessToken))
}

func TestDevBypass(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "admin", true)

	t.Run("disabled by default", func(t *testing.T) {
		_, err := env.authn.Authenticate(ctx, DevBypassToken)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("resolves to first user when enabled", func(t *testing.T) {
		bypass := &Authenticator{Codec: env.codec, Sessions: env.sessions, Store: env.store, DevBypass: true}
		identity, err := bypass.Authenticate(ctx, DevBypassToken)
		require.NoError(t, err)
		require.Equal(t, admin.ID, identity.UserID)
	})
}

func TestLoginFlow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", false)

	t.Run("correct password issues a pair", func(t *testing.T) {
		pair, err := env.users.Login(ctx, "alice", "password123")
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)

		_, err = env.authn.Authenticate(ctx, pair.AccessToken)
		require.NoError(t, err)
	})

	t.Run("wrong password and unknown user look identical", func(t *testing.T) {
		_, errWrong := env.users.Login(ctx, "alice", "nope")
		_, errUnknown := env.users.Login(ctx, "nobody", "nope")
		require.ErrorIs(t, errWrong, ErrInvalidCredentials)
		require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	})
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", false)

	pair, err := env.users.Login(ctx, "alice", "password123")
	require.NoError(t, err)

	t.Run("wrong old password rejected", func(t *testing.T) {
		err := env.users.ChangePassword(ctx, user.ID, "wrong", "newpassword456")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	require.NoError(t, env.users.ChangePassword(ctx, user.ID, "password123", "newpassword456"))

	// Old sessions are dead, old password no longer works.
	_, err = env.authn.Authenticate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrUnauthenticated)
	_, err = env.users.Login(ctx, "alice", "password123")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.users.Login(ctx, "alice", "newpassword456")
	require.NoError(t, err)
}
