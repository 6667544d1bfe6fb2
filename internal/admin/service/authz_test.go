package service

import (
	"context"
	"testing"

	"github.com/gatekit/gatekit/internal/admin/domain"
	"github.com/gatekit/gatekit/pkg/idx"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) grantCapability(t *testing.T, userID, roleName, method, path string) {
	t.Helper()
	ctx := context.Background()

	role, err := e.store.Roles().GetRoleByName(ctx, roleName)
	if err != nil {
		role = domain.Role{ID: idx.New().String(), Name: roleName}
		require.NoError(t, e.store.Roles().CreateRole(ctx, role))
	}
	require.NoError(t, e.store.Roles().AssignRole(ctx, userID, role.ID))

	api := domain.API{ID: idx.New().String(), Method: method, Path: path}
	require.NoError(t, e.store.APIs().CreateAPI(ctx, api))
	require.NoError(t, e.store.APIs().GrantToRole(ctx, role.ID, api.ID))
}

func TestAuthorizeCapabilityMatching(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	user := env.createUser(t, "alice", false)
	env.grantCapability(t, user.ID, "readers", "GET", "/api/v1/x")
	identity := domain.Identity{UserID: user.ID, Username: "alice"}

	super := env.createUser(t, "root", true)
	superIdentity := domain.Identity{UserID: super.ID, Username: "root", IsSuperuser: true}

	cases := []struct {
		method, path string
		allowed      bool
	}{
		{"GET", "/api/v1/x", true},
		{"POST", "/api/v1/x", false},
		{"GET", "/api/v1/y", false},
		{"DELETE", "/api/v1/y", false},
	}
	for _, tc := range cases {
		err := env.authz.Authorize(ctx, identity, tc.method, tc.path)
		if tc.allowed {
			require.NoError(t, err, "%s %s", tc.method, tc.path)
		} else {
			require.ErrorIs(t, err, ErrPermissionDenied, "%s %s", tc.method, tc.path)
		}

		// Superuser bypasses the capability check for all of them.
		require.NoError(t, env.authz.Authorize(ctx, superIdentity, tc.method, tc.path))
	}

	t.Run("method match is case-insensitive", func(t *testing.T) {
		require.NoError(t, env.authz.Authorize(ctx, identity, "get", "/api/v1/x"))
	})

	t.Run("path match is exact", func(t *testing.T) {
		require.ErrorIs(t, env.authz.Authorize(ctx, identity, "GET", "/api/v1/x/"), ErrPermissionDenied)
		require.ErrorIs(t, env.authz.Authorize(ctx, identity, "GET", "/api/v1"), ErrPermissionDenied)
	})
}

func TestAuthorizeUnboundUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	user := env.createUser(t, "roleless", false)
	identity := domain.Identity{UserID: user.ID, Username: "roleless"}

	for _, tc := range [][2]string{
		{"GET", "/api/v1/x"},
		{"POST", "/api/v1/base/logout"},
	} {
		err := env.authz.Authorize(ctx, identity, tc[0], tc[1])
		require.ErrorIs(t, err, ErrUnboundUser)
		require.NotErrorIs(t, err, ErrPermissionDenied)
	}
}

func TestEffectiveCapabilities(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	user := env.createUser(t, "alice", false)
	env.grantCapability(t, user.ID, "readers", "GET", "/api/v1/x")

	caps, err := env.authz.EffectiveCapabilities(ctx, domain.Identity{UserID: user.ID})
	require.NoError(t, err)
	require.Equal(t, []domain.Capability{{Method: "GET", Path: "/api/v1/x"}}, caps)

	t.Run("superuser sees all registered apis", func(t *testing.T) {
		api := domain.API{ID: idx.New().String(), Method: "POST", Path: "/api/v1/y"}
		require.NoError(t, env.store.APIs().CreateAPI(ctx, api))

		super := env.createUser(t, "root", true)
		caps, err := env.authz.EffectiveCapabilities(ctx, domain.Identity{UserID: super.ID, IsSuperuser: true})
		require.NoError(t, err)
		require.Len(t, caps, 2)
	})
}

func TestBootstrapSeedsOnce(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	boot := &BootstrapService{Store: env.store, AdminUsername: "admin", AdminPassword: "changeme"}
	require.NoError(t, boot.Seed(ctx))

	admin, err := env.store.Users().GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	require.True(t, admin.IsSuperuser)

	role, err := env.store.Roles().GetRoleByName(ctx, "basic")
	require.NoError(t, err)

	caps, err := env.store.APIs().CapabilitiesOfRole(ctx, role.ID)
	require.NoError(t, err)
	require.Len(t, caps, len(DefaultSeedAPIs))

	// Second run is a no-op, not a duplicate-key failure.
	require.NoError(t, boot.Seed(ctx))

	pair, err := env.users.Login(ctx, "admin", "changeme")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
}
