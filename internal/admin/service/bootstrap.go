package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gatekit/gatekit/internal/admin/domain"
	"github.com/gatekit/gatekit/internal/admin/store"
	"github.com/gatekit/gatekit/pkg/cryptox"
	"github.com/gatekit/gatekit/pkg/idx"
	"github.com/gatekit/gatekit/pkg/slogx"
)

// BootstrapService seeds an empty database with the initial superuser, a
// basic role, and the built-in API registrations. Runs once at startup;
// a non-empty user table makes it a no-op.
type BootstrapService struct {
	Store store.Store

	AdminUsername string
	AdminPassword string
}

// SeedAPI describes one built-in endpoint registered at bootstrap.
type SeedAPI struct {
	Method  string
	Path    string
	Summary string
}

// DefaultSeedAPIs is the registration list for the substrate's own
// endpoints. The basic role is granted the self-service subset.
var DefaultSeedAPIs = []SeedAPI{
	{Method: "GET", Path: "/api/v1/base/userinfo", Summary: "current user info"},
	{Method: "GET", Path: "/api/v1/base/userapi", Summary: "current user capabilities"},
	{Method: "POST", Path: "/api/v1/base/logout", Summary: "logout"},
	{Method: "POST", Path: "/api/v1/base/update_password", Summary: "change password"},
	{Method: "GET", Path: "/api/v1/api/list", Summary: "list registered apis"},
}

// Seed creates the admin user, the basic role, and the built-in API rows
// in one transaction. Idempotent: if any user already exists it returns
// immediately.
func (s *BootstrapService) Seed(ctx context.Context) error {
	l := slogx.FromContext(ctx)

	empty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return infra(err)
	}
	if !empty {
		return nil
	}

	passHash, err := cryptox.HashPassword(s.AdminPassword)
	if err != nil {
		return err
	}

	adminID := idx.New().String()
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, domain.User{
			ID:           adminID,
			Username:     s.AdminUsername,
			PasswordHash: passHash,
			IsSuperuser:  true,
			IsActive:     true,
		}); err != nil {
			return err
		}

		roleID := idx.New().String()
		if err := tx.Roles().CreateRole(ctx, domain.Role{
			ID:          roleID,
			Name:        "basic",
			Description: "self-service endpoints",
		}); err != nil {
			return err
		}

		for _, seed := range DefaultSeedAPIs {
			apiID := idx.New().String()
			if err := tx.APIs().CreateAPI(ctx, domain.API{
				ID:      apiID,
				Method:  strings.ToUpper(seed.Method),
				Path:    seed.Path,
				Summary: seed.Summary,
			}); err != nil {
				return err
			}
			if err := tx.APIs().GrantToRole(ctx, roleID, apiID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.Info("seeded initial admin user and basic role",
		slog.String("admin_user_id", adminID),
		slog.String("admin_username", s.AdminUsername),
	)
	return nil
}
