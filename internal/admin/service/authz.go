package service

import (
	"context"
	"strings"

	"github.com/gatekit/gatekit/internal/admin/domain"
	"github.com/gatekit/gatekit/internal/admin/store"
)

// Authorizer decides whether an authenticated identity may invoke a
// (method, path). Superusers bypass the capability check entirely.
type Authorizer struct {
	Store store.Store
}

// Authorize allows the call iff the identity is a superuser or the pair is
// in the union of the identity's role capabilities. Path match is exact;
// method comparison is case-insensitive.
//
// A user bound to zero roles gets ErrUnboundUser rather than a plain
// denial, so "not configured" and "not allowed" stay distinguishable.
func (s *Authorizer) Authorize(ctx context.Context, identity domain.Identity, method, path string) error {
	if identity.IsSuperuser {
		return nil
	}

	roles, err := s.Store.Roles().RolesOf(ctx, identity.UserID)
	if err != nil {
		return infra(err)
	}
	if len(roles) == 0 {
		return ErrUnboundUser
	}

	caps, err := s.Store.APIs().CapabilitiesOfUser(ctx, identity.UserID)
	if err != nil {
		return infra(err)
	}

	for _, c := range caps {
		if c.Path == path && strings.EqualFold(c.Method, method) {
			return nil
		}
	}
	return ErrPermissionDenied
}

// EffectiveCapabilities returns the identity's capability list for the
// userapi endpoint. Superusers see every registered API.
func (s *Authorizer) EffectiveCapabilities(ctx context.Context, identity domain.Identity) ([]domain.Capability, error) {
	if identity.IsSuperuser {
		apis, err := s.Store.APIs().ListAll(ctx)
		if err != nil {
			return nil, infra(err)
		}
		caps := make([]domain.Capability, 0, len(apis))
		for _, a := range apis {
			caps = append(caps, a.Capability())
		}
		return caps, nil
	}

	caps, err := s.Store.APIs().CapabilitiesOfUser(ctx, identity.UserID)
	if err != nil {
		return nil, infra(err)
	}
	return caps, nil
}
