package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gatekit/gatekit/internal/admin/domain"
	"github.com/gatekit/gatekit/internal/admin/session"
	"github.com/gatekit/gatekit/internal/admin/store"
	"github.com/gatekit/gatekit/pkg/jwtx"
	"github.com/gatekit/gatekit/pkg/slogx"
)

// DevBypassToken is the literal credential accepted when the development
// bypass is enabled. It only exists in dev environments; app construction
// refuses to enable it anywhere else.
const DevBypassToken = "dev"

// Authenticator validates an incoming credential and resolves it to a live
// identity. Validation is two-path: the session store is authoritative for
// revocation (an absent record is a revoked token, full stop), and the
// signature check behind it catches forged or tampered records.
type Authenticator struct {
	Codec    *jwtx.Codec
	Sessions session.Store
	Store    store.Store

	// DevBypass accepts DevBypassToken and resolves it to the first user.
	// Guarded at startup: only valid when the environment is dev.
	DevBypass bool
}

// Authenticate resolves an access token to an identity.
//
// Ordering matters: the session store is consulted first and its absence
// verdict is final. A token whose signature still verifies but whose
// record is gone has been revoked and must not pass.
func (s *Authenticator) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, ErrUnauthenticated
	}

	if s.DevBypass && token == DevBypassToken {
		return s.bypassIdentity(ctx)
	}

	return s.resolve(ctx, session.ClassAccess, jwtx.ClassAccess, token)
}

// AuthenticateRefresh runs the same pipeline against the refresh namespace.
// Only the rotation path uses it; a refresh token is never an access
// credential.
func (s *Authenticator) AuthenticateRefresh(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, ErrUnauthenticated
	}
	return s.resolve(ctx, session.ClassRefresh, jwtx.ClassRefresh, token)
}

func (s *Authenticator) resolve(ctx context.Context, sessionClass, tokenClass, token string) (domain.Identity, error) {
	l := slogx.FromContext(ctx)

	rec, err := s.Sessions.Lookup(ctx, sessionClass, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return domain.Identity{}, ErrUnauthenticated
		}
		// Store unreachable: fail closed, not unauthenticated.
		return domain.Identity{}, infra(err)
	}

	claims, err := s.Codec.VerifyClass(token, tokenClass)
	if err != nil {
		// A live record with a failing signature should not happen; log it
		// before rejecting.
		l.Warn("session record present but credential failed verification",
			slog.String("user_id", rec.UserID),
			slog.Any("error", err),
		)
		return domain.Identity{}, ErrUnauthenticated
	}
	if claims.UserID != rec.UserID {
		return domain.Identity{}, ErrUnauthenticated
	}

	user, err := s.Store.Users().GetUserByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Identity{}, ErrUnauthenticated
		}
		return domain.Identity{}, infra(err)
	}
	if !user.IsActive {
		return domain.Identity{}, ErrUnauthenticated
	}

	return domain.Identity{
		UserID:      user.ID,
		Username:    user.Username,
		IsSuperuser: user.IsSuperuser,
	}, nil
}

func (s *Authenticator) bypassIdentity(ctx context.Context) (domain.Identity, error) {
	user, err := s.Store.Users().FirstUser(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Identity{}, ErrUnauthenticated
		}
		return domain.Identity{}, infra(err)
	}
	return domain.Identity{
		UserID:      user.ID,
		Username:    user.Username,
		IsSuperuser: user.IsSuperuser,
	}, nil
}
