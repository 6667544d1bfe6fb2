package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gatekit/gatekit/internal/admin/domain"
	"github.com/gatekit/gatekit/internal/admin/service"
	"github.com/gatekit/gatekit/pkg/httpx"
)

// TokenHeader carries the access token on protected requests.
const TokenHeader = "token"

type identityKey struct{}

// IdentityFromContext returns the authenticated identity bound by the
// authentication middleware.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	v, ok := ctx.Value(identityKey{}).(domain.Identity)
	return v, ok
}

func contextWithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// AuthnMiddleware resolves the token header to an identity and binds it to
// the request context. Identity is request-scoped only; nothing global.
func AuthnMiddleware(authn *service.Authenticator) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := authn.Authenticate(r.Context(), r.Header.Get(TokenHeader))
			if err != nil {
				writeServiceError(w, err)
				return
			}

			ctx := contextWithIdentity(r.Context(), identity)
			ctx = httpx.ContextWithUserID(ctx, identity.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthzMiddleware checks the identity's capabilities against the request's
// (method, path). Must sit behind AuthnMiddleware.
func AuthzMiddleware(authz *service.Authorizer) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if err := authz.Authorize(r.Context(), identity, r.Method, routePath(r)); err != nil {
				writeServiceError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// routePath returns the registered route pattern without its method
// prefix, so capability rows match the route as registered rather than
// whatever concrete URL was requested.
func routePath(r *http.Request) string {
	pattern := r.Pattern
	if pattern == "" {
		return r.URL.Path
	}
	if _, path, found := strings.Cut(pattern, " "); found {
		return path
	}
	return pattern
}
