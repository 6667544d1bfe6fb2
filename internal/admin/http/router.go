package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gatekit/gatekit/internal/admin/service"
	"github.com/gatekit/gatekit/internal/admin/session"
	"github.com/gatekit/gatekit/internal/admin/store"
	"github.com/gatekit/gatekit/pkg/httpx"
	"github.com/gatekit/gatekit/pkg/slogx"

	_ "github.com/gatekit/gatekit/api/admin" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	sessions session.Store

	TokenService  *service.TokenService
	UserService   *service.UserService
	Authenticator *service.Authenticator
	Authorizer    *service.Authorizer
}

func NewRouter(buildVersion string, st store.Store, sessions session.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		sessions:     sessions,
		logger:       logger,
	}

	// Default middleware chain applied to every route.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerBase()
	r.registerAPIs()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
//
//	@title			Gatekit Admin Auth API
//	@version		0.1.0
//	@description	Authentication and authorization substrate for the admin panel:
//	@description	token pair issuance, rotation with single-use refresh tokens,
//	@description	revocation, and per-request capability authorization.
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
//
//	@securityDefinitions.apikey	TokenAuth
//	@in							header
//	@name						token
//	@description				Access token issued by the login endpoint.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerBase() {
	// POST /access_token - strict rate limit by IP (brute-force target).
	login := &LoginHandler{UserService: r.UserService}
	r.Mux.Handle("POST /api/v1/base/access_token",
		httpx.Chain(login,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /refresh_token - strict rate limit by IP; a stolen refresh
	// token should not be cheap to probe.
	refresh := &RefreshHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /api/v1/base/refresh_token",
		httpx.Chain(refresh,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	authn := AuthnMiddleware(r.Authenticator)

	logout := &LogoutHandler{UserService: r.UserService}
	r.Mux.Handle("POST /api/v1/base/logout",
		httpx.Chain(logout,
			authn,
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	updatePassword := &UpdatePasswordHandler{UserService: r.UserService}
	r.Mux.Handle("POST /api/v1/base/update_password",
		httpx.Chain(updatePassword,
			authn,
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)

	userinfo := &UserInfoHandler{UserService: r.UserService}
	r.Mux.Handle("GET /api/v1/base/userinfo",
		httpx.Chain(userinfo,
			authn,
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	userapi := &UserAPIHandler{Authorizer: r.Authorizer}
	r.Mux.Handle("GET /api/v1/base/userapi",
		httpx.Chain(userapi,
			authn,
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerAPIs() {
	// The API registry is the one capability-gated route: it goes through
	// both the authentication and authorization gates.
	list := &APIListHandler{Store: r.store}
	r.Mux.Handle("GET /api/v1/api/list",
		httpx.Chain(list,
			AuthnMiddleware(r.Authenticator),
			AuthzMiddleware(r.Authorizer),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.sessions),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
