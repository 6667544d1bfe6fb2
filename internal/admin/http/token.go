package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gatekit/gatekit/internal/admin/service"
	"github.com/gatekit/gatekit/pkg/httpx"
	"github.com/gatekit/gatekit/pkg/slogx"
)

type LoginHandler struct {
	UserService *service.UserService
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ServeHTTP handles the login endpoint.
//
//	@Summary		Login
//	@Description	Verifies username/password and issues an access/refresh token pair.
//	@Tags			Base
//	@Accept			json
//	@Produce		json
//	@Param			request	body		loginRequest	true	"credentials"
//	@Success		200		{object}	Response		"access_token, refresh_token, username"
//	@Failure		401		{object}	Response		"invalid credentials"
//	@Failure		503		{object}	Response		"store unavailable"
//	@Router			/api/v1/base/access_token [post].
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	pair, err := h.UserService.Login(ctx, req.Username, req.Password)
	if err != nil {
		log.Info("login rejected", "username", req.Username, "err", err)
		writeServiceError(w, err)
		return
	}

	httpx.NoCache(w)
	writeOK(w, pair)
}

type RefreshHandler struct {
	TokenService *service.TokenService
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ServeHTTP handles the token rotation endpoint.
//
//	@Summary		Refresh token pair
//	@Description	Consumes a single-use refresh token and returns a new pair. The old pair is dead afterwards.
//	@Tags			Base
//	@Accept			json
//	@Produce		json
//	@Param			request	body		refreshRequest	true	"refresh token"
//	@Success		200		{object}	Response		"access_token, refresh_token, username"
//	@Failure		401		{object}	Response		"invalid or expired refresh token"
//	@Failure		503		{object}	Response		"store unavailable"
//	@Router			/api/v1/base/refresh_token [post].
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, err := h.TokenService.Rotate(ctx, req.RefreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.NoCache(w)
	writeOK(w, pair)
}
