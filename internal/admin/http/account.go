package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gatekit/gatekit/internal/admin/service"
	"github.com/gatekit/gatekit/pkg/slogx"
)

type LogoutHandler struct {
	UserService *service.UserService
}

// ServeHTTP revokes every live session of the caller.
//
//	@Summary		Logout
//	@Description	Revokes all of the caller's live sessions, access and refresh alike.
//	@Tags			Base
//	@Security		TokenAuth
//	@Produce		json
//	@Success		200	{object}	Response
//	@Failure		401	{object}	Response	"not authenticated"
//	@Failure		503	{object}	Response	"revocation could not be confirmed"
//	@Router			/api/v1/base/logout [post].
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := IdentityFromContext(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	// A failed revocation must surface as a failure, never "logged out".
	if err := h.UserService.Logout(ctx, identity.UserID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeOK(w, nil)
}

type UpdatePasswordHandler struct {
	UserService *service.UserService
}

type updatePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ServeHTTP changes the caller's password and kills all their sessions.
//
//	@Summary		Change password
//	@Description	Verifies the old password, stores the new hash, and revokes every live session of the caller.
//	@Tags			Base
//	@Security		TokenAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		updatePasswordRequest	true	"old and new password"
//	@Success		200		{object}	Response
//	@Failure		401		{object}	Response	"wrong old password"
//	@Failure		503		{object}	Response	"store unavailable"
//	@Router			/api/v1/base/update_password [post].
func (h *UpdatePasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	identity, ok := IdentityFromContext(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req updatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "old_password and new_password are required")
		return
	}

	if err := h.UserService.ChangePassword(ctx, identity.UserID, req.OldPassword, req.NewPassword); err != nil {
		log.Info("password change rejected", "user_id", identity.UserID, "err", err)
		writeServiceError(w, err)
		return
	}
	writeOK(w, nil)
}

type UserInfoHandler struct {
	UserService *service.UserService
}

type userInfoResponse struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	IsSuperuser bool   `json:"is_superuser"`
}

// ServeHTTP returns the caller's identity information.
//
//	@Summary		Current user info
//	@Description	Returns the authenticated user's id, username, email and superuser flag.
//	@Tags			Base
//	@Security		TokenAuth
//	@Produce		json
//	@Success		200	{object}	Response	"user_id, username, email, is_superuser"
//	@Failure		401	{object}	Response	"not authenticated"
//	@Router			/api/v1/base/userinfo [get].
func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	identity, ok := IdentityFromContext(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.UserService.GetUserByID(ctx, identity.UserID)
	if err != nil {
		log.Warn("failed to load user", "user_id", identity.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeOK(w, userInfoResponse{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		IsSuperuser: user.IsSuperuser,
	})
}

type UserAPIHandler struct {
	Authorizer *service.Authorizer
}

// ServeHTTP returns the caller's effective capability list as
// "{method}{path}" strings with the method lowercased, e.g.
// "get/api/v1/base/userinfo". Superusers see every registered API.
//
//	@Summary		Current user capabilities
//	@Description	Effective capability list of the caller; superusers see all registered APIs.
//	@Tags			Base
//	@Security		TokenAuth
//	@Produce		json
//	@Success		200	{object}	Response	"list of capability strings"
//	@Failure		401	{object}	Response	"not authenticated"
//	@Router			/api/v1/base/userapi [get].
func (h *UserAPIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := IdentityFromContext(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	caps, err := h.Authorizer.EffectiveCapabilities(ctx, identity)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]string, 0, len(caps))
	for _, c := range caps {
		out = append(out, strings.ToLower(c.Method)+c.Path)
	}
	writeOK(w, out)
}
