package http

import (
	"errors"
	"net/http"

	"github.com/gatekit/gatekit/internal/admin/service"
	"github.com/gatekit/gatekit/pkg/httpx"
)

// Response is the uniform envelope every endpoint returns. Code mirrors
// the HTTP status so clients reading only the body still see the verdict.
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func writeOK(w http.ResponseWriter, data any) {
	httpx.WriteJSON(w, http.StatusOK, Response{Code: http.StatusOK, Msg: "success", Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	httpx.WriteJSON(w, status, Response{Code: status, Msg: msg})
}

// writeServiceError maps a service error to its HTTP verdict. Messages are
// stable and never echo store keys or signing internals; expired vs invalid
// refresh stays distinguishable so clients know whether re-login is needed.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid username or password")
	case errors.Is(err, service.ErrUserDisabled):
		writeError(w, http.StatusUnauthorized, "account disabled")
	case errors.Is(err, service.ErrExpiredRefreshToken):
		writeError(w, http.StatusUnauthorized, "refresh token expired, please login again")
	case errors.Is(err, service.ErrInvalidRefreshToken):
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
	case errors.Is(err, service.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, service.ErrUnboundUser):
		writeError(w, http.StatusForbidden, "user has no roles bound")
	case errors.Is(err, service.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, service.ErrInfrastructure):
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable, please retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
