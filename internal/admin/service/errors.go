package service

import "errors"

var (
	// ErrInvalidCredentials covers unknown usernames and wrong passwords
	// alike, so the login endpoint never discloses which one it was.
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrUserDisabled rejects logins for deactivated accounts.
	ErrUserDisabled = errors.New("user_disabled")

	// ErrUnauthenticated rejects a request whose access credential is
	// absent, revoked, expired, or fails verification.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrPermissionDenied rejects an authenticated identity whose
	// capability set does not cover the requested (method, path).
	ErrPermissionDenied = errors.New("permission_denied")

	// ErrUnboundUser is the distinct denial for a user with no roles at
	// all, so operators can tell "not configured" from "not allowed".
	ErrUnboundUser = errors.New("user_has_no_roles")

	// ErrInvalidRefreshToken covers revoked, consumed, tampered, or
	// malformed refresh credentials.
	ErrInvalidRefreshToken = errors.New("invalid_refresh_token")

	// ErrExpiredRefreshToken is distinct so clients know to re-login
	// rather than retry the refresh.
	ErrExpiredRefreshToken = errors.New("expired_refresh_token")

	// ErrInfrastructure reports a session-store or database failure. It is
	// never an authentication verdict: callers fail closed and surface a
	// retryable 503.
	ErrInfrastructure = errors.New("infrastructure_unavailable")
)
