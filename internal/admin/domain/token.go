package domain

import "time"

// TokenPair is the issuance/rotation result returned to clients.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Username     string `json:"username"`
}

// IssuedToken is a durable mirror row for a minted token. It exists for
// diagnostics and the housekeeping sweep only; liveness is decided by the
// session store alone.
type IssuedToken struct {
	ID        string
	UserID    string
	Class     string // "access" or "refresh"
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}
