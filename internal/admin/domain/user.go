package domain

import "time"

// User is an admin-panel account. PasswordHash is a PHC-format Argon2id
// digest; the plaintext never leaves the login handler.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsSuperuser  bool
	IsActive     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the authenticated principal bound to a request. It is
// resolved from the live user row, not from token claims, so a demoted
// superuser loses the override on the next request.
type Identity struct {
	UserID      string
	Username    string
	IsSuperuser bool
}
