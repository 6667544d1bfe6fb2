package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token classes. A refresh token is a distinct credential class: it is only
// ever accepted to mint a new pair, never for resource access.
const (
	ClassAccess  = "access"
	ClassRefresh = "refresh"
)

// Claims is the signed payload carried by both access and refresh tokens.
// Immutable once signed; rotation always mints new claims.
type Claims struct {
	jwt.RegisteredClaims

	// UserID is the subject user. Duplicated into the registered "sub"
	// claim so generic JWT tooling can read it.
	UserID string `json:"user_id"`

	// Username at issuance time. Informational only; authorization always
	// reloads the live user row.
	Username string `json:"username"`

	// IsSuperuser short-circuits the capability check.
	IsSuperuser bool `json:"is_superuser"`

	// Class is "access" or "refresh".
	Class string `json:"class"`
}

// NewClaims builds claims for a token of the given class expiring after ttl.
// All timestamps are UTC.
func NewClaims(userID, username string, isSuperuser bool, class string, ttl time.Duration, now time.Time) Claims {
	now = now.UTC()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:      userID,
		Username:    username,
		IsSuperuser: isSuperuser,
		Class:       class,
	}
}
