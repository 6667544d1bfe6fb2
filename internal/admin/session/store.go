// Package session defines the live-session store: a TTL-capable key-value
// store holding one record per non-revoked token, plus a per-user index of
// live session keys used for bulk revocation.
//
// Invariants the drivers uphold:
//   - a record exists iff the token is live; deleting the record revokes
//     the token even while its signature still verifies;
//   - every record key appears in its owner's index;
//   - the index TTL tracks the longest-lived member (the refresh token).
package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Token classes, mirrored from the credential codec: they name the key
// namespace a record lives in.
const (
	ClassAccess  = "access"
	ClassRefresh = "refresh"
)

var (
	// ErrNotFound reports a session record that is absent, which for the
	// authentication path means "revoked or expired".
	ErrNotFound = errors.New("session: not found")

	// ErrClosed reports use of a store after Close.
	ErrClosed = errors.New("session: store closed")
)

// Record is the JSON-serialized value stored per live token.
type Record struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	IsSuperuser bool   `json:"is_superuser"`
	Token       string `json:"token"`
	CreatedAt   int64  `json:"created_at"`
}

// Key derives the storage key for a token record.
// Layout: {class}_token:{user_id}:{token}.
func Key(class, userID, token string) string {
	return fmt.Sprintf("%s_token:%s:%s", class, userID, token)
}

// IndexKey derives the per-user set key listing all live session keys.
func IndexKey(userID string) string {
	return "user_tokens:" + userID
}

// Pattern matches record keys by token alone, for the legacy/diagnostic
// lookup path where the owning user is not yet known.
func Pattern(class, token string) string {
	return fmt.Sprintf("%s_token:*:%s", class, token)
}

// Store is the live-session store interface. Any TTL-capable KV store with
// set semantics can implement it; the redis driver is the production one.
//
// All methods honour ctx cancellation and apply the driver's own
// per-operation timeout on top, so no call blocks past the store timeout.
type Store interface {
	// PutPair writes an access and a refresh record with their TTLs and
	// registers both keys in the user's index as one atomic operation:
	// either both records land or neither does.
	PutPair(ctx context.Context, access, refresh Record, accessTTL, refreshTTL time.Duration) error

	// Get returns the record stored under Key(class, userID, token), or
	// ErrNotFound.
	Get(ctx context.Context, class, userID, token string) (Record, error)

	// Lookup finds a record by token alone via pattern scan. Slower than
	// Get; used when the caller only holds the raw token.
	Lookup(ctx context.Context, class, token string) (Record, error)

	// Exists reports whether the token's record is live.
	Exists(ctx context.Context, class, userID, token string) (bool, error)

	// Delete removes a single record and its index entry. Deleting an
	// absent record is a no-op success.
	Delete(ctx context.Context, class, userID, token string) error

	// Members returns all live session keys of a user.
	Members(ctx context.Context, userID string) ([]string, error)

	// DeleteAll removes every record referenced by the user's index and
	// the index itself, returning how many records were removed.
	DeleteAll(ctx context.Context, userID string) (int, error)

	// Rotate atomically deletes the old refresh record and writes the new
	// pair. When the old record is already gone (concurrent rotation or
	// revocation won) it returns ErrNotFound and writes nothing, which
	// guarantees at most one winner for a single-use refresh token.
	Rotate(ctx context.Context, oldRefreshUserID, oldRefreshToken string, access, refresh Record, accessTTL, refreshTTL time.Duration) error

	// Ping verifies connectivity, for readiness checks.
	Ping(ctx context.Context) error

	// Close releases the underlying client. Lifecycle belongs to process
	// bootstrap, not to the components using the store.
	Close() error
}
