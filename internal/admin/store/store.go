package store

import (
	"context"
	"errors"
	"time"

	"github.com/gatekit/gatekit/internal/admin/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface for durable entities (users,
// roles, capabilities, issued-token mirror). Concrete drivers implement
// it; services receive it by injection and never construct clients
// themselves.
type Store interface {
	Users() Users
	Roles() Roles
	APIs() APIs
	IssuedTokens() IssuedTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST Commit or Rollback the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing on nil and rolling back
	// on error. Preferred over Tx for multi-step writes.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases underlying resources.
	Close() error

	// Ping verifies the database connection is alive.
	Ping(ctx context.Context) error
}

// Tx is a transaction-scoped Store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during login.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// FirstUser returns the oldest user row. Backs the development bypass
	// identity only.
	FirstUser(ctx context.Context) (domain.User, error)

	// CreateUser inserts a new user (id provided by the app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash replaces the password hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// UpdateLastLogin stamps a successful login.
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error

	// DeleteUser removes a user; role bindings cascade per schema.
	DeleteUser(ctx context.Context, userID string) error

	// IsEmpty reports whether any users exist (bootstrap check).
	IsEmpty(ctx context.Context) (bool, error)
}

type Roles interface {
	GetRoleByID(ctx context.Context, id string) (domain.Role, error)
	GetRoleByName(ctx context.Context, name string) (domain.Role, error)
	ListAll(ctx context.Context) ([]domain.Role, error)
	CreateRole(ctx context.Context, r domain.Role) error
	DeleteRole(ctx context.Context, roleID string) error

	// RolesOf returns all roles bound to a user (many-to-many).
	RolesOf(ctx context.Context, userID string) ([]domain.Role, error)

	// AssignRole binds a role to a user; rebinding is a no-op.
	AssignRole(ctx context.Context, userID, roleID string) error

	// RemoveRole unbinds a role from a user.
	RemoveRole(ctx context.Context, userID, roleID string) error
}

type APIs interface {
	CreateAPI(ctx context.Context, a domain.API) error
	ListAll(ctx context.Context) ([]domain.API, error)

	// GrantToRole allows a role to invoke an API; regranting is a no-op.
	GrantToRole(ctx context.Context, roleID, apiID string) error

	// RevokeFromRole removes a grant.
	RevokeFromRole(ctx context.Context, roleID, apiID string) error

	// CapabilitiesOfRole returns the (method, path) pairs a role grants.
	CapabilitiesOfRole(ctx context.Context, roleID string) ([]domain.Capability, error)

	// CapabilitiesOfUser returns the deduplicated union of capabilities
	// across all of the user's roles.
	CapabilitiesOfUser(ctx context.Context, userID string) ([]domain.Capability, error)
}

// IssuedTokens is the durable mirror of minted tokens. Liveness decisions
// never consult it; it feeds diagnostics and the housekeeping sweep.
type IssuedTokens interface {
	Record(ctx context.Context, t domain.IssuedToken) error
	ListByUser(ctx context.Context, userID string) ([]domain.IssuedToken, error)

	// DeleteExpired prunes rows whose expiry has passed, returning the
	// number removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
