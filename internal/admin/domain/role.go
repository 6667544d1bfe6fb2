package domain

import "time"

// Role groups capabilities. Users hold roles many-to-many; a non-superuser
// user's effective capability set is the union across their roles.
type Role struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// API is a registered admin endpoint a role can be granted.
type API struct {
	ID        string
	Method    string // stored uppercase
	Path      string // route pattern, exact match
	Summary   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Capability is the (method, path) pair the authorization gate matches
// against. Method comparison is case-insensitive; path is exact.
type Capability struct {
	Method string
	Path   string
}

// Capability returns the API's (method, path) pair.
func (a API) Capability() Capability {
	return Capability{Method: a.Method, Path: a.Path}
}
