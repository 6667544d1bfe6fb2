package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/gatekit/gatekit/internal/admin/domain"
	"github.com/gatekit/gatekit/internal/admin/store"
)

type apisRepo struct {
	db dbtx
}

func (r *apisRepo) CreateAPI(ctx context.Context, a domain.API) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO apis (id, method, path, summary, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, strings.ToUpper(a.Method), a.Path, a.Summary, now, now)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *apisRepo) ListAll(ctx context.Context) ([]domain.API, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, method, path, summary, created_at, updated_at
		   FROM apis ORDER BY path, method`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apis []domain.API
	for rows.Next() {
		var a domain.API
		if err := rows.Scan(&a.ID, &a.Method, &a.Path, &a.Summary, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		apis = append(apis, a)
	}
	return apis, rows.Err()
}

func (r *apisRepo) GrantToRole(ctx context.Context, roleID, apiID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO role_apis (role_id, api_id, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (role_id, api_id) DO NOTHING`,
		roleID, apiID, time.Now().UTC())
	return err
}

func (r *apisRepo) RevokeFromRole(ctx context.Context, roleID, apiID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM role_apis WHERE role_id = ? AND api_id = ?`,
		roleID, apiID)
	return err
}

func (r *apisRepo) CapabilitiesOfRole(ctx context.Context, roleID string) ([]domain.Capability, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.method, a.path
		   FROM apis a
		   JOIN role_apis ra ON ra.api_id = a.id
		  WHERE ra.role_id = ?
		  ORDER BY a.path, a.method`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCapabilities(rows)
}

func (r *apisRepo) CapabilitiesOfUser(ctx context.Context, userID string) ([]domain.Capability, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT a.method, a.path
		   FROM apis a
		   JOIN role_apis ra ON ra.api_id = a.id
		   JOIN user_roles ur ON ur.role_id = ra.role_id
		  WHERE ur.user_id = ?
		  ORDER BY a.path, a.method`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCapabilities(rows)
}

func scanCapabilities(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]domain.Capability, error) {
	var caps []domain.Capability
	for rows.Next() {
		var c domain.Capability
		if err := rows.Scan(&c.Method, &c.Path); err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, rows.Err()
}
