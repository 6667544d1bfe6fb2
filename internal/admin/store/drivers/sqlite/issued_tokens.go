package sqlite

import (
	"context"
	"time"

	"github.com/gatekit/gatekit/internal/admin/domain"
)

type issuedTokensRepo struct {
	db dbtx
}

func (r *issuedTokensRepo) Record(ctx context.Context, t domain.IssuedToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO issued_tokens (id, user_id, class, token, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Class, t.Token, t.ExpiresAt.UTC(), time.Now().UTC())
	return err
}

func (r *issuedTokensRepo) ListByUser(ctx context.Context, userID string) ([]domain.IssuedToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, class, token, expires_at, created_at
		   FROM issued_tokens
		  WHERE user_id = ?
		  ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []domain.IssuedToken
	for rows.Next() {
		var t domain.IssuedToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Class, &t.Token, &t.ExpiresAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *issuedTokensRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM issued_tokens WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
