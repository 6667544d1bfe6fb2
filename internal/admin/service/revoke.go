package service

import (
	"context"
	"log/slog"

	"github.com/gatekit/gatekit/internal/admin/session"
	"github.com/gatekit/gatekit/pkg/slogx"
)

// Revoker removes live sessions. Both operations are idempotent: revoking
// an already-dead token or a user with no sessions succeeds.
type Revoker struct {
	Sessions session.Store
}

// RevokeOne removes a single token's session record, killing it
// immediately even though its signature stays valid until expiry.
func (s *Revoker) RevokeOne(ctx context.Context, userID, class, token string) error {
	if err := s.Sessions.Delete(ctx, class, userID, token); err != nil {
		return infra(err)
	}
	return nil
}

// RevokeAll removes every live session of a user: logout, password change,
// and compromise response all funnel through here. A store failure is
// reported as a failure; no caller may treat "couldn't revoke" as revoked.
func (s *Revoker) RevokeAll(ctx context.Context, userID string) error {
	n, err := s.Sessions.DeleteAll(ctx, userID)
	if err != nil {
		return infra(err)
	}
	slogx.FromContext(ctx).Info("revoked all sessions",
		slog.String("user_id", userID),
		slog.Int("sessions", n),
	)
	return nil
}
