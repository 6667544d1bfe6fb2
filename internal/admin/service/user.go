package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gatekit/gatekit/internal/admin/domain"
	"github.com/gatekit/gatekit/internal/admin/store"
	"github.com/gatekit/gatekit/pkg/cryptox"
	"github.com/gatekit/gatekit/pkg/slogx"
)

// UserService owns the credential lifecycle around a user account: login,
// password change, logout.
type UserService struct {
	Store   store.Store
	Tokens  *TokenService
	Revoker *Revoker
}

// Login verifies the password and issues a token pair. Unknown usernames
// and wrong passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, username, password string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidCredentials
		}
		return domain.TokenPair{}, infra(err)
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		l.Info("login failed", slog.String("username", username))
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	if !user.IsActive {
		return domain.TokenPair{}, ErrUserDisabled
	}

	pair, err := s.Tokens.IssuePair(ctx, user)
	if err != nil {
		return domain.TokenPair{}, err
	}

	// Best-effort stamp; a failed write must not fail the login.
	if err := s.Store.Users().UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		l.Warn("failed to stamp last login",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	l.Info("user logged in", slog.String("user_id", user.ID))
	return pair, nil
}

// ChangePassword verifies the old password, stores a new hash, and revokes
// every live session of the user. A password change with sessions left
// alive would defeat its purpose, so revocation failure fails the call.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return infra(err)
	}

	if err := cryptox.VerifyPassword(oldPassword, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	newHash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.Store.Users().UpdatePasswordHash(ctx, userID, newHash); err != nil {
		return infra(err)
	}

	return s.Revoker.RevokeAll(ctx, userID)
}

// Logout revokes all live sessions of the caller.
func (s *UserService) Logout(ctx context.Context, userID string) error {
	return s.Revoker.RevokeAll(ctx, userID)
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}
