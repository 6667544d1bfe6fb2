package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gatekit/gatekit/internal/admin/domain"
	"github.com/gatekit/gatekit/internal/admin/session"
	"github.com/gatekit/gatekit/internal/admin/store"
	"github.com/gatekit/gatekit/pkg/idx"
	"github.com/gatekit/gatekit/pkg/jwtx"
	"github.com/gatekit/gatekit/pkg/slogx"
)

// TokenService mints and rotates access/refresh token pairs. Liveness is
// recorded in the session store; the durable store only mirrors issued
// tokens for diagnostics and housekeeping.
type TokenService struct {
	Codec      *jwtx.Codec
	Sessions   session.Store
	Store      store.Store
	Revoker    *Revoker
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// IssuePair mints a fresh access/refresh pair for the user and registers
// both in the session store under the user's index. The two records land
// atomically: either the pair is live or nothing is.
func (s *TokenService) IssuePair(ctx context.Context, user domain.User) (domain.TokenPair, error) {
	now := time.Now().UTC()

	accessToken, err := s.Codec.Sign(jwtx.NewClaims(user.ID, user.Username, user.IsSuperuser, jwtx.ClassAccess, s.AccessTTL, now))
	if err != nil {
		return domain.TokenPair{}, err
	}
	refreshToken, err := s.Codec.Sign(jwtx.NewClaims(user.ID, user.Username, user.IsSuperuser, jwtx.ClassRefresh, s.RefreshTTL, now))
	if err != nil {
		return domain.TokenPair{}, err
	}

	access := session.Record{
		UserID:      user.ID,
		Username:    user.Username,
		IsSuperuser: user.IsSuperuser,
		Token:       accessToken,
		CreatedAt:   now.Unix(),
	}
	refresh := access
	refresh.Token = refreshToken

	if err := s.Sessions.PutPair(ctx, access, refresh, s.AccessTTL, s.RefreshTTL); err != nil {
		return domain.TokenPair{}, infra(err)
	}

	s.mirrorPair(ctx, user.ID, accessToken, refreshToken, now)

	return domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Username:     user.Username,
	}, nil
}

// Rotate consumes a refresh token and mints a new pair. The refresh token
// is single-use: the old record is deleted and the new pair written in one
// atomic store operation, so of two concurrent rotations of the same token
// exactly one wins and the other gets ErrInvalidRefreshToken. Other live
// sessions of the user are untouched.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	// Store-confirmed first: an absent record means revoked or already
	// consumed, and a valid signature must not resurrect it.
	rec, err := s.Sessions.Lookup(ctx, session.ClassRefresh, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidRefreshToken
		}
		return domain.TokenPair{}, infra(err)
	}

	// Signature and expiry, defense in depth behind the store check.
	claims, err := s.Codec.VerifyClass(refreshToken, jwtx.ClassRefresh)
	if err != nil {
		// The record is live but the credential can never rotate again;
		// drop it now instead of letting it idle out its TTL.
		if delErr := s.Revoker.RevokeOne(ctx, rec.UserID, session.ClassRefresh, refreshToken); delErr != nil {
			l.Warn("failed to drop unusable refresh record",
				slog.String("user_id", rec.UserID),
				slog.Any("error", delErr),
			)
		}
		if errors.Is(err, jwtx.ErrExpired) {
			return domain.TokenPair{}, ErrExpiredRefreshToken
		}
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}
	if claims.UserID != rec.UserID {
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}

	user, err := s.Store.Users().GetUserByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidRefreshToken
		}
		return domain.TokenPair{}, infra(err)
	}
	if !user.IsActive {
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}

	now := time.Now().UTC()
	newAccess, err := s.Codec.Sign(jwtx.NewClaims(user.ID, user.Username, user.IsSuperuser, jwtx.ClassAccess, s.AccessTTL, now))
	if err != nil {
		return domain.TokenPair{}, err
	}
	newRefresh, err := s.Codec.Sign(jwtx.NewClaims(user.ID, user.Username, user.IsSuperuser, jwtx.ClassRefresh, s.RefreshTTL, now))
	if err != nil {
		return domain.TokenPair{}, err
	}

	accessRec := session.Record{
		UserID:      user.ID,
		Username:    user.Username,
		IsSuperuser: user.IsSuperuser,
		Token:       newAccess,
		CreatedAt:   now.Unix(),
	}
	refreshRec := accessRec
	refreshRec.Token = newRefresh

	err = s.Sessions.Rotate(ctx, rec.UserID, refreshToken, accessRec, refreshRec, s.AccessTTL, s.RefreshTTL)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			// A concurrent rotation or revocation consumed the token first.
			l.Info("refresh rotation lost race", slog.String("user_id", rec.UserID))
			return domain.TokenPair{}, ErrInvalidRefreshToken
		}
		return domain.TokenPair{}, infra(err)
	}

	s.mirrorPair(ctx, user.ID, newAccess, newRefresh, now)

	return domain.TokenPair{
		AccessToken:  newAccess,
		RefreshToken: newRefresh,
		Username:     user.Username,
	}, nil
}

// mirrorPair records the minted tokens in the durable mirror. The mirror is
// diagnostics-only, so a write failure is logged and never fails issuance.
func (s *TokenService) mirrorPair(ctx context.Context, userID, accessToken, refreshToken string, now time.Time) {
	l := slogx.FromContext(ctx)

	rows := []domain.IssuedToken{
		{ID: idx.New().String(), UserID: userID, Class: jwtx.ClassAccess, Token: accessToken, ExpiresAt: now.Add(s.AccessTTL)},
		{ID: idx.New().String(), UserID: userID, Class: jwtx.ClassRefresh, Token: refreshToken, ExpiresAt: now.Add(s.RefreshTTL)},
	}
	for _, row := range rows {
		if err := s.Store.IssuedTokens().Record(ctx, row); err != nil {
			l.Warn("failed to mirror issued token",
				slog.String("user_id", userID),
				slog.String("class", row.Class),
				slog.Any("error", err),
			)
		}
	}
}

// infra wraps a store failure so callers surface a retryable 503 instead
// of an authentication verdict.
func infra(err error) error {
	return fmt.Errorf("%w: %w", ErrInfrastructure, err)
}
