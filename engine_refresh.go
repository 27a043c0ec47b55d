package authkit

import (
	"context"
	"errors"

	"github.com/sorguskor/authkit/store"
)

// Refresh exchanges a valid refresh token for a fresh pair. Each token is
// single-use: rotation replaces the stored hash, and presenting a token
// that was already rotated away is treated as theft evidence. In that case
// the active session is revoked so neither party keeps access.
//
// Every failure mode returns the same ErrUnauthorized.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if err := e.checkReady(); err != nil {
		return TokenPair{}, err
	}

	claims, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, e.refreshFailed(ctx, "", "")
	}
	userID := claims.Subject

	rec, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TokenPair{}, e.refreshFailed(ctx, userID, "")
		}
		return TokenPair{}, storeErr(err)
	}

	if rec.RefreshHash == "" {
		// Logged out or revoked. The signature was valid but the session
		// is gone.
		return TokenPair{}, e.refreshFailed(ctx, userID, rec.Email)
	}

	if !e.hasher.Verify(refreshToken, rec.RefreshHash) {
		// A token that verifies cryptographically but does not match the
		// stored hash was rotated away earlier: either the legitimate
		// client or a thief now holds its successor. Revoke the session
		// so the successor dies too.
		e.metrics.Inc(MetricRefreshReuseDetected)
		e.emit(ctx, AuditEvent{
			EventType: AuditRefreshReuse,
			UserID:    userID,
			Email:     rec.Email,
			Success:   false,
			Error:     "refresh token reuse detected",
		})

		expect := store.ExpectedRefreshHash{Enforce: true, Value: rec.RefreshHash}
		if err := e.users.SetRefreshHash(ctx, userID, expect, ""); err != nil {
			if !errors.Is(err, store.ErrStaleRecord) && !errors.Is(err, store.ErrNotFound) {
				return TokenPair{}, storeErr(err)
			}
			// Lost the race against a concurrent rotation; the stored
			// hash already moved on and will be caught on its next use.
		}
		return TokenPair{}, e.refreshFailed(ctx, userID, rec.Email)
	}

	newRefresh, err := e.tokens.SignRefresh(userID)
	if err != nil {
		return TokenPair{}, err
	}
	newHash, err := e.hasher.Hash(newRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	expect := store.ExpectedRefreshHash{Enforce: true, Value: rec.RefreshHash}
	if err := e.users.SetRefreshHash(ctx, userID, expect, newHash); err != nil {
		if errors.Is(err, store.ErrStaleRecord) || errors.Is(err, store.ErrNotFound) {
			// A concurrent refresh won the rotation. This caller loses
			// and must re-authenticate; the winner's token stays valid.
			return TokenPair{}, e.refreshFailed(ctx, userID, rec.Email)
		}
		return TokenPair{}, storeErr(err)
	}

	accessToken, err := e.tokens.SignAccess(userID, rec.Email)
	if err != nil {
		return TokenPair{}, err
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emit(ctx, AuditEvent{
		EventType: AuditRefresh,
		UserID:    userID,
		Email:     rec.Email,
		Success:   true,
	})
	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		AccessTTL:    e.config.JWT.AccessTTL,
		RefreshTTL:   e.config.JWT.RefreshTTL,
	}, nil
}

func (e *Engine) refreshFailed(ctx context.Context, userID, email string) error {
	e.metrics.Inc(MetricRefreshFailure)
	e.emit(ctx, AuditEvent{
		EventType: AuditRefresh,
		UserID:    userID,
		Email:     email,
		Success:   false,
		Error:     ErrUnauthorized.Error(),
	})
	return ErrUnauthorized
}
