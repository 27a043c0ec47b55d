package authkit

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/sorguskor/authkit/store"
)

// Register creates an account and signs it in: the returned pair contains a
// usable access token and the account's single valid refresh token.
// Duplicate emails surface as ErrEmailTaken.
func (e *Engine) Register(ctx context.Context, email, plainPassword string) (User, TokenPair, error) {
	if err := e.checkReady(); err != nil {
		return User{}, TokenPair{}, err
	}

	email = normalizeEmail(email)
	if email == "" || plainPassword == "" {
		return User{}, TokenPair{}, ErrInvalidCredentials
	}

	passwordHash, err := e.hasher.Hash(plainPassword)
	if err != nil {
		return User{}, TokenPair{}, err
	}

	userID := uuid.NewString()
	refreshToken, err := e.tokens.SignRefresh(userID)
	if err != nil {
		return User{}, TokenPair{}, err
	}
	refreshHash, err := e.hasher.Hash(refreshToken)
	if err != nil {
		return User{}, TokenPair{}, err
	}

	rec := store.UserRecord{
		ID:           userID,
		Email:        email,
		PasswordHash: passwordHash,
		RefreshHash:  refreshHash,
		CreatedAt:    e.now().UTC(),
	}
	if err := e.users.Create(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			e.metrics.Inc(MetricRegisterDuplicate)
			e.emit(ctx, AuditEvent{
				EventType: AuditRegister,
				Email:     email,
				Success:   false,
				Error:     ErrEmailTaken.Error(),
			})
			return User{}, TokenPair{}, ErrEmailTaken
		}
		return User{}, TokenPair{}, storeErr(err)
	}

	accessToken, err := e.tokens.SignAccess(userID, email)
	if err != nil {
		return User{}, TokenPair{}, err
	}

	e.metrics.Inc(MetricRegisterSuccess)
	e.emit(ctx, AuditEvent{
		EventType: AuditRegister,
		UserID:    userID,
		Email:     email,
		Success:   true,
	})

	user := User{ID: userID, Email: email, CreatedAt: rec.CreatedAt}
	pair := TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessTTL:    e.config.JWT.AccessTTL,
		RefreshTTL:   e.config.JWT.RefreshTTL,
	}
	return user, pair, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
