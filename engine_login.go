package authkit

import (
	"context"
	"errors"
	"time"

	"github.com/sorguskor/authkit/internal/lockout"
	"github.com/sorguskor/authkit/store"
)

// Login verifies credentials and rotates the account onto a fresh session.
// Unknown emails and wrong passwords are indistinguishable from the
// outside: both cost one argon2 verification and both return
// ErrInvalidCredentials. A locked account fails before the password is
// examined and records nothing.
func (e *Engine) Login(ctx context.Context, email, plainPassword string) (TokenPair, error) {
	if err := e.checkReady(); err != nil {
		return TokenPair{}, err
	}

	email = normalizeEmail(email)
	now := e.now()

	rec, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn the same hashing work as a real verification so
			// response timing does not reveal whether the email exists.
			e.hasher.Verify(plainPassword, e.decoyHash)
			e.loginFailed(ctx, "", email)
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, storeErr(err)
	}

	state := lockout.State{
		FailedLoginCount:  rec.FailedLoginCount,
		LastFailedLoginAt: rec.LastFailedLoginAt,
		LockedUntil:       rec.LockedUntil,
	}
	if _, locked := e.lockout.Check(state, now); locked {
		return TokenPair{}, e.lockedOut(ctx, rec.ID, email, *rec.LockedUntil)
	}

	if !e.hasher.Verify(plainPassword, rec.PasswordHash) {
		return e.recordFailure(ctx, rec, email, now)
	}

	// Clear stale failure bookkeeping before issuing tokens.
	if rec.FailedLoginCount != 0 || rec.LastFailedLoginAt != nil || rec.LockedUntil != nil {
		clean := e.lockout.OnSuccess()
		if err := e.users.SetLockoutState(ctx, rec.ID, store.ExpectedLockoutState{}, store.LockoutState{
			FailedLoginCount:  clean.FailedLoginCount,
			LastFailedLoginAt: clean.LastFailedLoginAt,
			LockedUntil:       clean.LockedUntil,
		}); err != nil {
			return TokenPair{}, storeErr(err)
		}
	}

	pair, err := e.issueSession(ctx, rec.ID, rec.Email)
	if err != nil {
		return TokenPair{}, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emit(ctx, AuditEvent{
		EventType: AuditLogin,
		UserID:    rec.ID,
		Email:     email,
		Success:   true,
	})
	return pair, nil
}

// failureWriteAttempts bounds how often a failure write is retried after
// losing a compare-and-swap to a concurrent attempt on the same account.
const failureWriteAttempts = 5

// recordFailure advances the failure counter for a wrong-password attempt.
// The write is conditional on the lockout state the attempt observed, so
// overlapping attempts serialize instead of each persisting count=1: the
// loser reloads the record and counts its failure on top of the winner's.
func (e *Engine) recordFailure(ctx context.Context, rec store.UserRecord, email string, now time.Time) (TokenPair, error) {
	for attempt := 0; attempt < failureWriteAttempts; attempt++ {
		state := lockout.State{
			FailedLoginCount:  rec.FailedLoginCount,
			LastFailedLoginAt: rec.LastFailedLoginAt,
			LockedUntil:       rec.LockedUntil,
		}
		if _, locked := e.lockout.Check(state, now); locked {
			// A concurrent attempt crossed the threshold first. Locked
			// attempts record nothing.
			return TokenPair{}, e.lockedOut(ctx, rec.ID, email, *rec.LockedUntil)
		}

		next, outcome := e.lockout.OnFailure(state, now)
		err := e.users.SetLockoutState(ctx, rec.ID,
			store.ExpectedLockoutState{Enforce: true, Value: store.LockoutState{
				FailedLoginCount:  state.FailedLoginCount,
				LastFailedLoginAt: state.LastFailedLoginAt,
				LockedUntil:       state.LockedUntil,
			}},
			store.LockoutState{
				FailedLoginCount:  next.FailedLoginCount,
				LastFailedLoginAt: next.LastFailedLoginAt,
				LockedUntil:       next.LockedUntil,
			})
		switch {
		case err == nil:
			if outcome == lockout.LockedNow {
				return TokenPair{}, e.lockedOut(ctx, rec.ID, email, *next.LockedUntil)
			}
			e.loginFailed(ctx, rec.ID, email)
			return TokenPair{}, ErrInvalidCredentials
		case errors.Is(err, store.ErrStaleRecord):
			fresh, ferr := e.users.FindByID(ctx, rec.ID)
			if ferr != nil {
				if errors.Is(ferr, store.ErrNotFound) {
					e.loginFailed(ctx, rec.ID, email)
					return TokenPair{}, ErrInvalidCredentials
				}
				return TokenPair{}, storeErr(ferr)
			}
			rec = fresh
		case errors.Is(err, store.ErrNotFound):
			e.loginFailed(ctx, rec.ID, email)
			return TokenPair{}, ErrInvalidCredentials
		default:
			return TokenPair{}, storeErr(err)
		}
	}

	// Retries exhausted under extreme contention. The caller still sees a
	// rejected login; only this attempt's increment is lost.
	e.loginFailed(ctx, rec.ID, email)
	return TokenPair{}, ErrInvalidCredentials
}

func (e *Engine) lockedOut(ctx context.Context, userID, email string, until time.Time) error {
	e.metrics.Inc(MetricLoginLocked)
	e.emit(ctx, AuditEvent{
		EventType: AuditLoginLocked,
		UserID:    userID,
		Email:     email,
		Success:   false,
		Error:     ErrAccountLocked.Error(),
	})
	return &AccountLockedError{Until: until}
}

func (e *Engine) loginFailed(ctx context.Context, userID, email string) {
	e.metrics.Inc(MetricLoginFailure)
	e.emit(ctx, AuditEvent{
		EventType: AuditLogin,
		UserID:    userID,
		Email:     email,
		Success:   false,
		Error:     ErrInvalidCredentials.Error(),
	})
}

// issueSession mints a fresh token pair and makes the new refresh token the
// account's only valid one. The write is unconditional: login replaces any
// session left over from another device.
func (e *Engine) issueSession(ctx context.Context, userID, email string) (TokenPair, error) {
	refreshToken, err := e.tokens.SignRefresh(userID)
	if err != nil {
		return TokenPair{}, err
	}
	refreshHash, err := e.hasher.Hash(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if err := e.users.SetRefreshHash(ctx, userID, store.ExpectedRefreshHash{}, refreshHash); err != nil {
		return TokenPair{}, storeErr(err)
	}

	accessToken, err := e.tokens.SignAccess(userID, email)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessTTL:    e.config.JWT.AccessTTL,
		RefreshTTL:   e.config.JWT.RefreshTTL,
	}, nil
}
