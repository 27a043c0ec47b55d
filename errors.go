package authkit

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrEmailTaken is returned by Register when the email is already in use.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned by Login for unknown emails and wrong
	// passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned by Login while the account lock is active.
	// Match with errors.Is; the concrete value is an [AccountLockedError].
	ErrAccountLocked = errors.New("account locked")
	// ErrUnauthorized is returned by Refresh and token verification for any
	// invalid, expired, revoked, or reused token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrCsrfMismatch is returned when the CSRF header and cookie disagree.
	ErrCsrfMismatch = errors.New("csrf token mismatch")
	// ErrRateLimited is returned when a request exceeds its route budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable wraps backend outages and timeouts.
	ErrStoreUnavailable = errors.New("user store unavailable")
	// ErrEngineNotReady is returned when the engine is used before Build
	// completed or after Close.
	ErrEngineNotReady = errors.New("engine not ready")
)

// AccountLockedError reports when a locked account becomes usable again.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, try again in %d minutes", e.RemainingMinutes(time.Now()))
}

// Is makes errors.Is(err, ErrAccountLocked) match.
func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// RemainingMinutes returns the lock time left at now, rounded up, at least 1.
func (e *AccountLockedError) RemainingMinutes(now time.Time) int {
	left := e.Until.Sub(now)
	if left <= 0 {
		return 1
	}
	return int(math.Ceil(left.Minutes()))
}
