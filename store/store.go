// Package store defines the user-record contract consumed by the
// authentication engine, plus an in-memory implementation. Backend
// implementations live in the redisstore and pgstore subpackages.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record matches the lookup key.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned by Create when the email is taken.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrStaleRecord is returned by the conditional writes when the stored
	// value no longer matches the caller's expectation. This is what makes
	// rotation and failure counting race-free: of two concurrent writers
	// only one sees the expected value.
	ErrStaleRecord = errors.New("stale user record")
	// ErrUnavailable wraps transport and timeout failures. It is the only
	// store error callers may treat as transient.
	ErrUnavailable = errors.New("store unavailable")
)

// UserRecord is the persistent authentication state for one user. ID and
// Email are immutable after creation. RefreshHash holds the argon2 hash of
// the single currently valid refresh token, or "" when no session is
// active.
type UserRecord struct {
	ID                string
	Email             string
	PasswordHash      string
	RefreshHash       string
	FailedLoginCount  int
	LastFailedLoginAt *time.Time
	LockedUntil       *time.Time
	CreatedAt         time.Time
}

// LockoutState is the failure-tracking slice of a user record, written as
// one unit: the three fields always change together.
type LockoutState struct {
	FailedLoginCount  int
	LastFailedLoginAt *time.Time
	LockedUntil       *time.Time
}

// Equal reports whether two lockout states carry the same counters and
// instants. Times compare by instant so stores may round-trip them through
// a different zone or precision-preserving encoding.
func (s LockoutState) Equal(o LockoutState) bool {
	return s.FailedLoginCount == o.FailedLoginCount &&
		sameInstant(s.LastFailedLoginAt, o.LastFailedLoginAt) &&
		sameInstant(s.LockedUntil, o.LockedUntil)
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// ExpectedRefreshHash makes SetRefreshHash conditional. With Enforce set,
// the write applies only while the stored hash equals Value ("" meaning no
// active session); otherwise the store returns ErrStaleRecord.
type ExpectedRefreshHash struct {
	Enforce bool
	Value   string
}

// ExpectedLockoutState makes SetLockoutState conditional. With Enforce set,
// the write applies only while the stored lockout fields equal Value;
// otherwise the store returns ErrStaleRecord. This is what keeps concurrent
// failure counting from losing increments: each writer must have seen the
// state it is replacing.
type ExpectedLockoutState struct {
	Enforce bool
	Value   LockoutState
}

// UserStore is the atomic read-modify-write surface the engine requires.
// Implementations must bound every call with a timeout and map transport
// failures to ErrUnavailable.
type UserStore interface {
	Create(ctx context.Context, u UserRecord) error
	FindByEmail(ctx context.Context, email string) (UserRecord, error)
	FindByID(ctx context.Context, id string) (UserRecord, error)
	SetLockoutState(ctx context.Context, id string, expect ExpectedLockoutState, s LockoutState) error
	SetRefreshHash(ctx context.Context, id string, expect ExpectedRefreshHash, hash string) error
}
