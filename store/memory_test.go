package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCreateAndFind(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	u := UserRecord{ID: "u1", Email: "a@example.com", PasswordHash: "h", CreatedAt: time.Now()}
	require.NoError(t, m.Create(ctx, u))

	byEmail, err := m.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)

	byID, err := m.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", byID.Email)

	_, err = m.FindByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDuplicateEmail(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, UserRecord{ID: "u1", Email: "a@example.com"}))
	err := m.Create(ctx, UserRecord{ID: "u2", Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestMemorySetLockoutState(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, UserRecord{ID: "u1", Email: "a@example.com"}))

	at := time.Now().UTC()
	until := at.Add(15 * time.Minute)
	require.NoError(t, m.SetLockoutState(ctx, "u1", ExpectedLockoutState{}, LockoutState{
		FailedLoginCount:  3,
		LastFailedLoginAt: &at,
		LockedUntil:       &until,
	}))

	u, err := m.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, u.FailedLoginCount)
	require.NotNil(t, u.LastFailedLoginAt)
	assert.True(t, u.LastFailedLoginAt.Equal(at))
	require.NotNil(t, u.LockedUntil)
	assert.True(t, u.LockedUntil.Equal(until))

	assert.ErrorIs(t, m.SetLockoutState(ctx, "missing", ExpectedLockoutState{}, LockoutState{}), ErrNotFound)
}

func TestMemorySetLockoutStateConditional(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, UserRecord{ID: "u1", Email: "a@example.com"}))

	at := time.Now().UTC()
	one := LockoutState{FailedLoginCount: 1, LastFailedLoginAt: &at}

	// A writer that saw the zero state wins.
	require.NoError(t, m.SetLockoutState(ctx, "u1", ExpectedLockoutState{Enforce: true}, one))

	// A second writer holding the same zero-state snapshot loses and the
	// stored counter keeps the first writer's value.
	err := m.SetLockoutState(ctx, "u1", ExpectedLockoutState{Enforce: true}, one)
	assert.ErrorIs(t, err, ErrStaleRecord)
	u, _ := m.FindByID(ctx, "u1")
	assert.Equal(t, 1, u.FailedLoginCount)

	// Enforcing against the current state succeeds.
	two := LockoutState{FailedLoginCount: 2, LastFailedLoginAt: &at}
	require.NoError(t, m.SetLockoutState(ctx, "u1", ExpectedLockoutState{Enforce: true, Value: one}, two))
	u, _ = m.FindByID(ctx, "u1")
	assert.Equal(t, 2, u.FailedLoginCount)
}

func TestMemorySetRefreshHashConditional(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, UserRecord{ID: "u1", Email: "a@example.com", RefreshHash: "old"}))

	// Wrong expectation is rejected without touching the record.
	err := m.SetRefreshHash(ctx, "u1", ExpectedRefreshHash{Enforce: true, Value: "other"}, "new")
	assert.ErrorIs(t, err, ErrStaleRecord)
	u, _ := m.FindByID(ctx, "u1")
	assert.Equal(t, "old", u.RefreshHash)

	// Matching expectation swaps the hash; the old expectation is now stale.
	require.NoError(t, m.SetRefreshHash(ctx, "u1", ExpectedRefreshHash{Enforce: true, Value: "old"}, "new"))
	err = m.SetRefreshHash(ctx, "u1", ExpectedRefreshHash{Enforce: true, Value: "old"}, "newer")
	assert.ErrorIs(t, err, ErrStaleRecord)

	// Unconditional write always applies (logout path).
	require.NoError(t, m.SetRefreshHash(ctx, "u1", ExpectedRefreshHash{}, ""))
	u, _ = m.FindByID(ctx, "u1")
	assert.Equal(t, "", u.RefreshHash)
}

func TestMemoryCancelledContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.Create(ctx, UserRecord{ID: "u1", Email: "a@example.com"}), ErrUnavailable)
	_, err := m.FindByID(ctx, "u1")
	assert.ErrorIs(t, err, ErrUnavailable)
}
