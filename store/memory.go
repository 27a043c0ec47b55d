package store

import (
	"context"
	"sync"
)

// Memory is a mutex-guarded in-process UserStore. It backs tests and
// single-node development runs; the conditional writes are atomic under
// the store mutex, giving them the same single-winner semantics as the
// networked backends.
type Memory struct {
	mu      sync.Mutex
	byID    map[string]UserRecord
	byEmail map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		byID:    make(map[string]UserRecord),
		byEmail: make(map[string]string),
	}
}

func (m *Memory) Create(ctx context.Context, u UserRecord) error {
	if err := ctx.Err(); err != nil {
		return ErrUnavailable
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[u.Email]; exists {
		return ErrDuplicateEmail
	}
	m.byID[u.ID] = u
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *Memory) FindByEmail(ctx context.Context, email string) (UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return UserRecord{}, ErrUnavailable
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byEmail[email]
	if !ok {
		return UserRecord{}, ErrNotFound
	}
	return m.byID[id], nil
}

func (m *Memory) FindByID(ctx context.Context, id string) (UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return UserRecord{}, ErrUnavailable
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return UserRecord{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) SetLockoutState(ctx context.Context, id string, expect ExpectedLockoutState, s LockoutState) error {
	if err := ctx.Err(); err != nil {
		return ErrUnavailable
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if expect.Enforce {
		current := LockoutState{
			FailedLoginCount:  u.FailedLoginCount,
			LastFailedLoginAt: u.LastFailedLoginAt,
			LockedUntil:       u.LockedUntil,
		}
		if !current.Equal(expect.Value) {
			return ErrStaleRecord
		}
	}
	u.FailedLoginCount = s.FailedLoginCount
	u.LastFailedLoginAt = s.LastFailedLoginAt
	u.LockedUntil = s.LockedUntil
	m.byID[id] = u
	return nil
}

func (m *Memory) SetRefreshHash(ctx context.Context, id string, expect ExpectedRefreshHash, hash string) error {
	if err := ctx.Err(); err != nil {
		return ErrUnavailable
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if expect.Enforce && u.RefreshHash != expect.Value {
		return ErrStaleRecord
	}
	u.RefreshHash = hash
	m.byID[id] = u
	return nil
}
