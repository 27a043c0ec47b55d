// Package lockout implements the sliding-window failed-login policy as a
// pure state machine. The caller owns persistence; every function here is
// a computation over the stored counters.
package lockout

import "time"

// State mirrors the lockout fields of a user record.
type State struct {
	FailedLoginCount  int
	LastFailedLoginAt *time.Time
	LockedUntil       *time.Time
}

// Policy holds the lockout thresholds. Failures are counted within a
// sliding window so sparse failures spread over days never accumulate; only
// consecutive-within-window failures lock the account.
type Policy struct {
	MaxFails     int
	Window       time.Duration
	LockDuration time.Duration
}

// DefaultPolicy returns the standard thresholds: 5 failures within 10
// minutes lock the account for 15 minutes.
func DefaultPolicy() Policy {
	return Policy{
		MaxFails:     5,
		Window:       10 * time.Minute,
		LockDuration: 15 * time.Minute,
	}
}

// Outcome reports how OnFailure changed the state.
type Outcome int

const (
	// FailureRecorded means the counter advanced but the account is not
	// yet locked.
	FailureRecorded Outcome = iota
	// LockedNow means this failure crossed the threshold and the account
	// is locked as of now.
	LockedNow
)

// Check reports whether the account is locked at now, and for how much
// longer. Callers must reject a locked login attempt before verifying the
// password and without writing any state: continued attempts while locked
// must not extend the lockout.
func (p Policy) Check(s State, now time.Time) (remaining time.Duration, locked bool) {
	if s.LockedUntil == nil || !s.LockedUntil.After(now) {
		return 0, false
	}
	return s.LockedUntil.Sub(now), true
}

// OnFailure advances the failure counter. A failure older than the window
// resets the count to 1 instead of incrementing; reaching MaxFails locks
// the account until now+LockDuration and zeroes the counter.
func (p Policy) OnFailure(s State, now time.Time) (State, Outcome) {
	nextFails := 1
	if s.LastFailedLoginAt != nil && now.Sub(*s.LastFailedLoginAt) <= p.Window {
		nextFails = s.FailedLoginCount + 1
	}

	failedAt := now
	if nextFails >= p.MaxFails {
		until := now.Add(p.LockDuration)
		return State{
			FailedLoginCount:  0,
			LastFailedLoginAt: &failedAt,
			LockedUntil:       &until,
		}, LockedNow
	}

	return State{
		FailedLoginCount:  nextFails,
		LastFailedLoginAt: &failedAt,
	}, FailureRecorded
}

// OnSuccess clears all failure tracking.
func (p Policy) OnSuccess() State {
	return State{}
}
