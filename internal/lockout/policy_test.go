package lockout

import (
	"testing"
	"time"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestCheckUnlockedStates(t *testing.T) {
	p := DefaultPolicy()

	if _, locked := p.Check(State{}, base); locked {
		t.Fatal("zero state reported locked")
	}

	past := base.Add(-time.Minute)
	if _, locked := p.Check(State{LockedUntil: &past}, base); locked {
		t.Fatal("expired lock reported locked")
	}
}

func TestCheckLockedReportsRemaining(t *testing.T) {
	p := DefaultPolicy()

	until := base.Add(7 * time.Minute)
	remaining, locked := p.Check(State{LockedUntil: &until}, base)
	if !locked {
		t.Fatal("future lock not reported")
	}
	if remaining != 7*time.Minute {
		t.Fatalf("remaining = %v, want 7m", remaining)
	}
}

func TestOnFailureIncrementsWithinWindow(t *testing.T) {
	p := DefaultPolicy()

	last := base.Add(-time.Minute)
	next, outcome := p.OnFailure(State{FailedLoginCount: 2, LastFailedLoginAt: &last}, base)
	if outcome != FailureRecorded {
		t.Fatalf("outcome = %v, want FailureRecorded", outcome)
	}
	if next.FailedLoginCount != 3 {
		t.Fatalf("count = %d, want 3", next.FailedLoginCount)
	}
	if next.LastFailedLoginAt == nil || !next.LastFailedLoginAt.Equal(base) {
		t.Fatal("LastFailedLoginAt not advanced to now")
	}
	if next.LockedUntil != nil {
		t.Fatal("unexpected lock")
	}
}

func TestOnFailureResetsAfterWindow(t *testing.T) {
	p := DefaultPolicy()

	stale := base.Add(-p.Window - time.Second)
	next, outcome := p.OnFailure(State{FailedLoginCount: 4, LastFailedLoginAt: &stale}, base)
	if outcome != FailureRecorded {
		t.Fatalf("outcome = %v, want FailureRecorded", outcome)
	}
	if next.FailedLoginCount != 1 {
		t.Fatalf("count = %d, want reset to 1", next.FailedLoginCount)
	}
}

func TestOnFailureFirstEver(t *testing.T) {
	p := DefaultPolicy()

	next, outcome := p.OnFailure(State{}, base)
	if outcome != FailureRecorded || next.FailedLoginCount != 1 {
		t.Fatalf("first failure: outcome=%v count=%d", outcome, next.FailedLoginCount)
	}
}

func TestOnFailureLocksAtThreshold(t *testing.T) {
	p := DefaultPolicy()

	last := base.Add(-time.Minute)
	next, outcome := p.OnFailure(State{FailedLoginCount: 4, LastFailedLoginAt: &last}, base)
	if outcome != LockedNow {
		t.Fatalf("outcome = %v, want LockedNow", outcome)
	}
	if next.FailedLoginCount != 0 {
		t.Fatalf("count = %d, want 0 after lock", next.FailedLoginCount)
	}
	if next.LockedUntil == nil || !next.LockedUntil.Equal(base.Add(p.LockDuration)) {
		t.Fatalf("LockedUntil = %v, want %v", next.LockedUntil, base.Add(p.LockDuration))
	}
	if next.LastFailedLoginAt == nil || !next.LastFailedLoginAt.Equal(base) {
		t.Fatal("LastFailedLoginAt not set on lock")
	}
}

func TestSparseFailuresNeverLock(t *testing.T) {
	p := DefaultPolicy()

	// 4 rapid failures, a gap past the window, then 4 more: counter resets
	// instead of accumulating.
	s := State{}
	now := base
	for i := 0; i < 4; i++ {
		var outcome Outcome
		s, outcome = p.OnFailure(s, now)
		if outcome != FailureRecorded {
			t.Fatalf("failure %d locked early", i+1)
		}
		now = now.Add(time.Second)
	}

	now = now.Add(p.Window + time.Minute)
	for i := 0; i < 4; i++ {
		var outcome Outcome
		s, outcome = p.OnFailure(s, now)
		if outcome != FailureRecorded {
			t.Fatalf("post-gap failure %d locked", i+1)
		}
		now = now.Add(time.Second)
	}

	if s.FailedLoginCount != 4 {
		t.Fatalf("count = %d, want 4", s.FailedLoginCount)
	}
	if s.LockedUntil != nil {
		t.Fatal("sparse failures produced a lock")
	}
}

func TestOnSuccessClearsEverything(t *testing.T) {
	p := DefaultPolicy()

	s := p.OnSuccess()
	if s.FailedLoginCount != 0 || s.LastFailedLoginAt != nil || s.LockedUntil != nil {
		t.Fatalf("OnSuccess left residue: %+v", s)
	}
}
