// Copyright (c) 2026 SimpleIdentity. All rights reserved.

package identity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kant2002/SimpleIdentity/internal/identity"
)

/*
TestLockout_FailuresBelowThreshold verifies that early failures only count.
*/
func TestLockout_FailuresBelowThreshold(t *testing.T) {
	policy := identity.LockoutPolicy{Threshold: 3, Duration: 60 * time.Second}
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	state := identity.LockoutState{}

	state = policy.RecordFailure(state, base)
	assert.Equal(t, 1, state.FailedAttempts)
	assert.False(t, state.IsLocked(base))

	state = policy.RecordFailure(state, base.Add(1*time.Second))
	assert.Equal(t, 2, state.FailedAttempts)
	assert.False(t, state.IsLocked(base.Add(1*time.Second)))
}

/*
TestLockout_ThresholdPlacesLock verifies the transition into the lockout
window and the counter reset that comes with it.
*/
func TestLockout_ThresholdPlacesLock(t *testing.T) {
	policy := identity.LockoutPolicy{Threshold: 3, Duration: 60 * time.Second}
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	state := identity.LockoutState{FailedAttempts: 2}
	lockTime := base.Add(2 * time.Second)

	state = policy.RecordFailure(state, lockTime)

	assert.True(t, state.IsLocked(lockTime))
	assert.Equal(t, 0, state.FailedAttempts, "counter resets when the lock is placed")
	assert.Equal(t, lockTime.Add(60*time.Second), state.LockedUntil)
}

/*
TestLockout_WindowCountdownAndExpiry walks one full lockout lifecycle:
two early failures, a third that locks, a probe mid-window, and a success
after expiry.
*/
func TestLockout_WindowCountdownAndExpiry(t *testing.T) {
	policy := identity.LockoutPolicy{Threshold: 3, Duration: 60 * time.Second}
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	state := identity.LockoutState{}
	state = policy.RecordFailure(state, base)                    // t=0
	state = policy.RecordFailure(state, base.Add(1*time.Second)) // t=1
	state = policy.RecordFailure(state, base.Add(2*time.Second)) // t=2, locks until t=62

	// Mid-window probe at t=10: 52 seconds remain.
	probe := base.Add(10 * time.Second)
	assert.True(t, state.IsLocked(probe))
	assert.Equal(t, 52, state.RemainingSeconds(probe))

	// The window expires at t=62; by t=63 attempts are considered again.
	after := base.Add(63 * time.Second)
	assert.False(t, state.IsLocked(after))
	assert.Equal(t, 0, state.RemainingSeconds(after))

	// A success wipes the slate.
	state = policy.RecordSuccess(state)
	assert.Equal(t, identity.LockoutState{}, state)
	assert.False(t, state.IsLocked(after))
}

/*
TestLockout_FailureInsideWindowIsIgnored verifies that a failure recorded
while locked neither extends the lock nor touches the counter.
*/
func TestLockout_FailureInsideWindowIsIgnored(t *testing.T) {
	policy := identity.LockoutPolicy{Threshold: 3, Duration: 60 * time.Second}
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	locked := identity.LockoutState{LockedUntil: base.Add(60 * time.Second)}
	next := policy.RecordFailure(locked, base.Add(30*time.Second))

	assert.Equal(t, locked, next)
}

/*
TestLockout_ExpiredLockCountsFresh verifies that failures after an expired
window start counting from a clean slate.
*/
func TestLockout_ExpiredLockCountsFresh(t *testing.T) {
	policy := identity.LockoutPolicy{Threshold: 3, Duration: 60 * time.Second}
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	expired := identity.LockoutState{LockedUntil: base.Add(-1 * time.Second)}
	next := policy.RecordFailure(expired, base)

	assert.False(t, next.IsLocked(base))
	assert.Equal(t, 1, next.FailedAttempts)
}

/*
TestLockout_RemainingSecondsRoundsUp verifies sub-second remainders round up,
so a waiting client never retries a hair too early.
*/
func TestLockout_RemainingSecondsRoundsUp(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	state := identity.LockoutState{LockedUntil: base.Add(1500 * time.Millisecond)}

	assert.Equal(t, 2, state.RemainingSeconds(base))
	assert.Equal(t, 1, state.RemainingSeconds(base.Add(500*time.Millisecond)))
}
