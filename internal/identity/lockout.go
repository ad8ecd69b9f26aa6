// Copyright (c) 2026 SimpleIdentity. All rights reserved.

package identity

import (
	"time"
)

// LockoutPolicy holds the tunable parameters of the failed-attempt tracker.
//
// # Semantics
//
// Threshold is the number of consecutive failures that triggers a lock.
// With Threshold = 3, the first two failures only increment the counter and
// the third places the session inside a lockout window of Duration length.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// LockoutState is the per-session failed-attempt record.
//
// # Design
//
// LockoutState is a pure value. Transitions take the current time as an
// argument, never read the wall clock, and return a new state. This keeps the
// arithmetic deterministic and directly testable; persistence is the caller's
// concern.
type LockoutState struct {
	// FailedAttempts counts consecutive failures since the last success or lock.
	FailedAttempts int

	// LockedUntil is the lockout deadline. The zero value means no lock has
	// been placed. A deadline in the past is an expired lock: attempts are
	// considered again, but the deadline is kept until the next transition.
	LockedUntil time.Time
}

// IsLocked reports whether the state is inside an active lockout window.
func (state LockoutState) IsLocked(now time.Time) bool {
	return !state.LockedUntil.IsZero() && now.Before(state.LockedUntil)
}

// Remaining returns the time left in the lockout window, or zero when the
// state is not locked.
func (state LockoutState) Remaining(now time.Time) time.Duration {
	if !state.IsLocked(now) {
		return 0
	}
	return state.LockedUntil.Sub(now)
}

// RemainingSeconds returns the lockout remainder rounded up to whole seconds.
// Rounding up guarantees a client that waits the advertised time finds the
// window expired.
func (state LockoutState) RemainingSeconds(now time.Time) int {
	remaining := state.Remaining(now)
	if remaining <= 0 {
		return 0
	}
	seconds := int(remaining / time.Second)
	if remaining%time.Second != 0 {
		seconds++
	}
	return seconds
}

// RecordFailure registers one failed attempt and returns the next state.
//
// # Transitions
//   - Locked state: returned unchanged. Attempts inside the window must be
//     rejected before reaching the directory, so they never count.
//   - Counter below threshold: increments FailedAttempts.
//   - Counter reaches threshold: places a lock of policy.Duration and resets
//     FailedAttempts to zero, so the window expiring yields a clean slate.
func (policy LockoutPolicy) RecordFailure(state LockoutState, now time.Time) LockoutState {
	if state.IsLocked(now) {
		return state
	}

	next := state.FailedAttempts + 1
	if next >= policy.Threshold {
		return LockoutState{
			FailedAttempts: 0,
			LockedUntil:    now.Add(policy.Duration),
		}
	}

	return LockoutState{FailedAttempts: next}
}

// RecordSuccess clears all lockout bookkeeping after a successful validation.
func (policy LockoutPolicy) RecordSuccess(state LockoutState) LockoutState {
	return LockoutState{}
}
