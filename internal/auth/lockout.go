// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"time"
)

// Account lockout configuration.
const (
	// LockoutDuration is the time a user is locked out after too many failures.
	LockoutDuration = 15 * time.Minute

	// LockoutThreshold is the number of consecutive failures that triggers a lockout.
	LockoutThreshold = 7
)

// LockoutStatus describes the lockout state of an account at a point in time.
type LockoutStatus struct {
	// Locked indicates the account is temporarily locked.
	Locked bool

	// Remaining is the time until the lockout expires.
	Remaining time.Duration

	// AttemptsLeft is the number of failures allowed before a lockout.
	AttemptsLeft int
}

// CheckLockout evaluates the lockout state based on failure count.
// lockedUntil is the current lockout timestamp (nil if not locked).
func CheckLockout(failures int, lockedUntil *time.Time, now time.Time) LockoutStatus {
	if IsLockedOut(lockedUntil, now) {
		return LockoutStatus{Locked: true, Remaining: lockedUntil.Sub(now)}
	}
	if lockedUntil != nil {
		// The lock expired; the next failure starts a new run.
		failures = 0
	}

	left := LockoutThreshold - failures
	if left < 0 {
		left = 0
	}
	return LockoutStatus{AttemptsLeft: left}
}

// IsLockedOut returns true if the lockout time is after now.
func IsLockedOut(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// ComputeLockoutTime returns the lockout timestamp for the given failure count.
// Returns nil if failures < LockoutThreshold.
func ComputeLockoutTime(failures int, now time.Time) *time.Time {
	if failures < LockoutThreshold {
		return nil
	}
	lockout := now.Add(LockoutDuration)
	return &lockout
}
