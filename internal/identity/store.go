// Copyright (c) 2026 SimpleIdentity. All rights reserved.

package identity

import (
	"context"
	"time"
)

// Directory defines the data access contract for the credential directory.
//
// # Review Process
//
// This interface is placed in a separate file from identity.go so entity
// changes and storage-contract changes can be reviewed independently.
//
// # Implementations
//
// The canonical implementation for SimpleIdentity is PostgreSQL
// ([PostgresDirectory]).
type Directory interface {
	// ValidateCredentials checks a login/password pair against the directory.
	//
	// The login must already be normalized via [NormalizeLogin].
	// Returns the matching [*Identity] on success, or [apperr.InvalidCredentials]
	// when the login is unknown or the password does not match. The two cases
	// are indistinguishable to prevent login enumeration.
	ValidateCredentials(ctx context.Context, login, password string) (*Identity, error)

	// FindByID returns the account with the given ID.
	//
	// Returns [apperr.NotFound] if the account does not exist.
	FindByID(ctx context.Context, id int64) (*Identity, error)

	// FindByLogin returns the account with the given normalized login.
	//
	// Returns [apperr.NotFound] if the login is unknown.
	FindByLogin(ctx context.Context, login string) (*Identity, error)

	// ValidatePassword checks a candidate password against the directory's
	// password policy for the given account. Returns an empty string if the
	// password is acceptable, or a user-facing rejection message.
	ValidatePassword(ctx context.Context, id int64, password string) (string, error)

	// UpdatePassword hashes and stores a new password for the account and
	// rotates its security stamp, invalidating outstanding reset tokens.
	UpdatePassword(ctx context.Context, id int64, newPassword string) error

	// SetResetToken stores the single outstanding reset token for the account,
	// replacing any previous one.
	SetResetToken(ctx context.Context, id int64, token string) error

	// CheckResetToken compares the presented token against the stored one in
	// constant time. Returns false when no token is outstanding.
	CheckResetToken(ctx context.Context, id int64, token string) (bool, error)

	// ClearResetToken removes the stored reset token after successful use.
	ClearResetToken(ctx context.Context, id int64) error
}

// SessionStore defines the contract for volatile per-session lockout state.
//
// # Expiry
//
// Implementations must expire all state for a session after the configured
// idle timeout, measured from the last write. An expired session reads back
// as a zero [LockoutState].
type SessionStore interface {
	// GetFailedAttempts returns the failure counter, or 0 if absent.
	GetFailedAttempts(ctx context.Context, sessionID string) (int, error)

	// SetFailedAttempts stores the failure counter and refreshes the session TTL.
	SetFailedAttempts(ctx context.Context, sessionID string, count int) error

	// GetLockoutDeadline returns the lockout deadline, or the zero time if absent.
	GetLockoutDeadline(ctx context.Context, sessionID string) (time.Time, error)

	// SetLockoutDeadline stores the lockout deadline and refreshes the session TTL.
	SetLockoutDeadline(ctx context.Context, sessionID string, deadline time.Time) error

	// Clear removes all lockout state for the session.
	Clear(ctx context.Context, sessionID string) error
}
