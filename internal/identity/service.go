// Copyright (c) 2026 SimpleIdentity. All rights reserved.

package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/kant2002/SimpleIdentity/internal/platform/apperr"
	"github.com/kant2002/SimpleIdentity/internal/platform/ctxutil"
)

// TokenProvider defines the contract for generating access tokens.
type TokenProvider interface {
	// GenerateAccessToken creates a signed JWT string for the given user.
	//
	// # Parameters
	//   - userID: The ID of the account.
	//   - login: The login of the account.
	//   - role: The role of the account.
	//   - timeToLive: The duration before the token expires.
	//
	// # Returns
	//   - A signed JWT string, or an error if signing fails.
	GenerateAccessToken(userID, login, role string, timeToLive time.Duration) (string, error)
}

// Notifier defines the contract for outbound account notifications.
type Notifier interface {
	// Send delivers a plain-text message to a single recipient.
	Send(ctx context.Context, to, subject, body string) error
}

// Service implements credential validation and password change use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to lockout arithmetic,
// credential checks, or password change logic must be reviewed by the
// security team.
type Service struct {
	directory     Directory
	sessions      SessionStore
	tokenProvider TokenProvider
	notifier      Notifier
	policy        LockoutPolicy

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(
	directory Directory,
	sessions SessionStore,
	tokenProv TokenProvider,
	notifier Notifier,
	policy LockoutPolicy,
) *Service {
	return &Service{
		directory:     directory,
		sessions:      sessions,
		tokenProvider: tokenProv,
		notifier:      notifier,
		policy:        policy,
		now:           time.Now,
	}
}

// CheckCredentialsInput holds one authentication attempt.
type CheckCredentialsInput struct {
	SessionID string
	Login     string
	Password  string
}

// LoginResult represents a successfully validated credential pair.
type LoginResult struct {
	AccessToken string
	Identity    *Identity
}

// CheckCredentials validates a login/password pair under the lockout policy.
//
// # Flow
//  1. Load the session's lockout state.
//  2. Locked sessions are rejected immediately. The directory is NOT
//     consulted, so attempts inside the window cannot probe credentials
//     and do not extend the lock.
//  3. Delegate the actual credential check to the directory.
//  4. On failure, advance the lockout state and persist it. The failure
//     that reaches the threshold places the lock but still answers as an
//     ordinary credential failure; only subsequent attempts see the lock.
//  5. On success, clear all lockout state and issue an access token.
//
// # Returns
//   - [*LoginResult] on success.
//   - [apperr.Locked] while the session is inside its lockout window.
//   - [apperr.InvalidCredentials] for a failed check below the threshold.
func (service *Service) CheckCredentials(ctx context.Context, input CheckCredentialsInput) (*LoginResult, error) {
	now := service.now()

	// ── 1. Lockout Gate ───────────────────────────────────────────────────

	state, err := service.loadState(ctx, input.SessionID)
	if err != nil {
		return nil, fmt.Errorf("identity_service_load_state_failed: %w", err)
	}

	if state.IsLocked(now) {
		return nil, apperr.Locked(state.RemainingSeconds(now))
	}

	// ── 2. Credential Check ───────────────────────────────────────────────

	login := NormalizeLogin(input.Login)
	account, err := service.directory.ValidateCredentials(ctx, login, input.Password)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeInvalidCredentials) {
			return nil, service.registerFailure(ctx, input.SessionID, state, now)
		}
		return nil, fmt.Errorf("identity_service_validate_failed: %w", err)
	}

	// ── 3. Success: Reset Lockout State ───────────────────────────────────

	if err := service.sessions.Clear(ctx, input.SessionID); err != nil {
		return nil, fmt.Errorf("identity_service_clear_state_failed: %w", err)
	}

	// ── 4. Token Issuance ─────────────────────────────────────────────────

	// Tokens are valid for 15 minutes to reduce impact window if leaked.
	accessToken, err := service.tokenProvider.GenerateAccessToken(
		strconv.FormatInt(account.ID, 10),
		account.Login,
		string(account.Role()),
		15*time.Minute,
	)
	if err != nil {
		return nil, fmt.Errorf("identity_service_token_generation_failed: %w", err)
	}

	return &LoginResult{AccessToken: accessToken, Identity: account}, nil
}

// registerFailure advances the lockout state after a failed credential check.
//
// The answer is always the generic credential error, even for the attempt
// that places the lock: the lock only gates attempts made after it.
func (service *Service) registerFailure(ctx context.Context, sessionID string, state LockoutState, now time.Time) error {
	next := service.policy.RecordFailure(state, now)

	if err := service.storeState(ctx, sessionID, next); err != nil {
		return fmt.Errorf("identity_service_store_state_failed: %w", err)
	}

	return apperr.InvalidCredentials()
}

// LockoutStatus describes a session's current standing for status probes.
type LockoutStatus struct {
	Locked            bool `json:"locked"`
	FailedAttempts    int  `json:"failed_attempts"`
	RetryAfterSeconds int  `json:"retry_after_seconds,omitempty"`
}

// GetLockoutStatus reports the session's lockout standing without consuming
// an attempt.
func (service *Service) GetLockoutStatus(ctx context.Context, sessionID string) (*LockoutStatus, error) {
	now := service.now()

	state, err := service.loadState(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("identity_service_load_state_failed: %w", err)
	}

	return &LockoutStatus{
		Locked:            state.IsLocked(now),
		FailedAttempts:    state.FailedAttempts,
		RetryAfterSeconds: state.RemainingSeconds(now),
	}, nil
}

// EndSession discards all lockout bookkeeping for the session.
// Used on logout; a fresh session starts with a clean slate.
func (service *Service) EndSession(ctx context.Context, sessionID string) error {
	if err := service.sessions.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("identity_service_end_session_failed: %w", err)
	}
	return nil
}

// FindByID returns the account with the given ID.
func (service *Service) FindByID(ctx context.Context, id int64) (*Identity, error) {
	return service.directory.FindByID(ctx, id)
}

// FindByLogin returns the account with the given login, normalized first.
func (service *Service) FindByLogin(ctx context.Context, login string) (*Identity, error) {
	return service.directory.FindByLogin(ctx, NormalizeLogin(login))
}

// ChangePassword sets a new password for an authenticated account.
//
// # Business Rules
//   - The current password is NOT required: the caller already proved
//     possession of a valid access token for this account.
//   - The directory's password policy decides acceptability; its rejection
//     message is returned to the client verbatim.
//   - Storage faults answer with a generic failure message only.
//
// # Returns
//   - [apperr.PolicyRejected] when the new password fails the policy.
//   - [apperr.StorageFailure] when persisting the change fails.
func (service *Service) ChangePassword(ctx context.Context, userID int64, newPassword string) error {
	account, err := service.directory.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("identity_service_change_lookup_failed: %w", err)
	}

	// ── 1. Policy Check ───────────────────────────────────────────────────

	policyMessage, err := service.directory.ValidatePassword(ctx, account.ID, newPassword)
	if err != nil {
		return fmt.Errorf("identity_service_policy_check_failed: %w", err)
	}
	if policyMessage != "" {
		return apperr.PolicyRejected(policyMessage)
	}

	// ── 2. Persistence ────────────────────────────────────────────────────

	// The update also rotates the security stamp and any pending reset token
	// becomes unusable. Faults are deliberately collapsed into one generic
	// client-facing error.
	if err := service.directory.UpdatePassword(ctx, account.ID, newPassword); err != nil {
		return apperr.StorageFailure(err)
	}

	if err := service.directory.ClearResetToken(ctx, account.ID); err != nil {
		return apperr.StorageFailure(err)
	}

	// ── 3. Notification ───────────────────────────────────────────────────

	service.sendChangeNotice(ctx, account)

	return nil
}

// sendChangeNotice emails a password-change confirmation.
// Delivery is best-effort: a failure is logged but never blocks the change.
func (service *Service) sendChangeNotice(ctx context.Context, account *Identity) {
	if service.notifier == nil || account.Email == "" {
		return
	}

	logger := ctxutil.GetLogger(ctx)
	detachedCtx := context.WithoutCancel(ctx)

	go func() {
		body := fmt.Sprintf(
			"Hello %s,\n\nThe password for your account %q was changed. "+
				"If you did not request this change, contact support immediately.\n",
			account.DisplayName(), account.Login,
		)
		if err := service.notifier.Send(detachedCtx, account.Email, "Your password was changed", body); err != nil {
			logger.Error("password_change_notice_failed",
				slog.Int64("user_id", account.ID),
				slog.Any("error", err),
			)
		}
	}()
}

// loadState assembles the session's [LockoutState] from the granular store.
func (service *Service) loadState(ctx context.Context, sessionID string) (LockoutState, error) {
	attempts, err := service.sessions.GetFailedAttempts(ctx, sessionID)
	if err != nil {
		return LockoutState{}, err
	}

	deadline, err := service.sessions.GetLockoutDeadline(ctx, sessionID)
	if err != nil {
		return LockoutState{}, err
	}

	return LockoutState{FailedAttempts: attempts, LockedUntil: deadline}, nil
}

// storeState persists the session's [LockoutState] through the granular store.
func (service *Service) storeState(ctx context.Context, sessionID string, state LockoutState) error {
	if err := service.sessions.SetFailedAttempts(ctx, sessionID, state.FailedAttempts); err != nil {
		return err
	}
	return service.sessions.SetLockoutDeadline(ctx, sessionID, state.LockedUntil)
}
