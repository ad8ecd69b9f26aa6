// Copyright (c) 2026 SimpleIdentity. All rights reserved.

package identity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kant2002/SimpleIdentity/internal/platform/apperr"
)

// # Test Doubles

// fakeDirectory is an in-memory [Directory] with scriptable failure modes.
type fakeDirectory struct {
	accounts    map[string]*Identity // keyed by normalized login
	passwords   map[int64]string
	resetTokens map[int64]string

	policyMessage string
	updateErr     error
	clearErr      error

	validateCalls int
	updateCalls   []int64
}

func newFakeDirectory(accounts ...*Identity) *fakeDirectory {
	directory := &fakeDirectory{
		accounts:    make(map[string]*Identity),
		passwords:   make(map[int64]string),
		resetTokens: make(map[int64]string),
	}
	for _, account := range accounts {
		directory.accounts[NormalizeLogin(account.Login)] = account
	}
	return directory
}

func (d *fakeDirectory) ValidateCredentials(ctx context.Context, login, password string) (*Identity, error) {
	d.validateCalls++
	account, ok := d.accounts[login]
	if !ok || d.passwords[account.ID] != password {
		return nil, apperr.InvalidCredentials()
	}
	return account, nil
}

func (d *fakeDirectory) FindByID(ctx context.Context, id int64) (*Identity, error) {
	for _, account := range d.accounts {
		if account.ID == id {
			return account, nil
		}
	}
	return nil, apperr.NotFound("Account")
}

func (d *fakeDirectory) FindByLogin(ctx context.Context, login string) (*Identity, error) {
	account, ok := d.accounts[login]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	return account, nil
}

func (d *fakeDirectory) ValidatePassword(ctx context.Context, id int64, password string) (string, error) {
	return d.policyMessage, nil
}

func (d *fakeDirectory) UpdatePassword(ctx context.Context, id int64, newPassword string) error {
	if d.updateErr != nil {
		return d.updateErr
	}
	d.updateCalls = append(d.updateCalls, id)
	d.passwords[id] = newPassword

	// Mirror the real directory: every password change rotates the stamp.
	if account, err := d.FindByID(ctx, id); err == nil {
		account.SecurityStamp = fmt.Sprintf("%s-rotated-%d", account.SecurityStamp, len(d.updateCalls))
	}
	return nil
}

func (d *fakeDirectory) SetResetToken(ctx context.Context, id int64, token string) error {
	d.resetTokens[id] = token
	return nil
}

func (d *fakeDirectory) CheckResetToken(ctx context.Context, id int64, token string) (bool, error) {
	stored, ok := d.resetTokens[id]
	return ok && stored != "" && stored == token, nil
}

func (d *fakeDirectory) ClearResetToken(ctx context.Context, id int64) error {
	if d.clearErr != nil {
		return d.clearErr
	}
	delete(d.resetTokens, id)
	return nil
}

// memSessionStore is an in-memory [SessionStore].
type memSessionStore struct {
	attempts  map[string]int
	deadlines map[string]time.Time
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{
		attempts:  make(map[string]int),
		deadlines: make(map[string]time.Time),
	}
}

func (s *memSessionStore) GetFailedAttempts(ctx context.Context, sessionID string) (int, error) {
	return s.attempts[sessionID], nil
}

func (s *memSessionStore) SetFailedAttempts(ctx context.Context, sessionID string, count int) error {
	s.attempts[sessionID] = count
	return nil
}

func (s *memSessionStore) GetLockoutDeadline(ctx context.Context, sessionID string) (time.Time, error) {
	return s.deadlines[sessionID], nil
}

func (s *memSessionStore) SetLockoutDeadline(ctx context.Context, sessionID string, deadline time.Time) error {
	s.deadlines[sessionID] = deadline
	return nil
}

func (s *memSessionStore) Clear(ctx context.Context, sessionID string) error {
	delete(s.attempts, sessionID)
	delete(s.deadlines, sessionID)
	return nil
}

// fakeTokens issues predictable access tokens.
type fakeTokens struct{}

func (fakeTokens) GenerateAccessToken(userID, login, role string, timeToLive time.Duration) (string, error) {
	return "access-" + userID, nil
}

// # Fixtures

var testBase = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestService(directory *fakeDirectory, sessions *memSessionStore) *Service {
	service := NewService(directory, sessions, fakeTokens{}, nil, LockoutPolicy{
		Threshold: 3,
		Duration:  60 * time.Second,
	})
	service.now = func() time.Time { return testBase }
	return service
}

func directoryWithUser() *fakeDirectory {
	directory := newFakeDirectory(&Identity{
		ID:            1,
		Login:         "jsmith",
		Email:         "jsmith@example.com",
		RoleTag:       "A",
		SecurityStamp: "stamp-1",
	})
	directory.passwords[1] = "correct horse 1"
	return directory
}

// # CheckCredentials

/*
TestService_CheckCredentials_Success verifies the happy path: a valid pair
yields an access token and clears lockout state.
*/
func TestService_CheckCredentials_Success(t *testing.T) {
	directory := directoryWithUser()
	sessions := newMemSessionStore()
	sessions.attempts["sid"] = 2 // earlier failures

	service := newTestService(directory, sessions)

	result, err := service.CheckCredentials(context.Background(), CheckCredentialsInput{
		SessionID: "sid",
		Login:     "JSmith", // mixed case must still match
		Password:  "correct horse 1",
	})

	require.NoError(t, err)
	assert.Equal(t, "access-1", result.AccessToken)
	assert.Equal(t, int64(1), result.Identity.ID)

	// Success wipes lockout bookkeeping.
	assert.NotContains(t, sessions.attempts, "sid")
	assert.NotContains(t, sessions.deadlines, "sid")
}

/*
TestService_CheckCredentials_WrongPassword verifies that a failure below the
threshold increments the counter and answers with the generic error.
*/
func TestService_CheckCredentials_WrongPassword(t *testing.T) {
	directory := directoryWithUser()
	sessions := newMemSessionStore()
	service := newTestService(directory, sessions)

	_, err := service.CheckCredentials(context.Background(), CheckCredentialsInput{
		SessionID: "sid",
		Login:     "jsmith",
		Password:  "wrong",
	})

	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidCredentials))
	assert.Equal(t, "Invalid Login ID or Password.", err.Error())
	assert.Equal(t, 1, sessions.attempts["sid"])
}

/*
TestService_CheckCredentials_ThresholdLocks verifies that the failure that
reaches the threshold places the lock but still answers as an ordinary
credential failure; the attempt after it sees the lockout error.
*/
func TestService_CheckCredentials_ThresholdLocks(t *testing.T) {
	directory := directoryWithUser()
	sessions := newMemSessionStore()
	service := newTestService(directory, sessions)

	var err error
	for i := 0; i < 3; i++ {
		_, err = service.CheckCredentials(context.Background(), CheckCredentialsInput{
			SessionID: "sid",
			Login:     "jsmith",
			Password:  "wrong",
		})
	}

	// The lock-placing attempt itself reads as a plain credential failure.
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidCredentials))
	assert.Equal(t, "Invalid Login ID or Password.", err.Error())

	// The lock resets the counter and stores the deadline.
	assert.Equal(t, 0, sessions.attempts["sid"])
	assert.Equal(t, testBase.Add(60*time.Second), sessions.deadlines["sid"])
	assert.Equal(t, 3, directory.validateCalls)

	// The very next attempt is gated by the window.
	_, err = service.CheckCredentials(context.Background(), CheckCredentialsInput{
		SessionID: "sid",
		Login:     "jsmith",
		Password:  "wrong",
	})
	require.Error(t, err)
	lockErr := apperr.As(err)
	require.NotNil(t, lockErr)
	assert.Equal(t, apperr.CodeLocked, lockErr.Code)
	assert.Equal(t, 60, lockErr.RetryAfterSeconds)
	assert.Equal(t, 3, directory.validateCalls, "locked attempts must not reach the directory")
}

/*
TestService_CheckCredentials_LockedSkipsDirectory verifies that attempts
inside the lockout window never reach the credential directory, even with
the correct password.
*/
func TestService_CheckCredentials_LockedSkipsDirectory(t *testing.T) {
	directory := directoryWithUser()
	sessions := newMemSessionStore()
	sessions.deadlines["sid"] = testBase.Add(30 * time.Second)

	service := newTestService(directory, sessions)

	_, err := service.CheckCredentials(context.Background(), CheckCredentialsInput{
		SessionID: "sid",
		Login:     "jsmith",
		Password:  "correct horse 1",
	})

	require.Error(t, err)
	lockErr := apperr.As(err)
	require.NotNil(t, lockErr)
	assert.Equal(t, apperr.CodeLocked, lockErr.Code)
	assert.Equal(t, 30, lockErr.RetryAfterSeconds)
	assert.Zero(t, directory.validateCalls, "locked sessions must not contact the directory")
}

/*
TestService_CheckCredentials_ExpiredLockAllows verifies that attempts after
the window expires are considered again.
*/
func TestService_CheckCredentials_ExpiredLockAllows(t *testing.T) {
	directory := directoryWithUser()
	sessions := newMemSessionStore()
	sessions.deadlines["sid"] = testBase.Add(-1 * time.Second)

	service := newTestService(directory, sessions)

	result, err := service.CheckCredentials(context.Background(), CheckCredentialsInput{
		SessionID: "sid",
		Login:     "jsmith",
		Password:  "correct horse 1",
	})

	require.NoError(t, err)
	assert.Equal(t, "access-1", result.AccessToken)
}

/*
TestService_CheckCredentials_SessionsAreIndependent verifies that one
session's lock does not leak into another session's counters.
*/
func TestService_CheckCredentials_SessionsAreIndependent(t *testing.T) {
	directory := directoryWithUser()
	sessions := newMemSessionStore()
	sessions.deadlines["locked-sid"] = testBase.Add(30 * time.Second)

	service := newTestService(directory, sessions)

	result, err := service.CheckCredentials(context.Background(), CheckCredentialsInput{
		SessionID: "fresh-sid",
		Login:     "jsmith",
		Password:  "correct horse 1",
	})

	require.NoError(t, err)
	assert.Equal(t, "access-1", result.AccessToken)
}

// # Lockout Status

/*
TestService_GetLockoutStatus verifies the status probe for both a counting
session and a locked one.
*/
func TestService_GetLockoutStatus(t *testing.T) {
	directory := directoryWithUser()
	sessions := newMemSessionStore()
	sessions.attempts["counting"] = 2
	sessions.deadlines["locked"] = testBase.Add(45 * time.Second)

	service := newTestService(directory, sessions)

	counting, err := service.GetLockoutStatus(context.Background(), "counting")
	require.NoError(t, err)
	assert.False(t, counting.Locked)
	assert.Equal(t, 2, counting.FailedAttempts)
	assert.Zero(t, counting.RetryAfterSeconds)

	locked, err := service.GetLockoutStatus(context.Background(), "locked")
	require.NoError(t, err)
	assert.True(t, locked.Locked)
	assert.Equal(t, 45, locked.RetryAfterSeconds)
}

// # Change Password

/*
TestService_ChangePassword_Success verifies the password is stored and any
outstanding reset token is cleared.
*/
func TestService_ChangePassword_Success(t *testing.T) {
	directory := directoryWithUser()
	directory.resetTokens[1] = "pending-token"
	service := newTestService(directory, newMemSessionStore())

	err := service.ChangePassword(context.Background(), 1, "fresh password 9")

	require.NoError(t, err)
	assert.Equal(t, "fresh password 9", directory.passwords[1])
	assert.NotContains(t, directory.resetTokens, int64(1))
}

/*
TestService_ChangePassword_PolicyRejected verifies that the directory's
rejection message is surfaced verbatim and nothing is persisted.
*/
func TestService_ChangePassword_PolicyRejected(t *testing.T) {
	directory := directoryWithUser()
	directory.policyMessage = "Password must be at least 8 characters long."
	service := newTestService(directory, newMemSessionStore())

	err := service.ChangePassword(context.Background(), 1, "short")

	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodePolicyRejected))
	assert.Equal(t, "Password must be at least 8 characters long.", err.Error())
	assert.Empty(t, directory.updateCalls, "a rejected password must never be stored")
}

/*
TestService_ChangePassword_StorageFailure verifies that persistence faults
collapse into the generic client-facing failure.
*/
func TestService_ChangePassword_StorageFailure(t *testing.T) {
	directory := directoryWithUser()
	directory.updateErr = fmt.Errorf("disk on fire")
	service := newTestService(directory, newMemSessionStore())

	err := service.ChangePassword(context.Background(), 1, "fresh password 9")

	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeStorageFailure))
	assert.Equal(t, "Change password failed", err.Error())
}

// # Session Lifecycle

/*
TestService_EndSession verifies logout discards lockout bookkeeping.
*/
func TestService_EndSession(t *testing.T) {
	directory := directoryWithUser()
	sessions := newMemSessionStore()
	sessions.attempts["sid"] = 2
	sessions.deadlines["sid"] = testBase.Add(30 * time.Second)

	service := newTestService(directory, sessions)

	require.NoError(t, service.EndSession(context.Background(), "sid"))
	assert.NotContains(t, sessions.attempts, "sid")
	assert.NotContains(t, sessions.deadlines, "sid")
}
