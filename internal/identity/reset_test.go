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

func newTestResetService(directory *fakeDirectory) *ResetService {
	provider := NewResetTokenProvider("test-secret", "simpleidentity")
	return NewResetService(directory, provider, nil, time.Hour, "https://id.example.com/reset")
}

// # Issue

/*
TestResetService_IssueToken_StoresToken verifies a token is minted, stored
as the single outstanding token, and passes both verification layers.
*/
func TestResetService_IssueToken_StoresToken(t *testing.T) {
	directory := directoryWithUser()
	service := newTestResetService(directory)

	require.NoError(t, service.IssueToken(context.Background(), "JSmith"))

	token, ok := directory.resetTokens[1]
	require.True(t, ok)
	require.NotEmpty(t, token)

	account, err := directory.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.NoError(t, service.provider.Verify(token, account))
}

/*
TestResetService_IssueToken_ReplacesPrevious verifies that a new request
invalidates the previously issued token.
*/
func TestResetService_IssueToken_ReplacesPrevious(t *testing.T) {
	directory := directoryWithUser()
	service := newTestResetService(directory)

	require.NoError(t, service.IssueToken(context.Background(), "jsmith"))
	first := directory.resetTokens[1]

	require.NoError(t, service.IssueToken(context.Background(), "jsmith"))
	second := directory.resetTokens[1]

	// Only the latest token matches the stored slot.
	matches, err := directory.CheckResetToken(context.Background(), 1, first)
	require.NoError(t, err)
	if first != second {
		assert.False(t, matches)
	}
	matches, err = directory.CheckResetToken(context.Background(), 1, second)
	require.NoError(t, err)
	assert.True(t, matches)
}

/*
TestResetService_IssueToken_UnknownLoginSilent verifies that an unknown
login succeeds without minting anything.
*/
func TestResetService_IssueToken_UnknownLoginSilent(t *testing.T) {
	directory := directoryWithUser()
	service := newTestResetService(directory)

	require.NoError(t, service.IssueToken(context.Background(), "nobody"))
	assert.Empty(t, directory.resetTokens)
}

// # Consume

/*
TestResetService_ConsumeToken_Success verifies the full reset: password
stored, token slot cleared.
*/
func TestResetService_ConsumeToken_Success(t *testing.T) {
	directory := directoryWithUser()
	service := newTestResetService(directory)

	require.NoError(t, service.IssueToken(context.Background(), "jsmith"))
	token := directory.resetTokens[1]

	err := service.ConsumeToken(context.Background(), ConsumeInput{
		Login:       "jsmith",
		Token:       token,
		NewPassword: "brand new pass 7",
	})

	require.NoError(t, err)
	assert.Equal(t, "brand new pass 7", directory.passwords[1])
	assert.NotContains(t, directory.resetTokens, int64(1), "token must be single-use")
}

/*
TestResetService_ConsumeToken_Replay verifies the token cannot be used twice.
*/
func TestResetService_ConsumeToken_Replay(t *testing.T) {
	directory := directoryWithUser()
	service := newTestResetService(directory)

	require.NoError(t, service.IssueToken(context.Background(), "jsmith"))
	token := directory.resetTokens[1]

	require.NoError(t, service.ConsumeToken(context.Background(), ConsumeInput{
		Login: "jsmith", Token: token, NewPassword: "brand new pass 7",
	}))

	err := service.ConsumeToken(context.Background(), ConsumeInput{
		Login: "jsmith", Token: token, NewPassword: "another pass 8",
	})

	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidToken))
	assert.Equal(t, "brand new pass 7", directory.passwords[1], "replay must not change the password")
}

/*
TestResetService_ConsumeToken_GarbageToken verifies random input fails the
cryptographic layer.
*/
func TestResetService_ConsumeToken_GarbageToken(t *testing.T) {
	directory := directoryWithUser()
	service := newTestResetService(directory)

	err := service.ConsumeToken(context.Background(), ConsumeInput{
		Login: "jsmith", Token: "garbage", NewPassword: "brand new pass 7",
	})

	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidToken))
}

/*
TestResetService_ConsumeToken_NotStored verifies that a cryptographically
valid token is still rejected when it is not the stored one.
*/
func TestResetService_ConsumeToken_NotStored(t *testing.T) {
	directory := directoryWithUser()
	service := newTestResetService(directory)

	// Mint a valid token but bypass the store.
	account, err := directory.FindByID(context.Background(), 1)
	require.NoError(t, err)
	token, err := service.provider.Generate(account, time.Hour)
	require.NoError(t, err)

	consumeErr := service.ConsumeToken(context.Background(), ConsumeInput{
		Login: "jsmith", Token: token, NewPassword: "brand new pass 7",
	})

	require.Error(t, consumeErr)
	assert.True(t, apperr.IsCode(consumeErr, apperr.CodeInvalidToken))
}

/*
TestResetService_ConsumeToken_UnknownLogin verifies that a missing account
is silently ignored and nothing changes.
*/
func TestResetService_ConsumeToken_UnknownLogin(t *testing.T) {
	directory := directoryWithUser()
	service := newTestResetService(directory)

	err := service.ConsumeToken(context.Background(), ConsumeInput{
		Login: "nobody", Token: "anything", NewPassword: "brand new pass 7",
	})

	require.NoError(t, err, "response must not reveal whether the login exists")
	assert.Empty(t, directory.updateCalls)
}

/*
TestResetService_ConsumeToken_PolicyRejected verifies the policy message is
surfaced verbatim and nothing is persisted.
*/
func TestResetService_ConsumeToken_PolicyRejected(t *testing.T) {
	directory := directoryWithUser()
	directory.policyMessage = "Password must contain at least one digit."
	service := newTestResetService(directory)

	require.NoError(t, service.IssueToken(context.Background(), "jsmith"))
	token := directory.resetTokens[1]

	err := service.ConsumeToken(context.Background(), ConsumeInput{
		Login: "jsmith", Token: token, NewPassword: "nodigits",
	})

	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodePolicyRejected))
	assert.Equal(t, "Password must contain at least one digit.", err.Error())
	assert.Empty(t, directory.updateCalls, "a rejected password must never be stored")

	// The token survives a policy rejection and can be retried.
	matches, checkErr := directory.CheckResetToken(context.Background(), 1, token)
	require.NoError(t, checkErr)
	assert.True(t, matches)
}

/*
TestResetService_ConsumeToken_StorageFailure verifies persistence faults
collapse into the generic failure message.
*/
func TestResetService_ConsumeToken_StorageFailure(t *testing.T) {
	directory := directoryWithUser()
	directory.updateErr = fmt.Errorf("disk on fire")
	service := newTestResetService(directory)

	require.NoError(t, service.IssueToken(context.Background(), "jsmith"))
	token := directory.resetTokens[1]

	err := service.ConsumeToken(context.Background(), ConsumeInput{
		Login: "jsmith", Token: token, NewPassword: "brand new pass 7",
	})

	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeStorageFailure))
	assert.Equal(t, "Change password failed", err.Error())
}
