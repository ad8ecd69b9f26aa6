// Copyright (c) 2026 SimpleIdentity. All rights reserved.

package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kant2002/SimpleIdentity/internal/platform/apperr"
	"github.com/kant2002/SimpleIdentity/internal/platform/constants"
	"github.com/kant2002/SimpleIdentity/internal/platform/respond"
)

func newTestHandler(directory *fakeDirectory, sessions *memSessionStore) *Handler {
	return NewHandler(newTestService(directory, sessions), newTestResetService(directory))
}

// postJSON runs one request against the handler's router and returns the
// recorded response.
func postJSON(handler *Handler, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	request := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		request.AddCookie(cookie)
	}

	recorder := httptest.NewRecorder()
	handler.Routes().ServeHTTP(recorder, request)
	return recorder
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) respond.ErrorEnvelope {
	t.Helper()
	var envelope respond.ErrorEnvelope
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
	return envelope
}

/*
TestHandler_Login_LockedResponse verifies that a locked session answers with
HTTP 423 and a Retry-After header carrying the remaining window.
*/
func TestHandler_Login_LockedResponse(t *testing.T) {
	directory := directoryWithUser()
	sessions := newMemSessionStore()
	sessions.deadlines["sid"] = testBase.Add(30 * time.Second)

	handler := newTestHandler(directory, sessions)
	recorder := postJSON(handler, "/login",
		`{"login":"jsmith","password":"correct horse 1"}`,
		&http.Cookie{Name: constants.SessionCookieName, Value: "sid"},
	)

	assert.Equal(t, http.StatusLocked, recorder.Code)
	assert.Equal(t, "30", recorder.Header().Get(constants.HeaderRetryAfter))

	envelope := decodeError(t, recorder)
	assert.Equal(t, apperr.CodeLocked, envelope.Code)
	assert.Equal(t, "Account is locked. Try again in 30 seconds.", envelope.Error)
}

/*
TestHandler_Login_InvalidCredentials verifies the generic 401 for a wrong
password, without a Retry-After header.
*/
func TestHandler_Login_InvalidCredentials(t *testing.T) {
	handler := newTestHandler(directoryWithUser(), newMemSessionStore())
	recorder := postJSON(handler, "/login",
		`{"login":"jsmith","password":"wrong"}`,
		&http.Cookie{Name: constants.SessionCookieName, Value: "sid"},
	)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Empty(t, recorder.Header().Get(constants.HeaderRetryAfter))

	envelope := decodeError(t, recorder)
	assert.Equal(t, apperr.CodeInvalidCredentials, envelope.Code)
	assert.Equal(t, "Invalid Login ID or Password.", envelope.Error)
}

/*
TestHandler_ResetPassword_PolicyMessageVerbatim verifies that the
directory's policy rejection travels unchanged into the 422 response body.
*/
func TestHandler_ResetPassword_PolicyMessageVerbatim(t *testing.T) {
	directory := directoryWithUser()
	directory.policyMessage = "Password must contain at least one digit."

	handler := newTestHandler(directory, newMemSessionStore())

	require.NoError(t, handler.resetService.IssueToken(context.Background(), "jsmith"))
	token := directory.resetTokens[1]

	recorder := postJSON(handler, "/reset-password",
		`{"login":"jsmith","token":"`+token+`","new_password":"nodigits","confirm_password":"nodigits"}`,
	)

	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

	envelope := decodeError(t, recorder)
	assert.Equal(t, apperr.CodePolicyRejected, envelope.Code)
	assert.Equal(t, "Password must contain at least one digit.", envelope.Error)
}
