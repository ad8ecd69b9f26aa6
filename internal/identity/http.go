// Copyright (c) 2026 SimpleIdentity. All rights reserved.

package identity

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kant2002/SimpleIdentity/internal/platform/apperr"
	"github.com/kant2002/SimpleIdentity/internal/platform/constants"
	"github.com/kant2002/SimpleIdentity/internal/platform/middleware"
	requestutil "github.com/kant2002/SimpleIdentity/internal/platform/request"
	"github.com/kant2002/SimpleIdentity/internal/platform/respond"
	"github.com/kant2002/SimpleIdentity/internal/platform/sec"
	"github.com/kant2002/SimpleIdentity/internal/platform/validate"
	"github.com/kant2002/SimpleIdentity/pkg/uuid"
)

// Handler implements authentication-related HTTP endpoints.
//
// # Scope
//
// This handler manages credential validation, lockout status probes, and the
// full password lifecycle (forgot, reset, change). It contains NO business
// logic or database queries.
type Handler struct {
	service      *Service
	resetService *ResetService
}

// NewHandler constructs a new [Handler] with its service dependencies.
func NewHandler(service *Service, resetService *ResetService) *Handler {
	return &Handler{service: service, resetService: resetService}
}

// Routes returns a [chi.Router] configured with identity-specific routes.
//
// # Endpoints
//   - POST /login            : Validates credentials and returns a JWT.
//   - GET  /lockout          : Reports the session's lockout standing.
//   - POST /logout           : Discards the session's lockout state.
//   - POST /forgot-password  : Emails a single-use reset link.
//   - POST /reset-password   : Consumes a reset token and sets a new password.
//   - POST /change-password  : Sets a new password (authenticated).
//   - GET  /users/{id}       : Account lookup (administrators only).
//   - GET  /users/by-login/{login} : Account lookup (administrators only).
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/login", handler.login)
	router.Get("/lockout", handler.lockoutStatus)
	router.Post("/logout", handler.logout)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/reset-password", handler.resetPassword)

	router.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireAuth)
		authed.Post("/change-password", handler.changePassword)
	})

	router.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireRole(sec.RoleAdministrator))
		admin.Get("/users/{id}", handler.getUserByID)
		admin.Get("/users/by-login/{login}", handler.getUserByLogin)
	})

	return router
}

// sessionID returns the anonymous session identifier that scopes lockout
// counters, minting a cookie when the client does not carry one yet.
func sessionID(writer http.ResponseWriter, request *http.Request) string {
	if cookie, err := request.Cookie(constants.SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	id := uuid.New()
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// loginRequest represents the JSON payload expected for a credential check.
type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Remember bool   `json:"remember_me"`
}

// login handles POST /api/v1/auth/login requests.
//
// # Returns
//   - Writes HTTP 200 OK on success with AccessToken and account profile.
//   - Writes HTTP 401 Unauthorized for bad credentials.
//   - Writes HTTP 423 Locked (with Retry-After) while the session is locked.
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	// ── 1. Payload Extraction ─────────────────────────────────────────────

	var input loginRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	// ── 2. Boundary Validation ────────────────────────────────────────────

	if input.Login == "" || input.Password == "" {
		respond.Error(writer, request, validate.RequiredError("login/password", "are required"))
		return
	}

	// ── 3. Application Execution ──────────────────────────────────────────

	session := sessionID(writer, request)
	result, err := handler.service.CheckCredentials(request.Context(), CheckCredentialsInput{
		SessionID: session,
		Login:     input.Login,
		Password:  input.Password,
	})

	if err != nil {
		// The respond helper maps LOCKED to 423 with a Retry-After header
		// and bad credentials to a generic 401 without leaking the reason.
		respond.Error(writer, request, err)
		return
	}

	// ── 4. Remember-Login Cookie ──────────────────────────────────────────

	handler.setLoginCookie(writer, result.Identity.Login, input.Remember)

	// ── 5. Presentation Output ────────────────────────────────────────────

	respond.OK(writer, map[string]any{
		"access_token": result.AccessToken,
		"user":         result.Identity,
		"role":         result.Identity.Role(),
	})
}

// setLoginCookie stores (or discards) the last successful login identifier
// so the client can pre-fill its login form.
func (handler *Handler) setLoginCookie(writer http.ResponseWriter, login string, remember bool) {
	cookie := &http.Cookie{
		Name:     constants.LoginCookieName,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	if remember {
		cookie.Value = login
		cookie.MaxAge = int(constants.LoginCookieMaxAge.Seconds())
	} else {
		cookie.Value = ""
		cookie.MaxAge = -1
	}

	http.SetCookie(writer, cookie)
}

// lockoutStatus handles GET /api/v1/auth/lockout requests.
//
// It reports the session's standing without consuming an attempt, so login
// forms can render a countdown.
func (handler *Handler) lockoutStatus(writer http.ResponseWriter, request *http.Request) {
	session := sessionID(writer, request)

	status, err := handler.service.GetLockoutStatus(request.Context(), session)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if status.RetryAfterSeconds > 0 {
		writer.Header().Set(constants.HeaderRetryAfter, strconv.Itoa(status.RetryAfterSeconds))
	}

	respond.OK(writer, status)
}

// logout handles POST /api/v1/auth/logout requests.
//
// Discards the session's lockout bookkeeping and expires the session cookie.
// Idempotent: logging out twice is not an error.
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	if cookie, err := request.Cookie(constants.SessionCookieName); err == nil && cookie.Value != "" {
		if err := handler.service.EndSession(request.Context(), cookie.Value); err != nil {
			respond.Error(writer, request, err)
			return
		}
	}

	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	respond.NoContent(writer)
}

// forgotPasswordRequest represents the JSON payload for a reset-link request.
type forgotPasswordRequest struct {
	Login string `json:"login"`
}

// forgotPassword handles POST /api/v1/auth/forgot-password requests.
//
// # Enumeration Safety
//
// The response is identical whether or not the login exists.
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input forgotPasswordRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.Login == "" {
		respond.Error(writer, request, validate.RequiredError("login", "is required"))
		return
	}

	if err := handler.resetService.IssueToken(request.Context(), input.Login); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.JSON(writer, http.StatusAccepted, respond.SuccessEnvelope{Data: map[string]string{
		"message": "If the account exists, a reset link has been sent.",
	}})
}

// resetPasswordRequest represents the JSON payload for consuming a reset token.
type resetPasswordRequest struct {
	Login           string `json:"login"`
	Token           string `json:"token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// resetPassword handles POST /api/v1/auth/reset-password requests.
//
// # Returns
//   - Writes HTTP 200 OK when the password was reset.
//   - Writes HTTP 400 Bad Request for any token problem.
//   - Writes HTTP 422 Unprocessable Entity with the policy message.
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	// ── 1. Payload Extraction ─────────────────────────────────────────────

	var input resetPasswordRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	// ── 2. Boundary Validation ────────────────────────────────────────────

	validator := &validate.Validator{}
	err := validator.
		Required("login", input.Login).
		Required("token", input.Token).
		Required("new_password", input.NewPassword).
		Equals("confirm_password", input.ConfirmPassword, input.NewPassword, "Passwords do not match").
		Err()
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 3. Application Execution ──────────────────────────────────────────

	err = handler.resetService.ConsumeToken(request.Context(), ConsumeInput{
		Login:       input.Login,
		Token:       input.Token,
		NewPassword: input.NewPassword,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{"message": "Password has been reset."})
}

// changePasswordRequest represents the JSON payload for an authenticated change.
type changePasswordRequest struct {
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// changePassword handles POST /api/v1/auth/change-password requests.
//
// The caller's access token identifies the account; no current password is
// required.
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	// ── 1. Identity Extraction ────────────────────────────────────────────

	userIDText, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	userID, err := strconv.ParseInt(userIDText, 10, 64)
	if err != nil {
		respond.Error(writer, request, apperr.Unauthorized("Invalid token subject"))
		return
	}

	// ── 2. Payload Extraction & Validation ────────────────────────────────

	var input changePasswordRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	err = validator.
		Required("new_password", input.NewPassword).
		Equals("confirm_password", input.ConfirmPassword, input.NewPassword, "Passwords do not match").
		Err()
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 3. Application Execution ──────────────────────────────────────────

	if err := handler.service.ChangePassword(request.Context(), userID, input.NewPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{"message": "Password has been changed."})
}

// getUserByID handles GET /api/v1/auth/users/{id} requests (administrators only).
func (handler *Handler) getUserByID(writer http.ResponseWriter, request *http.Request) {
	id, err := strconv.ParseInt(requestutil.Param(request, "id"), 10, 64)
	if err != nil {
		respond.Error(writer, request, validate.RequiredError("id", "must be a numeric account ID"))
		return
	}

	account, err := handler.service.FindByID(request.Context(), id)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, account)
}

// getUserByLogin handles GET /api/v1/auth/users/by-login/{login} requests
// (administrators only).
func (handler *Handler) getUserByLogin(writer http.ResponseWriter, request *http.Request) {
	login := requestutil.Param(request, "login")
	if login == "" {
		respond.Error(writer, request, validate.RequiredError("login", "is required"))
		return
	}

	account, err := handler.service.FindByLogin(request.Context(), login)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, account)
}
