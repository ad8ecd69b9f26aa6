// Copyright (c) 2026 SimpleIdentity. All rights reserved.

package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kant2002/SimpleIdentity/internal/platform/apperr"
	"github.com/kant2002/SimpleIdentity/internal/platform/dberr"
	"github.com/kant2002/SimpleIdentity/internal/platform/sec"
	"github.com/kant2002/SimpleIdentity/pkg/uuid"
)

// PostgresDirectory implements the [Directory] interface using pgx.
//
// # Error Mapping
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] types to avoid leaking storage implementation details.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory creates a new PostgreSQL implementation of the Directory.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

const accountColumns = "id, login, email, firstname, lastname, roletag, passwordhash, securitystamp"

// scanAccount reads one account row into an [Identity].
func scanAccount(row pgx.Row) (*Identity, error) {
	account := &Identity{}
	err := row.Scan(
		&account.ID,
		&account.Login,
		&account.Email,
		&account.FirstName,
		&account.LastName,
		&account.RoleTag,
		&account.PasswordHash,
		&account.SecurityStamp,
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}

/*
ValidateCredentials checks a login/password pair against the stored hash.

Description: Lookups are case-insensitive on the login column. An unknown
login and a wrong password both answer with apperr.InvalidCredentials so the
two cases cannot be told apart.

Parameters:
  - ctx: context.Context
  - login: string (already normalized)
  - password: string (plain text)

Returns:
  - *Identity: The matching account on success
  - error: apperr.InvalidCredentials or connectivity errors
*/
func (directory *PostgresDirectory) ValidateCredentials(ctx context.Context, login, password string) (*Identity, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts.account
		WHERE lower(login) = $1`

	account, err := scanAccount(directory.pool.QueryRow(ctx, query, login))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Burn a bcrypt comparison anyway so unknown logins take as long
			// as wrong passwords.
			sec.CheckPasswordHash(password, burnHash)
			return nil, apperr.InvalidCredentials()
		}
		return nil, dberr.Wrap(err, "validate_credentials")
	}

	if !sec.CheckPasswordHash(password, account.PasswordHash) {
		return nil, apperr.InvalidCredentials()
	}

	return account, nil
}

// burnHash is a valid bcrypt hash of a random throwaway value, used to keep
// the unknown-login path timing-equivalent to a real comparison.
const burnHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

/*
FindByID retrieves an account record by its unique ID.

Returns:
  - *Identity: The account if found
  - error: apperr.NotFound if no account exists
*/
func (directory *PostgresDirectory) FindByID(ctx context.Context, id int64) (*Identity, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts.account
		WHERE id = $1`

	account, err := scanAccount(directory.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account")
		}
		return nil, dberr.Wrap(err, "find_account_by_id")
	}

	return account, nil
}

/*
FindByLogin retrieves an account record by its normalized login.

Returns:
  - *Identity: The account if found
  - error: apperr.NotFound if the login is unknown
*/
func (directory *PostgresDirectory) FindByLogin(ctx context.Context, login string) (*Identity, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts.account
		WHERE lower(login) = $1`

	account, err := scanAccount(directory.pool.QueryRow(ctx, query, login))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account")
		}
		return nil, dberr.Wrap(err, "find_account_by_login")
	}

	return account, nil
}

/*
ValidatePassword checks a candidate password against the directory policy.

Description: The rejection message is user-facing and returned verbatim by
the service layer. The rules here are account-independent; the id is part
of the contract so a directory with per-account policies can honor it.

Returns:
  - string: Rejection message, or "" when the password is acceptable
  - error: Always nil for this implementation; kept for directory parity
*/
func (directory *PostgresDirectory) ValidatePassword(ctx context.Context, id int64, password string) (string, error) {
	if len(password) < 8 {
		return "Password must be at least 8 characters long.", nil
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasLetter {
		return "Password must contain at least one letter.", nil
	}
	if !hasDigit {
		return "Password must contain at least one digit.", nil
	}

	return "", nil
}

/*
UpdatePassword hashes and stores a new password for the account.

Description: The security stamp is rotated in the same statement, which
invalidates every reset token minted against the previous stamp.

Returns:
  - error: apperr.NotFound if the account vanished, or storage errors
*/
func (directory *PostgresDirectory) UpdatePassword(ctx context.Context, id int64, newPassword string) error {
	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("postgres_directory_hash_failed: %w", err)
	}

	const query = `
		UPDATE accounts.account
		SET passwordhash = $2, securitystamp = $3, updatedat = $4
		WHERE id = $1`

	tag, err := directory.pool.Exec(ctx, query, id, hashedPassword, uuid.New(), time.Now())
	if err != nil {
		return dberr.Wrap(err, "update_password")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account")
	}

	return nil
}

/*
SetResetToken stores the single outstanding reset token for the account.

Returns:
  - error: Storage errors
*/
func (directory *PostgresDirectory) SetResetToken(ctx context.Context, id int64, token string) error {
	const query = `
		UPDATE accounts.account
		SET resettoken = $2, updatedat = $3
		WHERE id = $1`

	_, err := directory.pool.Exec(ctx, query, id, token, time.Now())
	if err != nil {
		return dberr.Wrap(err, "set_reset_token")
	}

	return nil
}

/*
CheckResetToken compares the presented token with the stored one.

Description: Comparison is constant-time. An account with no outstanding
token never matches.

Returns:
  - bool: Whether the tokens match
  - error: Storage errors
*/
func (directory *PostgresDirectory) CheckResetToken(ctx context.Context, id int64, token string) (bool, error) {
	const query = `
		SELECT COALESCE(resettoken, '')
		FROM accounts.account
		WHERE id = $1`

	var stored string
	if err := directory.pool.QueryRow(ctx, query, id).Scan(&stored); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, dberr.Wrap(err, "check_reset_token")
	}

	if stored == "" {
		return false, nil
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1, nil
}

/*
ClearResetToken removes the stored reset token after use.

Returns:
  - error: Storage errors
*/
func (directory *PostgresDirectory) ClearResetToken(ctx context.Context, id int64) error {
	const query = `
		UPDATE accounts.account
		SET resettoken = NULL, updatedat = $2
		WHERE id = $1`

	_, err := directory.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return dberr.Wrap(err, "clear_reset_token")
	}

	return nil
}
