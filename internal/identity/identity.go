// Copyright (c) 2026 SimpleIdentity. All rights reserved.

// Package identity implements credential validation, lockout tracking, and
// password lifecycle management for SimpleIdentity.
//
// # Architecture
//
// Entities in this package represent the "Truth" of the system.
// They have no dependencies on outer layers (like databases, APIs, or libraries).
// Services orchestrate them through the [Directory] and [SessionStore]
// contracts and are technology-agnostic.
package identity

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kant2002/SimpleIdentity/internal/platform/sec"
)

// Identity represents an account known to the credential directory.
//
// # Rules
//   - Login is unique, compared case-insensitively.
//   - PasswordHash is generated via Bcrypt exclusively by the directory.
//   - SecurityStamp rotates on every password change, invalidating any
//     outstanding reset tokens.
type Identity struct {
	ID            int64  `json:"id"`
	Login         string `json:"login"`
	Email         string `json:"email"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	RoleTag       string `json:"-"` // Single-letter directory tag. Omitted from JSON.
	PasswordHash  string `json:"-"` // Explicitly omitted from JSON for security.
	SecurityStamp string `json:"-"` // Internal token-invalidation marker.
}

// Role resolves the directory role tag into a platform capability.
func (identity *Identity) Role() sec.UserRole {
	return sec.RoleFromTag(identity.RoleTag)
}

// DisplayName returns the human-readable name for emails and UI payloads.
func (identity *Identity) DisplayName() string {
	name := strings.TrimSpace(identity.FirstName + " " + identity.LastName)
	if name == "" {
		return identity.Login
	}
	return name
}

// NormalizeLogin canonicalizes a login identifier for lookups and comparison.
//
// Uses the locale-independent Unicode lowercase mapping, which is what the
// database's lower() applies to the login column. The two sides MUST agree:
// case folding, for example, turns "Straße" into "strasse" while lower()
// keeps "straße", which would make such accounts unreachable.
func NormalizeLogin(login string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(login))
}
