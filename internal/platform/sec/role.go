// Copyright (c) 2026 SimpleIdentity. All rights reserved.

package sec

// # User Roles

// UserRole represents the capability level granted to an account.
type UserRole string

const (
	// Unrestricted system access
	RoleAdministrator UserRole = "administrator"

	// Default role for standard directory accounts
	RoleUser UserRole = "user"
)

// RoleFromTag maps the directory's single-letter role tag onto a capability.
//
// The directory stores "A" (either case) for administrators; every other tag,
// including the empty one, grants the plain user capability.
func RoleFromTag(roleTag string) UserRole {
	if roleTag == "A" || roleTag == "a" {
		return RoleAdministrator
	}
	return RoleUser
}

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.level() >= target.level()
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r UserRole) level() int {
	switch r {
	case RoleAdministrator:
		return 20
	case RoleUser:
		return 10
	default:
		return 0
	}
}
