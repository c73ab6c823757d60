// Package entity contains the core business objects of the project.
package entity

import "time"

// Role represents the coarse authorization tier assigned to a user.
// The type is an open string so unknown tiers survive a round trip through
// the profile store, but only these three values carry meaning.
type Role string

const (
	// RoleUser indicates a regular user.
	RoleUser Role = "user"
	// RoleAdmin indicates an administrator.
	RoleAdmin Role = "admin"
	// RoleSuperAdmin indicates a super administrator.
	RoleSuperAdmin Role = "super_admin"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the Role is one of the known tiers.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// Satisfies reports whether a holder of this role meets the required tier.
// super_admin satisfies any requirement; admin satisfies everything except
// an exact super_admin requirement; any other role must match exactly.
// The check is advisory for UI gating only, real authorization decisions
// belong to server-side policy.
func (r Role) Satisfies(required Role) bool {
	switch r {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		return required != RoleSuperAdmin
	default:
		return r == required
	}
}

// CachedRole is a durable last-known-role record for a user. It never expires
// automatically; it is a best-effort continuity aid, not a security boundary.
type CachedRole struct {
	Role     Role      // The last role returned by a successful profile fetch.
	CachedAt time.Time // When the role was cached.
}
