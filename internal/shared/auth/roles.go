// Package auth provides JWT authentication middleware and role types.
package auth

// Role represents a user role in the portal.
type Role string

const (
	// RoleCitizen is the default role granted at signup.
	RoleCitizen Role = "citizen"
	// RoleOfficer reviews and transitions applications.
	RoleOfficer Role = "officer"
	// RoleAdmin manages the catalog, roles and aggregate views.
	RoleAdmin Role = "admin"
)

// ValidRole reports whether the tag is one of the three portal roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleCitizen, RoleOfficer, RoleAdmin:
		return true
	}
	return false
}

// AllRoles lists every assignable role tag.
func AllRoles() []Role {
	return []Role{RoleCitizen, RoleOfficer, RoleAdmin}
}
