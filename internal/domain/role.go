package domain

import "strings"

// Role is the caller's privilege level.
type Role string

const (
	// RoleGuest is the unprivileged caller role.
	RoleGuest Role = "guest"
	// RoleAdmin is the privileged caller role.
	RoleAdmin Role = "admin"
)

// ParseRole maps a caller-supplied role string to a Role, case-insensitively.
// Unknown or empty input maps to RoleGuest: least privilege at the boundary.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleGuest
}

// CanAccess reports whether the role may see a chunk with the given label.
func (r Role) CanAccess(label AccessLabel) bool {
	return r == RoleAdmin || label == AccessPublic
}
