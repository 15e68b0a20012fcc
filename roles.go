package studenthub

import "strings"

// Role is an account's global role. Roles are immutable for the lifetime of a
// session; changing one requires re-authentication.
type Role string

const (
	// RoleAdmin manages accounts, courses, and every record type.
	RoleAdmin Role = "admin"
	// RoleFaculty manages attendance and performance records.
	RoleFaculty Role = "faculty"
	// RoleStudent has read access to their own records.
	RoleStudent Role = "student"
)

// Permission names an action subject to role checks.
type Permission string

const (
	PermManageUsers     Permission = "users.manage"
	PermManageCourses   Permission = "courses.manage"
	PermEditAttendance  Permission = "attendance.edit"
	PermEditPerformance Permission = "performance.edit"
	PermViewRecords     Permission = "records.view"
)

// rolePermissions is the single role → permission table. The route guard, the
// server middleware, and menu construction all consult this instead of
// scattering role comparisons.
var rolePermissions = map[Role]map[Permission]struct{}{
	RoleAdmin: {
		PermManageUsers:     {},
		PermManageCourses:   {},
		PermEditAttendance:  {},
		PermEditPerformance: {},
		PermViewRecords:     {},
	},
	RoleFaculty: {
		PermEditAttendance:  {},
		PermEditPerformance: {},
		PermViewRecords:     {},
	},
	RoleStudent: {
		PermViewRecords: {},
	},
}

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleFaculty, RoleStudent:
		return true
	default:
		return false
	}
}

// Can reports whether the role grants the given permission.
func (r Role) Can(p Permission) bool {
	perms, ok := rolePermissions[r]
	if !ok {
		return false
	}
	_, ok = perms[p]
	return ok
}

// AllRoles returns every predefined role.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleFaculty, RoleStudent}
}

// ParseRole safely parses a string into a Role
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	return role, role.IsValid()
}

// RolesInclude reports whether role is a member of roles.
func RolesInclude(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleNames renders a role list for user-facing messages, e.g. "admin, faculty".
func RoleNames(roles []Role) string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	return strings.Join(names, ", ")
}
