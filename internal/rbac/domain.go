package rbac

import (
	"fmt"
	"strings"
)

// Role is one of the closed set of principal roles.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleModerator  Role = "MODERATOR"
	RoleInstructor Role = "INSTRUCTOR"
	RoleStudent    Role = "STUDENT"
)

// Roles lists every role in display order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleModerator, RoleInstructor, RoleStudent}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleInstructor, RoleStudent:
		return true
	}
	return false
}

// ParseRole accepts role names in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("rbac: unknown role %q", s)
	}
	return r, nil
}

// Principal describes the authenticated actor.
type Principal struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Permission is a named capability.
type Permission string

const (
	PermManageUsers       Permission = "manage_users"
	PermManageRoles       Permission = "manage_roles"
	PermManageCourses     Permission = "manage_courses"
	PermManageEnrollments Permission = "manage_enrollments"
	PermViewAuditLogs     Permission = "view_audit_logs"
	PermExportAuditLogs   Permission = "export_audit_logs"
	PermManageRateLimits  Permission = "manage_rate_limits"
	PermManageSystem      Permission = "manage_system"
	PermViewAnalytics     Permission = "view_analytics"
	PermIssueCertificates Permission = "issue_certificates"

	PermModerateContent Permission = "moderate_content"
	PermManageRooms     Permission = "manage_rooms"
	PermViewReports     Permission = "view_reports"
	PermSuspendUsers    Permission = "suspend_users"

	PermCreateCourses     Permission = "create_courses"
	PermEditOwnCourses    Permission = "edit_own_courses"
	PermManageAssignments Permission = "manage_assignments"
	PermGradeSubmissions  Permission = "grade_submissions"
	PermViewEnrollments   Permission = "view_enrollments"

	PermViewCourses       Permission = "view_courses"
	PermEnrollCourses     Permission = "enroll_courses"
	PermSubmitAssignments Permission = "submit_assignments"
	PermViewOwnGrades     Permission = "view_own_grades"
	PermJoinRooms         Permission = "join_rooms"
)

// rolePermissions lists every role's capabilities explicitly. Nothing is inherited;
// ADMIN overrides at call sites go through OwnerOrAdmin instead of this table.
// Read-only after init.
var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermManageUsers,
		PermManageRoles,
		PermManageCourses,
		PermManageEnrollments,
		PermViewAuditLogs,
		PermExportAuditLogs,
		PermManageRateLimits,
		PermManageSystem,
		PermViewAnalytics,
		PermIssueCertificates,
	},
	RoleModerator: {
		PermModerateContent,
		PermManageRooms,
		PermViewAuditLogs,
		PermViewReports,
		PermSuspendUsers,
	},
	RoleInstructor: {
		PermCreateCourses,
		PermEditOwnCourses,
		PermManageAssignments,
		PermGradeSubmissions,
		PermViewEnrollments,
		PermIssueCertificates,
	},
	RoleStudent: {
		PermViewCourses,
		PermEnrollCourses,
		PermSubmitAssignments,
		PermViewOwnGrades,
		PermJoinRooms,
	},
}

// Permissions returns a copy of the capabilities granted to role.
func Permissions(role Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}
