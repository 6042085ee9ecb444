package rbac

// HasPermission reports whether role's capability set contains perm.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// HasAny is the logical OR of HasPermission over perms; false for an empty list.
func HasAny(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if HasPermission(role, p) {
			return true
		}
	}
	return false
}

// HasAll is the logical AND of HasPermission over perms; true for an empty list.
func HasAll(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if !HasPermission(role, p) {
			return false
		}
	}
	return true
}
