package rbac

// Grant records why an action was permitted, so audit entries can tell an admin
// override apart from ownership.
type Grant string

const (
	GrantOwner         Grant = "owner"
	GrantAdminOverride Grant = "admin_override"
)

// OwnerOrAdmin is the explicit admin bypass used by ownership checks: the owner is
// granted as owner, any other ADMIN as an override, everybody else is forbidden.
func OwnerOrAdmin(p Principal, ownerID string) (Grant, error) {
	if ownerID != "" && p.ID == ownerID {
		return GrantOwner, nil
	}
	if p.Role == RoleAdmin {
		return GrantAdminOverride, nil
	}
	return "", errForbidden()
}
