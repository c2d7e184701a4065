package engagement

import "gigmarket/pkg/rbac"

// Principal is the authenticated caller of an operation.
type Principal struct {
	UserID int64
	Role   string
	// ActiveRole lets an admin act as a client or contributor; ignored for
	// everyone else.
	ActiveRole string
}

// Acting is the role the principal is exercising for this call.
func (p Principal) Acting() string {
	if p.Role == rbac.RoleAdmin && p.ActiveRole != "" && rbac.ValidRole(p.ActiveRole) {
		return p.ActiveRole
	}
	return p.Role
}

func (p Principal) IsAdmin() bool {
	return p.Acting() == rbac.RoleAdmin
}

func (p Principal) authenticated() error {
	if p.UserID <= 0 || !rbac.ValidRole(p.Role) {
		return &Error{Kind: KindAuthentication, Message: "authentication required"}
	}
	return nil
}

// require checks authentication then the permission of the acting role.
func (p Principal) require(permission string) error {
	if err := p.authenticated(); err != nil {
		return err
	}
	if !rbac.HasPermission(p.Acting(), permission) {
		return forbidden("role " + p.Acting() + " may not perform this action")
	}
	return nil
}

// ownsProject is true for the project's client and for acting admins.
func (p Principal) ownsProject(clientID int64) bool {
	return p.UserID == clientID || p.IsAdmin()
}
