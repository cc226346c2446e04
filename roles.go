package auth

// Role is the two valued classification derived from User.IsAdmin
type Role string

const (
	// RoleUser is a regular trading account
	RoleUser Role = "user"
	// RoleAdmin is a platform administrator
	RoleAdmin Role = "admin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// In reports whether the role is part of roles
func (r Role) In(roles []Role) bool {
	for _, candidate := range roles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role.IsValid()
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{RoleUser, RoleAdmin}
}

// Portal is the sign in entry point an account chose
type Portal = Role

const (
	PortalUser  Portal = RoleUser
	PortalAdmin Portal = RoleAdmin
)

// ParsePortal parses a portal name, defaulting to the user portal
func ParsePortal(name string) Portal {
	if portal, ok := ParseRole(name); ok {
		return portal
	}
	return PortalUser
}
