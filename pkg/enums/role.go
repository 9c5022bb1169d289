package enums

import "fmt"

// Role describes the allowed values for the users.role column.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleMerchant   Role = "merchant"
)

var validRoles = []Role{
	RoleSuperAdmin,
	RoleAdmin,
	RoleMerchant,
}

// IsValid reports whether the value matches the canonical role enum.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts the raw string to a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}

// DisplayName returns the human-readable label for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleSuperAdmin:
		return "Super Administrator"
	case RoleAdmin:
		return "Administrator"
	case RoleMerchant:
		return "Merchant"
	}
	return "Unknown"
}
