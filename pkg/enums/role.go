package enums

import "fmt"

// Role represents a platform-wide actor role. The set is closed; roles are
// assigned at account creation and never user-editable.
type Role string

const (
	RolePlatformAdmin Role = "platform_admin"
	RoleCompanyOwner  Role = "company_owner"
	RoleGuide         Role = "guide"
	RoleCustomer      Role = "customer"
)

var validRoles = []Role{
	RolePlatformAdmin,
	RoleCompanyOwner,
	RoleGuide,
	RoleCustomer,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// RequiresCompany reports whether accounts with this role must belong to a company.
func (r Role) RequiresCompany() bool {
	return r == RoleCompanyOwner || r == RoleGuide
}

// Invitable reports whether the role may be granted through an invitation.
func (r Role) Invitable() bool {
	return r == RoleCompanyOwner || r == RoleGuide
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
