package enums

import "fmt"

// StaffRole is the role embedded in staff access tokens.
type StaffRole string

const (
	StaffRoleSales   StaffRole = "sales"
	StaffRoleManager StaffRole = "manager"
	StaffRoleAdmin   StaffRole = "admin"
)

var validStaffRoles = []StaffRole{
	StaffRoleSales,
	StaffRoleManager,
	StaffRoleAdmin,
}

// IsValid reports whether the value is a known StaffRole.
func (r StaffRole) IsValid() bool {
	for _, candidate := range validStaffRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseStaffRole converts raw input into a StaffRole.
func ParseStaffRole(value string) (StaffRole, error) {
	for _, candidate := range validStaffRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid staff role %q", value)
}
