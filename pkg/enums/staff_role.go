package enums

import "github.com/samber/lo"

// StaffRole is the role claim issued by the identity provider.
type StaffRole string

const (
	StaffRoleStaff StaffRole = "staff"
	StaffRoleAdmin StaffRole = "admin"
)

var validStaffRoles = []StaffRole{
	StaffRoleStaff,
	StaffRoleAdmin,
}

func (r StaffRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known StaffRole.
func (r StaffRole) IsValid() bool {
	return lo.Contains(validStaffRoles, r)
}

// ParseStaffRole converts raw input into a StaffRole.
func ParseStaffRole(value string) (StaffRole, error) {
	return parse("staff role", validStaffRoles, value)
}
