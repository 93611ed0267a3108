package domain

import "time"

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleTechnician StaffRole = "TECHNICIAN"
	StaffRoleStaff      StaffRole = "STAFF"
	StaffRoleManager    StaffRole = "MANAGER"
	StaffRoleCEO        StaffRole = "CEO"
)

// AssignableRoles lists the roles the automatic policy may route complaints
// to. Managers and the CEO supervise but never hold assignments.
func AssignableRoles() []StaffRole {
	return []StaffRole{StaffRoleTechnician, StaffRoleStaff}
}

// AssignableRole reports whether the role may receive complaint assignments
// from the automatic policy.
func AssignableRole(r StaffRole) bool {
	for _, role := range AssignableRoles() {
		if r == role {
			return true
		}
	}
	return false
}

// StaffMember models a technician or back-office operator.
//
// Capacity is the maximum number of concurrently active complaints and is
// always positive. Inactive staff never receive new assignments.
type StaffMember struct {
	ID        string
	Name      string
	Phone     string
	Role      StaffRole
	OfficeRef *string
	Capacity  int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
