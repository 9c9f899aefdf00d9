package auth

// RoleName is a well-known role name
type RoleName = string

const (
	// RoleUser is the default role assigned at registration
	RoleUser RoleName = "user"
	// RoleStaff can manage content on behalf of the platform
	RoleStaff RoleName = "staff"
	// RoleAdmin can administer accounts and roles
	RoleAdmin RoleName = "admin"
)

// DefaultRoleName is the role assigned to accounts created through
// self-service registration.
const DefaultRoleName = RoleUser

// IsValidRoleName checks the name against the predefined set.
func IsValidRoleName(name string) bool {
	switch name {
	case RoleUser, RoleStaff, RoleAdmin:
		return true
	default:
		return false
	}
}

// RoleIsAtLeast compares two role names against the built-in hierarchy.
// Unknown names never satisfy the comparison.
func RoleIsAtLeast(name, minName RoleName) bool {
	hierarchy := map[RoleName]int{
		RoleUser:  0,
		RoleStaff: 1,
		RoleAdmin: 2,
	}

	level, ok := hierarchy[name]
	if !ok {
		return false
	}

	minLevel, ok := hierarchy[minName]
	if !ok {
		return false
	}

	return level >= minLevel
}
