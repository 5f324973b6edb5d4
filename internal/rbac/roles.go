// internal/rbac/roles.go
package rbac

// Role names. The set is closed: operators get one of these three.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// Permission represents one action a caller may perform
type Permission string

const (
	// Failover state queries
	PermFailoverRead Permission = "failover.read"
	// Manual failover, switchover and enable toggles
	PermFailoverWrite Permission = "failover.write"
	// Service and node registration changes
	PermServiceAdmin Permission = "service.admin"

	// Alert rule queries
	PermAlertRead Permission = "alert.read"
	// Alert rule and silence management
	PermAlertWrite Permission = "alert.write"

	PermConfigRead Permission = "config.read"
)

// PermissionSet is a set of permissions
type PermissionSet map[Permission]bool

var matrix = map[string]PermissionSet{
	RoleAdmin: {
		PermFailoverRead:  true,
		PermFailoverWrite: true,
		PermServiceAdmin:  true,
		PermAlertRead:     true,
		PermAlertWrite:    true,
		PermConfigRead:    true,
	},
	RoleOperator: {
		PermFailoverRead:  true,
		PermFailoverWrite: true,
		PermAlertRead:     true,
		PermAlertWrite:    true,
		PermConfigRead:    true,
	},
	RoleViewer: {
		PermFailoverRead: true,
		PermAlertRead:    true,
		PermConfigRead:   true,
	},
}

// ValidRole reports whether name is one of the known roles
func ValidRole(name string) bool {
	_, ok := matrix[name]
	return ok
}

// RoleHasPermission checks one role against one permission
func RoleHasPermission(role string, perm Permission) bool {
	set, ok := matrix[role]
	if !ok {
		return false
	}
	return set[perm]
}

// RolePermissions returns a copy of the role's permission set
func RolePermissions(role string) PermissionSet {
	set, ok := matrix[role]
	if !ok {
		return PermissionSet{}
	}
	out := make(PermissionSet, len(set))
	for p, v := range set {
		out[p] = v
	}
	return out
}
