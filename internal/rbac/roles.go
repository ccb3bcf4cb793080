package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RolePassenger = "passenger"
	RoleStaff     = "staff"
)

func IsStaff(role string) bool { return role == RoleStaff }

// Valid reports whether role is one the service issues.
func Valid(role string) bool { return role == RolePassenger || role == RoleStaff }
