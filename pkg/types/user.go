package types

// UserRole represents the different user roles in the system
type UserRole string

const (
	RolePatient   UserRole = "patient"
	RoleDoctor    UserRole = "doctor"
	RoleRegistrar UserRole = "registrar"
	RoleAdmin     UserRole = "admin"
)

// IsValid reports whether r is a known role
func (r UserRole) IsValid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleRegistrar, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether r may act on behalf of any patient
func (r UserRole) IsStaff() bool {
	return r == RoleRegistrar || r == RoleAdmin
}

// UserClaims represents JWT token claims
type UserClaims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
}

// Actor is the authenticated caller of a service operation
type Actor struct {
	UserID string
	Role   UserRole
}

// ActorFromClaims builds an Actor from validated token claims
func ActorFromClaims(claims *UserClaims) Actor {
	return Actor{UserID: claims.UserID, Role: claims.Role}
}
