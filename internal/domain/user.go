package domain

import "time"

// Role is a capability tag carried by an actor.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleManager    Role = "GESTOR"
	RoleSupervisor Role = "SUPERVISOR"
	RoleTechnician Role = "TECNICO"
)

// Roles lists every role a user can be granted.
var Roles = []Role{RoleAdmin, RoleManager, RoleSupervisor, RoleTechnician}

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return oneOf(r, Roles) }

// User is the canonical person record. Technicians are users holding RoleTechnician.
type User struct {
	ID           string
	Username     string
	DisplayName  string
	Email        string
	PasswordHash string
	Roles        []Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole reports whether the user carries role.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
