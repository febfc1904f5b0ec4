package domain

// Actor is the authenticated identity an operation runs under.
// IP and UserAgent are only used for audit emission.
type Actor struct {
	UserID    string
	Roles     []Role
	IP        string
	UserAgent string
}

// HasRole reports whether the actor carries role.
func (a Actor) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the actor carries at least one of roles.
func (a Actor) HasAnyRole(roles ...Role) bool {
	for _, role := range roles {
		if a.HasRole(role) {
			return true
		}
	}
	return false
}
