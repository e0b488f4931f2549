package model

import "time"

// Role names stored in `users.role`. Owner and Dev are administrators.
type Role string

const (
	RoleUser  Role = "User"
	RoleOwner Role = "Owner"
	RoleDev   Role = "Dev"
)

// AdminRoles are the roles allowed on /api/admin routes.
var AdminRoles = []Role{RoleOwner, RoleDev}

// ParseRole returns the matching role or false when the name is unknown.
func ParseRole(raw string) (Role, bool) {
	switch r := Role(raw); r {
	case RoleUser, RoleOwner, RoleDev:
		return r, true
	}
	return "", false
}

// IsAdmin reports whether the role may manage matches and users.
func (r Role) IsAdmin() bool {
	return r == RoleOwner || r == RoleDev
}

// User is a row of `users`.  Handlers render their own views, so the
// password hash never leaves the repository layer.
type User struct {
	ID           uint64
	Username     string // unique, shown on the ranking
	Email        string // unique, used to log in
	PasswordHash string // bcrypt
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
