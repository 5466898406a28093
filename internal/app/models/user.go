package models

import "time"

// Role is the closed set of account roles. There is no ordering between
// roles; each one only maps to its own canonical home route.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleOrganizer Role = "ORGANIZER"
	RoleUser      Role = "USER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOrganizer, RoleUser:
		return true
	}
	return false
}

// LoginRoute is where unauthenticated visitors land.
const LoginRoute = "/login"

// CanonicalHome returns the default landing path for a role. Unknown roles
// fall back to the login page rather than guessing.
func CanonicalHome(r Role) string {
	switch r {
	case RoleAdmin:
		return "/admin"
	case RoleOrganizer:
		return "/organizer"
	case RoleUser:
		return "/"
	default:
		return LoginRoute
	}
}

// User is the account record. PasswordHash never leaves the server: it is
// excluded from JSON so the session snapshot mirrored into the auth cookie
// can embed the struct directly.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
