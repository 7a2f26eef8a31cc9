package domain

import "time"

// Known roles. Kept as plain strings in the users table; project-level
// permissions live in the main application, auth only distinguishes admins.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string // argon2id PHC encoded
	Role         string
	DisabledAt   *time.Time // Disabled accounts fail login but keep history
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanLogin reports whether the account accepts new sessions.
func (u *User) CanLogin() bool {
	return u.DisabledAt == nil
}
