package domain

import (
	"context"
)

type Role string

const (
	RoleRegular    Role = "REGULAR"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// User is an authenticated principal of the platform. User accounts are
// owned by the main application; this service only reads them.
type User struct {
	Id           int64
	Username     string
	PasswordHash string
	Role         Role
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}

type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
}
