package entity

import (
	"database/sql"
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID                uint64
	Username          string
	Email             string
	CanonicalEmail    string
	PasswordHash      string
	IsActive          bool
	IsVerified        bool
	IsAdmin           bool
	VerificationToken sql.NullString
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Role is derived from the admin flag and never stored on its own.
func (u *User) Role() string {
	if u.IsAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// RevokedToken is a denylist entry for a token id that must no longer be accepted.
type RevokedToken struct {
	JTI       string
	UserID    uint64
	ExpiresAt time.Time
	CreatedAt time.Time
}
