package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Role matches users.role
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// User is an account holder. Every student owns exactly one wallet.
type User struct {
	ID           uuid.UUID      `db:"id"`
	Email        string         `db:"email"`
	Phone        sql.NullString `db:"phone"`
	Username     sql.NullString `db:"username"`
	FullName     string         `db:"full_name"`
	PasswordHash string         `db:"password_hash"`
	Role         Role           `db:"role"`
	IsBanned     bool           `db:"is_banned"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// IsAdmin returns true if user is an admin
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsActive returns true if user is not banned
func (u *User) IsActive() bool {
	return !u.IsBanned
}

// DisplayName prefers the full name, then the username, then the email.
func (u *User) DisplayName() string {
	switch {
	case u.FullName != "":
		return u.FullName
	case u.Username.Valid:
		return u.Username.String
	}
	return u.Email
}
