package user

import (
	"time"

	"github.com/google/uuid"
)

// Permission is the role enumeration governing administrative access.
type Permission string

const (
	PermissionUser      Permission = "user"
	PermissionModerator Permission = "moderator"
	PermissionAdmin     Permission = "admin"
)

// Valid reports whether p is one of the known roles.
func (p Permission) Valid() bool {
	switch p {
	case PermissionUser, PermissionModerator, PermissionAdmin:
		return true
	}
	return false
}

// CanModerate reports whether p grants access to the user dashboard
// (listing and editing accounts).
func (p Permission) CanModerate() bool {
	return p == PermissionAdmin || p == PermissionModerator
}

type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"` // Never expose the password hash in JSON
	Permission   Permission `json:"permission"`
	Active       bool       `json:"active"`
	// ActivationToken stays set after activation; reuse of the link is
	// caught by the already-active check, not by clearing the column.
	ActivationToken *string   `json:"-"`
	ResetToken      *string   `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Projection is the reduced view of a user returned to clients.
type Projection struct {
	ID         uuid.UUID  `json:"_id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	Permission Permission `json:"permission"`
}

// Project returns the client-safe view of u.
func (u *User) Project() Projection {
	return Projection{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Permission: u.Permission,
	}
}
