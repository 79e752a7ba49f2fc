package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the users table row. Activation and reset tokens stay on the
// record itself: activation looks the user up by token, and a pending
// reset is cleared by overwriting the column.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID              uuid.UUID  `bun:"id,pk"`
	Email           string     `bun:"email,notnull"`
	Username        string     `bun:"username,notnull"`
	PasswordHash    string     `bun:"password_hash,notnull"`
	Permission      string     `bun:"permission,notnull"`
	Active          bool       `bun:"active,notnull"`
	ActivationToken *string    `bun:"activation_token"`
	ResetToken      *string    `bun:"reset_token"`
	CreatedAt       time.Time  `bun:"created_at,notnull"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull"`
}
