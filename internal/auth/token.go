package auth

import (
	"errors"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims is the identity payload carried by every token kind. Session
// tokens fill UserID/Username/Permission; activation and reset tokens
// bind Username and Email instead.
type Claims struct {
	UserID     string    `json:"user_id,omitempty"`
	Username   string    `json:"username,omitempty"`
	Email      string    `json:"email,omitempty"`
	Permission string    `json:"permission,omitempty"`
	IssuedAt   time.Time `json:"iat"`
	ExpiresAt  time.Time `json:"exp"`
}

// TokenService issues and verifies signed, time-limited tokens.
// Implementations: JWTService (HS256) and PasetoService (v4.local).
type TokenService interface {
	Issue(claims Claims, ttl time.Duration) (string, error)
	Verify(token string) (*Claims, error)
}
