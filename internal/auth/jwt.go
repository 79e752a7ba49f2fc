package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// jwtClaims wires the custom identity fields into the registered claim set.
type jwtClaims struct {
	jwt.RegisteredClaims
	Username   string `json:"username,omitempty"`
	Email      string `json:"email,omitempty"`
	Permission string `json:"permission,omitempty"`
}

// JWTService signs and verifies HS256 tokens with a shared secret.
type JWTService struct {
	secret []byte
}

func NewJWTService(secret []byte) (*JWTService, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt secret must not be empty")
	}
	return &JWTService{secret: secret}, nil
}

// Issue creates a signed token carrying the given claims.
func (s *JWTService) Issue(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username:   claims.Username,
		Email:      claims.Email,
		Permission: claims.Permission,
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify validates the signature and expiration and returns the claims.
// Expired tokens surface as ErrExpiredToken so logs can tell them apart
// from forged or malformed ones.
func (s *JWTService) Verify(tokenStr string) (*Claims, error) {
	parsed := &jwtClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, parsed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	var issuedAt, expiresAt time.Time
	if parsed.IssuedAt != nil {
		issuedAt = parsed.IssuedAt.Time
	}
	if parsed.ExpiresAt != nil {
		expiresAt = parsed.ExpiresAt.Time
	}

	return &Claims{
		UserID:     parsed.Subject,
		Username:   parsed.Username,
		Email:      parsed.Email,
		Permission: parsed.Permission,
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
	}, nil
}
