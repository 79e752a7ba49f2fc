package user

import (
	"errors"
	"regexp"
)

// Field-specific validation errors. The messages travel to the client
// verbatim, so they read as user-facing text.
var (
	ErrEmailTooShort    = errors.New("E-mail must be at least 5 characters long")
	ErrEmailTooLong     = errors.New("E-mail must not exceed 40 characters")
	ErrEmailInvalid     = errors.New("Must be a valid e-mail")
	ErrUsernameTooShort = errors.New("Username must be at least 3 characters long")
	ErrUsernameTooLong  = errors.New("Username must not exceed 15 characters")
	ErrUsernameInvalid  = errors.New("Username must not have any special characters")
	ErrPasswordTooShort = errors.New("Password must be at least 8 characters long")
	ErrPasswordTooLong  = errors.New("Password must not exceed 35 characters")
	ErrBadPermission    = errors.New("Permission must be user, moderator, or admin")
)

var (
	emailRe    = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

// ValidateEmail checks length and format. The caller lowercases first.
func ValidateEmail(email string) error {
	if len(email) < 5 {
		return ErrEmailTooShort
	}
	if len(email) > 40 {
		return ErrEmailTooLong
	}
	if !emailRe.MatchString(email) {
		return ErrEmailInvalid
	}
	return nil
}

// ValidateUsername checks length and charset. The caller lowercases first.
func ValidateUsername(username string) error {
	if len(username) < 3 {
		return ErrUsernameTooShort
	}
	if len(username) > 15 {
		return ErrUsernameTooLong
	}
	if !usernameRe.MatchString(username) {
		return ErrUsernameInvalid
	}
	return nil
}

// ValidatePassword checks the plaintext length bounds. Hashing happens
// after validation, so the store itself never sees the plaintext.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	if len(password) > 35 {
		return ErrPasswordTooLong
	}
	return nil
}
