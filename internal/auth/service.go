package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bloghaus/blog-api/internal/logging"
	"github.com/bloghaus/blog-api/internal/user"
)

// Lifecycle errors. The messages are the exact strings the frontend
// displays, so the handlers forward them verbatim.
var (
	ErrEmailMissing         = errors.New("You must provide an e-mail")
	ErrUsernameMissing      = errors.New("You must provide a username")
	ErrPasswordMissing      = errors.New("You must provide a password")
	ErrLoginUsernameMissing = errors.New("No username was provided")
	ErrLoginPasswordMissing = errors.New("No password was provided.")
	ErrUsernameNotFound     = errors.New("Username not found.")
	ErrPasswordInvalid      = errors.New("Password invalid")
	ErrNotActivated         = errors.New("Account is not yet activated. Please check your e-mail for activation link.")
	ErrEmailNotFound        = errors.New("E-mail was not found")
	ErrResetEmailNotFound   = errors.New("Email was not found")
	ErrResetNotActivated    = errors.New("Account has not yet been activated")
	ErrActivationExpired    = errors.New("Activation Link Has Expired.")
	ErrActivationNotFound   = errors.New("Link Has Been Expired.")
	ErrAlreadyActivated     = errors.New("Account Is Already Activated.")
	ErrResetLinkExpired     = errors.New("Password Link Has Expired")
	ErrResetUserNotFound    = errors.New("User was not found")
	ErrResetPasswordMissing = errors.New("Password not provided")
	ErrResendUserInvalid    = errors.New("Could not authenticate user")
	ErrResendPassInvalid    = errors.New("Could not authenticate password")
	ErrResendActive         = errors.New("Account is already activated.")
	ErrSomethingWentWrong   = errors.New("Something Went Wrong. Please Try Again")
)

// EmailService is the notification gateway. Every send is fired from a
// goroutine; delivery failures are logged and never fail the request.
type EmailService interface {
	SendActivationEmail(ctx context.Context, toEmail, username, token string) error
	SendActivationConfirmation(ctx context.Context, toEmail, username string) error
	SendUsernameReminder(ctx context.Context, toEmail, username string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, token string) error
	SendPasswordResetConfirmation(ctx context.Context, toEmail, username string) error
}

// Service orchestrates the account lifecycle: registration, activation,
// login, password reset, and credential reminders.
type Service struct {
	userRepo *user.Repository
	tokens   TokenService
	email    EmailService
	revoker  SessionRevoker
	logger   *logging.Logger
	tokenTTL time.Duration
}

func NewService(
	userRepo *user.Repository,
	tokens TokenService,
	email EmailService,
	revoker SessionRevoker,
	logger *logging.Logger,
	tokenTTL time.Duration,
) *Service {
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
		email:    email,
		revoker:  revoker,
		logger:   logger,
		tokenTTL: tokenTTL,
	}
}

// Register creates an inactive account holding a fresh activation token
// and dispatches the activation e-mail.
func (s *Service) Register(ctx context.Context, email, username, password string) error {
	if email == "" {
		return ErrEmailMissing
	}
	if username == "" {
		return ErrUsernameMissing
	}
	if password == "" {
		return ErrPasswordMissing
	}

	email = strings.ToLower(email)
	username = strings.ToLower(username)

	if err := user.ValidatePassword(password); err != nil {
		return err
	}

	passwordHash, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	activationToken, err := s.tokens.Issue(Claims{Username: username, Email: email}, s.tokenTTL)
	if err != nil {
		return fmt.Errorf("failed to issue activation token: %w", err)
	}

	newUser := &user.User{
		Email:           email,
		Username:        username,
		PasswordHash:    passwordHash,
		Permission:      user.PermissionUser,
		Active:          false,
		ActivationToken: &activationToken,
	}

	created, err := s.userRepo.Create(ctx, newUser)
	if err != nil {
		// Duplicate and per-field validation errors carry their own
		// client-facing messages; pass them through unchanged.
		return err
	}

	s.dispatch(func(emailCtx context.Context) error {
		return s.email.SendActivationEmail(emailCtx, created.Email, created.Username, activationToken)
	}, "activation", created.Email)

	return nil
}

// CheckEmail reports whether an e-mail address is still available.
func (s *Service) CheckEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("failed to check e-mail: %w", err)
	}
	return false, nil
}

// CheckUsername reports whether a username is still available.
func (s *Service) CheckUsername(ctx context.Context, username string) (bool, error) {
	_, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return false, nil
}

// Login authenticates credentials and issues a session token. The
// returned user is the reduced projection, never the stored record.
func (s *Service) Login(ctx context.Context, username, password string) (string, *user.User, error) {
	if username == "" {
		return "", nil, ErrLoginUsernameMissing
	}
	if password == "" {
		return "", nil, ErrLoginPasswordMissing
	}

	existing, err := s.userRepo.GetByUsername(ctx, strings.ToLower(username))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", nil, ErrUsernameNotFound
		}
		return "", nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !verifyPassword(existing.PasswordHash, password) {
		return "", nil, ErrPasswordInvalid
	}
	if !existing.Active {
		return "", nil, ErrNotActivated
	}

	token, err := s.tokens.Issue(Claims{
		UserID:     existing.ID.String(),
		Username:   existing.Username,
		Permission: string(existing.Permission),
	}, s.tokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	return token, existing, nil
}

// Activate flips an account to active using the e-mailed token. The
// stored activation token is left in place; a second attempt with the
// same link lands on the already-activated guard.
func (s *Service) Activate(ctx context.Context, token string) error {
	existing, lookupErr := s.userRepo.GetByActivationToken(ctx, token)
	if lookupErr != nil && !errors.Is(lookupErr, user.ErrNotFound) {
		return fmt.Errorf("failed to look up activation token: %w", lookupErr)
	}

	// Signature and expiry are checked before the lookup result is
	// consulted, so a forged link fails the same way an expired one does.
	if _, err := s.tokens.Verify(token); err != nil {
		return ErrActivationExpired
	}
	if lookupErr != nil {
		return ErrActivationNotFound
	}
	if existing.Active {
		return ErrAlreadyActivated
	}

	existing.Active = true
	if err := s.userRepo.Save(ctx, existing); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	s.dispatch(func(emailCtx context.Context) error {
		return s.email.SendActivationConfirmation(emailCtx, existing.Email, existing.Username)
	}, "activation confirmation", existing.Email)

	return nil
}

// ResendUsername e-mails the username belonging to an address.
// No new token is minted for this path.
func (s *Service) ResendUsername(ctx context.Context, email string) error {
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrEmailNotFound
		}
		return ErrSomethingWentWrong
	}

	s.dispatch(func(emailCtx context.Context) error {
		return s.email.SendUsernameReminder(emailCtx, existing.Email, existing.Username)
	}, "username reminder", existing.Email)

	return nil
}

// RequestPasswordReset stores a fresh reset token on the account and
// e-mails the reset link. Only active accounts may reset.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrResetEmailNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if !existing.Active {
		return ErrResetNotActivated
	}

	resetToken, err := s.tokens.Issue(Claims{Username: existing.Username, Email: existing.Email}, s.tokenTTL)
	if err != nil {
		return fmt.Errorf("failed to issue reset token: %w", err)
	}

	existing.ResetToken = &resetToken
	if err := s.userRepo.Save(ctx, existing); err != nil {
		return err
	}

	s.dispatch(func(emailCtx context.Context) error {
		return s.email.SendPasswordResetEmail(emailCtx, existing.Email, resetToken)
	}, "password reset", existing.Email)

	return nil
}

// ResolveResetToken returns the account holding an outstanding reset
// token. The token is not re-verified here: any lookup miss means the
// link is spent or never existed.
func (s *Service) ResolveResetToken(ctx context.Context, token string) (*user.User, error) {
	existing, err := s.userRepo.GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrResetLinkExpired
		}
		return nil, fmt.Errorf("failed to look up reset token: %w", err)
	}
	return existing, nil
}

// SavePassword replaces the password and clears the reset token.
func (s *Service) SavePassword(ctx context.Context, username, password string) error {
	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrResetUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if password == "" {
		return ErrResetPasswordMissing
	}
	if err := user.ValidatePassword(password); err != nil {
		return err
	}

	passwordHash, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	existing.PasswordHash = passwordHash
	existing.ResetToken = nil
	if err := s.userRepo.Save(ctx, existing); err != nil {
		return err
	}

	s.dispatch(func(emailCtx context.Context) error {
		return s.email.SendPasswordResetConfirmation(emailCtx, existing.Email, existing.Username)
	}, "password reset confirmation", existing.Email)

	return nil
}

// ResendActivation re-verifies credentials and re-sends the activation
// link, reusing the stored token rather than minting a new one.
// The destination address is returned for the success message.
func (s *Service) ResendActivation(ctx context.Context, username, password string) (string, error) {
	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", ErrResendUserInvalid
		}
		return "", fmt.Errorf("failed to get user: %w", err)
	}

	if password == "" || !verifyPassword(existing.PasswordHash, password) {
		return "", ErrResendPassInvalid
	}
	if existing.Active {
		return "", ErrResendActive
	}

	var token string
	if existing.ActivationToken != nil {
		token = *existing.ActivationToken
	}

	s.dispatch(func(emailCtx context.Context) error {
		return s.email.SendActivationEmail(emailCtx, existing.Email, existing.Username, token)
	}, "activation resend", existing.Email)

	return existing.Email, nil
}

// Logout revokes the presented session token for the remainder of its
// life. An unverifiable token has nothing left to revoke.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil
	}

	ttl := time.Until(claims.ExpiresAt)
	if err := s.revoker.Revoke(ctx, token, ttl); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	return nil
}

// dispatch fires an e-mail send without tying it to the request: the
// response never waits on delivery, and failures are only logged.
func (s *Service) dispatch(send func(context.Context) error, kind, to string) {
	go func() {
		emailCtx := context.Background()
		if err := send(emailCtx); err != nil {
			s.logger.Warn("failed to send e-mail", "kind", kind, "email", to, "error", err)
		}
	}()
}
