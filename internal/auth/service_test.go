package auth

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/bloghaus/blog-api/internal/logging"
	"github.com/bloghaus/blog-api/internal/user"
)

const sqliteCreateUsers = `CREATE TABLE users (
    id TEXT NOT NULL PRIMARY KEY,
    email TEXT NOT NULL,
    username TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    permission TEXT NOT NULL,
    active BOOLEAN NOT NULL,
    activation_token TEXT,
    reset_token TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    CONSTRAINT uq_users_email UNIQUE (email),
    CONSTRAINT uq_users_username UNIQUE (username)
);`

// recordedEmail is one captured outbound message.
type recordedEmail struct {
	Kind     string
	To       string
	Username string
	Token    string
}

// mockEmailService records sends instead of talking to SMTP.
type mockEmailService struct {
	mu    sync.Mutex
	sends []recordedEmail
}

func (m *mockEmailService) record(e recordedEmail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, e)
}

func (m *mockEmailService) sent() []recordedEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]recordedEmail, len(m.sends))
	copy(out, m.sends)
	return out
}

func (m *mockEmailService) SendActivationEmail(_ context.Context, toEmail, username, token string) error {
	m.record(recordedEmail{Kind: "activation", To: toEmail, Username: username, Token: token})
	return nil
}

func (m *mockEmailService) SendActivationConfirmation(_ context.Context, toEmail, username string) error {
	m.record(recordedEmail{Kind: "activation-confirmation", To: toEmail, Username: username})
	return nil
}

func (m *mockEmailService) SendUsernameReminder(_ context.Context, toEmail, username string) error {
	m.record(recordedEmail{Kind: "username-reminder", To: toEmail, Username: username})
	return nil
}

func (m *mockEmailService) SendPasswordResetEmail(_ context.Context, toEmail, token string) error {
	m.record(recordedEmail{Kind: "password-reset", To: toEmail, Token: token})
	return nil
}

func (m *mockEmailService) SendPasswordResetConfirmation(_ context.Context, toEmail, username string) error {
	m.record(recordedEmail{Kind: "password-reset-confirmation", To: toEmail, Username: username})
	return nil
}

// memoryRevoker is an in-process SessionRevoker for tests.
type memoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func newMemoryRevoker() *memoryRevoker {
	return &memoryRevoker{revoked: make(map[string]bool)}
}

func (m *memoryRevoker) Revoke(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[token] = true
	return nil
}

func (m *memoryRevoker) IsRevoked(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[token], nil
}

type serviceFixture struct {
	service *Service
	repo    *user.Repository
	tokens  TokenService
	email   *mockEmailService
	revoker *memoryRevoker
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	_, err = bunDB.Exec(sqliteCreateUsers)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = bunDB.Close()
		_ = db.Close()
	})

	tokens, err := NewJWTService([]byte("test-secret"))
	require.NoError(t, err)

	repo := user.NewRepository(bunDB)
	email := &mockEmailService{}
	revoker := newMemoryRevoker()
	service := NewService(repo, tokens, email, revoker, logging.NewLogger(true), 24*time.Hour)

	return &serviceFixture{
		service: service,
		repo:    repo,
		tokens:  tokens,
		email:   email,
		revoker: revoker,
	}
}

func (f *serviceFixture) register(t *testing.T, email, username, password string) *user.User {
	t.Helper()

	err := f.service.Register(context.Background(), email, username, password)
	require.NoError(t, err)

	created, err := f.repo.GetByUsername(context.Background(), strings.ToLower(username))
	require.NoError(t, err)
	return created
}

func (f *serviceFixture) activate(t *testing.T, account *user.User) {
	t.Helper()

	account.Active = true
	require.NoError(t, f.repo.Save(context.Background(), account))
}

func waitForEmail(t *testing.T, email *mockEmailService, kind string) recordedEmail {
	t.Helper()

	var found recordedEmail
	require.Eventually(t, func() bool {
		for _, e := range email.sent() {
			if e.Kind == kind {
				found = e
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "expected a %q e-mail", kind)
	return found
}

func TestRegisterCreatesInactiveAccount(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	created := f.register(t, "New@Example.COM", "NewUser", "password123")

	assert.Equal(t, "new@example.com", created.Email)
	assert.Equal(t, "newuser", created.Username)
	assert.Equal(t, user.PermissionUser, created.Permission)
	assert.False(t, created.Active)
	require.NotNil(t, created.ActivationToken)
	assert.NotEmpty(t, created.PasswordHash)
	assert.NotEqual(t, "password123", created.PasswordHash)

	sent := waitForEmail(t, f.email, "activation")
	assert.Equal(t, "new@example.com", sent.To)
	assert.Equal(t, *created.ActivationToken, sent.Token)
}

func TestRegisterMissingFields(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.service.Register(ctx, "", "someone", "password123"), ErrEmailMissing)
	assert.ErrorIs(t, f.service.Register(ctx, "a@example.com", "", "password123"), ErrUsernameMissing)
	assert.ErrorIs(t, f.service.Register(ctx, "a@example.com", "someone", ""), ErrPasswordMissing)
}

func TestRegisterRejectsInvalidFields(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.service.Register(ctx, "a@example.com", "someone", "short"), user.ErrPasswordTooShort)
	assert.ErrorIs(t, f.service.Register(ctx, "a@b", "someone", "password123"), user.ErrEmailTooShort)
	assert.ErrorIs(t, f.service.Register(ctx, "a@example.com", "no", "password123"), user.ErrUsernameTooShort)
	assert.ErrorIs(t, f.service.Register(ctx, "a@example.com", "bad name", "password123"), user.ErrUsernameInvalid)
}

func TestRegisterDuplicate(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.register(t, "taken@example.com", "taken", "password123")

	err := f.service.Register(context.Background(), "taken@example.com", "other", "password123")
	assert.ErrorIs(t, err, user.ErrDuplicate)

	err = f.service.Register(context.Background(), "other@example.com", "taken", "password123")
	assert.ErrorIs(t, err, user.ErrDuplicate)
}

func TestCheckEmailAndUsername(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.register(t, "taken@example.com", "taken", "password123")
	ctx := context.Background()

	available, err := f.service.CheckEmail(ctx, "taken@example.com")
	require.NoError(t, err)
	assert.False(t, available)

	available, err = f.service.CheckEmail(ctx, "free@example.com")
	require.NoError(t, err)
	assert.True(t, available)

	available, err = f.service.CheckUsername(ctx, "taken")
	require.NoError(t, err)
	assert.False(t, available)

	available, err = f.service.CheckUsername(ctx, "free")
	require.NoError(t, err)
	assert.True(t, available)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	created := f.register(t, "login@example.com", "loginuser", "password123")
	f.activate(t, created)

	token, account, err := f.service.Login(context.Background(), "LoginUser", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, "loginuser", account.Username)

	claims, err := f.tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, created.ID.String(), claims.UserID)
	assert.Equal(t, "loginuser", claims.Username)
	assert.Equal(t, string(user.PermissionUser), claims.Permission)
}

func TestLoginFailures(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	created := f.register(t, "login@example.com", "loginuser", "password123")
	ctx := context.Background()

	_, _, err := f.service.Login(ctx, "", "password123")
	assert.ErrorIs(t, err, ErrLoginUsernameMissing)

	_, _, err = f.service.Login(ctx, "loginuser", "")
	assert.ErrorIs(t, err, ErrLoginPasswordMissing)

	_, _, err = f.service.Login(ctx, "nosuchuser", "password123")
	assert.ErrorIs(t, err, ErrUsernameNotFound)

	_, _, err = f.service.Login(ctx, "loginuser", "wrongpassword")
	assert.ErrorIs(t, err, ErrPasswordInvalid)

	// Correct password on a not yet activated account.
	_, _, err = f.service.Login(ctx, "loginuser", "password123")
	assert.ErrorIs(t, err, ErrNotActivated)

	f.activate(t, created)
	_, _, err = f.service.Login(ctx, "loginuser", "password123")
	assert.NoError(t, err)
}

func TestActivate(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	created := f.register(t, "pending@example.com", "pending", "password123")
	require.NotNil(t, created.ActivationToken)

	err := f.service.Activate(context.Background(), *created.ActivationToken)
	require.NoError(t, err)

	activated, err := f.repo.GetByUsername(context.Background(), "pending")
	require.NoError(t, err)
	assert.True(t, activated.Active)
	// The token stays on the record; reuse is caught below.
	assert.NotNil(t, activated.ActivationToken)

	sent := waitForEmail(t, f.email, "activation-confirmation")
	assert.Equal(t, "pending@example.com", sent.To)

	err = f.service.Activate(context.Background(), *created.ActivationToken)
	assert.ErrorIs(t, err, ErrAlreadyActivated)
}

func TestActivateUnknownToken(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)

	// Well formed and unexpired, but not held by any account.
	stray, err := f.tokens.Issue(Claims{Username: "ghost", Email: "ghost@example.com"}, time.Hour)
	require.NoError(t, err)

	err = f.service.Activate(context.Background(), stray)
	assert.ErrorIs(t, err, ErrActivationNotFound)
}

func TestActivateForgedToken(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.register(t, "pending@example.com", "pending", "password123")

	err := f.service.Activate(context.Background(), "forged-token")
	assert.ErrorIs(t, err, ErrActivationExpired)
}

func TestResendUsername(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.register(t, "remind@example.com", "remindme", "password123")

	err := f.service.ResendUsername(context.Background(), "remind@example.com")
	require.NoError(t, err)

	sent := waitForEmail(t, f.email, "username-reminder")
	assert.Equal(t, "remind@example.com", sent.To)
	assert.Equal(t, "remindme", sent.Username)

	err = f.service.ResendUsername(context.Background(), "unknown@example.com")
	assert.ErrorIs(t, err, ErrEmailNotFound)
}

func TestRequestPasswordReset(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	created := f.register(t, "reset@example.com", "resetme", "password123")
	f.activate(t, created)

	err := f.service.RequestPasswordReset(context.Background(), "reset@example.com")
	require.NoError(t, err)

	updated, err := f.repo.GetByUsername(context.Background(), "resetme")
	require.NoError(t, err)
	require.NotNil(t, updated.ResetToken)

	sent := waitForEmail(t, f.email, "password-reset")
	assert.Equal(t, *updated.ResetToken, sent.Token)
}

func TestRequestPasswordResetGuards(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.register(t, "inactive@example.com", "inactive", "password123")
	ctx := context.Background()

	err := f.service.RequestPasswordReset(ctx, "unknown@example.com")
	assert.ErrorIs(t, err, ErrResetEmailNotFound)

	err = f.service.RequestPasswordReset(ctx, "inactive@example.com")
	assert.ErrorIs(t, err, ErrResetNotActivated)
}

func TestResolveResetToken(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	created := f.register(t, "reset@example.com", "resetme", "password123")
	f.activate(t, created)

	require.NoError(t, f.service.RequestPasswordReset(context.Background(), "reset@example.com"))

	updated, err := f.repo.GetByUsername(context.Background(), "resetme")
	require.NoError(t, err)
	require.NotNil(t, updated.ResetToken)

	account, err := f.service.ResolveResetToken(context.Background(), *updated.ResetToken)
	require.NoError(t, err)
	assert.Equal(t, "resetme", account.Username)

	_, err = f.service.ResolveResetToken(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrResetLinkExpired)
}

func TestSavePassword(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	created := f.register(t, "reset@example.com", "resetme", "oldpassword")
	f.activate(t, created)
	require.NoError(t, f.service.RequestPasswordReset(context.Background(), "reset@example.com"))

	err := f.service.SavePassword(context.Background(), "resetme", "newpassword")
	require.NoError(t, err)

	updated, err := f.repo.GetByUsername(context.Background(), "resetme")
	require.NoError(t, err)
	assert.Nil(t, updated.ResetToken)

	_, _, err = f.service.Login(context.Background(), "resetme", "newpassword")
	assert.NoError(t, err)
	_, _, err = f.service.Login(context.Background(), "resetme", "oldpassword")
	assert.ErrorIs(t, err, ErrPasswordInvalid)

	waitForEmail(t, f.email, "password-reset-confirmation")
}

func TestSavePasswordGuards(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.register(t, "reset@example.com", "resetme", "password123")
	ctx := context.Background()

	err := f.service.SavePassword(ctx, "nosuchuser", "newpassword")
	assert.ErrorIs(t, err, ErrResetUserNotFound)

	err = f.service.SavePassword(ctx, "resetme", "")
	assert.ErrorIs(t, err, ErrResetPasswordMissing)

	err = f.service.SavePassword(ctx, "resetme", "short")
	assert.ErrorIs(t, err, user.ErrPasswordTooShort)
}

func TestResendActivation(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	created := f.register(t, "pending@example.com", "pending", "password123")
	ctx := context.Background()

	email, err := f.service.ResendActivation(ctx, "pending", "password123")
	require.NoError(t, err)
	assert.Equal(t, "pending@example.com", email)

	sent := waitForEmail(t, f.email, "activation")
	assert.Equal(t, *created.ActivationToken, sent.Token)

	_, err = f.service.ResendActivation(ctx, "nosuchuser", "password123")
	assert.ErrorIs(t, err, ErrResendUserInvalid)

	_, err = f.service.ResendActivation(ctx, "pending", "wrongpassword")
	assert.ErrorIs(t, err, ErrResendPassInvalid)

	f.activate(t, created)
	_, err = f.service.ResendActivation(ctx, "pending", "password123")
	assert.ErrorIs(t, err, ErrResendActive)
}

func TestLogout(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()

	token, err := f.tokens.Issue(Claims{UserID: "u1", Username: "tester"}, time.Hour)
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, token))

	revoked, err := f.revoker.IsRevoked(ctx, token)
	require.NoError(t, err)
	assert.True(t, revoked)

	// Unverifiable tokens have nothing to revoke.
	require.NoError(t, f.service.Logout(ctx, "garbage"))
	revoked, err = f.revoker.IsRevoked(ctx, "garbage")
	require.NoError(t, err)
	assert.False(t, revoked)
}
