package admin

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/bloghaus/blog-api/internal/auth"
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

func setupAdmin(t *testing.T) (*Service, *user.Repository) {
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

	repo := user.NewRepository(bunDB)
	return NewService(repo), repo
}

func seedUser(t *testing.T, repo *user.Repository, username string, permission user.Permission) *user.User {
	t.Helper()

	created, err := repo.Create(context.Background(), &user.User{
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: "$argon2id$fake",
		Permission:   permission,
		Active:       true,
	})
	require.NoError(t, err)
	return created
}

func identityOf(u *user.User) auth.Identity {
	return auth.Identity{UserID: u.ID, Username: u.Username, Permission: u.Permission}
}

func TestPermissionLookup(t *testing.T) {
	t.Parallel()

	service, repo := setupAdmin(t)
	mod := seedUser(t, repo, "mod", user.PermissionModerator)

	permission, err := service.Permission(context.Background(), mod.Username)
	require.NoError(t, err)
	assert.Equal(t, user.PermissionModerator, permission)

	_, err = service.Permission(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrCallerNotFound)
}

func TestProfileLookup(t *testing.T) {
	t.Parallel()

	service, repo := setupAdmin(t)
	account := seedUser(t, repo, "someone", user.PermissionUser)

	profile, err := service.Profile(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, "someone", profile.Username)
	assert.Equal(t, account.ID, profile.ID)

	_, err = service.Profile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestListUsers(t *testing.T) {
	t.Parallel()

	service, repo := setupAdmin(t)
	admin := seedUser(t, repo, "boss", user.PermissionAdmin)
	for i := 1; i <= 4; i++ {
		seedUser(t, repo, fmt.Sprintf("member%d", i), user.PermissionUser)
	}

	page, err := service.ListUsers(context.Background(), admin.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, user.PermissionAdmin, page.Permission)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Users, 2)
	// Newest first.
	assert.Equal(t, "member4", page.Users[0].Username)
	assert.Equal(t, "member3", page.Users[1].Username)

	last, err := service.ListUsers(context.Background(), admin.ID, 3, 2)
	require.NoError(t, err)
	require.Len(t, last.Users, 1)
	assert.Equal(t, "boss", last.Users[0].Username)
}

func TestListUsersGuards(t *testing.T) {
	t.Parallel()

	service, repo := setupAdmin(t)
	member := seedUser(t, repo, "member", user.PermissionUser)
	ctx := context.Background()

	_, err := service.ListUsers(ctx, member.ID, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidPage)

	_, err = service.ListUsers(ctx, member.ID, 1, 10)
	assert.ErrorIs(t, err, ErrInsufficientPerms)

	_, err = service.ListUsers(ctx, uuid.New(), 1, 10)
	assert.ErrorIs(t, err, ErrListCallerNotFound)
}

func TestSingleUser(t *testing.T) {
	t.Parallel()

	service, repo := setupAdmin(t)
	account := seedUser(t, repo, "target", user.PermissionUser)
	ctx := context.Background()

	projection, err := service.SingleUser(ctx, account.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "target", projection.Username)

	_, err = service.SingleUser(ctx, "")
	assert.ErrorIs(t, err, ErrNoUserID)

	_, err = service.SingleUser(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidUserID)

	_, err = service.SingleUser(ctx, uuid.New().String())
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestDeleteUser(t *testing.T) {
	t.Parallel()

	service, repo := setupAdmin(t)
	member := seedUser(t, repo, "member", user.PermissionUser)
	admin := seedUser(t, repo, "boss", user.PermissionAdmin)
	ctx := context.Background()

	require.NoError(t, service.DeleteUser(ctx, member.ID.String()))
	_, err := repo.GetByID(ctx, member.ID)
	assert.ErrorIs(t, err, user.ErrNotFound)

	err = service.DeleteUser(ctx, admin.ID.String())
	assert.ErrorIs(t, err, ErrAdminUndeletable)

	err = service.DeleteUser(ctx, "")
	assert.ErrorIs(t, err, ErrNoUserID)

	err = service.DeleteUser(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrInternal)
}

func TestEditUser(t *testing.T) {
	t.Parallel()

	service, repo := setupAdmin(t)
	admin := seedUser(t, repo, "boss", user.PermissionAdmin)
	target := seedUser(t, repo, "member", user.PermissionUser)

	err := service.EditUser(context.Background(), identityOf(admin), EditRequest{
		ID:         target.ID.String(),
		Username:   "Renamed",
		Email:      "Renamed@Example.com",
		Permission: string(user.PermissionModerator),
	})
	require.NoError(t, err)

	edited, err := repo.GetByID(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", edited.Username)
	assert.Equal(t, "renamed@example.com", edited.Email)
	assert.Equal(t, user.PermissionModerator, edited.Permission)
}

func TestEditUserGuards(t *testing.T) {
	t.Parallel()

	service, repo := setupAdmin(t)
	admin := seedUser(t, repo, "boss", user.PermissionAdmin)
	mod := seedUser(t, repo, "mod", user.PermissionModerator)
	member := seedUser(t, repo, "member", user.PermissionUser)
	ctx := context.Background()

	err := service.EditUser(ctx, auth.Identity{Username: "ghost"}, EditRequest{})
	assert.ErrorIs(t, err, ErrEditCallerNotFound)

	err = service.EditUser(ctx, identityOf(admin), EditRequest{ID: member.ID.String()})
	assert.ErrorIs(t, err, ErrEditNoUsername)

	err = service.EditUser(ctx, identityOf(member), EditRequest{ID: member.ID.String(), Username: "member"})
	assert.ErrorIs(t, err, ErrInsufficientPerms)

	err = service.EditUser(ctx, identityOf(mod), EditRequest{ID: uuid.New().String(), Username: "member"})
	assert.ErrorIs(t, err, ErrEditUserNotFound)

	// Only an admin may hand out admin.
	err = service.EditUser(ctx, identityOf(mod), EditRequest{
		ID:         member.ID.String(),
		Username:   "member",
		Permission: string(user.PermissionAdmin),
	})
	assert.ErrorIs(t, err, ErrAdminUpgrade)

	// Only an admin may take admin away.
	err = service.EditUser(ctx, identityOf(mod), EditRequest{
		ID:         admin.ID.String(),
		Username:   "boss",
		Permission: string(user.PermissionUser),
	})
	assert.ErrorIs(t, err, ErrAdminDowngrade)

	err = service.EditUser(ctx, identityOf(mod), EditRequest{
		ID:         member.ID.String(),
		Username:   "member",
		Permission: "superuser",
	})
	assert.ErrorIs(t, err, user.ErrBadPermission)

	// Renaming onto a taken username surfaces the duplicate error.
	err = service.EditUser(ctx, identityOf(admin), EditRequest{
		ID:       member.ID.String(),
		Username: "mod",
	})
	assert.ErrorIs(t, err, user.ErrDuplicate)
}
