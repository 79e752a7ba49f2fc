package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/bloghaus/blog-api/internal/database"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("username or e-mail already exists")
)

// Repository is the credential store: the single owner of user rows.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create validates and inserts a new user, assigning a UUIDv7 id.
// V7 ids are time-ordered, so "ORDER BY id DESC" lists newest first.
func (r *Repository) Create(ctx context.Context, u *User) (*User, error) {
	if err := r.validate(u); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}

	now := time.Now()
	dbUser := &database.User{
		ID:              id,
		Email:           u.Email,
		Username:        u.Username,
		PasswordHash:    u.PasswordHash,
		Permission:      string(u.Permission),
		Active:          u.Active,
		ActivationToken: u.ActivationToken,
		ResetToken:      u.ResetToken,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if _, err := r.db.NewInsert().Model(dbUser).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUser(dbUser), nil
}

// GetByEmail retrieves a user by e-mail. Callers lowercase first.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "email = ?", email)
}

// GetByUsername retrieves a user by username. Callers lowercase first.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, "username = ?", username)
}

// GetByID retrieves a user by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByActivationToken retrieves the user holding the given activation token.
func (r *Repository) GetByActivationToken(ctx context.Context, token string) (*User, error) {
	return r.getOne(ctx, "activation_token = ?", token)
}

// GetByResetToken retrieves the user holding the given reset token.
func (r *Repository) GetByResetToken(ctx context.Context, token string) (*User, error) {
	return r.getOne(ctx, "reset_token = ?", token)
}

// Save validates and persists every mutable column of u.
// Concurrent saves of the same row are last-write-wins.
func (r *Repository) Save(ctx context.Context, u *User) error {
	if err := r.validate(u); err != nil {
		return err
	}

	u.UpdatedAt = time.Now()
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("email = ?", u.Email).
		Set("username = ?", u.Username).
		Set("password_hash = ?", u.PasswordHash).
		Set("permission = ?", string(u.Permission)).
		Set("active = ?", u.Active).
		Set("activation_token = ?", u.ActivationToken).
		Set("reset_token = ?", u.ResetToken).
		Set("updated_at = ?", u.UpdatedAt).
		Where("id = ?", u.ID).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to save user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a user row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.NewDelete().
		Model((*database.User)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Count returns the total number of users.
func (r *Repository) Count(ctx context.Context) (int, error) {
	count, err := r.db.NewSelect().
		Model((*database.User)(nil)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// ListPage returns a page of users, most recently created first.
func (r *Repository) ListPage(ctx context.Context, offset, limit int) ([]*User, error) {
	var dbUsers []*database.User
	err := r.db.NewSelect().
		Model(&dbUsers).
		OrderExpr("id DESC").
		Offset(offset).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*User, 0, len(dbUsers))
	for _, dbu := range dbUsers {
		users = append(users, mapDBUser(dbu))
	}
	return users, nil
}

func (r *Repository) getOne(ctx context.Context, where string, arg any) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where(where, arg).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return mapDBUser(dbUser), nil
}

// validate enforces the store-level rules on a candidate row. Password
// plaintext rules live with the caller; here only the hash is required.
func (r *Repository) validate(u *User) error {
	if err := ValidateEmail(u.Email); err != nil {
		return err
	}
	if err := ValidateUsername(u.Username); err != nil {
		return err
	}
	if u.PasswordHash == "" {
		return ErrPasswordTooShort
	}
	if !u.Permission.Valid() {
		return ErrBadPermission
	}
	return nil
}

// isUniqueViolation recognizes unique-constraint errors from Postgres and
// from the SQLite used in tests.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// mapDBUser converts a database row to the domain model.
func mapDBUser(dbu *database.User) *User {
	return &User{
		ID:              dbu.ID,
		Email:           dbu.Email,
		Username:        dbu.Username,
		PasswordHash:    dbu.PasswordHash,
		Permission:      Permission(dbu.Permission),
		Active:          dbu.Active,
		ActivationToken: dbu.ActivationToken,
		ResetToken:      dbu.ResetToken,
		CreatedAt:       dbu.CreatedAt,
		UpdatedAt:       dbu.UpdatedAt,
	}
}
