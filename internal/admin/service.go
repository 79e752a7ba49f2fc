package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bloghaus/blog-api/internal/auth"
	"github.com/bloghaus/blog-api/internal/user"
)

// Admin outcomes surfaced to the client verbatim.
var (
	ErrCallerNotFound     = errors.New("No user was found")
	ErrProfileNotFound    = errors.New("User not found")
	ErrInvalidPage        = errors.New("Invalid page number, should start with 1")
	ErrListCallerNotFound = errors.New("No user found")
	ErrInsufficientPerms  = errors.New("Insufficient Permissions")
	ErrNoUserID           = errors.New("No User ID Was Provided")
	ErrInvalidUserID      = errors.New("Not A Valid User ID")
	ErrTargetNotFound     = errors.New("User Not Found")
	ErrAdminUndeletable   = errors.New("Admin Can Not Be Deleted")
	ErrEditUserNotFound   = errors.New("No user found!")
	ErrEditCallerNotFound = errors.New("No User Found")
	ErrEditNoUsername     = errors.New("You must provide a username")
	ErrAdminDowngrade     = errors.New("Insufficient Permissions. You must be an admin to downgrade an admin.")
	ErrAdminUpgrade       = errors.New("Insufficient Permissions. You must be an admin to upgrade someone to the admin level")
	ErrInternal           = errors.New("Something went wrong. This error has been logged and will be addressed by our staff. We apologize for this inconvenience!")
)

const defaultPageSize = 10

// Service answers the dashboard queries: listing, inspecting, editing,
// and deleting accounts. Permission checks re-fetch the caller from the
// store so a role change takes effect before the token expires.
type Service struct {
	userRepo *user.Repository
}

func NewService(userRepo *user.Repository) *Service {
	return &Service{userRepo: userRepo}
}

// Permission returns the caller's current stored permission level.
func (s *Service) Permission(ctx context.Context, callerUsername string) (user.Permission, error) {
	caller, err := s.userRepo.GetByUsername(ctx, callerUsername)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", ErrCallerNotFound
		}
		return "", fmt.Errorf("failed to get caller: %w", err)
	}
	return caller.Permission, nil
}

// Profile returns the caller's own reduced record.
func (s *Service) Profile(ctx context.Context, callerID uuid.UUID) (user.Projection, error) {
	caller, err := s.userRepo.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.Projection{}, ErrProfileNotFound
		}
		return user.Projection{}, fmt.Errorf("failed to get caller: %w", err)
	}
	return caller.Project(), nil
}

// UserPage is one dashboard page of accounts.
type UserPage struct {
	Users      []user.Projection
	Permission user.Permission
	TotalPages int
}

// ListUsers returns a page of accounts ordered newest first. Requires the
// caller to currently hold admin or moderator.
func (s *Service) ListUsers(ctx context.Context, callerID uuid.UUID, page, size int) (*UserPage, error) {
	if page < 1 {
		return nil, ErrInvalidPage
	}
	if size < 1 {
		size = defaultPageSize
	}

	caller, err := s.userRepo.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrListCallerNotFound
		}
		return nil, fmt.Errorf("failed to get caller: %w", err)
	}
	if !caller.Permission.CanModerate() {
		return nil, ErrInsufficientPerms
	}

	total, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	users, err := s.userRepo.ListPage(ctx, size*(page-1), size)
	if err != nil {
		return nil, err
	}

	projections := make([]user.Projection, 0, len(users))
	for _, u := range users {
		projections = append(projections, u.Project())
	}

	return &UserPage{
		Users:      projections,
		Permission: caller.Permission,
		TotalPages: (total + size - 1) / size,
	}, nil
}

// SingleUser returns one account's reduced record by id.
func (s *Service) SingleUser(ctx context.Context, id string) (user.Projection, error) {
	if id == "" {
		return user.Projection{}, ErrNoUserID
	}

	userID, err := uuid.Parse(id)
	if err != nil {
		return user.Projection{}, ErrInvalidUserID
	}

	target, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.Projection{}, ErrTargetNotFound
		}
		return user.Projection{}, fmt.Errorf("failed to get user: %w", err)
	}

	return target.Project(), nil
}

// DeleteUser removes an account. Admin accounts are undeletable through
// this path; the check is against the record being deleted, not the
// caller, matching the established contract.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if id == "" {
		return ErrNoUserID
	}

	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrInternal
	}

	target, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrListCallerNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if target.Permission == user.PermissionAdmin {
		return ErrAdminUndeletable
	}

	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return nil
}

// EditRequest carries the fields an edit may change. Username is
// mandatory; email and permission are applied alongside it.
type EditRequest struct {
	ID         string `json:"_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Permission string `json:"permission"`
}

// EditUser applies an account edit. The caller must currently hold admin
// or moderator; assigning admin, or changing an existing admin's role,
// additionally requires an admin caller.
func (s *Service) EditUser(ctx context.Context, caller auth.Identity, req EditRequest) error {
	current, err := s.userRepo.GetByUsername(ctx, caller.Username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrEditCallerNotFound
		}
		return fmt.Errorf("failed to get caller: %w", err)
	}

	if req.Username == "" {
		return ErrEditNoUsername
	}
	if !current.Permission.CanModerate() {
		return ErrInsufficientPerms
	}

	targetID, err := uuid.Parse(req.ID)
	if err != nil {
		return ErrInternal
	}

	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrEditUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if req.Permission != "" {
		newPermission := user.Permission(req.Permission)
		if !newPermission.Valid() {
			return user.ErrBadPermission
		}
		if newPermission == user.PermissionAdmin && current.Permission != user.PermissionAdmin {
			return ErrAdminUpgrade
		}
		if target.Permission == user.PermissionAdmin &&
			newPermission != user.PermissionAdmin &&
			current.Permission != user.PermissionAdmin {
			return ErrAdminDowngrade
		}
		target.Permission = newPermission
	}

	target.Username = strings.ToLower(req.Username)
	if req.Email != "" {
		target.Email = strings.ToLower(req.Email)
	}

	if err := s.userRepo.Save(ctx, target); err != nil {
		// Duplicate and validation errors carry client-facing messages.
		return err
	}

	return nil
}
