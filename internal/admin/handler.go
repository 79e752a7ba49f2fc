package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bloghaus/blog-api/internal/auth"
	"github.com/bloghaus/blog-api/internal/httputil"
	"github.com/bloghaus/blog-api/internal/logging"
	"github.com/bloghaus/blog-api/internal/user"
)

// Handler serves the dashboard routes. All of them sit behind the
// authorization middleware, so an identity is always on the context.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// PermissionResponse reports the caller's own stored permission.
type PermissionResponse struct {
	httputil.Envelope
	Permission user.Permission `json:"permission"`
}

// UserResponse wraps a single user projection.
type UserResponse struct {
	httputil.Envelope
	User user.Projection `json:"user"`
}

// UsersResponse is one dashboard page.
type UsersResponse struct {
	httputil.Envelope
	Users      []user.Projection `json:"users"`
	Permission user.Permission   `json:"permission"`
	Pages      int               `json:"pages"`
}

var clientErrors = []error{
	ErrCallerNotFound, ErrProfileNotFound, ErrInvalidPage,
	ErrListCallerNotFound, ErrInsufficientPerms, ErrNoUserID,
	ErrInvalidUserID, ErrTargetNotFound, ErrAdminUndeletable,
	ErrEditUserNotFound, ErrEditCallerNotFound, ErrEditNoUsername,
	ErrAdminDowngrade, ErrAdminUpgrade, ErrInternal,
	user.ErrDuplicate,
	user.ErrEmailTooShort, user.ErrEmailTooLong, user.ErrEmailInvalid,
	user.ErrUsernameTooShort, user.ErrUsernameTooLong, user.ErrUsernameInvalid,
	user.ErrBadPermission,
}

func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, known := range clientErrors {
		if errors.Is(err, known) {
			httputil.RespondFailure(w, known.Error())
			return
		}
	}
	logging.GetLoggerFromContext(r.Context()).Error("admin request failed", "error", err.Error())
	httputil.RespondFailure(w, ErrInternal.Error())
}

// Permission handles GET /permission.
func (h *Handler) Permission(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	permission, err := h.service.Permission(r.Context(), identity.Username)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, PermissionResponse{
		Envelope:   httputil.Envelope{Success: true},
		Permission: permission,
	}, http.StatusOK)
}

// Profile handles GET /profile.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	profile, err := h.service.Profile(r.Context(), identity.UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, UserResponse{
		Envelope: httputil.Envelope{Success: true},
		User:     profile,
	}, http.StatusOK)
}

// ListUsers handles GET /getUsers. Page and size come from the pageNo
// and size query parameters, defaulting to the first page of ten.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	page := queryInt(r, "pageNo", 1)
	size := queryInt(r, "size", defaultPageSize)

	result, err := h.service.ListUsers(r.Context(), identity.UserID, page, size)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, UsersResponse{
		Envelope:   httputil.Envelope{Success: true},
		Users:      result.Users,
		Permission: result.Permission,
		Pages:      result.TotalPages,
	}, http.StatusOK)
}

// SingleUser handles GET /singleUser/{id}.
func (h *Handler) SingleUser(w http.ResponseWriter, r *http.Request) {
	target, err := h.service.SingleUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, UserResponse{
		Envelope: httputil.Envelope{Success: true},
		User:     target,
	}, http.StatusOK)
}

// DeleteUser handles DELETE /deleteSingleUser/{id}.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondSuccess(w, "User Has Been Successfully Deleted")
}

// EditUser handles PUT /editUser.
func (h *Handler) EditUser(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondFailure(w, "Invalid request body")
		return
	}

	if err := h.service.EditUser(r.Context(), identity, req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondSuccess(w, "Successfully updated")
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
