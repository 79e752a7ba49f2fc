package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bloghaus/blog-api/internal/httputil"
	"github.com/bloghaus/blog-api/internal/logging"
	"github.com/bloghaus/blog-api/internal/user"
)

// Handler exposes the account lifecycle over HTTP. Every response is a
// 200 with the success flag carrying the outcome.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ActivateRequest struct {
	Token string `json:"token"`
}

type ResetPasswordRequest struct {
	Email string `json:"email"`
}

type SavePasswordRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ResendRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the session token and the reduced user view.
type LoginResponse struct {
	httputil.Envelope
	Token string     `json:"token,omitempty"`
	User  *LoginUser `json:"user,omitempty"`
	// Expired flags the not-yet-activated case for the frontend.
	Expired bool `json:"expired,omitempty"`
}

type LoginUser struct {
	Username   string          `json:"username"`
	Permission user.Permission `json:"permission"`
}

// UserResponse wraps a single user projection in the envelope.
type UserResponse struct {
	httputil.Envelope
	User user.Projection `json:"user"`
}

// clientErrors are outcomes whose message goes to the client verbatim.
var clientErrors = []error{
	ErrEmailMissing, ErrUsernameMissing, ErrPasswordMissing,
	ErrLoginUsernameMissing, ErrLoginPasswordMissing,
	ErrUsernameNotFound, ErrPasswordInvalid, ErrNotActivated,
	ErrEmailNotFound, ErrResetEmailNotFound, ErrResetNotActivated,
	ErrActivationExpired, ErrActivationNotFound, ErrAlreadyActivated,
	ErrResetLinkExpired, ErrResetUserNotFound, ErrResetPasswordMissing,
	ErrResendUserInvalid, ErrResendPassInvalid, ErrResendActive,
	ErrSomethingWentWrong,
	user.ErrDuplicate,
	user.ErrEmailTooShort, user.ErrEmailTooLong, user.ErrEmailInvalid,
	user.ErrUsernameTooShort, user.ErrUsernameTooLong, user.ErrUsernameInvalid,
	user.ErrPasswordTooShort, user.ErrPasswordTooLong, user.ErrBadPermission,
}

// respondServiceError forwards known outcomes verbatim and hides the rest
// behind the generic envelope. Store faults never crash a request.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, known := range clientErrors {
		if errors.Is(err, known) {
			httputil.RespondFailure(w, known.Error())
			return
		}
	}
	logging.GetLoggerFromContext(r.Context()).Error("request failed", "error", err.Error())
	httputil.RespondFailure(w, "Something Went Wrong. Please Try Again")
}

// Register handles POST /register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondFailure(w, "Invalid request body")
		return
	}

	if err := h.service.Register(r.Context(), req.Email, req.Username, req.Password); err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondSuccess(w, "Account registered! Please check your e-mail for activation link.")
}

// CheckEmail handles GET /checkEmail/{email}.
func (h *Handler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		httputil.RespondFailure(w, "E-mail was not provided")
		return
	}

	available, err := h.service.CheckEmail(r.Context(), email)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if !available {
		httputil.RespondFailure(w, "E-mail is already taken")
		return
	}
	httputil.RespondSuccess(w, "E-mail is available")
}

// CheckUsername handles GET /checkUsername/{username}.
func (h *Handler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		httputil.RespondFailure(w, "Username was not provided")
		return
	}

	available, err := h.service.CheckUsername(r.Context(), username)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if !available {
		httputil.RespondFailure(w, "Username is already taken")
		return
	}
	httputil.RespondSuccess(w, "Username is available")
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondFailure(w, "Invalid request body")
		return
	}

	token, account, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrNotActivated) {
			httputil.RespondJSON(w, LoginResponse{
				Envelope: httputil.Envelope{Success: false, Message: ErrNotActivated.Error()},
				Expired:  true,
			}, http.StatusOK)
			return
		}
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, LoginResponse{
		Envelope: httputil.Envelope{Success: true, Message: "User authenticated"},
		Token:    token,
		User: &LoginUser{
			Username:   account.Username,
			Permission: account.Permission,
		},
	}, http.StatusOK)
}

// ResendUsername handles GET /resendUsername/{email}.
func (h *Handler) ResendUsername(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	if err := h.service.ResendUsername(r.Context(), email); err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondSuccess(w, "Username has been sent to e-mail!")
}

// RequestPasswordReset handles PUT /resetpassword.
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondFailure(w, "Invalid request body")
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondSuccess(w, "Please check your e-mail for password reset link")
}

// ResolveResetToken handles GET /resetpassword/{token}.
func (h *Handler) ResolveResetToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	account, err := h.service.ResolveResetToken(r.Context(), token)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondJSON(w, UserResponse{
		Envelope: httputil.Envelope{Success: true, Message: "User Has Been Sent"},
		User:     account.Project(),
	}, http.StatusOK)
}

// SavePassword handles PUT /savepassword.
func (h *Handler) SavePassword(w http.ResponseWriter, r *http.Request) {
	var req SavePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondFailure(w, "Invalid request body")
		return
	}

	if err := h.service.SavePassword(r.Context(), req.Username, req.Password); err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondSuccess(w, "Password has been reset!")
}

// Activate handles PUT /activate.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondFailure(w, "Invalid request body")
		return
	}

	if err := h.service.Activate(r.Context(), req.Token); err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondSuccess(w, "Account activated!")
}

// ResendActivation handles POST /resend.
func (h *Handler) ResendActivation(w http.ResponseWriter, r *http.Request) {
	var req ResendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondFailure(w, "Invalid request body")
		return
	}

	email, err := h.service.ResendActivation(r.Context(), req.Username, req.Password)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondSuccess(w, "Activation link has been sent to "+email+"!")
}

// Logout handles POST /logout (protected).
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	if err := h.service.Logout(r.Context(), token); err != nil {
		respondServiceError(w, r, err)
		return
	}

	httputil.RespondSuccess(w, "Logged out")
}
