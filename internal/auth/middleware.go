package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/bloghaus/blog-api/internal/httputil"
	"github.com/bloghaus/blog-api/internal/user"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const identityContextKey ContextKey = "identity"

// Identity is the decoded token payload attached to authenticated requests.
type Identity struct {
	UserID     uuid.UUID
	Username   string
	Permission user.Permission
}

// Middleware guards every route registered behind it.
type Middleware struct {
	tokens  TokenService
	revoker SessionRevoker
}

func NewMiddleware(tokens TokenService, revoker SessionRevoker) *Middleware {
	return &Middleware{tokens: tokens, revoker: revoker}
}

// RequireAuth validates the bearer token and attaches the identity to the
// request context. A failed check always ends the request with an
// envelope response; nothing propagates past this boundary.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		if token == "" {
			httputil.RespondFailure(w, "No token provided")
			return
		}
		// The frontend sends the raw token; tolerate a Bearer prefix too.
		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := m.tokens.Verify(token)
		if err != nil {
			httputil.RespondFailure(w, "Token invalid: "+err.Error())
			return
		}

		revoked, err := m.revoker.IsRevoked(r.Context(), token)
		if err != nil {
			httputil.RespondFailure(w, "Something Went Wrong. Please Try Again")
			return
		}
		if revoked {
			httputil.RespondFailure(w, "Token invalid: session has been logged out")
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			httputil.RespondFailure(w, "Token invalid: malformed subject")
			return
		}

		identity := Identity{
			UserID:     userID,
			Username:   claims.Username,
			Permission: user.Permission(claims.Permission),
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFromContext extracts the authenticated identity, if present.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(Identity)
	return identity, ok
}

// ContextWithIdentity plants an identity for handlers under test.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
