package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bloghaus/blog-api/internal/admin"
	"github.com/bloghaus/blog-api/internal/auth"
	"github.com/bloghaus/blog-api/internal/config"
	"github.com/bloghaus/blog-api/internal/httputil"
	"github.com/bloghaus/blog-api/internal/logging"
)

// NewRouter creates and configures the HTTP router. Every application
// route lives under /authentication, matching the frontend contract.
func NewRouter(cfg *config.Config, authHandler *auth.Handler, adminHandler *admin.Handler, authMiddleware *auth.Middleware, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	// Global middleware
	r.Use(SecurityHeaders)               // Security headers on all responses
	r.Use(middleware.Recoverer)          // Recover from panics
	r.Use(middleware.RequestID)          // Add request ID
	r.Use(middleware.RealIP)             // Set RemoteAddr to real IP
	r.Use(logging.RequestLogger(logger)) // Structured logging with request context
	r.Use(middleware.Compress(5))        // Compress responses

	r.Get("/health", handleHealth)

	r.Route("/authentication", func(r chi.Router) {
		// Account lifecycle (public)
		r.Post("/register", authHandler.Register)
		r.Get("/checkEmail/{email}", authHandler.CheckEmail)
		r.Get("/checkUsername/{username}", authHandler.CheckUsername)
		r.Post("/login", authHandler.Login)
		r.Get("/resendUsername/{email}", authHandler.ResendUsername)
		r.Put("/resetpassword", authHandler.RequestPasswordReset)
		r.Get("/resetpassword/{token}", authHandler.ResolveResetToken)
		r.Put("/savepassword", authHandler.SavePassword)
		r.Put("/activate", authHandler.Activate)
		r.Post("/resend", authHandler.ResendActivation)

		// Session and dashboard (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Post("/logout", authHandler.Logout)
			r.Get("/permission", adminHandler.Permission)
			r.Get("/profile", adminHandler.Profile)
			r.Get("/getUsers", adminHandler.ListUsers)
			r.Get("/singleUser/{id}", adminHandler.SingleUser)
			r.Delete("/deleteSingleUser/{id}", adminHandler.DeleteUser)
			r.Put("/editUser", adminHandler.EditUser)
		})
	})

	return r
}

// handleHealth is a simple health check endpoint
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, map[string]string{"status": "api is running"}, http.StatusOK)
}
