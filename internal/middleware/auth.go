package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/carebook/routesheet/internal/database"
	"github.com/carebook/routesheet/internal/models"
	"github.com/carebook/routesheet/internal/services/oidc"
)

type contextKey string

const userContextKey contextKey = "user"

// UserFromContext extracts the user from the request context
func UserFromContext(r *http.Request) *models.User {
	user, ok := r.Context().Value(userContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// AuthConfig holds the token verification settings.
type AuthConfig struct {
	Issuer  string
	JWKSUrl string
}

// Auth creates authentication middleware that validates JWT tokens and
// resolves the directory user. Identity lives with the external provider;
// unknown subjects are rejected rather than auto-provisioned, since users
// carry roles and organization membership set during registration.
func Auth(db *database.DB, jwksManager *oidc.JWKSManager, cfg AuthConfig) func(http.Handler) http.Handler {
	verifier := oidc.NewVerifier(jwksManager, cfg.Issuer)
	userRepo := database.NewUserRepository(db)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, http.StatusUnauthorized, "Missing Authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			tokenString := parts[1]

			ctx := r.Context()
			claims, err := verifier.Verify(ctx, tokenString, cfg.JWKSUrl)
			if err != nil {
				log.Printf("Token verification failed: %v (issuer: %s, jwks_url: %s)", err, cfg.Issuer, cfg.JWKSUrl)
				respondError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			user, err := userRepo.GetByProviderID(ctx, claims.Sub)
			if err != nil {
				log.Printf("Database error while fetching user: %v", err)
				respondError(w, http.StatusInternalServerError, "Database error")
				return
			}
			if user == nil {
				respondError(w, http.StatusUnauthorized, "User not registered")
				return
			}

			ctx = context.WithValue(ctx, userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success": false,
		"error":   message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}
