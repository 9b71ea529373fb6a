package middleware

import (
	"context"
	"net/http"
	"strings"

	"calibra/internal/auth"
	"calibra/internal/repository"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	AccountIDKey contextKey = "account_id"
	UserEmailKey contextKey = "user_email"
	RawTokenKey  contextKey = "raw_token"
)

// AuthMiddleware validates JWT tokens
type AuthMiddleware struct {
	authService *auth.Service
	sessionRepo *repository.AuthSessionRepository
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(authService *auth.Service, sessionRepo *repository.AuthSessionRepository) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		sessionRepo: sessionRepo,
	}
}

// Authenticate validates the JWT token and adds user info to context. The
// account ID is taken from the token claims and becomes the tenant scope
// of everything downstream.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondWithError(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			respondWithError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		token := parts[1]

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		// Check if session exists (validates that token hasn't been invalidated)
		if claims.ID != "" {
			if _, err := m.sessionRepo.GetByJTI(claims.ID); err != nil {
				respondWithError(w, http.StatusUnauthorized, "Token has been invalidated")
				return
			}
		}

		ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, AccountIDKey, claims.AccountID)
		ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
		ctx = context.WithValue(ctx, RawTokenKey, token)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID retrieves the user ID from the request context
func GetUserID(r *http.Request) (uint, bool) {
	userID, ok := r.Context().Value(UserIDKey).(uint)
	return userID, ok
}

// GetAccountID retrieves the account ID from the request context
func GetAccountID(r *http.Request) (uint, bool) {
	accountID, ok := r.Context().Value(AccountIDKey).(uint)
	return accountID, ok
}

// GetUserEmail retrieves the user email from the request context
func GetUserEmail(r *http.Request) (string, bool) {
	email, ok := r.Context().Value(UserEmailKey).(string)
	return email, ok
}

// GetRawToken retrieves the bearer token the request authenticated with
func GetRawToken(r *http.Request) (string, bool) {
	token, ok := r.Context().Value(RawTokenKey).(string)
	return token, ok
}

// Helper function to respond with JSON error
func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
