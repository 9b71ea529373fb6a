package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"calibra/internal/middleware"
	"calibra/internal/service"
	"calibra/pkg/validator"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService *service.AuthService
	auditSvc    *service.AuditService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, auditSvc *service.AuditService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		auditSvc:    auditSvc,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles user login
// @Summary User login
// @Description Authenticate user and return JWT tokens
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} map[string]interface{} "Login successful with tokens"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	if err := validator.ValidateStruct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	pair, user, err := h.authService.Login(req.Email, req.Password, getIP(r), r.UserAgent())
	if err != nil {
		slog.Warn("Login failed", "email", req.Email, "ip", getIP(r))
		// Audit rows are tenant-scoped; a failed login is attributed to the
		// email's account. Unknown emails leave only the log line above.
		if accountID, ok := h.authService.ResolveAccountID(req.Email); ok {
			h.auditSvc.Log(accountID, nil, "user.login.failed", "user", req.Email, nil, getIP(r), r.UserAgent())
		}
		respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	slog.Info("User logged in", "user_id", user.ID, "account_id", user.AccountID, "ip", getIP(r))
	h.auditSvc.Log(user.AccountID, &user.ID, "user.login", "user", user.Email, nil, getIP(r), r.UserAgent())

	h.setRefreshCookie(w, r, pair.RefreshToken)

	roles, _ := h.authService.GetUserRoles(user.ID)

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    "Bearer",
		"user": map[string]interface{}{
			"id":         user.ID,
			"account_id": user.AccountID,
			"email":      user.Email,
			"first_name": user.FirstName,
			"last_name":  user.LastName,
			"is_active":  user.IsActive,
			"created_at": user.CreatedAt,
			"roles":      roles,
		},
	})
}

// RefreshToken handles token refresh
// @Summary Refresh access token
// @Description Rotate the refresh token and return a new token pair
// @Tags Authentication
// @Produce json
// @Success 200 {object} map[string]interface{} "New token pair"
// @Failure 401 {object} map[string]string "Invalid refresh token"
// @Router /auth/refresh [post]
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("refresh_token")
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Refresh token not found")
		return
	}

	pair, user, err := h.authService.RefreshToken(cookie.Value, getIP(r), r.UserAgent())
	if err != nil {
		// Clear invalid cookie
		http.SetCookie(w, &http.Cookie{
			Name:     "refresh_token",
			Value:    "",
			Path:     AuthAPIBasePath,
			MaxAge:   -1,
			HttpOnly: true,
		})
		respondWithError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	h.setRefreshCookie(w, r, pair.RefreshToken)

	roles, _ := h.authService.GetUserRoles(user.ID)

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    "Bearer",
		"user": map[string]interface{}{
			"id":         user.ID,
			"account_id": user.AccountID,
			"email":      user.Email,
			"first_name": user.FirstName,
			"last_name":  user.LastName,
			"is_active":  user.IsActive,
			"created_at": user.CreatedAt,
			"roles":      roles,
		},
	})
}

// Logout handles user logout
// @Summary User logout
// @Description Revoke the current tokens and clear the refresh cookie
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string "Logout successful"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, hasUserID := middleware.GetUserID(r)
	accountID, _ := middleware.GetAccountID(r)

	if token, ok := middleware.GetRawToken(r); ok {
		if err := h.authService.Logout(token); err != nil {
			slog.Error("Failed to revoke access token during logout", "error", err)
		}
	}
	if cookie, err := r.Cookie("refresh_token"); err == nil && cookie.Value != "" {
		if err := h.authService.Logout(cookie.Value); err != nil {
			slog.Error("Failed to revoke refresh token during logout", "error", err)
		}
	}

	if hasUserID {
		slog.Info("User logged out", "user_id", userID, "ip", getIP(r))
		h.auditSvc.Log(accountID, &userID, "user.logout", "user", "", nil, getIP(r), r.UserAgent())
	}

	// Clear refresh token cookie
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     AuthAPIBasePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    token,
		Path:     AuthAPIBasePath,
		MaxAge:   7 * 24 * 60 * 60, // 7 days
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

// Helper functions

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := JSONResponse(w, payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func getIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		return forwarded
	}
	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
