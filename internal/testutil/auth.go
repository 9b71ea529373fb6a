package testutil

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"calibra/internal/auth"
	"calibra/internal/config"
	"calibra/internal/models"

	"github.com/google/uuid"
)

// AuthHelper issues tokens against an ephemeral ECDSA keypair and backs
// them with auth_sessions rows so the revocation check passes
type AuthHelper struct {
	Service *auth.Service
}

// NewAuthHelper creates an auth helper with generated keys
func NewAuthHelper() *AuthHelper {
	return &AuthHelper{
		Service: auth.NewService(&config.JWTConfig{
			Expiration:        time.Hour,
			RefreshExpiration: 24 * time.Hour,
		}),
	}
}

// IssueToken generates an access token for a user and records its session
func (h *AuthHelper) IssueToken(t *testing.T, db *sql.DB, user *models.User) string {
	t.Helper()

	token, jti, err := h.Service.GenerateToken(user.ID, user.AccountID, user.Email)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO auth_sessions (id, user_id, jti, token_type, expires_at)
		VALUES ($1, $2, $3, 'access', $4)
	`, uuid.NewString(), user.ID, jti, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Failed to record auth session: %v", err)
	}

	return token
}

// AddAuthHeader adds an authorization header to the request
func (h *AuthHelper) AddAuthHeader(t *testing.T, db *sql.DB, req *http.Request, user *models.User) {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+h.IssueToken(t, db, user))
}

// TestResponse holds response data for assertions
type TestResponse struct {
	*httptest.ResponseRecorder
}

// NewTestResponse creates a new test response recorder
func NewTestResponse() *TestResponse {
	return &TestResponse{
		ResponseRecorder: httptest.NewRecorder(),
	}
}

// AssertStatus asserts the HTTP status code
func (r *TestResponse) AssertStatus(t *testing.T, expected int) {
	t.Helper()

	if r.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, r.Code, r.Body.String())
	}
}

// AssertStatusOK asserts 200 OK
func (r *TestResponse) AssertStatusOK(t *testing.T) {
	r.AssertStatus(t, http.StatusOK)
}

// AssertStatusCreated asserts 201 Created
func (r *TestResponse) AssertStatusCreated(t *testing.T) {
	r.AssertStatus(t, http.StatusCreated)
}

// AssertStatusUnauthorized asserts 401 Unauthorized
func (r *TestResponse) AssertStatusUnauthorized(t *testing.T) {
	r.AssertStatus(t, http.StatusUnauthorized)
}

// AssertStatusForbidden asserts 403 Forbidden
func (r *TestResponse) AssertStatusForbidden(t *testing.T) {
	r.AssertStatus(t, http.StatusForbidden)
}

// AssertStatusNotFound asserts 404 Not Found
func (r *TestResponse) AssertStatusNotFound(t *testing.T) {
	r.AssertStatus(t, http.StatusNotFound)
}

// AssertStatusConflict asserts 409 Conflict
func (r *TestResponse) AssertStatusConflict(t *testing.T) {
	r.AssertStatus(t, http.StatusConflict)
}

// AssertStatusBadRequest asserts 400 Bad Request
func (r *TestResponse) AssertStatusBadRequest(t *testing.T) {
	r.AssertStatus(t, http.StatusBadRequest)
}
