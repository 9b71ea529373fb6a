package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"calibra/internal/handlers"
	"calibra/internal/repository"
	"calibra/internal/service"
	"calibra/internal/testutil"
)

type authEnv struct {
	containers *testutil.TestContainers
	fixtures   *testutil.Fixtures
	mux        *http.ServeMux
}

func setupAuth(t *testing.T) *authEnv {
	t.Helper()

	containers := testutil.SetupPostgres(t)
	t.Cleanup(func() { containers.Cleanup(t) })

	fixtures := testutil.SetupFixtures(t, containers.DB)
	authHelper := testutil.NewAuthHelper()

	authSvc := service.NewAuthService(
		repository.NewUserRepository(containers.DB),
		repository.NewAuthSessionRepository(containers.DB),
		authHelper.Service,
		time.Hour,
		24*time.Hour,
	)
	auditSvc := service.NewAuditService(repository.NewAuditRepository(containers.DB))
	authHandler := handlers.NewAuthHandler(authSvc, auditSvc)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)

	return &authEnv{containers: containers, fixtures: fixtures, mux: mux}
}

func (env *authEnv) login(t *testing.T, email, password string) *testutil.TestResponse {
	t.Helper()

	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		t.Fatalf("Failed to marshal login request: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp := testutil.NewTestResponse()
	env.mux.ServeHTTP(resp.ResponseRecorder, req)
	return resp
}

func (env *authEnv) countAuditRows(t *testing.T, action, entityID string) int {
	t.Helper()

	var count int
	err := env.containers.DB.QueryRow(
		"SELECT COUNT(*) FROM audit_logs WHERE action = $1 AND entity_id = $2",
		action, entityID,
	).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to count audit rows: %v", err)
	}
	return count
}

func TestLoginWritesAuditEntry(t *testing.T) {
	env := setupAuth(t)

	resp := env.login(t, env.fixtures.AdminUser.Email, "password123")
	resp.AssertStatusOK(t)

	if got := env.countAuditRows(t, "user.login", env.fixtures.AdminUser.Email); got != 1 {
		t.Errorf("Expected 1 login audit entry, got %d", got)
	}
}

func TestFailedLoginAuditIsTenantAttributed(t *testing.T) {
	env := setupAuth(t)

	resp := env.login(t, env.fixtures.AdminUser.Email, "wrong-password")
	resp.AssertStatusUnauthorized(t)

	// The entry must actually persist, under the email's account.
	var accountID uint
	err := env.containers.DB.QueryRow(
		"SELECT account_id FROM audit_logs WHERE action = $1 AND entity_id = $2",
		"user.login.failed", env.fixtures.AdminUser.Email,
	).Scan(&accountID)
	if err != nil {
		t.Fatalf("Expected a persisted failed-login audit entry: %v", err)
	}
	if accountID != env.fixtures.Account.ID {
		t.Errorf("Expected failed login attributed to account %d, got %d", env.fixtures.Account.ID, accountID)
	}
}

func TestFailedLoginUnknownEmailSkipsAudit(t *testing.T) {
	env := setupAuth(t)

	resp := env.login(t, "nobody@nowhere.test", "whatever")
	resp.AssertStatusUnauthorized(t)

	// No tenant to attribute to, so no audit row is attempted.
	if got := env.countAuditRows(t, "user.login.failed", "nobody@nowhere.test"); got != 0 {
		t.Errorf("Expected no audit entry for unknown email, got %d", got)
	}
}
