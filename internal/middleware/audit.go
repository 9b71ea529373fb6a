package middleware

import (
	"database/sql"
	"net/http"

	"github.com/google/uuid"

	"calibra/internal/models"
	"calibra/internal/repository"
)

// AuditMiddleware logs security-related actions. Route-level auditing
// covers authentication events; domain operations write richer entries
// through the audit service instead.
type AuditMiddleware struct {
	auditRepo *repository.AuditRepository
}

// NewAuditMiddleware creates a new audit middleware
func NewAuditMiddleware(db *sql.DB) *AuditMiddleware {
	return &AuditMiddleware{
		auditRepo: repository.NewAuditRepository(db),
	}
}

// Log logs an action to the audit log after the handler runs
func (m *AuditMiddleware) Log(action, entityType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)

			var userID *uint
			if id, ok := GetUserID(r); ok {
				userID = &id
			}
			accountID, _ := GetAccountID(r)

			entry := &models.AuditLog{
				ID:         uuid.NewString(),
				AccountID:  accountID,
				UserID:     userID,
				Action:     action,
				EntityType: entityType,
				EntityID:   r.PathValue("id"),
				IPAddress:  getIP(r),
				UserAgent:  r.UserAgent(),
			}

			// Save to database (ignore errors to not block the request)
			_ = m.auditRepo.Create(entry)
		})
	}
}
