package service

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"calibra/internal/models"
	"calibra/internal/repository"
)

// AuditService handles audit logging. Writes are best-effort: a failed
// audit insert is logged but never fails the operation it describes.
type AuditService struct {
	auditRepo *repository.AuditRepository
}

// NewAuditService creates a new audit service
func NewAuditService(auditRepo *repository.AuditRepository) *AuditService {
	return &AuditService{
		auditRepo: auditRepo,
	}
}

// Log creates an audit log entry. The details value is serialized to JSON;
// a nil details writes an empty payload.
func (s *AuditService) Log(accountID uint, userID *uint, action, entityType, entityID string, details any, ipAddress, userAgent string) {
	var payload string
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			slog.Error("Failed to serialize audit details", "action", action, "error", err)
		} else {
			payload = string(b)
		}
	}

	entry := &models.AuditLog{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    payload,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
	}

	if err := s.auditRepo.Create(entry); err != nil {
		slog.Error("Failed to write audit log", "action", action, "entity_type", entityType, "entity_id", entityID, "error", err)
	}
}

// GetByEntity retrieves the audit trail of one entity
func (s *AuditService) GetByEntity(accountID uint, entityType, entityID string, limit, offset int) ([]models.AuditLog, error) {
	return s.auditRepo.GetByEntity(accountID, entityType, entityID, limit, offset)
}

// GetByAccount retrieves an account's audit trail
func (s *AuditService) GetByAccount(accountID uint, limit, offset int) ([]models.AuditLog, error) {
	return s.auditRepo.GetByAccount(accountID, limit, offset)
}
