package handlers

import (
	"net/http"
	"strconv"

	"calibra/internal/middleware"
	"calibra/internal/service"
)

// AuditHandler handles audit log requests
type AuditHandler struct {
	auditSvc *service.AuditService
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditSvc *service.AuditService) *AuditHandler {
	return &AuditHandler{
		auditSvc: auditSvc,
	}
}

func pagination(r *http.Request) (limit, offset int) {
	page := 1
	limit = 50

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	return limit, (page - 1) * limit
}

// ListAuditLogs lists the account's audit trail with pagination (admin only)
// @Summary List audit logs
// @Description Get a paginated list of the account's audit trail (admin only)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(50)
// @Success 200 {array} models.AuditLog "Audit logs"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden - admin only"
// @Router /admin/audit-logs [get]
func (h *AuditHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	limit, offset := pagination(r)

	logs, err := h.auditSvc.GetByAccount(accountID, limit, offset)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, logs)
}

// GetSessionAuditTrail lists the audit entries of one calibration session
// @Summary Get session audit trail
// @Description Get the audit entries recorded against a calibration session, newest first
// @Tags Calibration
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(50)
// @Success 200 {array} models.AuditLog "Audit logs"
// @Failure 400 {object} map[string]string "Invalid session ID"
// @Router /calibration/sessions/{id}/audit [get]
func (h *AuditHandler) GetSessionAuditTrail(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidSessionID)
		return
	}

	limit, offset := pagination(r)

	logs, err := h.auditSvc.GetByEntity(accountID, "calibration_session", strconv.FormatUint(uint64(id), 10), limit, offset)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, logs)
}
