package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"calibra/internal/middleware"
	"calibra/internal/models"
	"calibra/internal/service"
	"calibra/pkg/validator"
)

// CalibrationHandler handles calibration session requests
type CalibrationHandler struct {
	calibrationSvc *service.CalibrationService
}

// NewCalibrationHandler creates a new calibration handler
func NewCalibrationHandler(calibrationSvc *service.CalibrationService) *CalibrationHandler {
	return &CalibrationHandler{
		calibrationSvc: calibrationSvc,
	}
}

// CreateSessionRequest represents a session creation request
type CreateSessionRequest struct {
	CycleID     uint       `json:"cycle_id" validate:"required"`
	Name        string     `json:"name" validate:"required,max=200"`
	Description *string    `json:"description,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// AddParticipantRequest represents a participant enrollment request
type AddParticipantRequest struct {
	UserID uint `json:"user_id" validate:"required"`
}

// actor builds the service actor from the authenticated request
func actor(r *http.Request) (service.Actor, bool) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		return service.Actor{}, false
	}
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{
		UserID:    userID,
		AccountID: accountID,
		IPAddress: getIP(r),
		UserAgent: r.UserAgent(),
	}, true
}

func pathID(r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// CreateSession creates a calibration session
// @Summary Create calibration session
// @Description Create a draft calibration session for a review cycle
// @Tags Calibration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateSessionRequest true "Session details"
// @Success 201 {object} models.CalibrationSession "Created session"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 404 {object} map[string]string "Review cycle not found"
// @Router /calibration/sessions [post]
func (h *CalibrationHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	if err := validator.ValidateStruct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	session := &models.CalibrationSession{
		CycleID:     req.CycleID,
		Name:        validator.SanitizeString(req.Name),
		Description: req.Description,
		ScheduledAt: req.ScheduledAt,
	}

	created, err := h.calibrationSvc.CreateSession(act, session)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

// ListSessions lists the account's calibration sessions
// @Summary List calibration sessions
// @Description List all calibration sessions of the caller's account
// @Tags Calibration
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.CalibrationSession "Sessions"
// @Router /calibration/sessions [get]
func (h *CalibrationHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	sessions, err := h.calibrationSvc.ListSessions(act)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, sessions)
}

// GetSession retrieves one session with participants and adjustments
// @Summary Get calibration session
// @Description Get a session with its participants and adjustment ledger
// @Tags Calibration
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Success 200 {object} models.SessionDetail "Session detail"
// @Failure 404 {object} map[string]string "Session not found"
// @Router /calibration/sessions/{id} [get]
func (h *CalibrationHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidSessionID)
		return
	}

	detail, err := h.calibrationSvc.GetSession(act, id)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, detail)
}

// UpdateSession applies a partial update to a session
// @Summary Update calibration session
// @Description Patch name, description, schedule, or start the session
// @Tags Calibration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Param request body models.SessionPatch true "Fields to update"
// @Success 200 {object} models.CalibrationSession "Updated session"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 404 {object} map[string]string "Session not found"
// @Failure 409 {object} map[string]string "Session closed or invalid transition"
// @Router /calibration/sessions/{id} [patch]
func (h *CalibrationHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidSessionID)
		return
	}

	var patch models.SessionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	session, err := h.calibrationSvc.UpdateSession(act, id, patch)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, session)
}

// CancelSession deletes an open session and its pending adjustments
// @Summary Cancel calibration session
// @Description Delete an open session; pending adjustments are discarded and ratings stay untouched
// @Tags Calibration
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Success 200 {object} service.CancelResult "Discarded adjustment count"
// @Failure 404 {object} map[string]string "Session not found"
// @Failure 409 {object} map[string]string "Session already closed"
// @Router /calibration/sessions/{id} [delete]
func (h *CalibrationHandler) CancelSession(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidSessionID)
		return
	}

	result, err := h.calibrationSvc.CancelSession(act, id)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// AddParticipant enrolls a user in a session
// @Summary Add session participant
// @Description Enroll a user of the same account in an open session
// @Tags Calibration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Param request body AddParticipantRequest true "User to enroll"
// @Success 201 {object} models.CalibrationParticipant "Enrolled participant"
// @Failure 404 {object} map[string]string "Session or user not found"
// @Failure 409 {object} map[string]string "Already enrolled or session closed"
// @Router /calibration/sessions/{id}/participants [post]
func (h *CalibrationHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidSessionID)
		return
	}

	var req AddParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	if err := validator.ValidateStruct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	participant, err := h.calibrationSvc.AddParticipant(act, id, req.UserID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, participant)
}

// RemoveParticipant unenrolls a user from a session
// @Summary Remove session participant
// @Description Unenroll a user from an open session
// @Tags Calibration
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Param userID path int true "User ID"
// @Success 200 {object} map[string]string "Removed"
// @Failure 404 {object} map[string]string "Session or participant not found"
// @Router /calibration/sessions/{id}/participants/{userID} [delete]
func (h *CalibrationHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidSessionID)
		return
	}

	userID, ok := pathID(r, "userID")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := h.calibrationSvc.RemoveParticipant(act, id, userID); err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Participant removed"})
}

// CreateAdjustment proposes a score adjustment
// @Summary Propose adjustment
// @Description Record a provisional score change for one rating of the session's cycle
// @Tags Calibration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Param request body service.AdjustmentRequest true "Adjustment details"
// @Success 201 {object} models.CalibrationAdjustment "Created adjustment"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 404 {object} map[string]string "Session or rating not found"
// @Failure 409 {object} map[string]string "Pending adjustment already exists or session closed"
// @Router /calibration/sessions/{id}/adjustments [post]
func (h *CalibrationHandler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidSessionID)
		return
	}

	var req service.AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	adjustment, err := h.calibrationSvc.CreateAdjustment(act, id, req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, adjustment)
}

// UpdateAdjustment revises a pending adjustment
// @Summary Revise adjustment
// @Description Change the calibrated value and justification of a pending adjustment
// @Tags Calibration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Param adjustmentID path int true "Adjustment ID"
// @Param request body service.AdjustmentRequest true "Adjustment details"
// @Success 200 {object} models.CalibrationAdjustment "Updated adjustment"
// @Failure 404 {object} map[string]string "Adjustment not found"
// @Failure 409 {object} map[string]string "Adjustment applied or session closed"
// @Router /calibration/sessions/{id}/adjustments/{adjustmentID} [put]
func (h *CalibrationHandler) UpdateAdjustment(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidSessionID)
		return
	}

	adjustmentID, ok := pathID(r, "adjustmentID")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid adjustment ID")
		return
	}

	var req service.AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	adjustment, err := h.calibrationSvc.UpdateAdjustment(act, id, adjustmentID, req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, adjustment)
}

// DeleteAdjustment discards a pending adjustment
// @Summary Discard adjustment
// @Description Delete a pending adjustment from the ledger
// @Tags Calibration
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Param adjustmentID path int true "Adjustment ID"
// @Success 200 {object} map[string]string "Deleted"
// @Failure 404 {object} map[string]string "Adjustment not found"
// @Failure 409 {object} map[string]string "Session closed"
// @Router /calibration/sessions/{id}/adjustments/{adjustmentID} [delete]
func (h *CalibrationHandler) DeleteAdjustment(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidSessionID)
		return
	}

	adjustmentID, ok := pathID(r, "adjustmentID")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid adjustment ID")
		return
	}

	if err := h.calibrationSvc.DeleteAdjustment(act, id, adjustmentID); err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Adjustment deleted"})
}

// ClosePreview returns the closing protocol's evidence and cost phases
// @Summary Preview session close
// @Description Compute the distribution evidence and financial impact of the pending ledger without changing anything
// @Tags Calibration
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Success 200 {object} service.ClosePreview "Evidence and impact"
// @Failure 404 {object} map[string]string "Session not found"
// @Failure 409 {object} map[string]string "Session already closed"
// @Router /calibration/sessions/{id}/close-preview [get]
func (h *CalibrationHandler) ClosePreview(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidSessionID)
		return
	}

	preview, err := h.calibrationSvc.ClosePreview(act, id)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, preview)
}

// CloseSession commits the closing protocol
// @Summary Close calibration session
// @Description Apply all pending adjustments to their ratings and close the session. Requires the budgetary-impact acknowledgment and the typed confirmation.
// @Tags Calibration
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Param request body service.CloseRequest true "Acknowledgment and confirmation"
// @Success 200 {object} service.CloseResult "Close outcome"
// @Failure 400 {object} map[string]string "Missing acknowledgment or wrong confirmation"
// @Failure 404 {object} map[string]string "Session not found"
// @Failure 409 {object} map[string]string "Session already closed"
// @Router /calibration/sessions/{id}/close [post]
func (h *CalibrationHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidSessionID)
		return
	}

	var req service.CloseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	result, err := h.calibrationSvc.CloseSession(act, id, req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
