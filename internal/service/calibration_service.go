package service

import (
	"fmt"
	"log/slog"
	"time"

	"calibra/internal/calibration"
	"calibra/internal/email"
	"calibra/internal/models"
	"calibra/internal/repository"
)

const (
	minScore = 1.0
	maxScore = 5.0
)

// Actor identifies the authenticated caller of a service operation. The
// account ID comes from the token, never from the request body.
type Actor struct {
	UserID    uint
	AccountID uint
	IPAddress string
	UserAgent string
}

// EvidenceVault persists tamper-evident copies of sensitive calibration
// records. A nil vault disables secure archiving; the primary rows are
// written either way.
type EvidenceVault interface {
	SealJustification(sessionID, ratingID uint, text string) (int64, error)
	SealCloseRecord(sessionID uint, payload any) error
}

// AdjustmentRequest carries the fields of the propose and revise operations
type AdjustmentRequest struct {
	RatingID        uint    `json:"rating_id"`
	CalibratedValue float64 `json:"calibrated_value"`
	Justification   string  `json:"justification"`
}

// CloseRequest carries the closing protocol's final commit fields. The
// authorized flag is the budgetary-impact acknowledgment from the cost
// phase; the confirmation is the operator's typed text.
type CloseRequest struct {
	Authorized   bool   `json:"authorized"`
	Confirmation string `json:"confirmation"`
}

// ClosePreview is the read-only walkthrough payload: the evidence and cost
// phases of the closing protocol, computed from the current pending ledger.
type ClosePreview struct {
	Evidence            calibration.Evidence `json:"evidence"`
	Impact              calibration.Impact   `json:"impact"`
	PendingAdjustments  int                  `json:"pending_adjustments"`
	ConfirmationLiteral string               `json:"confirmation_literal"`
}

// CloseResult is the outcome of a committed close
type CloseResult struct {
	Session            *models.CalibrationSession `json:"session"`
	AppliedAdjustments int                        `json:"applied_adjustments"`
	Evidence           calibration.Evidence       `json:"evidence"`
	Impact             calibration.Impact         `json:"impact"`
}

// CancelResult is the outcome of a cancellation
type CancelResult struct {
	DiscardedAdjustments int `json:"discarded_adjustments"`
}

// CalibrationService handles calibration session business logic
type CalibrationService struct {
	sessionRepo     *repository.CalibrationSessionRepository
	participantRepo *repository.ParticipantRepository
	adjustmentRepo  *repository.AdjustmentRepository
	ratingRepo      *repository.RatingRepository
	userRepo        *repository.UserRepository
	auditSvc        *AuditService
	emailSvc        *email.Service
	vault           EvidenceVault
}

// NewCalibrationService creates a new calibration service. The email
// service and vault are optional; nil disables invitations and secure
// archiving respectively.
func NewCalibrationService(
	sessionRepo *repository.CalibrationSessionRepository,
	participantRepo *repository.ParticipantRepository,
	adjustmentRepo *repository.AdjustmentRepository,
	ratingRepo *repository.RatingRepository,
	userRepo *repository.UserRepository,
	auditSvc *AuditService,
	emailSvc *email.Service,
	vault EvidenceVault,
) *CalibrationService {
	return &CalibrationService{
		sessionRepo:     sessionRepo,
		participantRepo: participantRepo,
		adjustmentRepo:  adjustmentRepo,
		ratingRepo:      ratingRepo,
		userRepo:        userRepo,
		auditSvc:        auditSvc,
		emailSvc:        emailSvc,
		vault:           vault,
	}
}

// CreateSession creates a draft session for a review cycle. The creator is
// enrolled as the first participant.
func (s *CalibrationService) CreateSession(actor Actor, session *models.CalibrationSession) (*models.CalibrationSession, error) {
	if session.Name == "" {
		return nil, fmt.Errorf("%w: session name is required", ErrInvalidArgument)
	}

	if _, err := s.ratingRepo.GetCycle(session.CycleID, actor.AccountID); err != nil {
		return nil, fmt.Errorf("review cycle %d: %w", session.CycleID, err)
	}

	session.AccountID = actor.AccountID
	session.Status = models.SessionStatusDraft
	session.CreatedBy = actor.UserID

	if err := s.sessionRepo.Create(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.participantRepo.Add(&models.CalibrationParticipant{
		SessionID: session.ID,
		UserID:    actor.UserID,
	}); err != nil {
		slog.Warn("Failed to enroll session creator", "session_id", session.ID, "error", err)
	}

	s.audit(actor, "calibration_session.created", session.ID, map[string]any{
		"name":     session.Name,
		"cycle_id": session.CycleID,
	})

	return session, nil
}

// GetSession retrieves the full session view: the session, its
// participants in invitation order and its adjustments newest first.
func (s *CalibrationService) GetSession(actor Actor, id uint) (*models.SessionDetail, error) {
	session, err := s.sessionRepo.GetByID(id, actor.AccountID)
	if err != nil {
		return nil, err
	}

	participants, err := s.participantRepo.GetBySession(session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	adjustments, err := s.adjustmentRepo.GetBySession(session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load adjustments: %w", err)
	}

	return &models.SessionDetail{
		Session:          *session,
		Participants:     participants,
		Adjustments:      adjustments,
		ParticipantCount: len(participants),
		AdjustmentCount:  len(adjustments),
	}, nil
}

// ListSessions retrieves all sessions of the actor's account
func (s *CalibrationService) ListSessions(actor Actor) ([]models.CalibrationSession, error) {
	return s.sessionRepo.ListByAccount(actor.AccountID)
}

// UpdateSession applies a partial update. Closed sessions are immutable;
// the only status change a patch may request is starting a draft session.
func (s *CalibrationService) UpdateSession(actor Actor, id uint, patch models.SessionPatch) (*models.CalibrationSession, error) {
	session, err := s.sessionRepo.GetByID(id, actor.AccountID)
	if err != nil {
		return nil, err
	}

	if session.IsClosed() {
		return nil, fmt.Errorf("session %d is closed: %w", id, ErrConflict)
	}

	if patch.Name != nil && *patch.Name == "" {
		return nil, fmt.Errorf("%w: session name is required", ErrInvalidArgument)
	}

	started, ok := patch.Apply(session, time.Now())
	if !ok {
		return nil, fmt.Errorf("invalid status transition to %q: %w", *patch.Status, ErrConflict)
	}

	if err := s.sessionRepo.Update(session); err != nil {
		return nil, err
	}

	action := "calibration_session.updated"
	if started {
		action = "calibration_session.started"
	}
	s.audit(actor, action, session.ID, nil)

	return session, nil
}

// AddParticipant enrolls a user of the same account in an open session and
// sends the invitation email.
func (s *CalibrationService) AddParticipant(actor Actor, sessionID, userID uint) (*models.CalibrationParticipant, error) {
	session, err := s.sessionRepo.GetByID(sessionID, actor.AccountID)
	if err != nil {
		return nil, err
	}
	if session.IsClosed() {
		return nil, fmt.Errorf("session %d is closed: %w", sessionID, ErrConflict)
	}

	user, err := s.userRepo.GetByID(userID, actor.AccountID)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", userID, err)
	}

	participant := &models.CalibrationParticipant{
		SessionID: session.ID,
		UserID:    user.ID,
	}
	if err := s.participantRepo.Add(participant); err != nil {
		return nil, err
	}

	if s.emailSvc != nil {
		if err := s.emailSvc.SendSessionInvitation(user.Email, user.FirstName, session.Name, session.ScheduledAt); err != nil {
			slog.Warn("Failed to send session invitation", "session_id", session.ID, "user_id", user.ID, "error", err)
		}
	}

	s.audit(actor, "calibration_session.participant_added", session.ID, map[string]any{"user_id": user.ID})

	return participant, nil
}

// RemoveParticipant unenrolls a user from an open session
func (s *CalibrationService) RemoveParticipant(actor Actor, sessionID, userID uint) error {
	session, err := s.sessionRepo.GetByID(sessionID, actor.AccountID)
	if err != nil {
		return err
	}
	if session.IsClosed() {
		return fmt.Errorf("session %d is closed: %w", sessionID, ErrConflict)
	}

	if err := s.participantRepo.Remove(session.ID, userID); err != nil {
		return err
	}

	s.audit(actor, "calibration_session.participant_removed", session.ID, map[string]any{"user_id": userID})
	return nil
}

// CreateAdjustment records a provisional score change for one rating. The
// original value is captured from the rating at proposal time and never
// rewritten. At most one pending adjustment may exist per rating within a
// session.
func (s *CalibrationService) CreateAdjustment(actor Actor, sessionID uint, req AdjustmentRequest) (*models.CalibrationAdjustment, error) {
	session, err := s.sessionRepo.GetByID(sessionID, actor.AccountID)
	if err != nil {
		return nil, err
	}
	if session.IsClosed() {
		return nil, fmt.Errorf("session %d is closed: %w", sessionID, ErrConflict)
	}

	if err := validateAdjustment(req); err != nil {
		return nil, err
	}

	rating, err := s.ratingRepo.GetByID(req.RatingID, actor.AccountID)
	if err != nil {
		return nil, fmt.Errorf("rating %d: %w", req.RatingID, err)
	}
	if rating.CycleID != session.CycleID {
		return nil, fmt.Errorf("%w: rating %d belongs to a different review cycle", ErrInvalidArgument, req.RatingID)
	}

	adjustment := &models.CalibrationAdjustment{
		SessionID:       session.ID,
		RatingID:        rating.ID,
		OriginalValue:   rating.Score,
		CalibratedValue: req.CalibratedValue,
		Justification:   req.Justification,
		Status:          models.AdjustmentStatusPending,
		CreatedBy:       actor.UserID,
	}

	if s.vault != nil {
		recordID, err := s.vault.SealJustification(session.ID, rating.ID, req.Justification)
		if err != nil {
			slog.Warn("Failed to seal adjustment justification", "session_id", session.ID, "rating_id", rating.ID, "error", err)
		} else {
			adjustment.EncryptedJustificationID = &recordID
		}
	}

	if err := s.adjustmentRepo.Create(adjustment); err != nil {
		return nil, err
	}

	s.audit(actor, "calibration_adjustment.created", session.ID, map[string]any{
		"adjustment_id":    adjustment.ID,
		"rating_id":        rating.ID,
		"original_value":   adjustment.OriginalValue,
		"calibrated_value": adjustment.CalibratedValue,
	})

	return adjustment, nil
}

// UpdateAdjustment revises a pending adjustment's calibrated value and
// justification. Applied adjustments are immutable.
func (s *CalibrationService) UpdateAdjustment(actor Actor, sessionID, adjustmentID uint, req AdjustmentRequest) (*models.CalibrationAdjustment, error) {
	session, err := s.sessionRepo.GetByID(sessionID, actor.AccountID)
	if err != nil {
		return nil, err
	}
	if session.IsClosed() {
		return nil, fmt.Errorf("session %d is closed: %w", sessionID, ErrConflict)
	}

	if err := validateAdjustment(req); err != nil {
		return nil, err
	}

	adjustment, err := s.adjustmentRepo.GetByID(adjustmentID, session.ID)
	if err != nil {
		return nil, err
	}
	if adjustment.Status != models.AdjustmentStatusPending {
		return nil, fmt.Errorf("adjustment %d is already applied: %w", adjustmentID, ErrConflict)
	}

	adjustment.CalibratedValue = req.CalibratedValue
	adjustment.Justification = req.Justification

	if s.vault != nil {
		recordID, err := s.vault.SealJustification(session.ID, adjustment.RatingID, req.Justification)
		if err != nil {
			slog.Warn("Failed to seal adjustment justification", "session_id", session.ID, "rating_id", adjustment.RatingID, "error", err)
		} else {
			adjustment.EncryptedJustificationID = &recordID
		}
	}

	if err := s.adjustmentRepo.Update(adjustment); err != nil {
		return nil, err
	}

	s.audit(actor, "calibration_adjustment.updated", session.ID, map[string]any{
		"adjustment_id":    adjustment.ID,
		"calibrated_value": adjustment.CalibratedValue,
	})

	return adjustment, nil
}

// DeleteAdjustment discards a pending adjustment
func (s *CalibrationService) DeleteAdjustment(actor Actor, sessionID, adjustmentID uint) error {
	session, err := s.sessionRepo.GetByID(sessionID, actor.AccountID)
	if err != nil {
		return err
	}
	if session.IsClosed() {
		return fmt.Errorf("session %d is closed: %w", sessionID, ErrConflict)
	}

	if err := s.adjustmentRepo.Delete(adjustmentID, session.ID); err != nil {
		return err
	}

	s.audit(actor, "calibration_adjustment.deleted", session.ID, map[string]any{"adjustment_id": adjustmentID})
	return nil
}

// ClosePreview computes the evidence and cost phases of the closing
// protocol from the current pending ledger, without touching anything.
func (s *CalibrationService) ClosePreview(actor Actor, sessionID uint) (*ClosePreview, error) {
	session, err := s.sessionRepo.GetByID(sessionID, actor.AccountID)
	if err != nil {
		return nil, err
	}
	if session.IsClosed() {
		return nil, fmt.Errorf("session %d is closed: %w", sessionID, ErrConflict)
	}

	original, calibrated, pendingCount, err := s.sessionScores(session)
	if err != nil {
		return nil, err
	}

	return &ClosePreview{
		Evidence:            calibration.BuildEvidence(original, calibrated),
		Impact:              calibration.ComputeImpact(calibration.AggregateBonusFactor(original), calibration.AggregateBonusFactor(calibrated)),
		PendingAdjustments:  pendingCount,
		ConfirmationLiteral: calibration.ConfirmationLiteral,
	}, nil
}

// CloseSession commits the closing protocol: it re-runs the phase machine
// against the request, then applies every pending adjustment to its rating
// and closes the session in one transaction. The repository re-checks the
// session status inside that transaction, so a concurrent close or cancel
// surfaces as ErrConflict no matter what this method observed earlier.
func (s *CalibrationService) CloseSession(actor Actor, sessionID uint, req CloseRequest) (*CloseResult, error) {
	session, err := s.sessionRepo.GetByID(sessionID, actor.AccountID)
	if err != nil {
		return nil, err
	}
	if session.IsClosed() {
		return nil, fmt.Errorf("session %d is closed: %w", sessionID, ErrConflict)
	}

	if err := runClosingProtocol(req); err != nil {
		return nil, err
	}

	original, calibrated, _, err := s.sessionScores(session)
	if err != nil {
		return nil, err
	}
	evidence := calibration.BuildEvidence(original, calibrated)
	impact := calibration.ComputeImpact(calibration.AggregateBonusFactor(original), calibration.AggregateBonusFactor(calibrated))

	closed, applied, err := s.sessionRepo.Close(session.ID, actor.AccountID)
	if err != nil {
		return nil, err
	}

	result := &CloseResult{
		Session:            closed,
		AppliedAdjustments: applied,
		Evidence:           evidence,
		Impact:             impact,
	}

	s.audit(actor, "calibration_session.closed", closed.ID, map[string]any{
		"applied_adjustments":  applied,
		"deviation_correction": evidence.DeviationCorrection,
		"bonus_factor_delta":   impact.DeltaPct,
		"variance_warning":     impact.VarianceWarning,
	})

	if s.vault != nil {
		if err := s.vault.SealCloseRecord(closed.ID, result); err != nil {
			slog.Warn("Failed to seal close record", "session_id", closed.ID, "error", err)
		}
	}

	return result, nil
}

// CancelSession deletes an open session, its participants and its pending
// adjustments. Ratings are untouched; the audit entry is the only durable
// trace.
func (s *CalibrationService) CancelSession(actor Actor, sessionID uint) (*CancelResult, error) {
	discarded, err := s.sessionRepo.Cancel(sessionID, actor.AccountID)
	if err != nil {
		return nil, err
	}

	s.audit(actor, "calibration_session.cancelled", sessionID, map[string]any{
		"discarded_adjustments": discarded,
	})

	return &CancelResult{DiscardedAdjustments: discarded}, nil
}

// runClosingProtocol replays the phase machine from the commit request.
// The walkthrough happens client-side; the server refuses the commit
// unless the same walkthrough would have enabled it.
func runClosingProtocol(req CloseRequest) error {
	p := calibration.StartProtocol()
	p, err := p.Advance()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	if req.Authorized {
		p = p.AcknowledgeCost()
	}
	p, err = p.Advance()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	p = p.WithConfirmation(req.Confirmation)
	if !p.CanCommit() {
		return fmt.Errorf("%w: confirmation text does not match %q", ErrInvalidArgument, calibration.ConfirmationLiteral)
	}

	return nil
}

// sessionScores loads the cycle's ratings and returns the score set before
// and after overlaying the session's pending calibrated values.
func (s *CalibrationService) sessionScores(session *models.CalibrationSession) (original, calibrated []float64, pending int, err error) {
	ratings, err := s.ratingRepo.GetByCycle(session.CycleID, session.AccountID)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to load ratings: %w", err)
	}

	overlays, err := s.adjustmentRepo.GetPendingBySession(session.ID)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to load pending adjustments: %w", err)
	}

	original = make([]float64, 0, len(ratings))
	calibrated = make([]float64, 0, len(ratings))
	for _, rating := range ratings {
		original = append(original, rating.Score)
		if adjustment, ok := overlays[rating.ID]; ok {
			calibrated = append(calibrated, adjustment.CalibratedValue)
		} else {
			calibrated = append(calibrated, rating.Score)
		}
	}

	return original, calibrated, len(overlays), nil
}

func validateAdjustment(req AdjustmentRequest) error {
	if req.CalibratedValue < minScore || req.CalibratedValue > maxScore {
		return fmt.Errorf("%w: calibrated value must be between %.0f and %.0f", ErrInvalidArgument, minScore, maxScore)
	}
	if req.Justification == "" {
		return fmt.Errorf("%w: justification is required", ErrInvalidArgument)
	}
	return nil
}

func (s *CalibrationService) audit(actor Actor, action string, sessionID uint, details map[string]any) {
	if s.auditSvc == nil {
		return
	}
	userID := actor.UserID
	s.auditSvc.Log(actor.AccountID, &userID, action, "calibration_session", fmt.Sprint(sessionID), details, actor.IPAddress, actor.UserAgent)
}
