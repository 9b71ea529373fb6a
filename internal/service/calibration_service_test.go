package service_test

import (
	"errors"
	"fmt"
	"testing"

	"calibra/internal/calibration"
	"calibra/internal/models"
	"calibra/internal/repository"
	"calibra/internal/service"
	"calibra/internal/testutil"
)

type serviceEnv struct {
	containers *testutil.TestContainers
	fixtures   *testutil.Fixtures
	svc        *service.CalibrationService
	auditSvc   *service.AuditService
	actor      service.Actor
}

func setupService(t *testing.T) *serviceEnv {
	t.Helper()

	containers := testutil.SetupPostgres(t)
	t.Cleanup(func() { containers.Cleanup(t) })

	fixtures := testutil.SetupFixtures(t, containers.DB)

	auditSvc := service.NewAuditService(repository.NewAuditRepository(containers.DB))
	svc := service.NewCalibrationService(
		repository.NewCalibrationSessionRepository(containers.DB),
		repository.NewParticipantRepository(containers.DB),
		repository.NewAdjustmentRepository(containers.DB),
		repository.NewRatingRepository(containers.DB),
		repository.NewUserRepository(containers.DB),
		auditSvc,
		nil, // email disabled
		nil, // evidence vault disabled
	)

	return &serviceEnv{
		containers: containers,
		fixtures:   fixtures,
		svc:        svc,
		auditSvc:   auditSvc,
		actor: service.Actor{
			UserID:    fixtures.AdminUser.ID,
			AccountID: fixtures.Account.ID,
			IPAddress: "127.0.0.1",
			UserAgent: "go-test",
		},
	}
}

func TestCreateSessionEnrollsCreator(t *testing.T) {
	env := setupService(t)

	session, err := env.svc.CreateSession(env.actor, &models.CalibrationSession{
		CycleID: env.fixtures.Cycle.ID,
		Name:    "H1 Calibration",
	})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if session.Status != models.SessionStatusDraft {
		t.Errorf("Expected draft status, got %s", session.Status)
	}
	if session.AccountID != env.fixtures.Account.ID {
		t.Errorf("Expected account from actor, got %d", session.AccountID)
	}

	detail, err := env.svc.GetSession(env.actor, session.ID)
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if detail.ParticipantCount != 1 {
		t.Fatalf("Expected creator to be enrolled, got %d participants", detail.ParticipantCount)
	}
	if detail.Participants[0].UserID != env.actor.UserID {
		t.Errorf("Expected participant %d, got %d", env.actor.UserID, detail.Participants[0].UserID)
	}
}

func TestCreateSessionRejectsForeignCycle(t *testing.T) {
	env := setupService(t)

	_, err := env.svc.CreateSession(env.actor, &models.CalibrationSession{
		CycleID: env.fixtures.Cycle.ID + 1000,
		Name:    "Orphan Session",
	})
	if !errors.Is(err, service.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown cycle, got %v", err)
	}
}

func TestAdjustmentLedgerLeavesRatingsUntouched(t *testing.T) {
	env := setupService(t)

	session := env.fixtures.CreateSession(t, "Live Session", models.SessionStatusInProgress)
	rating := env.fixtures.Ratings[0]

	adj, err := env.svc.CreateAdjustment(env.actor, session.ID, service.AdjustmentRequest{
		RatingID:        rating.ID,
		CalibratedValue: 2.5,
		Justification:   "normalized against team distribution",
	})
	if err != nil {
		t.Fatalf("Failed to create adjustment: %v", err)
	}
	if adj.OriginalValue != rating.Score {
		t.Errorf("Expected original value %v captured, got %v", rating.Score, adj.OriginalValue)
	}
	if adj.Status != models.AdjustmentStatusPending {
		t.Errorf("Expected pending status, got %s", adj.Status)
	}

	// The rating itself must be untouched while the adjustment is pending.
	var score float64
	if err := env.containers.DB.QueryRow("SELECT score FROM ratings WHERE id = $1", rating.ID).Scan(&score); err != nil {
		t.Fatalf("Failed to read rating: %v", err)
	}
	if score != rating.Score {
		t.Errorf("Expected rating score %v while pending, got %v", rating.Score, score)
	}
}

func TestCreateAdjustmentValidation(t *testing.T) {
	env := setupService(t)

	session := env.fixtures.CreateSession(t, "Live Session", models.SessionStatusInProgress)
	rating := env.fixtures.Ratings[0]

	tests := []struct {
		name string
		req  service.AdjustmentRequest
	}{
		{"value below range", service.AdjustmentRequest{RatingID: rating.ID, CalibratedValue: 0.5, Justification: "too low"}},
		{"value above range", service.AdjustmentRequest{RatingID: rating.ID, CalibratedValue: 5.5, Justification: "too high"}},
		{"missing justification", service.AdjustmentRequest{RatingID: rating.ID, CalibratedValue: 3.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.CreateAdjustment(env.actor, session.ID, tt.req); !errors.Is(err, service.ErrInvalidArgument) {
				t.Errorf("Expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestClosePreviewReportsPendingLedger(t *testing.T) {
	env := setupService(t)

	session := env.fixtures.CreateSession(t, "Preview Session", models.SessionStatusInProgress)
	env.fixtures.CreateAdjustment(t, session.ID, env.fixtures.Ratings[0], 2.0)
	env.fixtures.CreateAdjustment(t, session.ID, env.fixtures.Ratings[4], 4.0)

	preview, err := env.svc.ClosePreview(env.actor, session.ID)
	if err != nil {
		t.Fatalf("Failed to compute close preview: %v", err)
	}

	if preview.PendingAdjustments != 2 {
		t.Errorf("Expected 2 pending adjustments, got %d", preview.PendingAdjustments)
	}
	if preview.ConfirmationLiteral != calibration.ConfirmationLiteral {
		t.Errorf("Expected confirmation literal %q, got %q", calibration.ConfirmationLiteral, preview.ConfirmationLiteral)
	}

	// Fixtures carry one rating per band; moving 1.0 -> 2.0 and 5.0 -> 4.0
	// empties the outer bands.
	if preview.Evidence.Original[0] != 20 {
		t.Errorf("Expected 20%% of original scores in band 1, got %v", preview.Evidence.Original[0])
	}
	if preview.Evidence.Calibrated[0] != 0 {
		t.Errorf("Expected band 1 empty after calibration, got %v", preview.Evidence.Calibrated[0])
	}
	if preview.Evidence.Calibrated[4] != 0 {
		t.Errorf("Expected band 5 empty after calibration, got %v", preview.Evidence.Calibrated[4])
	}
}

func TestCloseSessionRequiresConfirmation(t *testing.T) {
	env := setupService(t)

	session := env.fixtures.CreateSession(t, "Guarded Session", models.SessionStatusInProgress)

	tests := []struct {
		name string
		req  service.CloseRequest
	}{
		{"missing authorization", service.CloseRequest{Authorized: false, Confirmation: "CONFIRMAR"}},
		{"wrong confirmation", service.CloseRequest{Authorized: true, Confirmation: "confirm"}},
		{"empty confirmation", service.CloseRequest{Authorized: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.CloseSession(env.actor, session.ID, tt.req); !errors.Is(err, service.ErrInvalidArgument) {
				t.Errorf("Expected ErrInvalidArgument, got %v", err)
			}
		})
	}

	// The failed attempts must not have closed anything.
	detail, err := env.svc.GetSession(env.actor, session.ID)
	if err != nil {
		t.Fatalf("Failed to reload session: %v", err)
	}
	if detail.Session.Status != models.SessionStatusInProgress {
		t.Errorf("Expected session still in_progress, got %s", detail.Session.Status)
	}
}

func TestCloseSessionCommitsLedger(t *testing.T) {
	env := setupService(t)

	session := env.fixtures.CreateSession(t, "Final Session", models.SessionStatusInProgress)
	env.fixtures.CreateAdjustment(t, session.ID, env.fixtures.Ratings[0], 2.0)

	result, err := env.svc.CloseSession(env.actor, session.ID, service.CloseRequest{
		Authorized:   true,
		Confirmation: "CONFIRMAR",
	})
	if err != nil {
		t.Fatalf("Failed to close session: %v", err)
	}
	if result.AppliedAdjustments != 1 {
		t.Errorf("Expected 1 applied adjustment, got %d", result.AppliedAdjustments)
	}
	if result.Session.Status != models.SessionStatusClosed {
		t.Errorf("Expected closed status, got %s", result.Session.Status)
	}

	var score float64
	if err := env.containers.DB.QueryRow("SELECT score FROM ratings WHERE id = $1", env.fixtures.Ratings[0].ID).Scan(&score); err != nil {
		t.Fatalf("Failed to read rating: %v", err)
	}
	if score != 2.0 {
		t.Errorf("Expected rating score 2.0 after close, got %v", score)
	}

	// Every mutation against the closed session must now conflict.
	if _, err := env.svc.CloseSession(env.actor, session.ID, service.CloseRequest{Authorized: true, Confirmation: "CONFIRMAR"}); !errors.Is(err, service.ErrConflict) {
		t.Errorf("Expected ErrConflict on second close, got %v", err)
	}
	if _, err := env.svc.CreateAdjustment(env.actor, session.ID, service.AdjustmentRequest{
		RatingID:        env.fixtures.Ratings[1].ID,
		CalibratedValue: 3.0,
		Justification:   "late proposal",
	}); !errors.Is(err, service.ErrConflict) {
		t.Errorf("Expected ErrConflict proposing against a closed session, got %v", err)
	}

	// The close must leave an audit trail entry.
	logs, err := env.auditSvc.GetByEntity(env.actor.AccountID, "calibration_session", fmt.Sprint(result.Session.ID), 50, 0)
	if err != nil {
		t.Fatalf("Failed to load audit trail: %v", err)
	}
	found := false
	for _, log := range logs {
		if log.Action == "calibration_session.closed" {
			found = true
		}
	}
	if !found {
		t.Error("Expected calibration_session.closed audit entry")
	}
}

func TestCancelSessionLeavesOnlyAuditTrace(t *testing.T) {
	env := setupService(t)

	session := env.fixtures.CreateSession(t, "Abandoned Session", models.SessionStatusInProgress)
	env.fixtures.CreateAdjustment(t, session.ID, env.fixtures.Ratings[2], 1.5)

	result, err := env.svc.CancelSession(env.actor, session.ID)
	if err != nil {
		t.Fatalf("Failed to cancel session: %v", err)
	}
	if result.DiscardedAdjustments != 1 {
		t.Errorf("Expected 1 discarded adjustment, got %d", result.DiscardedAdjustments)
	}

	if _, err := env.svc.GetSession(env.actor, session.ID); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after cancel, got %v", err)
	}

	logs, err := env.auditSvc.GetByEntity(env.actor.AccountID, "calibration_session", fmt.Sprint(session.ID), 50, 0)
	if err != nil {
		t.Fatalf("Failed to load audit trail: %v", err)
	}
	found := false
	for _, log := range logs {
		if log.Action == "calibration_session.cancelled" {
			found = true
		}
	}
	if !found {
		t.Error("Expected calibration_session.cancelled audit entry")
	}
}

func TestUpdateSessionStartTransition(t *testing.T) {
	env := setupService(t)

	session := env.fixtures.CreateSession(t, "Draft Session", models.SessionStatusDraft)

	status := models.SessionStatusInProgress
	updated, err := env.svc.UpdateSession(env.actor, session.ID, models.SessionPatch{Status: &status})
	if err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}
	if updated.Status != models.SessionStatusInProgress {
		t.Errorf("Expected in_progress, got %s", updated.Status)
	}
	if updated.StartedAt == nil {
		t.Error("Expected started_at to be set")
	}

	// Closing via patch is not a thing; only the close operation may do that.
	closed := models.SessionStatusClosed
	if _, err := env.svc.UpdateSession(env.actor, session.ID, models.SessionPatch{Status: &closed}); !errors.Is(err, service.ErrConflict) {
		t.Errorf("Expected ErrConflict patching to closed, got %v", err)
	}
}

func TestParticipantsOnlyFromSameAccount(t *testing.T) {
	env := setupService(t)

	session := env.fixtures.CreateSession(t, "Team Session", models.SessionStatusDraft)

	if _, err := env.svc.AddParticipant(env.actor, session.ID, env.fixtures.ManagerUser.ID); err != nil {
		t.Fatalf("Failed to add participant: %v", err)
	}

	// A user from another account must be invisible.
	var foreignAccountID uint
	if err := env.containers.DB.QueryRow(
		"INSERT INTO accounts (name) VALUES ($1) RETURNING id", "Globex Inc",
	).Scan(&foreignAccountID); err != nil {
		t.Fatalf("Failed to create second account: %v", err)
	}
	var foreignUserID uint
	if err := env.containers.DB.QueryRow(`
		INSERT INTO users (account_id, email, password_hash, first_name, last_name, is_active)
		VALUES ($1, 'outsider@globex.test', 'x', 'Out', 'Sider', true)
		RETURNING id
	`, foreignAccountID).Scan(&foreignUserID); err != nil {
		t.Fatalf("Failed to create foreign user: %v", err)
	}

	if _, err := env.svc.AddParticipant(env.actor, session.ID, foreignUserID); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("Expected ErrNotFound adding a foreign user, got %v", err)
	}
}
