package repository_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"calibra/internal/models"
	"calibra/internal/repository"
	"calibra/internal/testutil"
)

func TestCloseAppliesPendingAdjustments(t *testing.T) {
	containers := testutil.SetupPostgres(t)
	defer containers.Cleanup(t)

	fixtures := testutil.SetupFixtures(t, containers.DB)
	repo := repository.NewCalibrationSessionRepository(containers.DB)

	session := fixtures.CreateSession(t, "Q2 Calibration", models.SessionStatusInProgress)
	fixtures.CreateAdjustment(t, session.ID, fixtures.Ratings[0], 2.5)
	fixtures.CreateAdjustment(t, session.ID, fixtures.Ratings[4], 4.0)

	closed, applied, err := repo.Close(session.ID, fixtures.Account.ID)
	if err != nil {
		t.Fatalf("Failed to close session: %v", err)
	}
	if applied != 2 {
		t.Errorf("Expected 2 applied adjustments, got %d", applied)
	}
	if closed.Status != models.SessionStatusClosed {
		t.Errorf("Expected status %s, got %s", models.SessionStatusClosed, closed.Status)
	}

	// The calibrated values must now be the ratings' scores.
	var score float64
	err = containers.DB.QueryRow("SELECT score FROM ratings WHERE id = $1", fixtures.Ratings[0].ID).Scan(&score)
	if err != nil {
		t.Fatalf("Failed to read rating: %v", err)
	}
	if score != 2.5 {
		t.Errorf("Expected rating score 2.5 after close, got %v", score)
	}

	var pendingCount int
	err = containers.DB.QueryRow(
		"SELECT COUNT(*) FROM calibration_adjustments WHERE session_id = $1 AND status = $2",
		session.ID, models.AdjustmentStatusPending,
	).Scan(&pendingCount)
	if err != nil {
		t.Fatalf("Failed to count pending adjustments: %v", err)
	}
	if pendingCount != 0 {
		t.Errorf("Expected no pending adjustments after close, got %d", pendingCount)
	}

	var appliedAt *time.Time
	err = containers.DB.QueryRow(
		"SELECT applied_at FROM calibration_adjustments WHERE session_id = $1 LIMIT 1",
		session.ID,
	).Scan(&appliedAt)
	if err != nil {
		t.Fatalf("Failed to read applied_at: %v", err)
	}
	if appliedAt == nil {
		t.Error("Expected applied_at to be set after close")
	}
}

func TestCloseIsTerminal(t *testing.T) {
	containers := testutil.SetupPostgres(t)
	defer containers.Cleanup(t)

	fixtures := testutil.SetupFixtures(t, containers.DB)
	repo := repository.NewCalibrationSessionRepository(containers.DB)

	session := fixtures.CreateSession(t, "Terminal Session", models.SessionStatusInProgress)

	if _, _, err := repo.Close(session.ID, fixtures.Account.ID); err != nil {
		t.Fatalf("Failed to close session: %v", err)
	}

	// A second close must observe the terminal state.
	if _, _, err := repo.Close(session.ID, fixtures.Account.ID); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("Expected ErrConflict on second close, got %v", err)
	}

	// So must cancellation and updates.
	if _, err := repo.Cancel(session.ID, fixtures.Account.ID); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("Expected ErrConflict cancelling a closed session, got %v", err)
	}

	closed, err := repo.GetByID(session.ID, fixtures.Account.ID)
	if err != nil {
		t.Fatalf("Failed to reload session: %v", err)
	}
	closed.Name = "Renamed"
	if err := repo.Update(closed); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("Expected ErrConflict updating a closed session, got %v", err)
	}
}

func TestConcurrentCloseAtMostOnce(t *testing.T) {
	containers := testutil.SetupPostgres(t)
	defer containers.Cleanup(t)

	fixtures := testutil.SetupFixtures(t, containers.DB)
	repo := repository.NewCalibrationSessionRepository(containers.DB)

	session := fixtures.CreateSession(t, "Contended Session", models.SessionStatusInProgress)
	fixtures.CreateAdjustment(t, session.ID, fixtures.Ratings[1], 3.0)

	const closers = 4
	results := make(chan error, closers)
	var wg sync.WaitGroup
	for i := 0; i < closers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := repo.Close(session.ID, fixtures.Account.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, conflicted int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, repository.ErrConflict):
			conflicted++
		default:
			t.Errorf("Unexpected close error: %v", err)
		}
	}

	if succeeded != 1 {
		t.Errorf("Expected exactly 1 successful close, got %d", succeeded)
	}
	if conflicted != closers-1 {
		t.Errorf("Expected %d conflicts, got %d", closers-1, conflicted)
	}

	// The adjustment must have been applied exactly once.
	var score float64
	if err := containers.DB.QueryRow("SELECT score FROM ratings WHERE id = $1", fixtures.Ratings[1].ID).Scan(&score); err != nil {
		t.Fatalf("Failed to read rating: %v", err)
	}
	if score != 3.0 {
		t.Errorf("Expected rating score 3.0, got %v", score)
	}
}

func TestCancelDiscardsPendingAndKeepsRatings(t *testing.T) {
	containers := testutil.SetupPostgres(t)
	defer containers.Cleanup(t)

	fixtures := testutil.SetupFixtures(t, containers.DB)
	repo := repository.NewCalibrationSessionRepository(containers.DB)

	session := fixtures.CreateSession(t, "Doomed Session", models.SessionStatusInProgress)
	fixtures.AddParticipant(t, session.ID, fixtures.ManagerUser.ID)
	fixtures.CreateAdjustment(t, session.ID, fixtures.Ratings[2], 1.5)
	originalScore := fixtures.Ratings[2].Score

	discarded, err := repo.Cancel(session.ID, fixtures.Account.ID)
	if err != nil {
		t.Fatalf("Failed to cancel session: %v", err)
	}
	if discarded != 1 {
		t.Errorf("Expected 1 discarded adjustment, got %d", discarded)
	}

	if _, err := repo.GetByID(session.ID, fixtures.Account.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after cancel, got %v", err)
	}

	// Ratings are never touched by a cancel.
	var score float64
	if err := containers.DB.QueryRow("SELECT score FROM ratings WHERE id = $1", fixtures.Ratings[2].ID).Scan(&score); err != nil {
		t.Fatalf("Failed to read rating: %v", err)
	}
	if score != originalScore {
		t.Errorf("Expected rating score %v untouched after cancel, got %v", originalScore, score)
	}

	// Participant rows cascade away with the session.
	var participantCount int
	if err := containers.DB.QueryRow(
		"SELECT COUNT(*) FROM calibration_participants WHERE session_id = $1", session.ID,
	).Scan(&participantCount); err != nil {
		t.Fatalf("Failed to count participants: %v", err)
	}
	if participantCount != 0 {
		t.Errorf("Expected participants to cascade on cancel, got %d", participantCount)
	}
}

func TestSessionTenantIsolation(t *testing.T) {
	containers := testutil.SetupPostgres(t)
	defer containers.Cleanup(t)

	fixtures := testutil.SetupFixtures(t, containers.DB)
	repo := repository.NewCalibrationSessionRepository(containers.DB)

	session := fixtures.CreateSession(t, "Acme Session", models.SessionStatusDraft)

	var otherAccountID uint
	err := containers.DB.QueryRow(
		"INSERT INTO accounts (name) VALUES ($1) RETURNING id", "Globex Inc",
	).Scan(&otherAccountID)
	if err != nil {
		t.Fatalf("Failed to create second account: %v", err)
	}

	if _, err := repo.GetByID(session.ID, otherAccountID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound reading across accounts, got %v", err)
	}
	if _, err := repo.Cancel(session.ID, otherAccountID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound cancelling across accounts, got %v", err)
	}
	if _, _, err := repo.Close(session.ID, otherAccountID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound closing across accounts, got %v", err)
	}

	sessions, err := repo.ListByAccount(otherAccountID)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("Expected empty list for the other account, got %d sessions", len(sessions))
	}

	// The session must be unharmed by the failed cross-account attempts.
	if _, err := repo.GetByID(session.ID, fixtures.Account.ID); err != nil {
		t.Errorf("Expected session to survive cross-account attempts: %v", err)
	}
}

func TestListScheduledBetween(t *testing.T) {
	containers := testutil.SetupPostgres(t)
	defer containers.Cleanup(t)

	fixtures := testutil.SetupFixtures(t, containers.DB)
	repo := repository.NewCalibrationSessionRepository(containers.DB)

	now := time.Now()
	inWindow := fixtures.CreateSession(t, "Soon", models.SessionStatusDraft)
	outWindow := fixtures.CreateSession(t, "Later", models.SessionStatusDraft)
	fixtures.CreateSession(t, "Unscheduled", models.SessionStatusDraft)

	setSchedule := func(id uint, at time.Time) {
		if _, err := containers.DB.Exec(
			"UPDATE calibration_sessions SET scheduled_at = $1 WHERE id = $2", at, id,
		); err != nil {
			t.Fatalf("Failed to schedule session %d: %v", id, err)
		}
	}
	setSchedule(inWindow.ID, now.Add(12*time.Hour))
	setSchedule(outWindow.ID, now.Add(72*time.Hour))

	sessions, err := repo.ListScheduledBetween(now, now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Failed to list scheduled sessions: %v", err)
	}

	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session in window, got %d", len(sessions))
	}
	if sessions[0].ID != inWindow.ID {
		t.Errorf("Expected session %d, got %d", inWindow.ID, sessions[0].ID)
	}
}
