package repository_test

import (
	"errors"
	"testing"

	"calibra/internal/models"
	"calibra/internal/repository"
	"calibra/internal/testutil"
)

func TestOnePendingAdjustmentPerRating(t *testing.T) {
	containers := testutil.SetupPostgres(t)
	defer containers.Cleanup(t)

	fixtures := testutil.SetupFixtures(t, containers.DB)
	repo := repository.NewAdjustmentRepository(containers.DB)

	session := fixtures.CreateSession(t, "Calibration", models.SessionStatusInProgress)
	rating := fixtures.Ratings[0]

	first := &models.CalibrationAdjustment{
		SessionID:       session.ID,
		RatingID:        rating.ID,
		OriginalValue:   rating.Score,
		CalibratedValue: 2.0,
		Justification:   "aligned with peer group",
		Status:          models.AdjustmentStatusPending,
		CreatedBy:       fixtures.ManagerUser.ID,
	}
	if err := repo.Create(first); err != nil {
		t.Fatalf("Failed to create adjustment: %v", err)
	}

	second := &models.CalibrationAdjustment{
		SessionID:       session.ID,
		RatingID:        rating.ID,
		OriginalValue:   rating.Score,
		CalibratedValue: 3.0,
		Justification:   "competing proposal",
		Status:          models.AdjustmentStatusPending,
		CreatedBy:       fixtures.AdminUser.ID,
	}
	if err := repo.Create(second); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("Expected ErrConflict for second pending adjustment on the same rating, got %v", err)
	}

	// Once the first proposal is applied, the rating is open for a new one.
	if _, err := containers.DB.Exec(
		"UPDATE calibration_adjustments SET status = $1, applied_at = NOW() WHERE id = $2",
		models.AdjustmentStatusApplied, first.ID,
	); err != nil {
		t.Fatalf("Failed to mark adjustment applied: %v", err)
	}
	if err := repo.Create(second); err != nil {
		t.Errorf("Expected new pending adjustment after previous was applied, got %v", err)
	}
}

func TestAppliedAdjustmentsAreImmutable(t *testing.T) {
	containers := testutil.SetupPostgres(t)
	defer containers.Cleanup(t)

	fixtures := testutil.SetupFixtures(t, containers.DB)
	repo := repository.NewAdjustmentRepository(containers.DB)

	session := fixtures.CreateSession(t, "Calibration", models.SessionStatusInProgress)
	adj := fixtures.CreateAdjustment(t, session.ID, fixtures.Ratings[1], 4.0)

	if _, err := containers.DB.Exec(
		"UPDATE calibration_adjustments SET status = $1, applied_at = NOW() WHERE id = $2",
		models.AdjustmentStatusApplied, adj.ID,
	); err != nil {
		t.Fatalf("Failed to mark adjustment applied: %v", err)
	}

	adj.CalibratedValue = 1.0
	if err := repo.Update(adj); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound updating an applied adjustment, got %v", err)
	}
	if err := repo.Delete(adj.ID, session.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting an applied adjustment, got %v", err)
	}

	stored, err := repo.GetByID(adj.ID, session.ID)
	if err != nil {
		t.Fatalf("Failed to reload adjustment: %v", err)
	}
	if stored.CalibratedValue != 4.0 {
		t.Errorf("Expected calibrated value 4.0 to survive, got %v", stored.CalibratedValue)
	}
}

func TestUpdateAndDeletePendingAdjustment(t *testing.T) {
	containers := testutil.SetupPostgres(t)
	defer containers.Cleanup(t)

	fixtures := testutil.SetupFixtures(t, containers.DB)
	repo := repository.NewAdjustmentRepository(containers.DB)

	session := fixtures.CreateSession(t, "Calibration", models.SessionStatusInProgress)
	adj := fixtures.CreateAdjustment(t, session.ID, fixtures.Ratings[2], 3.5)

	adj.CalibratedValue = 4.5
	adj.Justification = "revised after discussion"
	if err := repo.Update(adj); err != nil {
		t.Fatalf("Failed to update pending adjustment: %v", err)
	}

	stored, err := repo.GetByID(adj.ID, session.ID)
	if err != nil {
		t.Fatalf("Failed to reload adjustment: %v", err)
	}
	if stored.CalibratedValue != 4.5 || stored.Justification != "revised after discussion" {
		t.Errorf("Update not persisted: got value %v, justification %q", stored.CalibratedValue, stored.Justification)
	}

	if err := repo.Delete(adj.ID, session.ID); err != nil {
		t.Fatalf("Failed to delete pending adjustment: %v", err)
	}
	if _, err := repo.GetByID(adj.ID, session.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestGetPendingBySessionKeyedByRating(t *testing.T) {
	containers := testutil.SetupPostgres(t)
	defer containers.Cleanup(t)

	fixtures := testutil.SetupFixtures(t, containers.DB)
	repo := repository.NewAdjustmentRepository(containers.DB)

	session := fixtures.CreateSession(t, "Calibration", models.SessionStatusInProgress)
	fixtures.CreateAdjustment(t, session.ID, fixtures.Ratings[0], 2.0)
	fixtures.CreateAdjustment(t, session.ID, fixtures.Ratings[3], 3.0)

	pending, err := repo.GetPendingBySession(session.ID)
	if err != nil {
		t.Fatalf("Failed to get pending adjustments: %v", err)
	}

	if len(pending) != 2 {
		t.Fatalf("Expected 2 pending adjustments, got %d", len(pending))
	}
	if a, ok := pending[fixtures.Ratings[0].ID]; !ok || a.CalibratedValue != 2.0 {
		t.Errorf("Expected pending adjustment 2.0 for rating %d", fixtures.Ratings[0].ID)
	}
	if a, ok := pending[fixtures.Ratings[3].ID]; !ok || a.CalibratedValue != 3.0 {
		t.Errorf("Expected pending adjustment 3.0 for rating %d", fixtures.Ratings[3].ID)
	}
}

func TestGetBySessionJoinsEmployee(t *testing.T) {
	containers := testutil.SetupPostgres(t)
	defer containers.Cleanup(t)

	fixtures := testutil.SetupFixtures(t, containers.DB)
	repo := repository.NewAdjustmentRepository(containers.DB)

	session := fixtures.CreateSession(t, "Calibration", models.SessionStatusInProgress)
	fixtures.CreateAdjustment(t, session.ID, fixtures.Ratings[0], 2.0)

	adjustments, err := repo.GetBySession(session.ID)
	if err != nil {
		t.Fatalf("Failed to get adjustments: %v", err)
	}
	if len(adjustments) != 1 {
		t.Fatalf("Expected 1 adjustment, got %d", len(adjustments))
	}

	a := adjustments[0]
	if a.EmployeeID != fixtures.Employees[0].ID {
		t.Errorf("Expected employee %d, got %d", fixtures.Employees[0].ID, a.EmployeeID)
	}
	if a.EmployeeFirstName == "" || a.EmployeeLastName == "" {
		t.Error("Expected employee name to be populated")
	}
	if a.RatingScore != fixtures.Ratings[0].Score {
		t.Errorf("Expected rating score %v, got %v", fixtures.Ratings[0].Score, a.RatingScore)
	}
}
