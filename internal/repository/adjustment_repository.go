package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"calibra/internal/models"
)

// AdjustmentRepository handles calibration adjustment database operations.
// Adjustments never touch the rating they reference; they stay provisional
// until the owning session's close transaction flips them to applied.
type AdjustmentRepository struct {
	db *sql.DB
}

// NewAdjustmentRepository creates a new adjustment repository
func NewAdjustmentRepository(db *sql.DB) *AdjustmentRepository {
	return &AdjustmentRepository{db: db}
}

// Create inserts a pending adjustment. At most one pending adjustment may
// target a rating within a session; a second insert surfaces as
// ErrConflict via the partial unique index.
func (r *AdjustmentRepository) Create(a *models.CalibrationAdjustment) error {
	query := `
		INSERT INTO calibration_adjustments
			(session_id, rating_id, original_value, calibrated_value, justification, encrypted_justification_id, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		query,
		a.SessionID,
		a.RatingID,
		a.OriginalValue,
		a.CalibratedValue,
		a.Justification,
		a.EncryptedJustificationID,
		a.Status,
		a.CreatedBy,
	).Scan(&a.ID, &a.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create adjustment: %w", err)
	}

	return nil
}

// Update changes the calibrated value and justification of a pending
// adjustment. Applied adjustments are immutable.
func (r *AdjustmentRepository) Update(a *models.CalibrationAdjustment) error {
	query := `
		UPDATE calibration_adjustments
		SET calibrated_value = $1, justification = $2, encrypted_justification_id = $3
		WHERE id = $4 AND session_id = $5 AND status = $6
	`

	res, err := r.db.Exec(query, a.CalibratedValue, a.Justification, a.EncryptedJustificationID, a.ID, a.SessionID, models.AdjustmentStatusPending)
	if err != nil {
		return fmt.Errorf("failed to update adjustment: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a pending adjustment from the ledger
func (r *AdjustmentRepository) Delete(id, sessionID uint) error {
	query := `DELETE FROM calibration_adjustments WHERE id = $1 AND session_id = $2 AND status = $3`

	res, err := r.db.Exec(query, id, sessionID, models.AdjustmentStatusPending)
	if err != nil {
		return fmt.Errorf("failed to delete adjustment: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetBySession retrieves all adjustments for a session, most recent first,
// each joined to its rating and the rated employee.
func (r *AdjustmentRepository) GetBySession(sessionID uint) ([]models.AdjustmentWithRating, error) {
	query := `
		SELECT
			a.id, a.session_id, a.rating_id, a.original_value, a.calibrated_value,
			a.justification, a.encrypted_justification_id, a.status, a.created_by, a.created_at, a.applied_at,
			r.score, e.id, e.first_name, e.last_name
		FROM calibration_adjustments a
		JOIN ratings r ON a.rating_id = r.id
		JOIN employees e ON r.employee_id = e.id
		WHERE a.session_id = $1
		ORDER BY a.created_at DESC
	`

	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get adjustments: %w", err)
	}
	defer rows.Close()

	var adjustments []models.AdjustmentWithRating
	for rows.Next() {
		var a models.AdjustmentWithRating
		if err := rows.Scan(
			&a.ID,
			&a.SessionID,
			&a.RatingID,
			&a.OriginalValue,
			&a.CalibratedValue,
			&a.Justification,
			&a.EncryptedJustificationID,
			&a.Status,
			&a.CreatedBy,
			&a.CreatedAt,
			&a.AppliedAt,
			&a.RatingScore,
			&a.EmployeeID,
			&a.EmployeeFirstName,
			&a.EmployeeLastName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan adjustment: %w", err)
		}
		adjustments = append(adjustments, a)
	}

	return adjustments, rows.Err()
}

// GetPendingBySession retrieves the pending adjustments of a session keyed
// by rating id, for overlaying calibrated values onto the cycle's scores.
func (r *AdjustmentRepository) GetPendingBySession(sessionID uint) (map[uint]models.CalibrationAdjustment, error) {
	query := `
		SELECT id, session_id, rating_id, original_value, calibrated_value, justification, encrypted_justification_id, status, created_by, created_at, applied_at
		FROM calibration_adjustments
		WHERE session_id = $1 AND status = $2
	`

	rows, err := r.db.Query(query, sessionID, models.AdjustmentStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending adjustments: %w", err)
	}
	defer rows.Close()

	pending := make(map[uint]models.CalibrationAdjustment)
	for rows.Next() {
		var a models.CalibrationAdjustment
		if err := rows.Scan(
			&a.ID,
			&a.SessionID,
			&a.RatingID,
			&a.OriginalValue,
			&a.CalibratedValue,
			&a.Justification,
			&a.EncryptedJustificationID,
			&a.Status,
			&a.CreatedBy,
			&a.CreatedAt,
			&a.AppliedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan adjustment: %w", err)
		}
		pending[a.RatingID] = a
	}

	return pending, rows.Err()
}

// GetByID retrieves a single adjustment within a session
func (r *AdjustmentRepository) GetByID(id, sessionID uint) (*models.CalibrationAdjustment, error) {
	query := `
		SELECT id, session_id, rating_id, original_value, calibrated_value, justification, encrypted_justification_id, status, created_by, created_at, applied_at
		FROM calibration_adjustments
		WHERE id = $1 AND session_id = $2
	`

	a := &models.CalibrationAdjustment{}
	err := r.db.QueryRow(query, id, sessionID).Scan(
		&a.ID,
		&a.SessionID,
		&a.RatingID,
		&a.OriginalValue,
		&a.CalibratedValue,
		&a.Justification,
		&a.EncryptedJustificationID,
		&a.Status,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.AppliedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get adjustment: %w", err)
	}

	return a, nil
}

// CountBySession returns the total number of adjustments in a session
func (r *AdjustmentRepository) CountBySession(sessionID uint) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM calibration_adjustments WHERE session_id = $1`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count adjustments: %w", err)
	}
	return count, nil
}
