package repository

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"calibra/internal/models"
)

// CalibrationSessionRepository handles calibration session database
// operations. Cancel and Close are the two transactional entry points; both
// re-check the session status under the same transaction that mutates, so a
// lost race surfaces as ErrConflict instead of a double apply.
type CalibrationSessionRepository struct {
	db *sql.DB
}

// NewCalibrationSessionRepository creates a new calibration session repository
func NewCalibrationSessionRepository(db *sql.DB) *CalibrationSessionRepository {
	return &CalibrationSessionRepository{db: db}
}

// Create inserts a new draft session
func (r *CalibrationSessionRepository) Create(s *models.CalibrationSession) error {
	query := `
		INSERT INTO calibration_sessions (account_id, cycle_id, name, description, scheduled_at, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		query,
		s.AccountID,
		s.CycleID,
		s.Name,
		s.Description,
		s.ScheduledAt,
		s.Status,
		s.CreatedBy,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create calibration session: %w", err)
	}

	return nil
}

// GetByID retrieves a session scoped by account. A session belonging to a
// different account is reported as ErrNotFound.
func (r *CalibrationSessionRepository) GetByID(id, accountID uint) (*models.CalibrationSession, error) {
	query := `
		SELECT id, account_id, cycle_id, name, description, scheduled_at, started_at, status, created_by, created_at, updated_at
		FROM calibration_sessions
		WHERE id = $1 AND account_id = $2
	`

	s := &models.CalibrationSession{}
	err := r.db.QueryRow(query, id, accountID).Scan(
		&s.ID,
		&s.AccountID,
		&s.CycleID,
		&s.Name,
		&s.Description,
		&s.ScheduledAt,
		&s.StartedAt,
		&s.Status,
		&s.CreatedBy,
		&s.CreatedAt,
		&s.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calibration session: %w", err)
	}

	return s, nil
}

// ListByAccount retrieves all sessions for an account, newest first
func (r *CalibrationSessionRepository) ListByAccount(accountID uint) ([]models.CalibrationSession, error) {
	query := `
		SELECT id, account_id, cycle_id, name, description, scheduled_at, started_at, status, created_by, created_at, updated_at
		FROM calibration_sessions
		WHERE account_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list calibration sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// ListScheduledBetween retrieves open sessions scheduled inside the window,
// across all accounts. Used by the reminder task.
func (r *CalibrationSessionRepository) ListScheduledBetween(from, to time.Time) ([]models.CalibrationSession, error) {
	query := `
		SELECT id, account_id, cycle_id, name, description, scheduled_at, started_at, status, created_by, created_at, updated_at
		FROM calibration_sessions
		WHERE status != $1 AND scheduled_at IS NOT NULL AND scheduled_at >= $2 AND scheduled_at < $3
		ORDER BY scheduled_at ASC
	`

	rows, err := r.db.Query(query, models.SessionStatusClosed, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

func scanSessions(rows *sql.Rows) ([]models.CalibrationSession, error) {
	var sessions []models.CalibrationSession
	for rows.Next() {
		var s models.CalibrationSession
		if err := rows.Scan(
			&s.ID,
			&s.AccountID,
			&s.CycleID,
			&s.Name,
			&s.Description,
			&s.ScheduledAt,
			&s.StartedAt,
			&s.Status,
			&s.CreatedBy,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan calibration session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// Update persists name, description, schedule, status and started_at. The
// status guard lives in the WHERE clause: a session that reached closed in
// the meantime is never overwritten.
func (r *CalibrationSessionRepository) Update(s *models.CalibrationSession) error {
	query := `
		UPDATE calibration_sessions
		SET name = $1, description = $2, scheduled_at = $3, status = $4, started_at = $5, updated_at = NOW()
		WHERE id = $6 AND account_id = $7 AND status != $8
		RETURNING updated_at
	`

	err := r.db.QueryRow(
		query,
		s.Name,
		s.Description,
		s.ScheduledAt,
		s.Status,
		s.StartedAt,
		s.ID,
		s.AccountID,
		models.SessionStatusClosed,
	).Scan(&s.UpdatedAt)

	if err == sql.ErrNoRows {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update calibration session: %w", err)
	}

	return nil
}

// Cancel deletes a session and its pending adjustments in one transaction.
// Ratings are never touched, which is what makes cancellation
// side-effect-free. Returns the number of discarded adjustments.
func (r *CalibrationSessionRepository) Cancel(id, accountID uint) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin cancel transaction: %w", err)
	}
	defer rollbackUnlessDone(tx)

	status, err := lockSessionStatus(tx, id, accountID)
	if err != nil {
		return 0, err
	}
	if status == models.SessionStatusClosed {
		return 0, ErrConflict
	}

	res, err := tx.Exec(
		`DELETE FROM calibration_adjustments WHERE session_id = $1 AND status = $2`,
		id, models.AdjustmentStatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to discard adjustments: %w", err)
	}
	discarded, _ := res.RowsAffected()

	// Participant rows cascade with the session.
	if _, err := tx.Exec(`DELETE FROM calibration_sessions WHERE id = $1`, id); err != nil {
		return 0, fmt.Errorf("failed to delete session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cancel transaction: %w", err)
	}

	return int(discarded), nil
}

// Close atomically applies every pending adjustment to its rating, marks
// the adjustments applied, and moves the session to closed. The status
// re-check happens under the row lock, so of two concurrent closes exactly
// one succeeds and the other observes ErrConflict. Returns the closed
// session and the number of adjustments applied.
func (r *CalibrationSessionRepository) Close(id, accountID uint) (*models.CalibrationSession, int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin close transaction: %w", err)
	}
	defer rollbackUnlessDone(tx)

	status, err := lockSessionStatus(tx, id, accountID)
	if err != nil {
		return nil, 0, err
	}
	if status == models.SessionStatusClosed {
		return nil, 0, ErrConflict
	}

	// Write calibrated values back to the ratings.
	_, err = tx.Exec(`
		UPDATE ratings r
		SET score = a.calibrated_value, updated_at = NOW()
		FROM calibration_adjustments a
		WHERE a.session_id = $1 AND a.status = $2 AND a.rating_id = r.id
	`, id, models.AdjustmentStatusPending)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to apply adjustments to ratings: %w", err)
	}

	res, err := tx.Exec(`
		UPDATE calibration_adjustments
		SET status = $1, applied_at = NOW()
		WHERE session_id = $2 AND status = $3
	`, models.AdjustmentStatusApplied, id, models.AdjustmentStatusPending)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to mark adjustments applied: %w", err)
	}
	applied, _ := res.RowsAffected()

	s := &models.CalibrationSession{}
	err = tx.QueryRow(`
		UPDATE calibration_sessions
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, account_id, cycle_id, name, description, scheduled_at, started_at, status, created_by, created_at, updated_at
	`, models.SessionStatusClosed, id).Scan(
		&s.ID,
		&s.AccountID,
		&s.CycleID,
		&s.Name,
		&s.Description,
		&s.ScheduledAt,
		&s.StartedAt,
		&s.Status,
		&s.CreatedBy,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to close session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("failed to commit close transaction: %w", err)
	}

	return s, int(applied), nil
}

// lockSessionStatus reads the session status under FOR UPDATE so the status
// check and the following mutations are one atomic unit.
func lockSessionStatus(tx *sql.Tx, id, accountID uint) (string, error) {
	var status string
	err := tx.QueryRow(
		`SELECT status FROM calibration_sessions WHERE id = $1 AND account_id = $2 FOR UPDATE`,
		id, accountID,
	).Scan(&status)

	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to lock session: %w", err)
	}

	return status, nil
}

func rollbackUnlessDone(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		slog.Error("Failed to rollback transaction", "error", err)
	}
}
