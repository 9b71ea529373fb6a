package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"calibra/internal/models"
)

// ParticipantRepository handles calibration participant database operations
type ParticipantRepository struct {
	db *sql.DB
}

// NewParticipantRepository creates a new participant repository
func NewParticipantRepository(db *sql.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// Add enrolls a user in a session. Adding the same user twice surfaces as
// ErrConflict.
func (r *ParticipantRepository) Add(p *models.CalibrationParticipant) error {
	query := `
		INSERT INTO calibration_participants (session_id, user_id, invited_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	if p.InvitedAt.IsZero() {
		p.InvitedAt = time.Now()
	}
	err := r.db.QueryRow(query, p.SessionID, p.UserID, p.InvitedAt).Scan(&p.ID)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}

	return nil
}

// Remove unenrolls a user from a session
func (r *ParticipantRepository) Remove(sessionID, userID uint) error {
	query := `DELETE FROM calibration_participants WHERE session_id = $1 AND user_id = $2`

	res, err := r.db.Exec(query, sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetBySession retrieves the participants of a session in invitation order,
// each joined to the user's identity.
func (r *ParticipantRepository) GetBySession(sessionID uint) ([]models.ParticipantWithUser, error) {
	query := `
		SELECT p.id, p.session_id, p.user_id, p.invited_at, u.email, u.first_name, u.last_name
		FROM calibration_participants p
		JOIN users u ON p.user_id = u.id
		WHERE p.session_id = $1
		ORDER BY p.invited_at ASC
	`

	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	var participants []models.ParticipantWithUser
	for rows.Next() {
		var p models.ParticipantWithUser
		if err := rows.Scan(
			&p.ID,
			&p.SessionID,
			&p.UserID,
			&p.InvitedAt,
			&p.Email,
			&p.FirstName,
			&p.LastName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

// IsParticipant reports whether a user is enrolled in a session
func (r *ParticipantRepository) IsParticipant(sessionID, userID uint) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM calibration_participants WHERE session_id = $1 AND user_id = $2)`

	var enrolled bool
	if err := r.db.QueryRow(query, sessionID, userID).Scan(&enrolled); err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return enrolled, nil
}

// CountBySession returns the number of participants in a session
func (r *ParticipantRepository) CountBySession(sessionID uint) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM calibration_participants WHERE session_id = $1`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}
