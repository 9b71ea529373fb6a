package repository

import (
	"database/sql"
	"fmt"

	"calibra/internal/models"
)

// RatingRepository handles rating database operations. Ratings are read-only
// from the API's point of view; the only write path is the session close
// transaction owned by CalibrationSessionRepository.
type RatingRepository struct {
	db *sql.DB
}

// NewRatingRepository creates a new rating repository
func NewRatingRepository(db *sql.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// GetByID retrieves a rating by ID within an account
func (r *RatingRepository) GetByID(id, accountID uint) (*models.Rating, error) {
	query := `
		SELECT id, account_id, cycle_id, employee_id, score, created_at, updated_at
		FROM ratings
		WHERE id = $1 AND account_id = $2
	`

	rating := &models.Rating{}
	err := r.db.QueryRow(query, id, accountID).Scan(
		&rating.ID,
		&rating.AccountID,
		&rating.CycleID,
		&rating.EmployeeID,
		&rating.Score,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rating: %w", err)
	}

	return rating, nil
}

// GetByCycle retrieves all ratings of a review cycle within an account
func (r *RatingRepository) GetByCycle(cycleID, accountID uint) ([]models.Rating, error) {
	query := `
		SELECT id, account_id, cycle_id, employee_id, score, created_at, updated_at
		FROM ratings
		WHERE cycle_id = $1 AND account_id = $2
		ORDER BY employee_id
	`

	rows, err := r.db.Query(query, cycleID, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ratings: %w", err)
	}
	defer rows.Close()

	var ratings []models.Rating
	for rows.Next() {
		var rating models.Rating
		if err := rows.Scan(
			&rating.ID,
			&rating.AccountID,
			&rating.CycleID,
			&rating.EmployeeID,
			&rating.Score,
			&rating.CreatedAt,
			&rating.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		ratings = append(ratings, rating)
	}

	return ratings, rows.Err()
}

// GetCycle retrieves a review cycle by ID within an account
func (r *RatingRepository) GetCycle(cycleID, accountID uint) (*models.ReviewCycle, error) {
	query := `
		SELECT id, account_id, name, starts_at, ends_at, created_at
		FROM review_cycles
		WHERE id = $1 AND account_id = $2
	`

	cycle := &models.ReviewCycle{}
	err := r.db.QueryRow(query, cycleID, accountID).Scan(
		&cycle.ID,
		&cycle.AccountID,
		&cycle.Name,
		&cycle.StartsAt,
		&cycle.EndsAt,
		&cycle.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review cycle: %w", err)
	}

	return cycle, nil
}
