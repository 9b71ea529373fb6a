package repository

import (
	"database/sql"
	"fmt"
	"time"

	"calibra/internal/models"
)

// AuthSessionRepository handles issued token database operations. Each row
// is one token (access or refresh); presence of the JTI is what makes a
// token valid, so logout is a delete.
type AuthSessionRepository struct {
	db *sql.DB
}

// NewAuthSessionRepository creates a new auth session repository
func NewAuthSessionRepository(db *sql.DB) *AuthSessionRepository {
	return &AuthSessionRepository{db: db}
}

// Create records an issued token
func (r *AuthSessionRepository) Create(session *models.AuthSession) error {
	query := `
		INSERT INTO auth_sessions (id, user_id, jti, token_type, expires_at, last_activity_at, created_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(
		query,
		session.ID,
		session.UserID,
		session.JTI,
		session.TokenType,
		session.ExpiresAt,
		session.LastActivityAt,
		session.CreatedAt,
		session.IPAddress,
		session.UserAgent,
	)

	if err != nil {
		return fmt.Errorf("failed to create auth session: %w", err)
	}

	return nil
}

// GetByJTI retrieves an unexpired token record by JTI
func (r *AuthSessionRepository) GetByJTI(jti string) (*models.AuthSession, error) {
	query := `
		SELECT id, user_id, jti, token_type, expires_at, last_activity_at, created_at, ip_address, user_agent
		FROM auth_sessions
		WHERE jti = $1 AND expires_at > $2
	`

	session := &models.AuthSession{}
	err := r.db.QueryRow(query, jti, time.Now()).Scan(
		&session.ID,
		&session.UserID,
		&session.JTI,
		&session.TokenType,
		&session.ExpiresAt,
		&session.LastActivityAt,
		&session.CreatedAt,
		&session.IPAddress,
		&session.UserAgent,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auth session: %w", err)
	}

	return session, nil
}

// UpdateLastActivity updates the last activity timestamp for a token
func (r *AuthSessionRepository) UpdateLastActivity(id string) error {
	query := `UPDATE auth_sessions SET last_activity_at = $1 WHERE id = $2`

	_, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update auth session activity: %w", err)
	}

	return nil
}

// DeleteByJTI revokes a single token
func (r *AuthSessionRepository) DeleteByJTI(jti string) error {
	query := `DELETE FROM auth_sessions WHERE jti = $1`
	_, err := r.db.Exec(query, jti)
	if err != nil {
		return fmt.Errorf("failed to delete auth session: %w", err)
	}
	return nil
}

// DeleteAllUserSessions revokes every token of a user
func (r *AuthSessionRepository) DeleteAllUserSessions(userID uint) error {
	query := `DELETE FROM auth_sessions WHERE user_id = $1`
	_, err := r.db.Exec(query, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user auth sessions: %w", err)
	}
	return nil
}

// DeleteExpired deletes all expired token records
func (r *AuthSessionRepository) DeleteExpired() error {
	query := `DELETE FROM auth_sessions WHERE expires_at < $1`
	_, err := r.db.Exec(query, time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete expired auth sessions: %w", err)
	}
	return nil
}
