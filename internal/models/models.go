package models

import (
	"time"
)

// Calibration session status values. A session is created as a draft,
// moves to in_progress once the panel convenes, and ends closed. There is
// no stored cancelled status: cancellation deletes the session outright.
const (
	SessionStatusDraft      = "draft"
	SessionStatusInProgress = "in_progress"
	SessionStatusClosed     = "closed"
)

// Adjustment status values. An adjustment stays pending for as long as its
// session is open and flips to applied in the same transaction that closes
// the session. Discarded adjustments are deleted, not soft-deleted.
const (
	AdjustmentStatusPending = "pending"
	AdjustmentStatusApplied = "applied"
)

// Account represents a tenant on the platform
type Account struct {
	ID        uint      `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// User represents a user in the system
type User struct {
	ID           uint      `json:"id" db:"id"`
	AccountID    uint      `json:"account_id" db:"account_id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Role represents a user role
type Role struct {
	ID          uint      `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// UserRole represents the many-to-many relationship between users and roles
type UserRole struct {
	UserID    uint      `json:"user_id" db:"user_id"`
	RoleID    uint      `json:"role_id" db:"role_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AuthSession represents an issued token pair grouped by login
type AuthSession struct {
	ID             string    `json:"id" db:"id"`
	UserID         uint      `json:"user_id" db:"user_id"`
	JTI            string    `json:"jti" db:"jti"`
	TokenType      string    `json:"token_type" db:"token_type"` // "access" or "refresh"
	ExpiresAt      time.Time `json:"expires_at" db:"expires_at"`
	LastActivityAt time.Time `json:"last_activity_at" db:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	IPAddress      string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent      string    `json:"user_agent,omitempty" db:"user_agent"`
}

// ReviewCycle represents a performance review cycle owning a set of ratings
type ReviewCycle struct {
	ID        uint      `json:"id" db:"id"`
	AccountID uint      `json:"account_id" db:"account_id"`
	Name      string    `json:"name" db:"name"`
	StartsAt  time.Time `json:"starts_at" db:"starts_at"`
	EndsAt    time.Time `json:"ends_at" db:"ends_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Employee represents a rated person
type Employee struct {
	ID        uint      `json:"id" db:"id"`
	AccountID uint      `json:"account_id" db:"account_id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Rating is an employee's performance score for a cycle. The score is on
// the five-band scale (1..5) and is only ever rewritten when a calibration
// session closes.
type Rating struct {
	ID         uint      `json:"id" db:"id"`
	AccountID  uint      `json:"account_id" db:"account_id"`
	CycleID    uint      `json:"cycle_id" db:"cycle_id"`
	EmployeeID uint      `json:"employee_id" db:"employee_id"`
	Score      float64   `json:"score" db:"score"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// CalibrationSession is the unit of calibration work: a named, time-boxed
// container for participants and provisional adjustments.
type CalibrationSession struct {
	ID          uint       `json:"id" db:"id"`
	AccountID   uint       `json:"account_id" db:"account_id"`
	CycleID     uint       `json:"cycle_id" db:"cycle_id"`
	Name        string     `json:"name" db:"name"`
	Description *string    `json:"description,omitempty" db:"description"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	Status      string     `json:"status" db:"status"`
	CreatedBy   uint       `json:"created_by" db:"created_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsClosed reports whether the session has reached its terminal state
func (s *CalibrationSession) IsClosed() bool {
	return s.Status == SessionStatusClosed
}

// SessionPatch is a partial update of a calibration session. Nil fields are
// left untouched. Status may only request the draft -> in_progress edge.
type SessionPatch struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Status      *string    `json:"status,omitempty"`
}

// Apply merges the patch into the session and reports whether the patch
// requests the start transition. The caller is responsible for rejecting
// patches against a closed session before calling Apply.
func (p *SessionPatch) Apply(s *CalibrationSession, now time.Time) (started bool, ok bool) {
	if p.Status != nil && *p.Status != s.Status {
		if *p.Status != SessionStatusInProgress || s.Status != SessionStatusDraft {
			return false, false
		}
		s.Status = SessionStatusInProgress
		if s.StartedAt == nil {
			t := now
			s.StartedAt = &t
			started = true
		}
	}
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Description != nil {
		s.Description = p.Description
	}
	if p.ScheduledAt != nil {
		s.ScheduledAt = p.ScheduledAt
	}
	return started, true
}

// CalibrationParticipant is a manager enrolled in a session
type CalibrationParticipant struct {
	ID        uint      `json:"id" db:"id"`
	SessionID uint      `json:"session_id" db:"session_id"`
	UserID    uint      `json:"user_id" db:"user_id"`
	InvitedAt time.Time `json:"invited_at" db:"invited_at"`
}

// ParticipantWithUser extends CalibrationParticipant with the user's identity
type ParticipantWithUser struct {
	CalibrationParticipant
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// CalibrationAdjustment is a provisional score change for one rating. The
// referenced rating is untouched while the adjustment is pending; the
// original value is retained forever so before/after evidence stays
// reconstructable after close.
type CalibrationAdjustment struct {
	ID                       uint       `json:"id" db:"id"`
	SessionID                uint       `json:"session_id" db:"session_id"`
	RatingID                 uint       `json:"rating_id" db:"rating_id"`
	OriginalValue            float64    `json:"original_value" db:"original_value"`
	CalibratedValue          float64    `json:"calibrated_value" db:"calibrated_value"`
	Justification            string     `json:"justification" db:"justification"`
	EncryptedJustificationID *int64     `json:"-" db:"encrypted_justification_id"`
	Status                   string     `json:"status" db:"status"`
	CreatedBy                uint       `json:"created_by" db:"created_by"`
	CreatedAt                time.Time  `json:"created_at" db:"created_at"`
	AppliedAt                *time.Time `json:"applied_at,omitempty" db:"applied_at"`
}

// AdjustmentWithRating extends CalibrationAdjustment with its rating and
// the rated employee
type AdjustmentWithRating struct {
	CalibrationAdjustment
	RatingScore       float64 `json:"rating_score"`
	EmployeeID        uint    `json:"employee_id"`
	EmployeeFirstName string  `json:"employee_first_name"`
	EmployeeLastName  string  `json:"employee_last_name"`
}

// SessionDetail is the full session view returned by the get operation
type SessionDetail struct {
	Session          CalibrationSession    `json:"session"`
	Participants     []ParticipantWithUser `json:"participants"`
	Adjustments      []AdjustmentWithRating `json:"adjustments"`
	ParticipantCount int                   `json:"participant_count"`
	AdjustmentCount  int                   `json:"adjustment_count"`
}

// AuditLog represents an audit log entry. Entries are append-only.
type AuditLog struct {
	ID         string    `json:"id" db:"id"`
	AccountID  uint      `json:"account_id" db:"account_id"`
	UserID     *uint     `json:"user_id,omitempty" db:"user_id"`
	Action     string    `json:"action" db:"action"`
	EntityType string    `json:"entity_type" db:"entity_type"`
	EntityID   string    `json:"entity_id" db:"entity_id"`
	Details    string    `json:"details,omitempty" db:"details"`
	IPAddress  string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  string    `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
