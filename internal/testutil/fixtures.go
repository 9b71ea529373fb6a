package testutil

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"calibra/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// Fixtures holds a tenant with users, a review cycle, and rated employees
type Fixtures struct {
	DB          *sql.DB
	Account     *models.Account
	AdminUser   *models.User
	ManagerUser *models.User
	ViewerUser  *models.User
	Cycle       *models.ReviewCycle
	Employees   []models.Employee
	Ratings     []models.Rating
}

// SetupFixtures creates the standard test tenant: one account, three users
// (one per seeded role), one cycle, and five rated employees with scores
// spanning all bands.
func SetupFixtures(t *testing.T, db *sql.DB) *Fixtures {
	t.Helper()

	f := &Fixtures{DB: db}

	f.Account = createAccount(t, db, "Acme Corp")

	f.AdminUser = createUser(t, db, f.Account.ID, "admin@acme.test", "Ada", "Admin", "hr_admin")
	f.ManagerUser = createUser(t, db, f.Account.ID, "manager@acme.test", "Max", "Manager", "manager")
	f.ViewerUser = createUser(t, db, f.Account.ID, "viewer@acme.test", "Vera", "Viewer", "viewer")

	f.Cycle = createCycle(t, db, f.Account.ID, "2026 Mid-Year Review")

	scores := []float64{1.0, 2.0, 3.0, 4.0, 5.0}
	for i, score := range scores {
		emp := createEmployee(t, db, f.Account.ID, fmt.Sprintf("Employee%d", i+1), "Tester", fmt.Sprintf("employee%d@acme.test", i+1))
		f.Employees = append(f.Employees, emp)
		f.Ratings = append(f.Ratings, createRating(t, db, f.Account.ID, f.Cycle.ID, emp.ID, score))
	}

	return f
}

func createAccount(t *testing.T, db *sql.DB, name string) *models.Account {
	t.Helper()

	var account models.Account
	err := db.QueryRow(
		"INSERT INTO accounts (name) VALUES ($1) RETURNING id, name, created_at, updated_at",
		name,
	).Scan(&account.ID, &account.Name, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		t.Fatalf("Failed to create account %s: %v", name, err)
	}

	return &account
}

func createUser(t *testing.T, db *sql.DB, accountID uint, email, firstName, lastName, roleName string) *models.User {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	var user models.User
	err = db.QueryRow(`
		INSERT INTO users (account_id, email, password_hash, first_name, last_name, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING id, account_id, email, first_name, last_name, is_active, created_at, updated_at
	`, accountID, email, string(hashedPassword), firstName, lastName).Scan(
		&user.ID, &user.AccountID, &user.Email, &user.FirstName, &user.LastName,
		&user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("Failed to create user %s: %v", email, err)
	}

	// Roles are seeded by the migrations
	_, err = db.Exec(`
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = $2
	`, user.ID, roleName)
	if err != nil {
		t.Fatalf("Failed to assign role %s to user %s: %v", roleName, email, err)
	}

	return &user
}

func createCycle(t *testing.T, db *sql.DB, accountID uint, name string) *models.ReviewCycle {
	t.Helper()

	startsAt := time.Now().Add(-90 * 24 * time.Hour)
	endsAt := time.Now().Add(90 * 24 * time.Hour)

	var cycle models.ReviewCycle
	err := db.QueryRow(`
		INSERT INTO review_cycles (account_id, name, starts_at, ends_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, account_id, name, starts_at, ends_at, created_at
	`, accountID, name, startsAt, endsAt).Scan(
		&cycle.ID, &cycle.AccountID, &cycle.Name, &cycle.StartsAt, &cycle.EndsAt, &cycle.CreatedAt,
	)
	if err != nil {
		t.Fatalf("Failed to create review cycle %s: %v", name, err)
	}

	return &cycle
}

func createEmployee(t *testing.T, db *sql.DB, accountID uint, firstName, lastName, email string) models.Employee {
	t.Helper()

	var emp models.Employee
	err := db.QueryRow(`
		INSERT INTO employees (account_id, first_name, last_name, email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, account_id, first_name, last_name, email, created_at
	`, accountID, firstName, lastName, email).Scan(
		&emp.ID, &emp.AccountID, &emp.FirstName, &emp.LastName, &emp.Email, &emp.CreatedAt,
	)
	if err != nil {
		t.Fatalf("Failed to create employee %s: %v", email, err)
	}

	return emp
}

func createRating(t *testing.T, db *sql.DB, accountID, cycleID, employeeID uint, score float64) models.Rating {
	t.Helper()

	var rating models.Rating
	err := db.QueryRow(`
		INSERT INTO ratings (account_id, cycle_id, employee_id, score)
		VALUES ($1, $2, $3, $4)
		RETURNING id, account_id, cycle_id, employee_id, score, created_at, updated_at
	`, accountID, cycleID, employeeID, score).Scan(
		&rating.ID, &rating.AccountID, &rating.CycleID, &rating.EmployeeID,
		&rating.Score, &rating.CreatedAt, &rating.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("Failed to create rating for employee %d: %v", employeeID, err)
	}

	return rating
}

// CreateSession inserts a calibration session in the given status
func (f *Fixtures) CreateSession(t *testing.T, name, status string) *models.CalibrationSession {
	t.Helper()

	var session models.CalibrationSession
	err := f.DB.QueryRow(`
		INSERT INTO calibration_sessions (account_id, cycle_id, name, status, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, account_id, cycle_id, name, status, created_by, created_at, updated_at
	`, f.Account.ID, f.Cycle.ID, name, status, f.AdminUser.ID).Scan(
		&session.ID, &session.AccountID, &session.CycleID, &session.Name,
		&session.Status, &session.CreatedBy, &session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("Failed to create calibration session %s: %v", name, err)
	}

	return &session
}

// CreateAdjustment inserts a pending adjustment against one of the
// fixture ratings
func (f *Fixtures) CreateAdjustment(t *testing.T, sessionID uint, rating models.Rating, calibratedValue float64) *models.CalibrationAdjustment {
	t.Helper()

	var adj models.CalibrationAdjustment
	err := f.DB.QueryRow(`
		INSERT INTO calibration_adjustments (session_id, rating_id, original_value, calibrated_value, justification, status, created_by)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6)
		RETURNING id, session_id, rating_id, original_value, calibrated_value, justification, status, created_by, created_at
	`, sessionID, rating.ID, rating.Score, calibratedValue, "test justification", f.AdminUser.ID).Scan(
		&adj.ID, &adj.SessionID, &adj.RatingID, &adj.OriginalValue, &adj.CalibratedValue,
		&adj.Justification, &adj.Status, &adj.CreatedBy, &adj.CreatedAt,
	)
	if err != nil {
		t.Fatalf("Failed to create adjustment for rating %d: %v", rating.ID, err)
	}

	return &adj
}

// AddParticipant enrolls a user in a session directly
func (f *Fixtures) AddParticipant(t *testing.T, sessionID, userID uint) {
	t.Helper()

	if _, err := f.DB.Exec(
		"INSERT INTO calibration_participants (session_id, user_id) VALUES ($1, $2)",
		sessionID, userID,
	); err != nil {
		t.Fatalf("Failed to add participant %d to session %d: %v", userID, sessionID, err)
	}
}
