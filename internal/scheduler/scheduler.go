package scheduler

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"calibra/internal/config"
	"calibra/internal/email"
	"calibra/internal/repository"
	"calibra/internal/securestore"
)

// Scheduler handles periodic tasks
type Scheduler struct {
	sessionRepo     *repository.CalibrationSessionRepository
	participantRepo *repository.ParticipantRepository
	authSessionRepo *repository.AuthSessionRepository
	emailService    *email.Service
	secureStore     *securestore.SecureStore
	config          *config.SchedulerConfig
	stopChan        chan bool
}

// NewScheduler creates a new scheduler. The email service and secure
// store may be nil; the tasks depending on them are skipped.
func NewScheduler(
	sessionRepo *repository.CalibrationSessionRepository,
	participantRepo *repository.ParticipantRepository,
	authSessionRepo *repository.AuthSessionRepository,
	emailService *email.Service,
	secureStore *securestore.SecureStore,
	cfg *config.SchedulerConfig,
) *Scheduler {
	return &Scheduler{
		sessionRepo:     sessionRepo,
		participantRepo: participantRepo,
		authSessionRepo: authSessionRepo,
		emailService:    emailService,
		secureStore:     secureStore,
		config:          cfg,
		stopChan:        make(chan bool),
	}
}

// Start starts all scheduled tasks
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler",
		"session_reminders_enabled", s.config.EnableSessionReminders,
		"hash_chain_validation_enabled", s.config.EnableHashChainValidation)

	if s.config.EnableSessionReminders {
		if err := s.startCronTask(s.config.SessionReminderCron, "session_reminders", s.sendSessionReminders); err != nil {
			slog.Error("Failed to start session reminders", "error", err)
		}
	}

	if s.config.EnableHashChainValidation {
		if err := s.startCronTask(s.config.HashChainValidationCron, "hash_chain_validation", s.validateHashChains); err != nil {
			slog.Error("Failed to start hash chain validation", "error", err)
		}
	}

	// Expired auth sessions are swept hourly
	go s.scheduleIntervalTask(time.Hour, "auth_session_cleanup", s.cleanupAuthSessions)

	slog.Info("Scheduler started")
}

// startCronTask parses a cron expression and starts the task
// Supports simple cron format: "minute hour day month weekday"
// Examples: "0 9 * * 1" = Monday 9 AM, "0 8 * * *" = Daily 8 AM, "*/5 * * * *" = Every 5 minutes
func (s *Scheduler) startCronTask(cronExpr, taskName string, task func()) error {
	parts := strings.Fields(cronExpr)
	if len(parts) != 5 {
		return fmt.Errorf("invalid cron expression: %s (expected 5 fields)", cronExpr)
	}

	if strings.HasPrefix(parts[0], "*/") {
		interval, err := strconv.Atoi(parts[0][2:])
		if err != nil || interval < 1 || interval > 59 {
			return fmt.Errorf("invalid minute interval in cron: %s", parts[0])
		}
		go s.scheduleIntervalTask(time.Duration(interval)*time.Minute, taskName, task)
		return nil
	}

	minute, err := strconv.Atoi(parts[0])
	if err != nil || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid minute in cron: %s", parts[0])
	}

	if strings.HasPrefix(parts[1], "*/") {
		interval, err := strconv.Atoi(parts[1][2:])
		if err != nil || interval < 1 || interval > 23 {
			return fmt.Errorf("invalid hour interval in cron: %s", parts[1])
		}
		go s.scheduleHourlyIntervalTask(interval, minute, taskName, task)
		return nil
	}

	hour, err := strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return fmt.Errorf("invalid hour in cron: %s", parts[1])
	}

	if parts[4] == "*" {
		go s.scheduleDailyTask(hour, minute, taskName, task)
	} else {
		weekday, err := strconv.Atoi(parts[4])
		if err != nil || weekday < 0 || weekday > 6 {
			return fmt.Errorf("invalid weekday in cron: %s (0-6, 0=Sunday)", parts[4])
		}
		go s.scheduleWeeklyTask(time.Weekday(weekday), hour, minute, taskName, task)
	}

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	slog.Info("Stopping scheduler")
	close(s.stopChan)
}

// scheduleIntervalTask runs a task at regular intervals
func (s *Scheduler) scheduleIntervalTask(interval time.Duration, taskName string, task func()) {
	slog.Info("Starting interval task", "task", taskName, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on start
	slog.Info("Running interval task", "task", taskName)
	task()

	for {
		select {
		case <-ticker.C:
			slog.Info("Running interval task", "task", taskName)
			task()
		case <-s.stopChan:
			return
		}
	}
}

// scheduleHourlyIntervalTask runs a task every N hours at a specific minute
func (s *Scheduler) scheduleHourlyIntervalTask(hourInterval, minute int, taskName string, task func()) {
	slog.Info("Starting hourly interval task", "task", taskName, "interval_hours", hourInterval, "minute", minute)

	for {
		now := time.Now()
		next := s.nextHourlyInterval(now, hourInterval, minute)
		duration := next.Sub(now)

		slog.Info("Next hourly interval task scheduled", "task", taskName, "next_run", next.Format("2006-01-02 15:04:05"))

		select {
		case <-time.After(duration):
			slog.Info("Running hourly interval task", "task", taskName)
			task()
		case <-s.stopChan:
			return
		}
	}
}

// nextHourlyInterval calculates the next run time for hourly intervals
func (s *Scheduler) nextHourlyInterval(from time.Time, hourInterval, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), from.Hour(), minute, 0, 0, from.Location())

	if next.Before(from) || next.Equal(from) {
		next = next.Add(time.Hour)
	}

	for next.Hour()%hourInterval != 0 {
		next = next.Add(time.Hour)
	}

	return next
}

// scheduleWeeklyTask runs a task weekly on a specific weekday and time
func (s *Scheduler) scheduleWeeklyTask(weekday time.Weekday, hour, minute int, taskName string, task func()) {
	for {
		now := time.Now()
		next := s.nextWeekday(now, weekday, hour, minute)
		duration := next.Sub(now)

		slog.Info("Next weekly task scheduled", "task", taskName, "next_run", next.Format("2006-01-02 15:04:05"))

		select {
		case <-time.After(duration):
			slog.Info("Running weekly task", "task", taskName)
			task()
		case <-s.stopChan:
			return
		}
	}
}

// scheduleDailyTask runs a task daily at a specific time
func (s *Scheduler) scheduleDailyTask(hour, minute int, taskName string, task func()) {
	for {
		now := time.Now()
		next := s.nextDailyRun(now, hour, minute)
		duration := next.Sub(now)

		slog.Info("Next daily task scheduled", "task", taskName, "next_run", next.Format("2006-01-02 15:04:05"))

		select {
		case <-time.After(duration):
			slog.Info("Running daily task", "task", taskName)
			task()
		case <-s.stopChan:
			return
		}
	}
}

// nextWeekday calculates the next occurrence of a specific weekday and time
func (s *Scheduler) nextWeekday(from time.Time, weekday time.Weekday, hour, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())

	daysUntil := int(weekday - from.Weekday())
	if daysUntil < 0 {
		daysUntil += 7
	}

	next = next.AddDate(0, 0, daysUntil)

	if next.Before(from) || next.Equal(from) {
		next = next.AddDate(0, 0, 7)
	}

	return next
}

// nextDailyRun calculates the next daily run time
func (s *Scheduler) nextDailyRun(from time.Time, hour, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())

	if next.Before(from) || next.Equal(from) {
		next = next.AddDate(0, 0, 1)
	}

	return next
}

// sendSessionReminders emails every participant of sessions scheduled
// within the configured lead window
func (s *Scheduler) sendSessionReminders() {
	if s.emailService == nil {
		slog.Warn("Session reminders skipped - email is not configured")
		return
	}

	slog.Info("Sending session reminders")

	now := time.Now()
	until := now.Add(time.Duration(s.config.ReminderLeadHours) * time.Hour)

	sessions, err := s.sessionRepo.ListScheduledBetween(now, until)
	if err != nil {
		slog.Error("Failed to list scheduled sessions", "error", err)
		return
	}

	remindersSent := 0
	for _, session := range sessions {
		if session.IsClosed() || session.ScheduledAt == nil {
			continue
		}

		participants, err := s.participantRepo.GetBySession(session.ID)
		if err != nil {
			slog.Error("Failed to get participants", "session_id", session.ID, "error", err)
			continue
		}

		for _, p := range participants {
			name := fmt.Sprintf("%s %s", p.FirstName, p.LastName)
			if err := s.emailService.SendSessionReminder(p.Email, name, session.Name, *session.ScheduledAt); err != nil {
				slog.Error("Failed to send session reminder",
					"session_id", session.ID,
					"participant_email", p.Email,
					"error", err,
				)
				continue
			}
			remindersSent++
		}
	}

	slog.Info("Session reminders completed", "reminders_sent", remindersSent)
}

// cleanupAuthSessions removes expired auth sessions
func (s *Scheduler) cleanupAuthSessions() {
	if err := s.authSessionRepo.DeleteExpired(); err != nil {
		slog.Error("Failed to delete expired auth sessions", "error", err)
	}
}

// validateHashChains verifies every session's evidence chain
func (s *Scheduler) validateHashChains() {
	if s.secureStore == nil {
		slog.Warn("Hash chain validation skipped - Vault is disabled")
		return
	}

	slog.Info("Starting hash chain validation")

	sessionIDs, err := s.secureStore.ListChainedSessions()
	if err != nil {
		slog.Error("Failed to list sessions for hash chain validation", "error", err)
		return
	}

	if len(sessionIDs) == 0 {
		slog.Info("No evidence chains to validate")
		return
	}

	validSessions := 0
	var failedSessions []uint

	for _, sessionID := range sessionIDs {
		valid, problems, err := s.secureStore.VerifyChain(sessionID)
		if err != nil {
			slog.Error("Hash chain validation error", "session_id", sessionID, "error", err)
			failedSessions = append(failedSessions, sessionID)
			continue
		}

		if !valid {
			slog.Warn("Hash chain validation failed", "session_id", sessionID, "problems", problems)
			failedSessions = append(failedSessions, sessionID)
		} else {
			validSessions++
		}
	}

	slog.Info("Hash chain validation completed",
		"total_sessions", len(sessionIDs),
		"valid_sessions", validSessions,
		"failed_sessions", len(failedSessions),
	)
}
