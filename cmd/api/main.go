package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "calibra/docs" // This is for Swagger
	"calibra/internal/auth"
	"calibra/internal/config"
	"calibra/internal/database"
	"calibra/internal/email"
	"calibra/internal/handlers"
	"calibra/internal/keymanager"
	"calibra/internal/logger"
	"calibra/internal/middleware"
	"calibra/internal/repository"
	"calibra/internal/scheduler"
	"calibra/internal/securestore"
	"calibra/internal/service"
	"calibra/internal/vault"

	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Calibra API
// @version 1.0
// @description Backend API for the Calibra performance calibration platform
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@calibra.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logger
	logger.Setup(logger.Config{
		Level: cfg.Log.Level,
	})

	slog.Info("Starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"env", cfg.App.Env,
		"log_level", cfg.Log.Level,
	)

	// Initialize database
	db, err := database.New(&cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func(db *database.Database) {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}(db)

	slog.Info("Database connection established")

	// Run database migrations
	migrator := database.NewMigrationExecutor(db.DB)
	if err := migrator.RunMigrations("./migrations"); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.DB)
	roleRepo := repository.NewRoleRepository(db.DB)
	authSessionRepo := repository.NewAuthSessionRepository(db.DB)
	auditRepo := repository.NewAuditRepository(db.DB)
	sessionRepo := repository.NewCalibrationSessionRepository(db.DB)
	participantRepo := repository.NewParticipantRepository(db.DB)
	adjustmentRepo := repository.NewAdjustmentRepository(db.DB)
	ratingRepo := repository.NewRatingRepository(db.DB)

	// Initialize services
	authService := auth.NewService(&cfg.JWT)
	emailService := email.NewService(&cfg.Email)
	auditSvc := service.NewAuditService(auditRepo)
	authSvc := service.NewAuthService(userRepo, authSessionRepo, authService, cfg.JWT.Expiration, cfg.JWT.RefreshExpiration)

	// Initialize the evidence store (if Vault is enabled)
	var secureStore *securestore.SecureStore
	var evidenceVault service.EvidenceVault
	if cfg.Vault.Enabled {
		slog.Info("Vault is enabled - initializing evidence store")
		vaultClient, err := vault.NewClient(&vault.Config{
			Address:      cfg.Vault.Address,
			Token:        cfg.Vault.Token,
			TransitMount: cfg.Vault.TransitMount,
		})
		if err != nil {
			slog.Error("Failed to initialize Vault client", "error", err)
			os.Exit(1)
		}
		if err := vaultClient.Health(); err != nil {
			slog.Error("Vault is not ready", "error", err)
			os.Exit(1)
		}

		keyManager, err := keymanager.NewKeyManager(db.DB, vaultClient)
		if err != nil {
			slog.Error("Failed to initialize KeyManager", "error", err)
			os.Exit(1)
		}

		secureStore = securestore.NewSecureStore(db.DB, keyManager)
		evidenceVault = secureStore

		slog.Info("Evidence store initialized", "vault_addr", cfg.Vault.Address)
	} else {
		slog.Warn("Vault is disabled - calibration evidence will not be sealed")
	}

	calibrationSvc := service.NewCalibrationService(
		sessionRepo,
		participantRepo,
		adjustmentRepo,
		ratingRepo,
		userRepo,
		auditSvc,
		emailService,
		evidenceVault,
	)

	// Initialize scheduler
	schedulerService := scheduler.NewScheduler(sessionRepo, participantRepo, authSessionRepo, emailService, secureStore, &cfg.Scheduler)
	schedulerService.Start()
	defer schedulerService.Stop()

	// Initialize middleware
	authMw := middleware.NewAuthMiddleware(authService, authSessionRepo)
	rbacMw := middleware.NewRBACMiddleware(db.DB)
	corsMw := middleware.NewCORSMiddleware(&cfg.CORS)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)
	auditMw := middleware.NewAuditMiddleware(db.DB)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authSvc, auditSvc)
	userHandler := handlers.NewUserHandler(userRepo, roleRepo)
	auditHandler := handlers.NewAuditHandler(auditSvc)
	calibrationHandler := handlers.NewCalibrationHandler(calibrationSvc)

	// Setup router
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", authHandler.RefreshToken)

	// Authenticated routes
	mux.Handle("POST /api/v1/auth/logout", authMw.Authenticate(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/v1/users/profile", authMw.Authenticate(http.HandlerFunc(userHandler.GetProfile)))
	mux.Handle("PATCH /api/v1/users/profile", authMw.Authenticate(http.HandlerFunc(userHandler.UpdateProfile)))
	mux.Handle("GET /api/v1/users",
		authMw.Authenticate(
			rbacMw.RequireAnyRole("hr_admin", "manager")(
				http.HandlerFunc(userHandler.ListUsers),
			),
		),
	)

	// Calibration session routes. Reads are open to every role; session
	// lifecycle changes are hr_admin only; adjustments may also come from
	// managers on the panel.
	mux.Handle("GET /api/v1/calibration/sessions",
		authMw.Authenticate(
			rbacMw.RequireAnyRole("hr_admin", "manager", "viewer")(
				http.HandlerFunc(calibrationHandler.ListSessions),
			),
		),
	)
	mux.Handle("GET /api/v1/calibration/sessions/{id}",
		authMw.Authenticate(
			rbacMw.RequireAnyRole("hr_admin", "manager", "viewer")(
				http.HandlerFunc(calibrationHandler.GetSession),
			),
		),
	)
	mux.Handle("GET /api/v1/calibration/sessions/{id}/close-preview",
		authMw.Authenticate(
			rbacMw.RequireAnyRole("hr_admin", "manager", "viewer")(
				http.HandlerFunc(calibrationHandler.ClosePreview),
			),
		),
	)
	mux.Handle("GET /api/v1/calibration/sessions/{id}/audit",
		authMw.Authenticate(
			rbacMw.RequireAnyRole("hr_admin", "manager", "viewer")(
				http.HandlerFunc(auditHandler.GetSessionAuditTrail),
			),
		),
	)
	mux.Handle("POST /api/v1/calibration/sessions",
		authMw.Authenticate(
			rbacMw.RequireRole("hr_admin")(
				http.HandlerFunc(calibrationHandler.CreateSession),
			),
		),
	)
	mux.Handle("PATCH /api/v1/calibration/sessions/{id}",
		authMw.Authenticate(
			rbacMw.RequireRole("hr_admin")(
				http.HandlerFunc(calibrationHandler.UpdateSession),
			),
		),
	)
	mux.Handle("DELETE /api/v1/calibration/sessions/{id}",
		authMw.Authenticate(
			rbacMw.RequireRole("hr_admin")(
				auditMw.Log("cancel.requested", "calibration_session")(
					http.HandlerFunc(calibrationHandler.CancelSession),
				),
			),
		),
	)
	mux.Handle("POST /api/v1/calibration/sessions/{id}/close",
		authMw.Authenticate(
			rbacMw.RequireRole("hr_admin")(
				auditMw.Log("close.requested", "calibration_session")(
					http.HandlerFunc(calibrationHandler.CloseSession),
				),
			),
		),
	)
	mux.Handle("POST /api/v1/calibration/sessions/{id}/participants",
		authMw.Authenticate(
			rbacMw.RequireRole("hr_admin")(
				http.HandlerFunc(calibrationHandler.AddParticipant),
			),
		),
	)
	mux.Handle("DELETE /api/v1/calibration/sessions/{id}/participants/{userID}",
		authMw.Authenticate(
			rbacMw.RequireRole("hr_admin")(
				http.HandlerFunc(calibrationHandler.RemoveParticipant),
			),
		),
	)
	mux.Handle("POST /api/v1/calibration/sessions/{id}/adjustments",
		authMw.Authenticate(
			rbacMw.RequireAnyRole("hr_admin", "manager")(
				http.HandlerFunc(calibrationHandler.CreateAdjustment),
			),
		),
	)
	mux.Handle("PUT /api/v1/calibration/sessions/{id}/adjustments/{adjustmentID}",
		authMw.Authenticate(
			rbacMw.RequireAnyRole("hr_admin", "manager")(
				http.HandlerFunc(calibrationHandler.UpdateAdjustment),
			),
		),
	)
	mux.Handle("DELETE /api/v1/calibration/sessions/{id}/adjustments/{adjustmentID}",
		authMw.Authenticate(
			rbacMw.RequireAnyRole("hr_admin", "manager")(
				http.HandlerFunc(calibrationHandler.DeleteAdjustment),
			),
		),
	)

	// Admin routes
	mux.Handle("GET /api/v1/admin/roles",
		authMw.Authenticate(
			rbacMw.RequireRole("hr_admin")(
				http.HandlerFunc(userHandler.ListRoles),
			),
		),
	)
	mux.Handle("GET /api/v1/admin/audit-logs",
		authMw.Authenticate(
			rbacMw.RequireRole("hr_admin")(
				http.HandlerFunc(auditHandler.ListAuditLogs),
			),
		),
	)

	// Health check endpoint
	mux.HandleFunc("/health", healthHandler(db, cfg.App.Version))

	// Swagger documentation
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	// Apply global middleware
	handler := middleware.LoggingMiddleware(
		middleware.SecurityHeaders(
			corsMw.Handler(
				rateLimiter.Limit(mux),
			),
		),
	)

	// Create server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped")
}
