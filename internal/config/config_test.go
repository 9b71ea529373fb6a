package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.JWT.Expiration != 24*time.Hour {
		t.Errorf("Expected default JWT expiration 24h, got %v", cfg.JWT.Expiration)
	}
	if cfg.Scheduler.ReminderLeadHours != 24 {
		t.Errorf("Expected default reminder lead 24h, got %d", cfg.Scheduler.ReminderLeadHours)
	}
	if cfg.Vault.Enabled {
		t.Error("Expected Vault to be disabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("JWT_EXPIRATION", "1h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SCHEDULER_ENABLE_SESSION_REMINDERS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.JWT.Expiration != time.Hour {
		t.Errorf("Expected JWT expiration 1h, got %v", cfg.JWT.Expiration)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("Expected trimmed origin list, got %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Scheduler.EnableSessionReminders {
		t.Error("Expected session reminders to be disabled")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "missing jwt secret",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name: "missing db password in production",
			cfg: Config{
				JWT: JWTConfig{Secret: "s"},
				App: AppConfig{Env: "production"},
			},
			wantErr: true,
		},
		{
			name: "missing db password in development",
			cfg: Config{
				JWT: JWTConfig{Secret: "s"},
				App: AppConfig{Env: "development"},
			},
			wantErr: false,
		},
		{
			name: "vault enabled without token",
			cfg: Config{
				JWT:   JWTConfig{Secret: "s"},
				Vault: VaultConfig{Enabled: true},
			},
			wantErr: true,
		},
		{
			name: "vault enabled with token",
			cfg: Config{
				JWT:   JWTConfig{Secret: "s"},
				Vault: VaultConfig{Enabled: true, Token: "t"},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}
