package auth

import (
	"testing"
	"time"

	"calibra/internal/config"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		Secret:            "test-secret",
		Expiration:        24 * time.Hour,
		RefreshExpiration: 168 * time.Hour,
	}
}

func TestHashPassword(t *testing.T) {
	svc := NewService(testJWTConfig())

	password := "testpassword123"
	hash, err := svc.HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	if hash == "" {
		t.Error("Hash should not be empty")
	}

	if hash == password {
		t.Error("Hash should not equal the original password")
	}
}

func TestVerifyPassword(t *testing.T) {
	svc := NewService(testJWTConfig())

	password := "testpassword123"
	hash, err := svc.HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	// Test correct password
	err = svc.VerifyPassword(hash, password)
	if err != nil {
		t.Errorf("Should verify correct password, got error: %v", err)
	}

	// Test incorrect password
	err = svc.VerifyPassword(hash, "wrongpassword")
	if err == nil {
		t.Error("Should not verify incorrect password")
	}
}

func TestGenerateToken(t *testing.T) {
	svc := NewService(testJWTConfig())

	token, jti, err := svc.GenerateToken(1, 1, "test@example.com")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if token == "" {
		t.Error("Token should not be empty")
	}

	if jti == "" {
		t.Error("JTI should not be empty")
	}
}

func TestValidateToken(t *testing.T) {
	svc := NewService(testJWTConfig())

	userID := uint(7)
	accountID := uint(3)
	email := "test@example.com"

	token, jti, err := svc.GenerateToken(userID, accountID, email)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("Expected user ID %d, got %d", userID, claims.UserID)
	}

	if claims.AccountID != accountID {
		t.Errorf("Expected account ID %d, got %d", accountID, claims.AccountID)
	}

	if claims.Email != email {
		t.Errorf("Expected email %s, got %s", email, claims.Email)
	}

	if claims.ID != jti {
		t.Errorf("Expected JTI %s, got %s", jti, claims.ID)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	cfg.Expiration = -1 * time.Hour // Already expired
	svc := NewService(cfg)

	token, _, err := svc.GenerateToken(1, 1, "test@example.com")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	_, err = svc.ValidateToken(token)
	if err == nil {
		t.Error("Should reject expired token")
	}
}

func TestExtractJTIFromExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	cfg.Expiration = -1 * time.Hour
	svc := NewService(cfg)

	token, jti, err := svc.GenerateToken(1, 1, "test@example.com")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	extracted, err := svc.ExtractJTI(token)
	if err != nil {
		t.Fatalf("Failed to extract JTI from expired token: %v", err)
	}

	if extracted != jti {
		t.Errorf("Expected JTI %s, got %s", jti, extracted)
	}
}

func TestGenerateRandomToken(t *testing.T) {
	token1, err := GenerateRandomToken(32)
	if err != nil {
		t.Fatalf("Failed to generate random token: %v", err)
	}

	if token1 == "" {
		t.Error("Token should not be empty")
	}

	// Generate another token and ensure they're different
	token2, err := GenerateRandomToken(32)
	if err != nil {
		t.Fatalf("Failed to generate second random token: %v", err)
	}

	if token1 == token2 {
		t.Error("Random tokens should be different")
	}
}
