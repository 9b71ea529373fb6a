package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"calibra/internal/auth"
	"calibra/internal/models"
	"calibra/internal/repository"
)

// TokenPair is the result of a successful login or refresh
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessJTI    string
	RefreshJTI   string
}

// AuthService handles authentication business logic
type AuthService struct {
	userRepo    *repository.UserRepository
	sessionRepo *repository.AuthSessionRepository
	authSvc     *auth.Service
	jwtExp      time.Duration
	refreshExp  time.Duration
}

// NewAuthService creates a new authentication service
func NewAuthService(
	userRepo *repository.UserRepository,
	sessionRepo *repository.AuthSessionRepository,
	authSvc *auth.Service,
	jwtExp, refreshExp time.Duration,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		authSvc:     authSvc,
		jwtExp:      jwtExp,
		refreshExp:  refreshExp,
	}
}

// Login authenticates a user and issues a token pair. Invalid email,
// wrong password and inactive account all collapse to ErrUnauthorized so
// the response never reveals which check failed.
func (s *AuthService) Login(email, password, ipAddress, userAgent string) (*TokenPair, *models.User, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, nil, ErrUnauthorized
	}

	if err := s.authSvc.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, nil, ErrUnauthorized
	}

	if !user.IsActive {
		return nil, nil, ErrUnauthorized
	}

	pair, err := s.issueTokens(user, ipAddress, userAgent)
	if err != nil {
		return nil, nil, err
	}

	return pair, user, nil
}

// RefreshToken rotates a refresh token into a new token pair. The old
// refresh token is revoked before the new pair is recorded.
func (s *AuthService) RefreshToken(refreshToken, ipAddress, userAgent string) (*TokenPair, *models.User, error) {
	claims, err := s.authSvc.ValidateToken(refreshToken)
	if err != nil {
		return nil, nil, ErrUnauthorized
	}

	if claims.ID == "" {
		return nil, nil, ErrUnauthorized
	}

	session, err := s.sessionRepo.GetByJTI(claims.ID)
	if err != nil {
		return nil, nil, ErrUnauthorized
	}

	if session.UserID != claims.UserID || session.TokenType != "refresh" {
		return nil, nil, ErrUnauthorized
	}

	user, err := s.userRepo.GetByID(claims.UserID, claims.AccountID)
	if err != nil {
		return nil, nil, ErrUnauthorized
	}
	if !user.IsActive {
		return nil, nil, ErrUnauthorized
	}

	if err := s.sessionRepo.DeleteByJTI(claims.ID); err != nil {
		slog.Warn("Failed to revoke rotated refresh token", "jti", claims.ID, "error", err)
	}

	pair, err := s.issueTokens(user, ipAddress, userAgent)
	if err != nil {
		return nil, nil, err
	}

	return pair, user, nil
}

// Logout revokes the token the request authenticated with. The JTI is
// extracted without validation so logout works with expired tokens too.
func (s *AuthService) Logout(token string) error {
	jti, err := s.authSvc.ExtractJTI(token)
	if err != nil {
		return fmt.Errorf("failed to extract JTI: %w", err)
	}
	if jti == "" {
		return errors.New("token missing JTI")
	}
	return s.sessionRepo.DeleteByJTI(jti)
}

// LogoutAll revokes every token of a user
func (s *AuthService) LogoutAll(userID uint) error {
	return s.sessionRepo.DeleteAllUserSessions(userID)
}

// ValidateAccessToken checks signature, expiry and revocation of an access
// token, and returns its claims.
func (s *AuthService) ValidateAccessToken(token string) (*auth.JWTClaims, error) {
	claims, err := s.authSvc.ValidateToken(token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	session, err := s.sessionRepo.GetByJTI(claims.ID)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if session.TokenType != "access" {
		return nil, ErrUnauthorized
	}

	_ = s.sessionRepo.UpdateLastActivity(session.ID)

	return claims, nil
}

// GetUserRoles retrieves all roles for a user
func (s *AuthService) GetUserRoles(userID uint) ([]models.Role, error) {
	return s.userRepo.GetUserRoles(userID)
}

// ResolveAccountID maps an email to its tenant, for attributing failed
// logins in the audit trail. Unknown emails have no tenant to attribute
// to; callers skip the audit write in that case.
func (s *AuthService) ResolveAccountID(email string) (uint, bool) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return 0, false
	}
	return user.AccountID, true
}

func (s *AuthService) issueTokens(user *models.User, ipAddress, userAgent string) (*TokenPair, error) {
	accessToken, accessJTI, err := s.authSvc.GenerateToken(user.ID, user.AccountID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, refreshJTI, err := s.authSvc.GenerateRefreshToken(user.ID, user.AccountID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := time.Now()
	if err := s.recordSession(user.ID, accessJTI, "access", ipAddress, userAgent, now.Add(s.jwtExp)); err != nil {
		return nil, err
	}
	if err := s.recordSession(user.ID, refreshJTI, "refresh", ipAddress, userAgent, now.Add(s.refreshExp)); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessJTI:    accessJTI,
		RefreshJTI:   refreshJTI,
	}, nil
}

func (s *AuthService) recordSession(userID uint, jti, tokenType, ipAddress, userAgent string, expiresAt time.Time) error {
	id, err := auth.GenerateRandomToken(16)
	if err != nil {
		return fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &models.AuthSession{
		ID:             id,
		UserID:         userID,
		JTI:            jti,
		TokenType:      tokenType,
		ExpiresAt:      expiresAt,
		LastActivityAt: time.Now(),
		CreatedAt:      time.Now(),
		IPAddress:      ipAddress,
		UserAgent:      userAgent,
	}

	if err := s.sessionRepo.Create(session); err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}
