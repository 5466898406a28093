package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Baktybeks/city-event-search-sub001/internal/app/models"
	"github.com/Baktybeks/city-event-search-sub001/internal/pkg/config"
)

// Ensure implementation satisfies the interface
var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService defines the business logic contract.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.User, string, string, error)
	Register(ctx context.Context, name, email, password string, role models.Role) (*models.User, string, string, error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshSession(ctx context.Context, refreshToken string) (*models.User, string, string, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	UpdateProfile(ctx context.Context, userID, name, avatarURL string) (*models.User, error)

	// CurrentUser is the identity-resolution collaborator consumed by the
	// route guard: full record for active accounts, ErrNotActivated for
	// deactivated ones, ErrNotFound when no such account exists.
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
}

// AuthServiceImpl provides the implementation for AuthService.
type AuthServiceImpl struct {
	logger *zap.Logger
	repo   AuthRepo
	tokens *JWTService
	cfg    *config.Config
}

// NewAuthService creates a new authentication service instance.
func NewAuthService(repo AuthRepo, cfg *config.Config, logger *zap.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger: logger,
		repo:   repo,
		tokens: NewJWTService(cfg.JWT),
		cfg:    cfg,
	}
}

// Tokens exposes the token service so the router can hand it to the guard.
func (s *AuthServiceImpl) Tokens() *JWTService {
	return s.tokens
}

// Login validates credentials and returns the user with a fresh access and
// refresh token pair.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*models.User, string, string, error) {
	l := s.logger.With(zap.String("method", "Login"), zap.String("email", email))
	l.Debug("Attempting login")

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		l.Warn("GetUserByEmail failed", zap.Error(err))
		// Don't reveal whether the account exists.
		return nil, "", "", fmt.Errorf("invalid credentials: %w", models.ErrUnauthenticated)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		l.Warn("Password comparison failed", zap.String("user_id", user.ID))
		return nil, "", "", fmt.Errorf("invalid credentials: %w", models.ErrUnauthenticated)
	}

	if !user.IsActive {
		l.Warn("Login rejected for deactivated account", zap.String("user_id", user.ID))
		return nil, "", "", fmt.Errorf("account %s: %w", user.ID, models.ErrNotActivated)
	}

	accessToken, refreshToken, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, "", "", err
	}

	l.Info("Login successful", zap.String("user_id", user.ID))
	return user, accessToken, refreshToken, nil
}

// Register creates an account and logs it in. The very first account in
// the system becomes an administrator so the initial-setup flow has an
// owner; later self-signups may pick USER or ORGANIZER only.
func (s *AuthServiceImpl) Register(ctx context.Context, name, email, password string, role models.Role) (*models.User, string, string, error) {
	l := s.logger.With(zap.String("method", "Register"), zap.String("email", email))
	l.Debug("Attempting registration")

	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "AuthService.Register")
	span.SetAttributes(attribute.String("email", email))
	defer span.End()

	if role == "" {
		role = models.RoleUser
	}
	if role == models.RoleAdmin || !role.Valid() {
		return nil, "", "", fmt.Errorf("role %q not allowed for self-signup: %w", role, models.ErrValidation)
	}

	total, err := s.repo.CountUsers(ctx)
	if err != nil {
		l.Error("Failed to count users", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "user count failed")
		return nil, "", "", fmt.Errorf("registration failed: %w", err)
	}
	if total == 0 {
		role = models.RoleAdmin
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		l.Error("Failed to hash password", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "password hashing failed")
		return nil, "", "", fmt.Errorf("could not process password")
	}

	user, err := s.repo.CreateUser(ctx, name, email, string(hashed), role)
	if err != nil {
		l.Error("Repository registration failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository registration failed")
		return nil, "", "", fmt.Errorf("registration failed: %w", err)
	}

	accessToken, refreshToken, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, "", "", err
	}

	l.Info("Registration successful", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	span.SetStatus(codes.Ok, "user registered")
	return user, accessToken, refreshToken, nil
}

// Logout invalidates the provided refresh token.
func (s *AuthServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	l := s.logger.With(zap.String("method", "Logout"))
	if err := s.repo.InvalidateRefreshToken(ctx, refreshToken); err != nil {
		// Logout still succeeds for the client; the token is gone from
		// their cookies either way.
		l.Warn("Failed to invalidate refresh token", zap.Error(err))
	}
	l.Info("Logout successful")
	return nil
}

// RefreshSession validates the refresh token, rotates it, and returns new
// tokens with the current user record.
func (s *AuthServiceImpl) RefreshSession(ctx context.Context, refreshToken string) (*models.User, string, string, error) {
	l := s.logger.With(zap.String("method", "RefreshSession"))
	l.Debug("Attempting token refresh")

	userID, err := s.repo.ValidateRefreshTokenAndGetUserID(ctx, refreshToken)
	if err != nil {
		l.Warn("Refresh token validation failed", zap.Error(err))
		return nil, "", "", fmt.Errorf("invalid or expired refresh token: %w", models.ErrUnauthenticated)
	}

	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		// The token outlived the account's access; revoke it.
		if revokeErr := s.repo.InvalidateRefreshToken(ctx, refreshToken); revokeErr != nil {
			l.Warn("Failed to revoke orphaned refresh token", zap.Error(revokeErr))
		}
		return nil, "", "", err
	}

	accessToken, newRefreshToken, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, "", "", err
	}

	// Rotation: the old token must not remain usable.
	if err := s.repo.InvalidateRefreshToken(ctx, refreshToken); err != nil {
		l.Warn("Failed to invalidate old refresh token during rotation", zap.Error(err))
	}

	l.Info("Token refresh successful", zap.String("user_id", user.ID))
	return user, accessToken, newRefreshToken, nil
}

// CurrentUser implements the identity resolver contract described on the
// interface.
func (s *AuthServiceImpl) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("account %s: %w", user.ID, models.ErrNotActivated)
	}
	return user, nil
}

// ChangePassword verifies the old password, stores the new hash, and
// invalidates every refresh token for the account.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	l := s.logger.With(zap.String("method", "ChangePassword"), zap.String("user_id", userID))

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		l.Warn("Old password verification failed")
		return fmt.Errorf("incorrect old password: %w", models.ErrUnauthenticated)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		l.Error("Failed to hash new password", zap.Error(err))
		return fmt.Errorf("could not process new password")
	}

	if err := s.repo.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		l.Error("Repository password update failed", zap.Error(err))
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.repo.InvalidateAllUserRefreshTokens(ctx, userID); err != nil {
		// Password update succeeded; stale refresh tokens are a warning,
		// not a failure.
		l.Warn("Failed to invalidate refresh tokens after password change", zap.Error(err))
	}

	l.Info("Password updated")
	return nil
}

// UpdateProfile stores new profile fields and returns the fresh record.
func (s *AuthServiceImpl) UpdateProfile(ctx context.Context, userID, name, avatarURL string) (*models.User, error) {
	if name == "" {
		return nil, fmt.Errorf("name cannot be empty: %w", models.ErrValidation)
	}
	if err := s.repo.UpdateProfile(ctx, userID, name, avatarURL); err != nil {
		return nil, err
	}
	return s.repo.GetUserByID(ctx, userID)
}

func (s *AuthServiceImpl) issueTokens(ctx context.Context, user *models.User) (string, string, error) {
	l := s.logger.With(zap.String("user_id", user.ID))

	accessToken, err := s.tokens.GenerateToken(user)
	if err != nil {
		l.Error("Failed to sign access token", zap.Error(err))
		return "", "", fmt.Errorf("internal error generating tokens: %w", err)
	}

	refreshToken := uuid.NewString()
	expiresAt := time.Now().Add(s.cfg.JWT.RefreshTokenTTL)
	if err := s.repo.StoreRefreshToken(ctx, user.ID, refreshToken, expiresAt); err != nil {
		l.Error("Failed to store refresh token", zap.Error(err))
		return "", "", fmt.Errorf("internal error storing session: %w", err)
	}

	return accessToken, refreshToken, nil
}

const serviceName = "city-event-search"
