package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/Baktybeks/city-event-search-sub001/internal/app/guard"
	"github.com/Baktybeks/city-event-search-sub001/internal/app/middleware"
	"github.com/Baktybeks/city-event-search-sub001/internal/app/models"
	"github.com/Baktybeks/city-event-search-sub001/internal/app/observability/metrics"
	"github.com/Baktybeks/city-event-search-sub001/internal/app/session"
	"github.com/Baktybeks/city-event-search-sub001/internal/pkg/config"
)

// refreshCookieName holds the rotating refresh token, scoped to the auth
// API so it never rides along on page requests.
const refreshCookieName = "refresh_token"

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
	Role            string `json:"role"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

type UpdateProfileRequest struct {
	Name      string `json:"name" binding:"required"`
	AvatarURL string `json:"avatarUrl"`
}

type AuthHandlers struct {
	authService AuthService
	cfg         *config.Config
	logger      *zap.Logger
}

func NewAuthHandlers(authService AuthService, cfg *config.Config, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{authService: authService, cfg: cfg, logger: logger}
}

// LoginHandler authenticates credentials, sets the identity cookies, and
// mirrors the user into the session snapshot for the edge gatekeeper.
func (h *AuthHandlers) LoginHandler(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, accessToken, refreshToken, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		recordAuthRequest(c.Request.Context(), "login", false)
		if errors.Is(err, models.ErrNotActivated) {
			c.JSON(http.StatusForbidden, gin.H{"error": "account is not activated", "code": "ACCOUNT_NOT_ACTIVATED"})
			return
		}
		h.logger.Warn("Login failed", zap.String("email", req.Email), zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	recordAuthRequest(c.Request.Context(), "login", true)
	h.installSession(c, user, accessToken, refreshToken)

	h.logger.Info("Successful login", zap.String("user_id", user.ID), zap.String("email", user.Email))
	c.JSON(http.StatusOK, gin.H{"user": user, "redirect": models.CanonicalHome(user.Role)})
}

// RegisterHandler creates an account and logs it in immediately.
func (h *AuthHandlers) RegisterHandler(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "all required fields must be filled"})
		return
	}
	if req.Password != req.ConfirmPassword {
		c.JSON(http.StatusBadRequest, gin.H{"error": "passwords do not match"})
		return
	}

	user, accessToken, refreshToken, err := h.authService.Register(
		c.Request.Context(), req.Name, req.Email, req.Password, models.Role(req.Role))
	if err != nil {
		recordAuthRequest(c.Request.Context(), "register", false)
		switch {
		case errors.Is(err, models.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "email is already registered"})
		case errors.Is(err, models.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid registration data"})
		default:
			h.logger.Error("Registration failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}

	recordAuthRequest(c.Request.Context(), "register", true)
	h.installSession(c, user, accessToken, refreshToken)

	h.logger.Info("Successful registration",
		zap.String("user_id", user.ID),
		zap.String("email", user.Email),
		zap.String("role", string(user.Role)),
	)
	c.JSON(http.StatusCreated, gin.H{"user": user, "redirect": models.CanonicalHome(user.Role)})
}

// LogoutHandler revokes the refresh token and clears every session cookie,
// including the gatekeeper's snapshot.
func (h *AuthHandlers) LogoutHandler(c *gin.Context) {
	if refreshToken, err := c.Cookie(refreshCookieName); err == nil && refreshToken != "" {
		if err := h.authService.Logout(c.Request.Context(), refreshToken); err != nil {
			h.logger.Warn("Logout cleanup failed", zap.Error(err))
		}
	}

	h.clearSession(c)
	h.logger.Info("User logout")
	c.JSON(http.StatusOK, gin.H{"redirect": "/"})
}

// RefreshHandler rotates the refresh token and reissues the identity
// cookies and snapshot.
func (h *AuthHandlers) RefreshHandler(c *gin.Context) {
	refreshToken, err := c.Cookie(refreshCookieName)
	if err != nil || refreshToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing refresh token"})
		return
	}

	user, accessToken, newRefreshToken, err := h.authService.RefreshSession(c.Request.Context(), refreshToken)
	if err != nil {
		recordAuthRequest(c.Request.Context(), "refresh", false)
		h.clearSession(c)
		if errors.Is(err, models.ErrNotActivated) {
			c.JSON(http.StatusForbidden, gin.H{"error": "account is not activated", "code": "ACCOUNT_NOT_ACTIVATED"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}

	recordAuthRequest(c.Request.Context(), "refresh", true)
	h.installSession(c, user, accessToken, newRefreshToken)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// MeHandler returns the authoritative user placed in context by the guard.
func (h *AuthHandlers) MeHandler(c *gin.Context) {
	user := middleware.GetUserFromContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateProfileHandler updates mutable profile fields and merges the
// change into the session snapshot.
func (h *AuthHandlers) UpdateProfileHandler(c *gin.Context) {
	user := middleware.GetUserFromContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	updated, err := h.authService.UpdateProfile(c.Request.Context(), user.ID, req.Name, req.AvatarURL)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile data"})
			return
		}
		h.logger.Error("Profile update failed", zap.String("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile update failed"})
		return
	}

	store := session.FromRequest(c, h.cfg.Session.CookieSecure, h.logger)
	store.UpdateUser(session.UserPatch{Name: &updated.Name, AvatarURL: &updated.AvatarURL})

	c.JSON(http.StatusOK, gin.H{"user": updated})
}

// ChangePasswordHandler verifies and replaces the password; every other
// device is logged out by the refresh-token invalidation.
func (h *AuthHandlers) ChangePasswordHandler(c *gin.Context) {
	user := middleware.GetUserFromContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "all fields are required"})
		return
	}

	err := h.authService.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, models.ErrUnauthenticated) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "current password is incorrect"})
			return
		}
		h.logger.Error("Password change failed", zap.String("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "password change failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "password changed"})
}

func recordAuthRequest(ctx context.Context, operation string, success bool) {
	m := metrics.Get()
	if m == nil {
		return
	}
	m.AuthRequestsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.Bool("success", success),
		))
}

func (h *AuthHandlers) installSession(c *gin.Context, user *models.User, accessToken, refreshToken string) {
	secure := h.cfg.Session.CookieSecure
	accessMaxAge := int(h.cfg.JWT.AccessTokenTTL.Seconds())
	refreshMaxAge := int(h.cfg.JWT.RefreshTokenTTL.Seconds())

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(guard.AuthCookieName, accessToken, accessMaxAge, "/", "", secure, true)
	c.SetCookie(refreshCookieName, refreshToken, refreshMaxAge, "/api/auth", "", secure, true)

	store := session.FromRequest(c, secure, h.logger)
	store.SetUser(user)
}

func (h *AuthHandlers) clearSession(c *gin.Context) {
	secure := h.cfg.Session.CookieSecure
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(guard.AuthCookieName, "", -1, "/", "", secure, true)
	c.SetCookie(refreshCookieName, "", -1, "/api/auth", "", secure, true)

	store := session.FromRequest(c, secure, h.logger)
	store.ClearUser()
}
