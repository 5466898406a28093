package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Baktybeks/city-event-search-sub001/internal/app/models"
)

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type AdminHandlers struct {
	adminService AdminService
	logger       *zap.Logger
}

func NewAdminHandlers(adminService AdminService, logger *zap.Logger) *AdminHandlers {
	return &AdminHandlers{adminService: adminService, logger: logger}
}

// CheckAdminsHandler answers the registration page's initial-setup probe.
// Always 200; backend trouble degrades to the first-user defaults inside
// the service.
func (h *AdminHandlers) CheckAdminsHandler(c *gin.Context) {
	status := h.adminService.CheckAdmins(c.Request.Context())
	c.JSON(http.StatusOK, status)
}

// ListUsersHandler lists accounts for the admin console, optionally
// filtered by role.
func (h *AdminHandlers) ListUsersHandler(c *gin.Context) {
	roleFilter := models.Role(c.Query("role"))
	if roleFilter != "" && !roleFilter.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role filter"})
		return
	}

	users, err := h.adminService.ListUsers(c.Request.Context(), roleFilter)
	if err != nil {
		h.logger.Error("User listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load users"})
		return
	}
	if users == nil {
		users = []models.User{}
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// SetActiveHandler activates or deactivates an account.
func (h *AdminHandlers) SetActiveHandler(c *gin.Context) {
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "active flag is required"})
		return
	}

	err := h.adminService.SetUserActive(c.Request.Context(), c.Param("id"), *req.Active)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("User activation change failed", zap.Error(err), zap.String("user_id", c.Param("id")))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated", "active": *req.Active})
}
