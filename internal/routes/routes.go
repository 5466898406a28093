package routes

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Baktybeks/city-event-search-sub001/internal/app/domain/admin"
	"github.com/Baktybeks/city-event-search-sub001/internal/app/domain/auth"
	"github.com/Baktybeks/city-event-search-sub001/internal/app/domain/events"
	"github.com/Baktybeks/city-event-search-sub001/internal/app/guard"
	"github.com/Baktybeks/city-event-search-sub001/internal/app/middleware"
	"github.com/Baktybeks/city-event-search-sub001/internal/app/models"
	"github.com/Baktybeks/city-event-search-sub001/internal/pkg/config"
)

type AppHandlers struct {
	Auth   *auth.AuthHandlers
	Events *events.EventsHandlers
	Admin  *admin.AdminHandlers
	Guard  *guard.Guard
}

func Setup(r *gin.Engine, dbPool *pgxpool.Pool, cfg *config.Config, log *zap.Logger) {
	handlers := setupDependencies(dbPool, cfg, log)
	setupRouter(r, handlers, log)
}

func setupDependencies(dbPool *pgxpool.Pool, cfg *config.Config, log *zap.Logger) *AppHandlers {
	authRepo := auth.NewPostgresAuthRepo(dbPool, log)
	authService := auth.NewAuthService(authRepo, cfg, log)

	eventsRepo := events.NewPostgresEventsRepo(dbPool, log)
	eventsService := events.NewEventsService(eventsRepo, log)

	adminRepo := admin.NewPostgresAdminRepo(dbPool, log)
	adminService := admin.NewAdminService(adminRepo, log)

	g := guard.New(authService.Tokens(), authService, cfg.Session.CookieSecure, log)

	return &AppHandlers{
		Auth:   auth.NewAuthHandlers(authService, cfg, log),
		Events: events.NewEventsHandlers(eventsService, log),
		Admin:  admin.NewAdminHandlers(adminService, log),
		Guard:  g,
	}
}

func setupRouter(r *gin.Engine, h *AppHandlers, log *zap.Logger) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public pages. The gatekeeper lets these through for everyone; an
	// authenticated visitor on /login or /register was already bounced to
	// their canonical home before the handler ran.
	public := r.Group("/")
	{
		public.GET("/", h.Events.ListHandler)
		public.GET("/events", h.Events.ListHandler)
		public.GET("/events/:id", h.Events.GetHandler)
		public.GET("/about", pageHandler("about"))
		public.GET("/login", pageHandler("login"))
		// The register page embeds the initial-setup probe result.
		public.GET("/register", h.Admin.CheckAdminsHandler)
	}

	// Role-scoped areas re-check the authoritative identity on every
	// request. A mismatch sends the visitor to their own home, not the
	// protected area's.
	adminGroup := r.Group("/admin")
	adminGroup.Use(h.Guard.AdminOnly())
	{
		adminGroup.GET("", pageHandler("admin"))
		adminGroup.GET("/users", h.Admin.ListUsersHandler)
	}

	organizerGroup := r.Group("/organizer")
	organizerGroup.Use(h.Guard.OrganizerOnly())
	{
		organizerGroup.GET("", h.Events.OrganizerListHandler)
		organizerGroup.GET("/events", h.Events.OrganizerListHandler)
	}

	protected := r.Group("/")
	protected.Use(h.Guard.RequireAuth())
	{
		protected.GET("/my-events", h.Events.MyEventsHandler)
		protected.GET("/profile", h.Auth.MeHandler)
	}

	// Open API endpoints, reachable without a session.
	r.GET("/api/check-admins", h.Admin.CheckAdminsHandler)

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/login", h.Auth.LoginHandler)
		authGroup.POST("/register", h.Auth.RegisterHandler)
		authGroup.POST("/refresh", h.Auth.RefreshHandler)
		authGroup.POST("/logout", h.Auth.LogoutHandler)

		authSelf := authGroup.Group("/")
		authSelf.Use(h.Guard.APIAuth())
		{
			authSelf.GET("/me", h.Auth.MeHandler)
			authSelf.PUT("/profile", h.Auth.UpdateProfileHandler)
			authSelf.POST("/change-password", h.Auth.ChangePasswordHandler)
		}
	}

	api := r.Group("/api")
	{
		api.GET("/events", h.Events.ListHandler)
		api.GET("/events/:id", h.Events.GetHandler)

		attendee := api.Group("/")
		attendee.Use(h.Guard.APIAuth())
		{
			attendee.POST("/events/:id/register", h.Events.RegisterHandler)
			attendee.GET("/my-events", h.Events.MyEventsHandler)
		}

		organizerAPI := api.Group("/organizer")
		organizerAPI.Use(h.Guard.Require(guard.Options{
			AllowedRoles: []models.Role{models.RoleOrganizer},
			API:          true,
		}))
		{
			organizerAPI.GET("/events", h.Events.OrganizerListHandler)
			organizerAPI.POST("/events", h.Events.CreateHandler)
			organizerAPI.PUT("/events/:id", h.Events.UpdateHandler)
			organizerAPI.POST("/events/:id/publish", h.Events.PublishHandler)
		}

		adminAPI := api.Group("/admin")
		adminAPI.Use(h.Guard.Require(guard.Options{
			AllowedRoles: []models.Role{models.RoleAdmin},
			API:          true,
		}))
		{
			adminAPI.GET("/users", h.Admin.ListUsersHandler)
			adminAPI.POST("/users/:id/active", h.Admin.SetActiveHandler)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		log.Info("404 - Page not found",
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.String("ip", c.ClientIP()),
		)
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}

// pageHandler serves the shell payload for pages the client renders
// itself, with any queued toasts from a prior guard denial.
func pageHandler(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload := gin.H{"page": name}
		if user := middleware.GetUserFromContext(c); user != nil {
			payload["user"] = user
		}
		if toasts := popFlashes(c); len(toasts) > 0 {
			payload["toasts"] = toasts
		}
		c.JSON(http.StatusOK, payload)
	}
}

func popFlashes(c *gin.Context) []string {
	sess := sessions.Default(c)
	var toasts []string
	for _, kind := range []string{"error", "warning", "info"} {
		for _, f := range sess.Flashes(kind) {
			if msg, ok := f.(string); ok {
				toasts = append(toasts, msg)
			}
		}
	}
	if len(toasts) > 0 {
		_ = sess.Save()
	}
	return toasts
}
