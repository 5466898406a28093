// Package guard enforces authorization at handler time with the
// authoritative identity. The edge gatekeeper already made a fast decision
// from the cookie snapshot; the guard covers the staleness window the
// cookie cannot see (accounts deactivated after the cookie was minted,
// roles changed mid-session) by re-resolving the user from the database on
// every request and reconciling the snapshot with the settled result.
package guard

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/Baktybeks/city-event-search-sub001/internal/app/middleware"
	"github.com/Baktybeks/city-event-search-sub001/internal/app/models"
	"github.com/Baktybeks/city-event-search-sub001/internal/app/observability/metrics"
	"github.com/Baktybeks/city-event-search-sub001/internal/app/session"
)

// AuthCookieName carries the signed identity token, the guard's input.
const AuthCookieName = "auth_token"

// TokenParser extracts the subject user ID from a signed token.
type TokenParser interface {
	ParseSubject(token string) (string, error)
}

// IdentityResolver fetches the current authoritative user record. It
// returns the full record for active accounts, models.ErrNotActivated for
// deactivated ones, and models.ErrNotFound or models.ErrUnauthenticated
// when no such account exists.
type IdentityResolver interface {
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
}

// Options selects the capability set for one guarded group.
type Options struct {
	// AllowedRoles restricts entry to the listed roles; empty means any
	// authenticated, active user.
	AllowedRoles []models.Role
	// Fallback overrides the redirect target on a role mismatch. When
	// empty the user is sent to their own canonical home, never the
	// protected area's.
	Fallback string
	// API answers with JSON status codes instead of redirects and
	// flashes.
	API bool
}

// Guard bundles the collaborators every guarded route shares.
type Guard struct {
	tokens       TokenParser
	resolver     IdentityResolver
	cookieSecure bool
	logger       *zap.Logger
}

// New builds a guard. The logger may be nil.
func New(tokens TokenParser, resolver IdentityResolver, cookieSecure bool, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{tokens: tokens, resolver: resolver, cookieSecure: cookieSecure, logger: logger}
}

// Require returns middleware enforcing the given options. On success the
// authoritative user is installed in the request context and the session
// snapshot is rewritten so future edge decisions see fresh data.
func (g *Guard) Require(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := session.FromRequest(c, g.cookieSecure, g.logger)

		userID, ok := g.subject(c)
		if !ok {
			g.denyUnauthenticated(c, store, opts)
			return
		}

		user, err := g.resolver.CurrentUser(c.Request.Context(), userID)
		switch {
		case errors.Is(err, models.ErrNotActivated):
			g.logger.Info("Guard rejected deactivated account",
				zap.String("user_id", userID),
				zap.String("path", c.Request.URL.Path),
			)
			g.flash(c, "warning", "Your account is not activated")
			store.ClearUser()
			g.deny(c, opts, http.StatusForbidden, "ACCOUNT_NOT_ACTIVATED", models.LoginRoute)
			return
		case err != nil:
			g.logger.Warn("Guard could not resolve identity",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			g.denyUnauthenticated(c, store, opts)
			return
		}

		if len(opts.AllowedRoles) > 0 && !roleAllowed(user.Role, opts.AllowedRoles) {
			target := opts.Fallback
			if target == "" {
				target = models.CanonicalHome(user.Role)
			}
			g.logger.Info("Guard rejected role",
				zap.String("user_id", user.ID),
				zap.String("role", string(user.Role)),
				zap.String("path", c.Request.URL.Path),
			)
			g.flash(c, "error", "You do not have access to that page")
			g.deny(c, opts, http.StatusForbidden, "FORBIDDEN_ROLE", target)
			return
		}

		// Settled: reconcile the snapshot with the authoritative record so
		// the next request's gatekeeper decision starts from fresh state.
		store.SetUser(user)
		middleware.SetUserInContext(c, user)
		c.Next()
	}
}

// AdminOnly admits administrators only.
func (g *Guard) AdminOnly() gin.HandlerFunc {
	return g.Require(Options{AllowedRoles: []models.Role{models.RoleAdmin}})
}

// OrganizerOnly admits organizers only.
func (g *Guard) OrganizerOnly() gin.HandlerFunc {
	return g.Require(Options{AllowedRoles: []models.Role{models.RoleOrganizer}})
}

// UserOnly admits any authenticated end-user except administrators.
func (g *Guard) UserOnly() gin.HandlerFunc {
	return g.Require(Options{AllowedRoles: []models.Role{models.RoleUser, models.RoleOrganizer}})
}

// RequireAuth admits any authenticated, active user.
func (g *Guard) RequireAuth() gin.HandlerFunc {
	return g.Require(Options{})
}

// APIAuth is RequireAuth for JSON callers.
func (g *Guard) APIAuth() gin.HandlerFunc {
	return g.Require(Options{API: true})
}

func (g *Guard) subject(c *gin.Context) (string, bool) {
	token, err := c.Cookie(AuthCookieName)
	if err != nil || token == "" {
		return "", false
	}
	userID, err := g.tokens.ParseSubject(token)
	if err != nil {
		g.logger.Debug("Invalid auth token", zap.Error(err))
		return "", false
	}
	return userID, true
}

func (g *Guard) denyUnauthenticated(c *gin.Context, store *session.Store, opts Options) {
	store.ClearUser()
	g.deny(c, opts, http.StatusUnauthorized, "UNAUTHENTICATED", models.LoginRoute)
}

func (g *Guard) deny(c *gin.Context, opts Options, status int, code, target string) {
	recordDenial(code, opts.API)
	if opts.API {
		c.AbortWithStatusJSON(status, gin.H{"error": http.StatusText(status), "code": code})
		return
	}
	if c.GetHeader("HX-Request") == "true" {
		c.Header("HX-Redirect", target)
		c.AbortWithStatus(status)
		return
	}
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

// flash queues a user-visible toast for the page rendered after the
// redirect. Guarded API groups skip flashes entirely.
func (g *Guard) flash(c *gin.Context, kind, message string) {
	defer func() {
		// The sessions middleware may be absent in tests; a missing
		// toast must never break authorization.
		if r := recover(); r != nil {
			g.logger.Debug("Flash skipped, sessions middleware not installed")
		}
	}()
	sess := sessions.Default(c)
	sess.AddFlash(message, kind)
	if err := sess.Save(); err != nil {
		g.logger.Warn("Failed to save flash message", zap.Error(err))
	}
}

func recordDenial(code string, api bool) {
	m := metrics.Get()
	if m == nil {
		return
	}
	m.GuardDenialsTotal.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("code", code),
			attribute.Bool("api", api),
		))
}

func roleAllowed(role models.Role, allowed []models.Role) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}
