package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/Baktybeks/city-event-search-sub001/internal/app/models"
	"github.com/Baktybeks/city-event-search-sub001/internal/app/observability/metrics"
	"github.com/Baktybeks/city-event-search-sub001/internal/app/session"
)

// GatekeeperConfig configures the edge authorization pre-check.
type GatekeeperConfig struct {
	Routes *models.RouteTable
	// SkipPrefixes lists the paths the gatekeeper does not intercept at
	// all: static assets and internal endpoints.
	SkipPrefixes []string
	Logger       *zap.Logger
}

// DefaultSkipPrefixes excludes asset and internal paths from interception.
func DefaultSkipPrefixes() []string {
	return []string{"/static", "/assets", "/favicon.ico", "/healthz", "/metrics"}
}

// Gatekeeper is the request-interception layer: it makes a fast
// authorization decision from the session snapshot cookie alone, before
// any handler runs. It never contacts the database and never mutates the
// snapshot; the route guard does the authoritative re-check later.
//
// Rules are evaluated in order, first match wins:
//  1. auth-redirect page + active session  -> canonical home
//  2. auth-redirect page otherwise         -> allow
//  3. public page                          -> allow
//  4. open API path                        -> allow
//  5. protected API, no active session     -> 401 JSON
//  6. any other page, no active session    -> /login
//  7. role-scoped page, wrong role         -> that user's canonical home
//  8. otherwise                            -> allow
func Gatekeeper(cfg GatekeeperConfig) gin.HandlerFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	routes := cfg.Routes
	if routes == nil {
		routes = models.DefaultRouteTable()
	}
	skip := cfg.SkipPrefixes
	if skip == nil {
		skip = DefaultSkipPrefixes()
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, p := range skip {
			if path == p || strings.HasPrefix(path, p+"/") {
				c.Next()
				return
			}
		}

		// A malformed cookie is logged inside UserFromCookie and treated
		// as no session; it must never fail the request.
		user := session.UserFromCookie(c, logger)
		active := user != nil && user.IsActive

		class, requiredRole := routes.Classify(path)
		switch class {
		case models.RoutePublicAuthRedirect:
			if active {
				recordDecision(class, "redirect")
				redirectTo(c, models.CanonicalHome(user.Role))
				return
			}
		case models.RoutePublicAny, models.RouteAPIOpen:
			// fall through to allow

		case models.RouteAPIProtected:
			if !active {
				recordDecision(class, "deny")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "authentication required",
					"code":  "UNAUTHENTICATED",
				})
				return
			}
		case models.RouteRoleScoped:
			if !active {
				recordDecision(class, "redirect")
				redirectTo(c, models.LoginRoute)
				return
			}
			if user.Role != requiredRole {
				logger.Debug("Gatekeeper role mismatch",
					zap.String("path", path),
					zap.String("role", string(user.Role)),
					zap.String("required", string(requiredRole)),
				)
				recordDecision(class, "redirect")
				redirectTo(c, models.CanonicalHome(user.Role))
				return
			}
		case models.RouteProtectedPage:
			if !active {
				recordDecision(class, "redirect")
				redirectTo(c, models.LoginRoute)
				return
			}
		}

		recordDecision(class, "allow")
		c.Next()
	}
}

// redirectTo aborts with a navigation. HTMX callers get an HX-Redirect
// header instead of a 302 so the browser swaps the whole page.
func redirectTo(c *gin.Context, target string) {
	if c.GetHeader("HX-Request") == "true" {
		c.Header("HX-Redirect", target)
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

func recordDecision(class models.RouteClass, decision string) {
	m := metrics.Get()
	if m == nil {
		return
	}
	m.GatekeeperDecisionsTotal.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("class", class.String()),
			attribute.String("decision", decision),
		))
}
