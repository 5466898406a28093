package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Baktybeks/city-event-search-sub001/internal/app/middleware"
	"github.com/Baktybeks/city-event-search-sub001/internal/app/models"
	"github.com/Baktybeks/city-event-search-sub001/internal/app/observability/metrics"
	"github.com/Baktybeks/city-event-search-sub001/internal/app/session"
)

type MockTokenParser struct {
	mock.Mock
}

func (m *MockTokenParser) ParseSubject(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}

type MockIdentityResolver struct {
	mock.Mock
}

func (m *MockIdentityResolver) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func guardedEngine(g *Guard, handler gin.HandlerFunc, opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/guarded", g.Require(opts), handler)
	return r
}

func serve(r *gin.Engine, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func authCookie(token string) *http.Cookie {
	return &http.Cookie{Name: AuthCookieName, Value: token}
}

func organizer() *models.User {
	return &models.User{ID: "org-1", Name: "Olga", Email: "olga@example.com", Role: models.RoleOrganizer, IsActive: true}
}

func TestGuardSuccess(t *testing.T) {
	tokens := new(MockTokenParser)
	resolver := new(MockIdentityResolver)
	tokens.On("ParseSubject", "good-token").Return("org-1", nil)
	resolver.On("CurrentUser", mock.Anything, "org-1").Return(organizer(), nil)

	g := New(tokens, resolver, false, nil)

	var seen *models.User
	r := guardedEngine(g, func(c *gin.Context) {
		seen = middleware.GetUserFromContext(c)
		c.String(http.StatusOK, "ok")
	}, Options{AllowedRoles: []models.Role{models.RoleOrganizer}})

	w := serve(r, authCookie("good-token"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, seen)
	assert.Equal(t, "org-1", seen.ID)

	// The authoritative record is mirrored back into the snapshot cookie.
	var snapCookie *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == session.CookieName {
			snapCookie = ck
		}
	}
	assert.NotNil(t, snapCookie)
	raw, err := url.QueryUnescape(snapCookie.Value)
	assert.NoError(t, err)
	snap, err := session.Decode(raw)
	assert.NoError(t, err)
	assert.Equal(t, "org-1", snap.State.User.ID)
}

func TestGuardRoleMismatch(t *testing.T) {
	// An organizer probing an admin area is sent to the organizer home,
	// never the admin's.
	tokens := new(MockTokenParser)
	resolver := new(MockIdentityResolver)
	tokens.On("ParseSubject", "good-token").Return("org-1", nil)
	resolver.On("CurrentUser", mock.Anything, "org-1").Return(organizer(), nil)

	g := New(tokens, resolver, false, nil)
	r := guardedEngine(g, func(c *gin.Context) {
		c.String(http.StatusOK, "admin area")
	}, Options{AllowedRoles: []models.Role{models.RoleAdmin}})

	w := serve(r, authCookie("good-token"))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/organizer", w.Header().Get("Location"))
}

func TestGuardRoleMismatchFallback(t *testing.T) {
	tokens := new(MockTokenParser)
	resolver := new(MockIdentityResolver)
	tokens.On("ParseSubject", "good-token").Return("org-1", nil)
	resolver.On("CurrentUser", mock.Anything, "org-1").Return(organizer(), nil)

	g := New(tokens, resolver, false, nil)
	r := guardedEngine(g, func(c *gin.Context) {
		c.String(http.StatusOK, "area")
	}, Options{AllowedRoles: []models.Role{models.RoleAdmin}, Fallback: "/events"})

	w := serve(r, authCookie("good-token"))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/events", w.Header().Get("Location"))
}

func TestGuardDeactivatedAccount(t *testing.T) {
	tokens := new(MockTokenParser)
	resolver := new(MockIdentityResolver)
	tokens.On("ParseSubject", "stale-token").Return("u-9", nil)
	resolver.On("CurrentUser", mock.Anything, "u-9").
		Return(nil, fmt.Errorf("account u-9: %w", models.ErrNotActivated))

	g := New(tokens, resolver, false, nil)
	r := guardedEngine(g, func(c *gin.Context) {
		c.String(http.StatusOK, "never")
	}, Options{})

	// The stale snapshot claims an active session; the guard overrules it.
	stale := &models.User{ID: "u-9", Role: models.RoleUser, IsActive: true}
	raw, err := session.Encode(session.Snapshot{State: session.State{User: stale}, Version: session.SnapshotVersion})
	assert.NoError(t, err)

	w := serve(r,
		authCookie("stale-token"),
		&http.Cookie{Name: session.CookieName, Value: url.QueryEscape(raw)},
	)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, models.LoginRoute, w.Header().Get("Location"))

	// The snapshot cookie is cleared so the edge stops trusting it.
	var cleared bool
	for _, ck := range w.Result().Cookies() {
		if ck.Name == session.CookieName && ck.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "deactivation must clear the snapshot cookie")
}

func TestGuardAPI(t *testing.T) {
	t.Run("MissingTokenIs401", func(t *testing.T) {
		g := New(new(MockTokenParser), new(MockIdentityResolver), false, nil)
		r := guardedEngine(g, func(c *gin.Context) {
			c.String(http.StatusOK, "never")
		}, Options{API: true})

		w := serve(r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		var body map[string]string
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "UNAUTHENTICATED", body["code"])
	})

	t.Run("InvalidTokenIs401", func(t *testing.T) {
		tokens := new(MockTokenParser)
		tokens.On("ParseSubject", "garbage").Return("", fmt.Errorf("token is malformed"))

		g := New(tokens, new(MockIdentityResolver), false, nil)
		r := guardedEngine(g, func(c *gin.Context) {
			c.String(http.StatusOK, "never")
		}, Options{API: true})

		w := serve(r, authCookie("garbage"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("WrongRoleIs403", func(t *testing.T) {
		tokens := new(MockTokenParser)
		resolver := new(MockIdentityResolver)
		tokens.On("ParseSubject", "good-token").Return("org-1", nil)
		resolver.On("CurrentUser", mock.Anything, "org-1").Return(organizer(), nil)

		g := New(tokens, resolver, false, nil)
		r := guardedEngine(g, func(c *gin.Context) {
			c.String(http.StatusOK, "never")
		}, Options{AllowedRoles: []models.Role{models.RoleAdmin}, API: true})

		w := serve(r, authCookie("good-token"))

		assert.Equal(t, http.StatusForbidden, w.Code)
		var body map[string]string
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "FORBIDDEN_ROLE", body["code"])
	})
}

func TestGuardSpecializations(t *testing.T) {
	tokens := new(MockTokenParser)
	resolver := new(MockIdentityResolver)
	tokens.On("ParseSubject", "good-token").Return("org-1", nil)
	resolver.On("CurrentUser", mock.Anything, "org-1").Return(organizer(), nil)

	g := New(tokens, resolver, false, nil)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/admin-only", g.AdminOnly(), ok)
	r.GET("/organizer-only", g.OrganizerOnly(), ok)
	r.GET("/user-only", g.UserOnly(), ok)
	r.GET("/any-auth", g.RequireAuth(), ok)

	do := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(authCookie("good-token"))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusFound, do("/admin-only").Code)
	assert.Equal(t, http.StatusOK, do("/organizer-only").Code)
	assert.Equal(t, http.StatusOK, do("/user-only").Code)
	assert.Equal(t, http.StatusOK, do("/any-auth").Code)
}

func TestGuardDenialCounter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	metrics.InitAppMetrics()

	g := New(new(MockTokenParser), new(MockIdentityResolver), false, nil)
	r := guardedEngine(g, func(c *gin.Context) {
		c.String(http.StatusOK, "never")
	}, Options{API: true})

	w := serve(r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var rm metricdata.ResourceMetrics
	assert.NoError(t, reader.Collect(context.Background(), &rm))

	var denials int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "guard_denials_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			assert.True(t, ok)
			for _, dp := range sum.DataPoints {
				denials += dp.Value
			}
		}
	}
	assert.GreaterOrEqual(t, denials, int64(1), "denials must be counted")
}
