package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalHome(t *testing.T) {
	assert.Equal(t, "/admin", CanonicalHome(RoleAdmin))
	assert.Equal(t, "/organizer", CanonicalHome(RoleOrganizer))
	assert.Equal(t, "/", CanonicalHome(RoleUser))
	assert.Equal(t, LoginRoute, CanonicalHome(Role("GHOST")))
	assert.Equal(t, LoginRoute, CanonicalHome(Role("")))
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleOrganizer.Valid())
	assert.True(t, RoleUser.Valid())
	assert.False(t, Role("admin").Valid())
	assert.False(t, Role("").Valid())
}

func TestClassify(t *testing.T) {
	table := DefaultRouteTable()

	tests := []struct {
		path  string
		class RouteClass
		role  Role
	}{
		{"/login", RoutePublicAuthRedirect, ""},
		{"/register", RoutePublicAuthRedirect, ""},
		{"/", RoutePublicAny, ""},
		{"/events", RoutePublicAny, ""},
		{"/events/abc-123", RoutePublicAny, ""},
		{"/about", RoutePublicAny, ""},
		{"/api/check-admins", RouteAPIOpen, ""},
		{"/api/auth/login", RouteAPIOpen, ""},
		{"/api/auth/register", RouteAPIOpen, ""},
		{"/api/auth/refresh", RouteAPIOpen, ""},
		// Open so an expired snapshot can still revoke its refresh token.
		{"/api/auth/logout", RouteAPIOpen, ""},
		{"/api/auth/me", RouteAPIProtected, ""},
		{"/api/my-events", RouteAPIProtected, ""},
		{"/api/admin/users", RouteAPIProtected, ""},
		{"/api", RouteAPIProtected, ""},
		{"/admin", RouteRoleScoped, RoleAdmin},
		{"/admin/users", RouteRoleScoped, RoleAdmin},
		{"/organizer", RouteRoleScoped, RoleOrganizer},
		{"/organizer/events", RouteRoleScoped, RoleOrganizer},
		{"/my-events", RouteProtectedPage, ""},
		{"/profile", RouteProtectedPage, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			class, role := table.Classify(tt.path)
			assert.Equal(t, tt.class, class, "class for %s", tt.path)
			assert.Equal(t, tt.role, role, "role for %s", tt.path)
		})
	}
}

func TestClassifyPrefixBoundaries(t *testing.T) {
	table := DefaultRouteTable()

	// "/administer" must not inherit the "/admin" scope.
	class, _ := table.Classify("/administer")
	assert.Equal(t, RouteProtectedPage, class)

	// "/" only ever matches the root itself.
	class, _ = table.Classify("/something-else")
	assert.Equal(t, RouteProtectedPage, class)

	// "/eventsfeed" is not covered by the "/events" public page.
	class, _ = table.Classify("/eventsfeed")
	assert.Equal(t, RouteProtectedPage, class)
}

func TestRouteClassString(t *testing.T) {
	assert.Equal(t, "public-any", RoutePublicAny.String())
	assert.Equal(t, "api-protected", RouteAPIProtected.String())
	assert.Equal(t, "unknown", RouteClass(99).String())
}
