package models

import "strings"

// RouteClass is the static classification of a request path. Exactly one
// class applies per path; Classify resolves overlaps by fixed precedence
// (auth-redirect pages, then API, then role-scoped prefixes, then the
// public page list, then the protected-page fallthrough).
type RouteClass int

const (
	RoutePublicAny RouteClass = iota
	RoutePublicAuthRedirect
	RouteAPIOpen
	RouteAPIProtected
	RouteRoleScoped
	// RouteProtectedPage is any remaining page: it carries no role
	// requirement but still needs an authenticated, active session.
	RouteProtectedPage
)

func (c RouteClass) String() string {
	switch c {
	case RoutePublicAny:
		return "public-any"
	case RoutePublicAuthRedirect:
		return "public-auth-redirect"
	case RouteAPIOpen:
		return "api-open"
	case RouteAPIProtected:
		return "api-protected"
	case RouteRoleScoped:
		return "role-scoped"
	case RouteProtectedPage:
		return "protected-page"
	}
	return "unknown"
}

// RouteTable holds the path-prefix rules shared by the edge gatekeeper and
// the route guard, so the canonical-home mapping and the classification
// never diverge between the two.
type RouteTable struct {
	// AuthRedirectPages are reachable only while unauthenticated or
	// inactive (login/register).
	AuthRedirectPages []string
	// APIAllowList is the explicit set of API paths open without a
	// session. Any other /api/ path requires an authenticated, active
	// session.
	APIAllowList []string
	// RoleScoped maps a page prefix to the role that may enter it.
	RoleScoped map[string]Role
	// PublicPages are exact paths or prefixes open to everyone.
	PublicPages []string
}

// DefaultRouteTable is the application's route classification.
func DefaultRouteTable() *RouteTable {
	return &RouteTable{
		AuthRedirectPages: []string{"/login", "/register"},
		APIAllowList: []string{
			"/api/check-admins",
			"/api/auth/login",
			"/api/auth/register",
			"/api/auth/refresh",
			// Logout must work even after the snapshot cookie has expired;
			// the handler only revokes whatever refresh token it is handed.
			"/api/auth/logout",
		},
		RoleScoped: map[string]Role{
			"/admin":     RoleAdmin,
			"/organizer": RoleOrganizer,
		},
		PublicPages: []string{"/", "/events", "/about"},
	}
}

// Classify returns the class for a path, plus the required role when the
// class is RouteRoleScoped.
func (t *RouteTable) Classify(path string) (RouteClass, Role) {
	for _, p := range t.AuthRedirectPages {
		if matchPrefix(path, p) {
			return RoutePublicAuthRedirect, ""
		}
	}
	if strings.HasPrefix(path, "/api/") || path == "/api" {
		for _, p := range t.APIAllowList {
			if matchPrefix(path, p) {
				return RouteAPIOpen, ""
			}
		}
		return RouteAPIProtected, ""
	}
	for prefix, role := range t.RoleScoped {
		if matchPrefix(path, prefix) {
			return RouteRoleScoped, role
		}
	}
	for _, p := range t.PublicPages {
		if matchPrefix(path, p) {
			return RoutePublicAny, ""
		}
	}
	return RouteProtectedPage, ""
}

// matchPrefix matches either the exact path or the prefix followed by a
// path separator, so "/admin" covers "/admin/users" but not "/administer".
// "/" only ever matches the root itself.
func matchPrefix(path, prefix string) bool {
	if prefix == "/" {
		return path == "/"
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
