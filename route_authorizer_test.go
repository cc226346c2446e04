package auth_test

import (
	"testing"

	auth "github.com/marketsim/portal-auth"
	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	dest := auth.DefaultDestinations()

	tests := []struct {
		name     string
		snap     auth.Snapshot
		req      auth.Requirement
		expected auth.Decision
	}{
		{
			name:     "hydrating never redirects",
			snap:     auth.HydratingSnapshot(),
			req:      auth.RoleRestricted(auth.RoleAdmin),
			expected: auth.Decision{Kind: auth.DecisionLoading},
		},
		{
			name:     "hydrating public page waits too",
			snap:     auth.HydratingSnapshot(),
			req:      auth.Public(),
			expected: auth.Decision{Kind: auth.DecisionLoading},
		},
		{
			name:     "anonymous on public page",
			snap:     auth.AnonymousSnapshot(),
			req:      auth.Public(),
			expected: auth.Decision{Kind: auth.DecisionRender},
		},
		{
			name:     "user on public page goes to user home",
			snap:     auth.AuthenticatedSnapshot(alice),
			req:      auth.Public(),
			expected: auth.Decision{Kind: auth.DecisionRedirect, Location: "/dashboard"},
		},
		{
			name:     "admin on public page goes to admin home",
			snap:     auth.AuthenticatedSnapshot(admin),
			req:      auth.Public(),
			expected: auth.Decision{Kind: auth.DecisionRedirect, Location: "/admin/dashboard"},
		},
		{
			name:     "anonymous on authenticated page",
			snap:     auth.AnonymousSnapshot(),
			req:      auth.AuthenticatedOnly(),
			expected: auth.Decision{Kind: auth.DecisionRedirect, Location: "/login"},
		},
		{
			name:     "admin on authenticated page",
			snap:     auth.AuthenticatedSnapshot(admin),
			req:      auth.AuthenticatedOnly(),
			expected: auth.Decision{Kind: auth.DecisionRender},
		},
		{
			name:     "anonymous on role page",
			snap:     auth.AnonymousSnapshot(),
			req:      auth.RoleRestricted(auth.RoleUser),
			expected: auth.Decision{Kind: auth.DecisionRedirect, Location: "/login"},
		},
		{
			name:     "user on admin page",
			snap:     auth.AuthenticatedSnapshot(alice),
			req:      auth.RoleRestricted(auth.RoleAdmin),
			expected: auth.Decision{Kind: auth.DecisionRedirect, Location: "/"},
		},
		{
			name:     "admin on user page",
			snap:     auth.AuthenticatedSnapshot(admin),
			req:      auth.RoleRestricted(auth.RoleUser),
			expected: auth.Decision{Kind: auth.DecisionRedirect, Location: "/"},
		},
		{
			name:     "admin on shared page",
			snap:     auth.AuthenticatedSnapshot(admin),
			req:      auth.RoleRestricted(auth.RoleUser, auth.RoleAdmin),
			expected: auth.Decision{Kind: auth.DecisionRender},
		},
		{
			name:     "unguarded renders for anonymous",
			snap:     auth.AnonymousSnapshot(),
			req:      auth.Unguarded(),
			expected: auth.Decision{Kind: auth.DecisionRender},
		},
		{
			name:     "unguarded renders for admin",
			snap:     auth.AuthenticatedSnapshot(admin),
			req:      auth.Unguarded(),
			expected: auth.Decision{Kind: auth.DecisionRender},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, auth.Authorize(tt.snap, tt.req, dest))
		})
	}
}

func TestAuthorizeIsDeterministic(t *testing.T) {
	dest := auth.DefaultDestinations()
	snaps := []auth.Snapshot{
		auth.HydratingSnapshot(),
		auth.AnonymousSnapshot(),
		auth.AuthenticatedSnapshot(alice),
		auth.AuthenticatedSnapshot(admin),
	}
	reqs := []auth.Requirement{
		auth.Unguarded(),
		auth.Public(),
		auth.AuthenticatedOnly(),
		auth.RoleRestricted(auth.RoleUser),
		auth.RoleRestricted(auth.RoleAdmin),
	}

	for _, snap := range snaps {
		for _, req := range reqs {
			first := auth.Authorize(snap, req, dest)
			second := auth.Authorize(snap, req, dest)
			assert.Equal(t, first, second, "state %s requirement %s", snap.State, req.String())
		}
	}
}

func TestAuthorizeFillsMissingDestinations(t *testing.T) {
	decision := auth.Authorize(auth.AnonymousSnapshot(), auth.AuthenticatedOnly(), auth.Destinations{})
	assert.Equal(t, "/login", decision.Location)

	decision = auth.Authorize(auth.AuthenticatedSnapshot(alice), auth.Public(), auth.Destinations{UserHome: "/home"})
	assert.Equal(t, "/home", decision.Location)
}

func TestRouteTable(t *testing.T) {
	routes := auth.RouteTable()

	home, ok := auth.FindRoute(routes, "/")
	assert.True(t, ok)
	assert.Equal(t, auth.RequirementNone, home.Requirement.Kind)

	login, ok := auth.FindRoute(routes, "/login")
	assert.True(t, ok)
	assert.Equal(t, auth.RequirementPublic, login.Requirement.Kind)

	for _, path := range []string{"/dashboard", "/stocks", "/stocks/:symbol", "/trading", "/learning", "/profile"} {
		route, ok := auth.FindRoute(routes, path)
		assert.True(t, ok, path)
		assert.Equal(t, "role:user", route.Requirement.String(), path)
	}

	for _, path := range []string{"/admin/dashboard", "/admin/users", "/admin/models", "/admin/reports"} {
		route, ok := auth.FindRoute(routes, path)
		assert.True(t, ok, path)
		assert.Equal(t, "role:admin", route.Requirement.String(), path)
	}

	_, ok = auth.FindRoute(routes, "/nope")
	assert.False(t, ok)
}

func TestParsePortal(t *testing.T) {
	assert.Equal(t, auth.PortalAdmin, auth.ParsePortal("admin"))
	assert.Equal(t, auth.PortalUser, auth.ParsePortal("user"))
	assert.Equal(t, auth.PortalUser, auth.ParsePortal(""))
	assert.Equal(t, auth.PortalUser, auth.ParsePortal("root"))
}
