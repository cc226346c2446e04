package auth_test

import (
	"net/http"
	"testing"

	"github.com/goliatone/go-router"
	auth "github.com/marketsim/portal-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	snap auth.Snapshot
}

func (s staticSource) Snapshot() auth.Snapshot {
	return s.snap
}

func TestRouteGuardRendersLoadingWhileHydrating(t *testing.T) {
	guard := auth.RouteGuard(staticSource{auth.HydratingSnapshot()}, auth.RoleRestricted(auth.RoleAdmin))
	handler := guard(func(ctx router.Context) error { return nil })

	ctx := router.NewMockContext()
	ctx.On("Render", auth.DefaultLoadingView, mock.Anything).Return(nil)

	require.NoError(t, handler(ctx))
	assert.False(t, ctx.NextCalled)
	ctx.AssertNotCalled(t, "Redirect", mock.Anything, mock.Anything)
	ctx.AssertExpectations(t)
}

func TestRouteGuardRedirects(t *testing.T) {
	tests := []struct {
		name     string
		snap     auth.Snapshot
		req      auth.Requirement
		method   string
		location string
		status   int
	}{
		{
			name:     "anonymous on user page",
			snap:     auth.AnonymousSnapshot(),
			req:      auth.RoleRestricted(auth.RoleUser),
			method:   "GET",
			location: "/login",
			status:   http.StatusFound,
		},
		{
			name:     "anonymous posting to authenticated route",
			snap:     auth.AnonymousSnapshot(),
			req:      auth.AuthenticatedOnly(),
			method:   "POST",
			location: "/login",
			status:   http.StatusSeeOther,
		},
		{
			name:     "user on admin page",
			snap:     auth.AuthenticatedSnapshot(alice),
			req:      auth.RoleRestricted(auth.RoleAdmin),
			method:   "GET",
			location: "/",
			status:   http.StatusFound,
		},
		{
			name:     "admin on user page",
			snap:     auth.AuthenticatedSnapshot(admin),
			req:      auth.RoleRestricted(auth.RoleUser),
			method:   "GET",
			location: "/",
			status:   http.StatusFound,
		},
		{
			name:     "user on login page",
			snap:     auth.AuthenticatedSnapshot(alice),
			req:      auth.Public(),
			method:   "GET",
			location: "/dashboard",
			status:   http.StatusFound,
		},
		{
			name:     "admin on login page",
			snap:     auth.AuthenticatedSnapshot(admin),
			req:      auth.Public(),
			method:   "GET",
			location: "/admin/dashboard",
			status:   http.StatusFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := auth.RouteGuard(staticSource{tt.snap}, tt.req)(func(ctx router.Context) error { return nil })

			ctx := router.NewMockContext()
			ctx.On("Method").Return(tt.method)
			ctx.On("Redirect", tt.location, []int{tt.status}).Return(nil)

			require.NoError(t, handler(ctx))
			assert.False(t, ctx.NextCalled)
			ctx.AssertExpectations(t)
		})
	}
}

func TestRouteGuardCustomDestinations(t *testing.T) {
	guard := auth.RouteGuard(
		staticSource{auth.AnonymousSnapshot()},
		auth.AuthenticatedOnly(),
		auth.WithGuardDestinations(auth.Destinations{Login: "/portal/sign-in"}),
	)
	handler := guard(func(ctx router.Context) error { return nil })

	ctx := router.NewMockContext()
	ctx.On("Method").Return("GET")
	ctx.On("Redirect", "/portal/sign-in", []int{http.StatusFound}).Return(nil)

	require.NoError(t, handler(ctx))
	ctx.AssertExpectations(t)
}

func TestRouteGuardAllowsAndStoresSnapshot(t *testing.T) {
	snap := auth.AuthenticatedSnapshot(alice)
	handler := auth.RouteGuard(staticSource{snap}, auth.RoleRestricted(auth.RoleUser))(func(ctx router.Context) error { return nil })

	ctx := router.NewMockContext()
	ctx.On("Locals", auth.SnapshotLocalsKey, mock.Anything).Return(nil)

	require.NoError(t, handler(ctx))
	assert.True(t, ctx.NextCalled)

	stored, ok := auth.GetRouterSnapshot(ctx)
	require.True(t, ok)
	assert.Equal(t, snap, stored)
}

func TestRouteGuardPublicPageForAnonymous(t *testing.T) {
	handler := auth.RouteGuard(staticSource{auth.AnonymousSnapshot()}, auth.Public())(func(ctx router.Context) error { return nil })

	ctx := router.NewMockContext()
	ctx.On("Locals", auth.SnapshotLocalsKey, mock.Anything).Return(nil)

	require.NoError(t, handler(ctx))
	assert.True(t, ctx.NextCalled)
}
