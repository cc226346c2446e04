package auth_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/goliatone/go-router"
	auth "github.com/marketsim/portal-auth"
	"github.com/marketsim/portal-auth/middleware/csrf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestPortal(t *testing.T, backend *MockBackend, opts ...auth.PortalControllerOption) (*auth.PortalController, *auth.SessionManager, *auth.SessionStore) {
	t.Helper()
	manager, store := newTestManager(backend)
	manager.Hydrate(context.Background())
	return auth.NewPortalController(manager, opts...), manager, store
}

func signIn(t *testing.T, store *auth.SessionStore, user auth.User) *auth.SessionManager {
	t.Helper()
	require.NoError(t, store.Write(context.Background(), auth.Session{Token: "tok-" + user.Username, User: user}))
	manager := auth.NewSessionManager(store, &MockBackend{})
	manager.Hydrate(context.Background())
	return manager
}

func bindForm[T any](ctx *router.MockContext, fill func(*T)) {
	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		fill(args.Get(0).(*T))
	})
}

func captureRender(ctx *router.MockContext, view string) *router.ViewContext {
	captured := &router.ViewContext{}
	ctx.On("Render", view, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		data, ok := args.Get(1).(router.ViewContext)
		if ok {
			*captured = data
		}
	})
	return captured
}

func TestLoginShowRendersForm(t *testing.T) {
	ctrl, _, _ := newTestPortal(t, &MockBackend{})

	ctx := router.NewMockContext()
	ctx.LocalsMock[csrf.DefaultContextKey] = "csrf-token-123"
	data := captureRender(ctx, "login")

	require.NoError(t, ctrl.LoginShow(ctx))
	ctx.AssertExpectations(t)

	assert.Equal(t, "user", (*data)["portal"])
	assert.Equal(t, "csrf-token-123", (*data)["csrf_token"])
	assert.Equal(t, false, (*data)["is_authenticated"])
}

func TestLoginPostRedirectsByRole(t *testing.T) {
	tests := []struct {
		name     string
		user     auth.User
		portal   string
		location string
	}{
		{name: "user", user: alice, portal: "user", location: "/dashboard"},
		{name: "admin", user: admin, portal: "admin", location: "/admin/dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &MockBackend{}
			backend.On("Login", mock.Anything, auth.LoginRequest{Username: tt.user.Username, Password: "secret1"}).
				Return(authResponse("tok", tt.user), nil).Once()
			ctrl, manager, _ := newTestPortal(t, backend)

			ctx := router.NewMockContext()
			ctx.On("Context").Return(context.Background())
			bindForm(ctx, func(f *auth.LoginForm) {
				f.Username = " " + tt.user.Username + " "
				f.Password = "secret1"
				f.Portal = tt.portal
			})
			ctx.On("Redirect", tt.location, []int{http.StatusSeeOther}).Return(nil)

			require.NoError(t, ctrl.LoginPost(ctx))
			ctx.AssertExpectations(t)
			backend.AssertExpectations(t)
			assert.Equal(t, auth.StateAuthenticated, manager.Snapshot().State)
		})
	}
}

func TestLoginPostWrongPortalShowsHint(t *testing.T) {
	backend := &MockBackend{}
	backend.On("Login", mock.Anything, mock.Anything).Return(authResponse("tok", admin), nil).Once()
	ctrl, manager, store := newTestPortal(t, backend)

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	bindForm(ctx, func(f *auth.LoginForm) {
		f.Username = "root"
		f.Password = "secret1"
		f.Portal = "user"
	})
	data := captureRender(ctx, "login")

	require.NoError(t, ctrl.LoginPost(ctx))
	ctx.AssertExpectations(t)

	assert.Equal(t, "This is an admin account. Please use the Admin Login tab.", (*data)["error"])
	record := (*data)["record"].(*auth.LoginForm)
	assert.Empty(t, record.Password)
	assert.Equal(t, auth.StateAnonymous, manager.Snapshot().State)

	_, ok := store.Read(context.Background())
	assert.False(t, ok)
}

func TestLoginPostRejectedCredentials(t *testing.T) {
	backend := &MockBackend{}
	backend.On("Login", mock.Anything, mock.Anything).
		Return(nil, auth.DeriveError(auth.ErrCredentialsRejected, "", map[string]any{"backend_error": "Invalid username or password"})).Once()
	ctrl, _, _ := newTestPortal(t, backend)

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	bindForm(ctx, func(f *auth.LoginForm) {
		f.Username = "alice"
		f.Password = "nope"
	})
	data := captureRender(ctx, "login")

	require.NoError(t, ctrl.LoginPost(ctx))
	assert.Equal(t, "Invalid username or password", (*data)["error"])
	assert.Equal(t, "user", (*data)["portal"])
}

func TestLoginPostBindError(t *testing.T) {
	var handled error
	ctrl, _, _ := newTestPortal(t, &MockBackend{}, auth.WithPortalErrorHandler(func(ctx router.Context, err error) error {
		handled = err
		return nil
	}))

	ctx := router.NewMockContext()
	bindErr := errors.New("bad form")
	ctx.On("Bind", mock.Anything).Return(bindErr)

	require.NoError(t, ctrl.LoginPost(ctx))
	assert.ErrorIs(t, handled, bindErr)
}

func TestSignupPostPasswordMismatch(t *testing.T) {
	backend := &MockBackend{}
	ctrl, _, _ := newTestPortal(t, backend)

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background()).Maybe()
	bindForm(ctx, func(f *auth.SignupForm) {
		f.Username = "bob"
		f.Email = "bob@example.com"
		f.Password = "secret1"
		f.ConfirmPassword = "secret2"
	})
	data := captureRender(ctx, "signup")

	require.NoError(t, ctrl.SignupPost(ctx))
	assert.Equal(t, "Passwords do not match", (*data)["error"])
	assert.Contains(t, (*data)["validation"], "confirm_password")
	backend.AssertNotCalled(t, "Signup", mock.Anything, mock.Anything)
}

func TestSignupPostCreatesAccount(t *testing.T) {
	backend := &MockBackend{}
	bob := auth.User{ID: 9, Username: "bob", Email: "bob@example.com"}
	backend.On("Signup", mock.Anything, auth.SignupRequest{Username: "bob", Email: "bob@example.com", Password: "secret1"}).
		Return(authResponse("tok-bob", bob), nil).Once()
	ctrl, manager, _ := newTestPortal(t, backend)

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("Cookie", mock.Anything).Return().Maybe()
	ctx.On("Locals", mock.Anything, mock.Anything).Return(nil).Maybe()
	bindForm(ctx, func(f *auth.SignupForm) {
		f.Username = "bob"
		f.Email = "bob@example.com"
		f.Password = "secret1"
		f.ConfirmPassword = "secret1"
	})
	ctx.On("Redirect", "/dashboard", []int{http.StatusSeeOther}).Return(nil)

	require.NoError(t, ctrl.SignupPost(ctx))
	backend.AssertExpectations(t)
	assert.Equal(t, auth.StateAuthenticated, manager.Snapshot().State)
}

func TestSignupPostBackendConflict(t *testing.T) {
	backend := &MockBackend{}
	backend.On("Signup", mock.Anything, mock.Anything).
		Return(nil, auth.DeriveError(auth.ErrCredentialsRejected, "", map[string]any{"backend_error": "Username already exists"})).Once()
	ctrl, _, _ := newTestPortal(t, backend)

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	bindForm(ctx, func(f *auth.SignupForm) {
		f.Username = "alice"
		f.Email = "alice@example.com"
		f.Password = "secret1"
		f.ConfirmPassword = "secret1"
	})
	data := captureRender(ctx, "signup")

	require.NoError(t, ctrl.SignupPost(ctx))
	assert.Equal(t, "Username already exists", (*data)["error"])
	record := (*data)["record"].(*auth.SignupForm)
	assert.Empty(t, record.Password)
	assert.Empty(t, record.ConfirmPassword)
}

func TestLogoutRedirectsToLogin(t *testing.T) {
	store := auth.NewSessionStore(auth.NewMemoryStorage())
	manager := signIn(t, store, alice)
	ctrl := auth.NewPortalController(manager)

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("Cookie", mock.Anything).Return().Maybe()
	ctx.On("Locals", mock.Anything, mock.Anything).Return(nil).Maybe()
	ctx.On("Redirect", "/login", []int{http.StatusSeeOther}).Return(nil)

	require.NoError(t, ctrl.Logout(ctx))
	assert.Equal(t, auth.StateAnonymous, manager.Snapshot().State)

	_, ok := store.Read(context.Background())
	assert.False(t, ok)
}

func TestPageRendersWithLoaderData(t *testing.T) {
	store := auth.NewSessionStore(auth.NewMemoryStorage())
	manager := signIn(t, store, alice)

	var seen auth.Snapshot
	ctrl := auth.NewPortalController(manager, auth.WithPageLoader("dashboard", func(ctx router.Context, snap auth.Snapshot) (router.ViewContext, error) {
		seen = snap
		return router.ViewContext{"cash_balance": 100000.0}, nil
	}))

	route, ok := auth.FindRoute(auth.RouteTable(), "/dashboard")
	require.True(t, ok)

	ctx := router.NewMockContext()
	data := captureRender(ctx, "dashboard")

	require.NoError(t, ctrl.Page(route)(ctx))
	assert.Equal(t, 100000.0, (*data)["cash_balance"])
	assert.Equal(t, "dashboard", (*data)["route"])
	assert.Equal(t, "alice", (*data)["display_name"])
	assert.Equal(t, true, (*data)["is_authenticated"])
	assert.Equal(t, "user", (*data)["role"])
	assert.Equal(t, "alice", seen.User.Username)
}

func TestPageLoaderFailureStillRenders(t *testing.T) {
	store := auth.NewSessionStore(auth.NewMemoryStorage())
	manager := signIn(t, store, alice)

	ctrl := auth.NewPortalController(manager, auth.WithPageLoader("stocks", func(router.Context, auth.Snapshot) (router.ViewContext, error) {
		return nil, auth.DeriveError(auth.ErrBackendUnavailable, "market data unavailable", nil)
	}))

	route, _ := auth.FindRoute(auth.RouteTable(), "/stocks")
	ctx := router.NewMockContext()
	data := captureRender(ctx, "stocks")

	require.NoError(t, ctrl.Page(route)(ctx))
	assert.Equal(t, "market data unavailable", (*data)["load_error"])
}

func TestPageLoaderSessionEndedRedirects(t *testing.T) {
	store := auth.NewSessionStore(auth.NewMemoryStorage())
	manager := signIn(t, store, alice)

	ctrl := auth.NewPortalController(manager, auth.WithPageLoader("trading", func(router.Context, auth.Snapshot) (router.ViewContext, error) {
		return nil, auth.DeriveError(auth.ErrSessionInvalidated, "", nil)
	}))

	route, _ := auth.FindRoute(auth.RouteTable(), "/trading")
	ctx := router.NewMockContext()
	ctx.On("Method").Return("GET")
	ctx.On("Redirect", "/login", []int{http.StatusFound}).Return(nil)

	require.NoError(t, ctrl.Page(route)(ctx))
	ctx.AssertExpectations(t)
}

func TestProfilePostUpdatesSessionUser(t *testing.T) {
	store := auth.NewSessionStore(auth.NewMemoryStorage())
	manager := signIn(t, store, alice)

	updated := alice
	updated.FullName = "Alice Liddell"
	profiles := &MockProfiles{}
	profiles.On("UpdateProfile", mock.Anything, mock.MatchedBy(func(u auth.ProfileUpdate) bool {
		return u.FullName != nil && *u.FullName == "Alice Liddell" && u.Email == nil
	})).Return(&updated, nil).Once()

	ctrl := auth.NewPortalController(manager, auth.WithProfileService(profiles))

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("Cookie", mock.Anything).Return().Maybe()
	ctx.On("Locals", mock.Anything, mock.Anything).Return(nil).Maybe()
	bindForm(ctx, func(f *auth.ProfileForm) {
		f.FullName = "Alice Liddell"
	})
	ctx.On("Redirect", "/profile", []int{http.StatusSeeOther}).Return(nil)

	require.NoError(t, ctrl.ProfilePost(ctx))
	profiles.AssertExpectations(t)
	assert.Equal(t, "Alice Liddell", manager.Snapshot().User.FullName)

	stored, ok := store.Read(context.Background())
	require.True(t, ok)
	assert.Equal(t, "Alice Liddell", stored.User.FullName)
}

func TestPasswordPostWrongCurrentPassword(t *testing.T) {
	store := auth.NewSessionStore(auth.NewMemoryStorage())
	manager := signIn(t, store, alice)

	profiles := &MockProfiles{}
	profiles.On("ChangePassword", mock.Anything, auth.ChangePasswordRequest{CurrentPassword: "bad", NewPassword: "newsecret"}).
		Return(auth.DeriveError(auth.ErrCredentialsRejected, "", map[string]any{"backend_error": "Current password is incorrect"})).Once()

	ctrl := auth.NewPortalController(manager, auth.WithProfileService(profiles))

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	bindForm(ctx, func(f *auth.PasswordForm) {
		f.CurrentPassword = "bad"
		f.NewPassword = "newsecret"
		f.ConfirmPassword = "newsecret"
	})
	data := captureRender(ctx, "profile")

	require.NoError(t, ctrl.PasswordPost(ctx))
	assert.Equal(t, "Current password is incorrect", (*data)["password_error"])
	assert.Equal(t, auth.StateAuthenticated, manager.Snapshot().State)
}

func TestValidateStringEquals(t *testing.T) {
	rule := auth.ValidateStringEquals("secret1")
	assert.NoError(t, rule("secret1"))
	assert.Error(t, rule("secret2"))
	assert.Error(t, rule(42))
}
