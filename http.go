package auth

import (
	"net/http"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// DefaultLoadingView is rendered while the session is hydrating
const DefaultLoadingView = "loading"

// DefaultErrorView is rendered for unexpected handler errors
const DefaultErrorView = "errors/500"

type guardConfig struct {
	destinations Destinations
	loadingView  string
	logger       Logger
}

// GuardOption customizes RouteGuard
type GuardOption func(*guardConfig)

// WithGuardDestinations overrides the redirect targets
func WithGuardDestinations(dest Destinations) GuardOption {
	return func(c *guardConfig) {
		c.destinations = dest.withDefaults()
	}
}

// WithGuardLoadingView overrides the view rendered while hydrating
func WithGuardLoadingView(view string) GuardOption {
	return func(c *guardConfig) {
		if view != "" {
			c.loadingView = view
		}
	}
}

// WithGuardLogger sets the guard logger
func WithGuardLogger(logger Logger) GuardOption {
	return func(c *guardConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// RouteGuard enforces req for every request it wraps. While the session is
// hydrating it renders the loading view instead of redirecting. On success
// the snapshot is stored in locals under SnapshotLocalsKey.
func RouteGuard(source SnapshotSource, req Requirement, opts ...GuardOption) router.MiddlewareFunc {
	cfg := &guardConfig{
		destinations: DefaultDestinations(),
		loadingView:  DefaultLoadingView,
		logger:       defaultLogger(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			snap := source.Snapshot()
			decision := Authorize(snap, req, cfg.destinations)

			switch decision.Kind {
			case DecisionLoading:
				return ctx.Render(cfg.loadingView, router.ViewContext{
					"requirement": req.String(),
				})
			case DecisionRedirect:
				cfg.logger.Debug("route guard redirect",
					"requirement", req.String(),
					"state", snap.State,
					"role", snap.Role(),
					"location", decision.Location,
				)
				return ctx.Redirect(decision.Location, redirectStatus(ctx))
			}

			ctx.Locals(SnapshotLocalsKey, snap)
			return ctx.Next()
		}
	}
}

// RegisterPortalRoutes mounts every route of the controller's route table
// behind its guard, plus the form endpoints and page actions.
func RegisterPortalRoutes[T any](app router.Router[T], controller *PortalController) {
	guard := func(req Requirement) router.MiddlewareFunc {
		return RouteGuard(controller.authn, req,
			WithGuardDestinations(controller.Destinations),
			WithGuardLoadingView(controller.Views.Loading),
			WithGuardLogger(controller.Logger),
		)
	}

	for _, route := range controller.Table {
		app.Get(route.Path, controller.handlerFor(route), guard(route.Requirement)).
			SetName(route.Name + ".get")
	}

	app.Post(controller.Routes.Login, controller.LoginPost, guard(Public())).
		SetName("login.post")

	app.Post(controller.Routes.Signup, controller.SignupPost, guard(Public())).
		SetName("signup.post")

	app.Post(controller.Routes.Logout, controller.Logout, guard(AuthenticatedOnly())).
		SetName("logout.post")

	app.Post(controller.Routes.Profile, controller.ProfilePost, guard(RoleRestricted(RoleUser))).
		SetName("profile.post")

	app.Post(controller.Routes.Password, controller.PasswordPost, guard(RoleRestricted(RoleUser))).
		SetName("password.post")

	for _, action := range controller.Actions {
		app.Post(action.Path, controller.RunAction(action), guard(action.Requirement)).
			SetName(action.Name + ".post")
	}
}

func redirectStatus(ctx router.Context) int {
	if ctx.Method() == string(router.GET) {
		return http.StatusFound
	}
	return http.StatusSeeOther
}

// defaultErrHandler handles errors escaping portal handlers. Session errors
// send the visitor to the login page, anything else renders the error view.
func (c *PortalController) defaultErrHandler(ctx router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	c.Logger.Info(
		"Portal error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	if HasTextCode(err, TextCodeSessionInvalidated) || HasTextCode(err, TextCodeNotAuthenticated) {
		return ctx.Redirect(c.Destinations.Login, redirectStatus(ctx))
	}

	code := richErr.Code
	if code == 0 {
		code = errors.CodeInternal
	}

	return ctx.Status(code).Render(c.Views.Error, router.ViewContext{
		"message": richErr.Message,
		"code":    code,
	})
}
