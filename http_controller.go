package auth

import (
	"errors"
	"maps"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// PageLoader fetches the data a page renders with. It runs after the route
// guard allowed the request.
type PageLoader func(ctx router.Context, snap Snapshot) (router.ViewContext, error)

type PortalControllerRoutes struct {
	Login    string
	Signup   string
	Logout   string
	Profile  string
	Password string
}

type PortalControllerViews struct {
	Login   string
	Signup  string
	Profile string
	Loading string
	Error   string
}

type PortalController struct {
	Debug        bool
	Logger       Logger
	Routes       *PortalControllerRoutes
	Views        *PortalControllerViews
	Destinations Destinations
	Table        []Route
	Loaders      map[string]PageLoader
	Actions      []Action
	Profiles     ProfileService
	ErrorHandler router.ErrorHandler

	authn    Authenticator
	provider LoggerProvider
}

type PortalControllerOption func(*PortalController) *PortalController

// WithPortalLogger sets the controller logger
func WithPortalLogger(logger Logger) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithPortalLoggerProvider resolves the controller logger from provider
func WithPortalLoggerProvider(provider LoggerProvider) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		c.provider = provider
		return c
	}
}

// WithPortalDebug dumps form payloads and results to the debug log
func WithPortalDebug(debug bool) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		c.Debug = debug
		return c
	}
}

// WithPortalDestinations overrides the redirect targets
func WithPortalDestinations(dest Destinations) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		c.Destinations = dest.withDefaults()
		return c
	}
}

// WithPortalRouteTable replaces the page table
func WithPortalRouteTable(routes []Route) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		if len(routes) > 0 {
			c.Table = routes
		}
		return c
	}
}

// WithPageLoader registers the loader of the named route
func WithPageLoader(name string, loader PageLoader) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		if loader != nil {
			c.Loaders[name] = loader
		}
		return c
	}
}

// WithProfileService enables the profile and password forms
func WithProfileService(profiles ProfileService) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		c.Profiles = profiles
		return c
	}
}

// WithPortalErrorHandler overrides the handler for unexpected errors
func WithPortalErrorHandler(handler router.ErrorHandler) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

// NewPortalController builds the controller for the portal pages
func NewPortalController(authn Authenticator, opts ...PortalControllerOption) *PortalController {
	if authn == nil {
		panic("Missing Authenticator in portal controller...")
	}

	c := &PortalController{
		authn: authn,
		Routes: &PortalControllerRoutes{
			Login:    "/login",
			Signup:   "/signup",
			Logout:   "/logout",
			Profile:  "/profile",
			Password: "/profile/password",
		},
		Views: &PortalControllerViews{
			Login:   "login",
			Signup:  "signup",
			Profile: "profile",
			Loading: DefaultLoadingView,
			Error:   DefaultErrorView,
		},
		Destinations: DefaultDestinations(),
		Table:        RouteTable(),
		Loaders:      map[string]PageLoader{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	c.provider, c.Logger = ResolveLogger("auth.http", c.provider, c.Logger)

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.defaultErrHandler
	}

	return c
}

func (c *PortalController) handlerFor(route Route) router.HandlerFunc {
	switch route.Name {
	case "login":
		return c.LoginShow
	case "signup":
		return c.SignupShow
	}
	return c.Page(route)
}

func (c *PortalController) snapshot(ctx router.Context) Snapshot {
	if snap, ok := GetRouterSnapshot(ctx); ok {
		return snap
	}
	return c.authn.Snapshot()
}

func (c *PortalController) render(ctx router.Context, view string, data router.ViewContext) error {
	return ctx.Render(view, MergeTemplateData(ctx, c.snapshot(ctx), data))
}

func (c *PortalController) debug(msg string, payload any) {
	if c.Debug {
		c.Logger.Debug(msg, "payload", print.MaybePrettyJSON(payload))
	}
}

// Page renders route.View, with the data of the route's loader when one is
// registered. A loader failing because the session ended sends the visitor
// to the login page.
func (c *PortalController) Page(route Route) router.HandlerFunc {
	return func(ctx router.Context) error {
		snap := c.snapshot(ctx)
		data := router.ViewContext{
			"route": route.Name,
		}

		if loader, ok := c.Loaders[route.Name]; ok {
			extra, err := loader(ctx, snap)
			switch {
			case HasTextCode(err, TextCodeSessionInvalidated):
				c.Logger.Info("session ended while loading page", "route", route.Name)
				return ctx.Redirect(c.Destinations.Login, redirectStatus(ctx))
			case err != nil:
				c.Logger.Error("page loader failed", "route", route.Name, "error", err)
				data["load_error"] = loadErrorMessage(err)
			default:
				maps.Copy(data, extra)
			}
		}

		return c.render(ctx, route.View, data)
	}
}

func (c *PortalController) LoginShow(ctx router.Context) error {
	return c.render(ctx, c.Views.Login, router.ViewContext{
		"errors": nil,
		"record": nil,
		"portal": string(PortalUser),
	})
}

// LoginForm is the login form payload
type LoginForm struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
	Portal   string `form:"portal" json:"portal"`
}

// Request returns the backend payload
func (f LoginForm) Request() LoginRequest {
	return LoginRequest{
		Username: strings.TrimSpace(f.Username),
		Password: f.Password,
	}
}

func (c *PortalController) LoginPost(ctx router.Context) error {
	payload := new(LoginForm)
	if err := ctx.Bind(payload); err != nil {
		c.Logger.Error("login parse payload", "error", err)
		return c.ErrorHandler(ctx, err)
	}

	portal := ParsePortal(payload.Portal)
	user, err := c.authn.LoginForPortal(ctx.Context(), payload.Request(), portal)
	if err != nil {
		c.Logger.Info("login rejected",
			"username", payload.Username,
			"portal", portal,
			"error", err,
		)
		payload.Password = ""
		return c.render(ctx, c.Views.Login, router.ViewContext{
			"record":     payload,
			"portal":     string(portal),
			"error":      UserMessage(err),
			"validation": FieldErrors(err),
		})
	}

	c.debug("login", user)

	return ctx.Redirect(c.Destinations.HomeFor(AuthenticatedSnapshot(*user)), http.StatusSeeOther)
}

func (c *PortalController) SignupShow(ctx router.Context) error {
	return c.render(ctx, c.Views.Signup, router.ViewContext{
		"errors": nil,
		"record": SignupForm{},
	})
}

// SignupForm is the signup form payload
type SignupForm struct {
	Username        string `form:"username" json:"username"`
	Email           string `form:"email" json:"email"`
	FullName        string `form:"full_name" json:"full_name"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate checks the confirmation, the account fields are checked by
// SignupRequest
func (f SignupForm) Validate() error {
	return validationError(validation.ValidateStruct(&f,
		validation.Field(
			&f.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(f.Password)),
		),
	), "Passwords do not match")
}

// Request returns the backend payload
func (f SignupForm) Request() SignupRequest {
	return SignupRequest{
		Username: strings.TrimSpace(f.Username),
		Email:    strings.TrimSpace(f.Email),
		Password: f.Password,
		FullName: strings.TrimSpace(f.FullName),
	}
}

func (c *PortalController) SignupPost(ctx router.Context) error {
	payload := new(SignupForm)
	if err := ctx.Bind(payload); err != nil {
		c.Logger.Error("signup parse payload", "error", err)
		return c.ErrorHandler(ctx, err)
	}

	err := payload.Validate()
	if err == nil {
		_, err = c.authn.Signup(ctx.Context(), payload.Request())
	}

	if err != nil {
		c.Logger.Info("signup rejected", "username", payload.Username, "error", err)
		payload.Password = ""
		payload.ConfirmPassword = ""
		return c.render(ctx, c.Views.Signup, router.ViewContext{
			"record":     payload,
			"error":      signupMessage(err),
			"validation": FieldErrors(err),
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Account created",
	}).Redirect(c.Destinations.UserHome, http.StatusSeeOther)
}

func (c *PortalController) Logout(ctx router.Context) error {
	snap := c.authn.Logout(ctx.Context())
	c.debug("logout", snap)

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "You have been signed out",
	}).Redirect(c.Destinations.Login, http.StatusSeeOther)
}

// ProfileForm is the profile form payload
type ProfileForm struct {
	FullName string `form:"full_name" json:"full_name"`
	Email    string `form:"email" json:"email"`
}

// Update returns the changed fields, blank fields are left untouched
func (f ProfileForm) Update() ProfileUpdate {
	var update ProfileUpdate
	if name := strings.TrimSpace(f.FullName); name != "" {
		update.FullName = &name
	}
	if email := strings.TrimSpace(f.Email); email != "" {
		update.Email = &email
	}
	return update
}

func (c *PortalController) ProfilePost(ctx router.Context) error {
	if c.Profiles == nil {
		return c.ErrorHandler(ctx, errors.New("profile service not configured"))
	}

	payload := new(ProfileForm)
	if err := ctx.Bind(payload); err != nil {
		c.Logger.Error("profile parse payload", "error", err)
		return c.ErrorHandler(ctx, err)
	}

	update := payload.Update()
	if update.Empty() {
		return ctx.Redirect(c.Routes.Profile, http.StatusSeeOther)
	}

	user, err := c.Profiles.UpdateProfile(ctx.Context(), update)
	if err == nil {
		err = c.authn.UpdateUser(ctx.Context(), *user)
	}

	if err != nil {
		if HasTextCode(err, TextCodeSessionInvalidated) {
			return c.ErrorHandler(ctx, err)
		}
		c.Logger.Info("profile update rejected", "error", err)
		return c.render(ctx, c.Views.Profile, router.ViewContext{
			"record":        payload,
			"profile_error": loadErrorMessage(err),
			"validation":    FieldErrors(err),
		})
	}

	c.debug("profile updated", user)

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Profile updated",
	}).Redirect(c.Routes.Profile, http.StatusSeeOther)
}

// PasswordForm is the change password form payload
type PasswordForm struct {
	CurrentPassword string `form:"current_password" json:"current_password"`
	NewPassword     string `form:"new_password" json:"new_password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate checks the confirmation matches
func (f PasswordForm) Validate() error {
	return validationError(validation.ValidateStruct(&f,
		validation.Field(
			&f.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(f.NewPassword)),
		),
	), "Passwords do not match")
}

func (c *PortalController) PasswordPost(ctx router.Context) error {
	if c.Profiles == nil {
		return c.ErrorHandler(ctx, errors.New("profile service not configured"))
	}

	payload := new(PasswordForm)
	if err := ctx.Bind(payload); err != nil {
		c.Logger.Error("password parse payload", "error", err)
		return c.ErrorHandler(ctx, err)
	}

	err := payload.Validate()
	if err == nil {
		err = c.Profiles.ChangePassword(ctx.Context(), ChangePasswordRequest{
			CurrentPassword: payload.CurrentPassword,
			NewPassword:     payload.NewPassword,
		})
	}

	if err != nil {
		if HasTextCode(err, TextCodeSessionInvalidated) {
			return c.ErrorHandler(ctx, err)
		}
		c.Logger.Info("password change rejected", "error", err)
		return c.render(ctx, c.Views.Profile, router.ViewContext{
			"password_error": passwordMessage(err),
			"validation":     FieldErrors(err),
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Password changed",
	}).Redirect(c.Routes.Profile, http.StatusSeeOther)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

func signupMessage(err error) string {
	switch {
	case HasTextCode(err, TextCodeInvalidPayload):
		return UserMessage(err)
	case HasTextCode(err, TextCodeCredentialsRejected):
		return UserMessage(err)
	case HasTextCode(err, TextCodeSignupPrivilege):
		return "This account can not be created here."
	case HasTextCode(err, TextCodeBackendUnavailable):
		return "Signup failed. Please try again."
	}
	return UserMessage(err)
}

func passwordMessage(err error) string {
	if HasTextCode(err, TextCodeCredentialsRejected) {
		return UserMessage(err)
	}
	return loadErrorMessage(err)
}
