package auth

import (
	"net/http"

	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// ActionResult is where a page action sends the visitor and what it tells
// them. Location may be set on failure too, it then overrides the action
// fallback.
type ActionResult struct {
	Location string
	Message  string
}

// PageAction handles a form post of a portal page
type PageAction func(ctx router.Context, snap Snapshot) (ActionResult, error)

// Action is a form post mounted next to the page routes
type Action struct {
	Name        string
	Path        string
	Requirement Requirement
	Fallback    string
	Handler     PageAction
}

// WithPageAction mounts action with the portal routes
func WithPageAction(action Action) PortalControllerOption {
	return func(c *PortalController) *PortalController {
		if action.Handler != nil && action.Path != "" {
			c.Actions = append(c.Actions, action)
		}
		return c
	}
}

// RunAction runs action and redirects with a flash message. Failures are
// flashed as errors, a session that ended goes through the error handler.
func (c *PortalController) RunAction(action Action) router.HandlerFunc {
	return func(ctx router.Context) error {
		result, err := action.Handler(ctx, c.snapshot(ctx))

		location := result.Location
		if location == "" {
			location = action.Fallback
		}
		if location == "" {
			location = c.Destinations.UserHome
		}

		if err != nil {
			if HasTextCode(err, TextCodeSessionInvalidated) || HasTextCode(err, TextCodeNotAuthenticated) {
				return c.ErrorHandler(ctx, err)
			}
			c.Logger.Info("page action rejected", "action", action.Name, "error", err)
			return flash.WithError(ctx, router.ViewContext{
				"system_message": loadErrorMessage(err),
			}).Redirect(location, http.StatusSeeOther)
		}

		c.debug(action.Name, result)

		if result.Message == "" {
			return ctx.Redirect(location, http.StatusSeeOther)
		}

		return flash.WithSuccess(ctx, router.ViewContext{
			"system_message": result.Message,
		}).Redirect(location, http.StatusSeeOther)
	}
}
