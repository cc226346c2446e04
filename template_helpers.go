package auth

import (
	"maps"

	"github.com/goliatone/go-router"
	"github.com/marketsim/portal-auth/middleware/csrf"
)

var TemplateUserKey = "current_user"

// TemplateHelpers returns the values views use to branch on the session.
//
// In templates:
//
//	{% if is_authenticated %}Hi {{ display_name }}{% endif %}
//	{% if is_admin %}<a href="/admin/dashboard">Admin</a>{% endif %}
//	{% if role == roles.user %}...{% endif %}
func TemplateHelpers(snap Snapshot) map[string]any {
	helpers := map[string]any{
		TemplateUserKey:    nil,
		"is_authenticated": snap.IsAuthenticated,
		"is_admin":         snap.IsAdmin,
		"is_loading":       snap.Loading,
		"role":             string(snap.Role()),
		"display_name":     "",
		"roles":            roleNames(),
	}

	if snap.User != nil {
		helpers[TemplateUserKey] = snap.User
		helpers["display_name"] = snap.User.DisplayName()
	}

	return helpers
}

// MergeTemplateData combines the session helpers, the CSRF values the csrf
// middleware left in locals and data. Keys in data win.
func MergeTemplateData(ctx router.Context, snap Snapshot, data router.ViewContext) router.ViewContext {
	out := router.ViewContext{}
	maps.Copy(out, TemplateHelpers(snap))
	maps.Copy(out, csrf.TemplateData(ctx, csrf.DefaultContextKey))
	maps.Copy(out, data)
	return out
}

func roleNames() map[string]string {
	out := map[string]string{}
	for _, role := range GetAllRoles() {
		out[string(role)] = string(role)
	}
	return out
}
