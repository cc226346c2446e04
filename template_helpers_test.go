package auth_test

import (
	"testing"

	"github.com/goliatone/go-router"
	auth "github.com/marketsim/portal-auth"
	"github.com/marketsim/portal-auth/middleware/csrf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateHelpersAnonymous(t *testing.T) {
	helpers := auth.TemplateHelpers(auth.AnonymousSnapshot())

	assert.Nil(t, helpers[auth.TemplateUserKey])
	assert.Equal(t, false, helpers["is_authenticated"])
	assert.Equal(t, false, helpers["is_admin"])
	assert.Equal(t, "", helpers["role"])
	assert.Equal(t, "", helpers["display_name"])
}

func TestTemplateHelpersAdmin(t *testing.T) {
	user := admin
	user.FullName = "Root Admin"
	helpers := auth.TemplateHelpers(auth.AuthenticatedSnapshot(user))

	current, ok := helpers[auth.TemplateUserKey].(*auth.User)
	require.True(t, ok)
	assert.Equal(t, "root", current.Username)
	assert.Equal(t, true, helpers["is_authenticated"])
	assert.Equal(t, true, helpers["is_admin"])
	assert.Equal(t, "admin", helpers["role"])
	assert.Equal(t, "Root Admin", helpers["display_name"])

	roles := helpers["roles"].(map[string]string)
	assert.Len(t, roles, len(auth.GetAllRoles()))
	for _, role := range auth.GetAllRoles() {
		assert.Equal(t, string(role), roles[string(role)])
	}
}

func TestTemplateHelpersWhileHydrating(t *testing.T) {
	helpers := auth.TemplateHelpers(auth.HydratingSnapshot())
	assert.Equal(t, true, helpers["is_loading"])
	assert.Equal(t, false, helpers["is_authenticated"])
}

func TestMergeTemplateDataPrefersCallerData(t *testing.T) {
	ctx := router.NewMockContext()
	ctx.LocalsMock[csrf.DefaultContextKey] = "csrf-token-123"
	ctx.LocalsMock[csrf.DefaultContextKey+"_field"] = "_token"

	data := auth.MergeTemplateData(ctx, auth.AuthenticatedSnapshot(alice), router.ViewContext{
		"title":        "Dashboard",
		"display_name": "override",
	})

	assert.Equal(t, "Dashboard", data["title"])
	assert.Equal(t, "override", data["display_name"])
	assert.Equal(t, "csrf-token-123", data["csrf_token"])
	assert.Equal(t, "_token", data["csrf_field_name"])
	assert.Equal(t, "user", data["role"])
}
