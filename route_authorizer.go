package auth

import "strings"

// RequirementKind is the access class of a route
type RequirementKind string

const (
	RequirementNone          RequirementKind = "none"
	RequirementPublic        RequirementKind = "public"
	RequirementAuthenticated RequirementKind = "authenticated"
	RequirementRole          RequirementKind = "role"
)

// Requirement declares who may see a route
type Requirement struct {
	Kind  RequirementKind
	Roles []Role
}

// Unguarded routes render for everyone, signed in or not
func Unguarded() Requirement {
	return Requirement{Kind: RequirementNone}
}

// Public routes are for anonymous users only (login, signup). Signed in
// users are sent to their home.
func Public() Requirement {
	return Requirement{Kind: RequirementPublic}
}

// AuthenticatedOnly routes need any signed in user
func AuthenticatedOnly() Requirement {
	return Requirement{Kind: RequirementAuthenticated}
}

// RoleRestricted routes need a signed in user with one of roles
func RoleRestricted(roles ...Role) Requirement {
	return Requirement{Kind: RequirementRole, Roles: roles}
}

func (r Requirement) String() string {
	if r.Kind != RequirementRole {
		return string(r.Kind)
	}
	names := make([]string, 0, len(r.Roles))
	for _, role := range r.Roles {
		names = append(names, string(role))
	}
	return string(r.Kind) + ":" + strings.Join(names, ",")
}

// DecisionKind is the outcome of an authorization check
type DecisionKind string

const (
	DecisionRender   DecisionKind = "render"
	DecisionLoading  DecisionKind = "loading"
	DecisionRedirect DecisionKind = "redirect"
)

// Decision tells the caller what to do with a navigation
type Decision struct {
	Kind     DecisionKind
	Location string
}

func render() Decision {
	return Decision{Kind: DecisionRender}
}

func loading() Decision {
	return Decision{Kind: DecisionLoading}
}

func redirect(location string) Decision {
	return Decision{Kind: DecisionRedirect, Location: location}
}

// Destinations are the redirect targets used by Authorize
type Destinations struct {
	Login     string
	UserHome  string
	AdminHome string
	Home      string
}

// DefaultDestinations returns the portal paths
func DefaultDestinations() Destinations {
	return Destinations{
		Login:     "/login",
		UserHome:  "/dashboard",
		AdminHome: "/admin/dashboard",
		Home:      "/",
	}
}

func (d Destinations) withDefaults() Destinations {
	def := DefaultDestinations()
	if d.Login == "" {
		d.Login = def.Login
	}
	if d.UserHome == "" {
		d.UserHome = def.UserHome
	}
	if d.AdminHome == "" {
		d.AdminHome = def.AdminHome
	}
	if d.Home == "" {
		d.Home = def.Home
	}
	return d
}

// HomeFor returns the landing page for the snapshot's role
func (d Destinations) HomeFor(snap Snapshot) string {
	d = d.withDefaults()
	if snap.IsAdmin {
		return d.AdminHome
	}
	return d.UserHome
}

// Authorize decides whether a route may render for snapshot. It is pure:
// while the session is hydrating the answer is always Loading so a restored
// session never sees a spurious redirect.
func Authorize(snap Snapshot, req Requirement, dest Destinations) Decision {
	dest = dest.withDefaults()

	if snap.State == StateHydrating || snap.Loading {
		return loading()
	}

	switch req.Kind {
	case RequirementPublic:
		if snap.IsAuthenticated {
			return redirect(dest.HomeFor(snap))
		}
		return render()
	case RequirementAuthenticated:
		if !snap.IsAuthenticated {
			return redirect(dest.Login)
		}
		return render()
	case RequirementRole:
		if !snap.IsAuthenticated {
			return redirect(dest.Login)
		}
		if !snap.Role().In(req.Roles) {
			return redirect(dest.Home)
		}
		return render()
	}

	return render()
}

// Route is a portal page and its access rule
type Route struct {
	Name        string
	Path        string
	View        string
	Requirement Requirement
}

// RouteTable lists the portal pages
func RouteTable() []Route {
	userOnly := RoleRestricted(RoleUser)
	adminOnly := RoleRestricted(RoleAdmin)

	return []Route{
		{Name: "home", Path: "/", View: "home", Requirement: Unguarded()},
		{Name: "login", Path: "/login", View: "login", Requirement: Public()},
		{Name: "signup", Path: "/signup", View: "signup", Requirement: Public()},
		{Name: "dashboard", Path: "/dashboard", View: "dashboard", Requirement: userOnly},
		{Name: "stocks", Path: "/stocks", View: "stocks", Requirement: userOnly},
		{Name: "stock-detail", Path: "/stocks/:symbol", View: "stock_detail", Requirement: userOnly},
		{Name: "trading", Path: "/trading", View: "trading", Requirement: userOnly},
		{Name: "learning", Path: "/learning", View: "learning", Requirement: userOnly},
		{Name: "profile", Path: "/profile", View: "profile", Requirement: userOnly},
		{Name: "admin-dashboard", Path: "/admin/dashboard", View: "admin/dashboard", Requirement: adminOnly},
		{Name: "admin-users", Path: "/admin/users", View: "admin/users", Requirement: adminOnly},
		{Name: "admin-models", Path: "/admin/models", View: "admin/models", Requirement: adminOnly},
		{Name: "admin-reports", Path: "/admin/reports", View: "admin/reports", Requirement: adminOnly},
	}
}

// FindRoute returns the route registered for path
func FindRoute(routes []Route, path string) (Route, bool) {
	for _, route := range routes {
		if route.Path == path {
			return route, true
		}
	}
	return Route{}, false
}
