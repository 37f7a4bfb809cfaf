package access

import "github.com/nhle/patient-portal/internal/model"

// Route identifies a navigable view in the shell.
type Route string

const (
	RouteLogin    Route = "login"
	RouteRegister Route = "register"
	RouteFeed     Route = "feed"
)

// Decision is the outcome of a gating check: either the navigation is
// allowed, or the shell must redirect to RedirectTo instead.
type Decision struct {
	Allow      bool
	RedirectTo Route
}

// Decide applies the gating rule for a navigation attempt. Login and
// registration are always reachable; every other route requires an
// authenticated session. The function is pure and must be re-evaluated on
// every navigation: the session can be torn down asynchronously while a
// view is mounted, so a cached decision would go stale.
func Decide(state model.SessionState, target Route) Decision {
	switch target {
	case RouteLogin, RouteRegister:
		return Decision{Allow: true}
	}

	if state.IsAuthenticated() {
		return Decision{Allow: true}
	}
	return Decision{RedirectTo: RouteLogin}
}
