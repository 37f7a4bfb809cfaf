package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/patient-portal/internal/model"
)

func TestLoginAndRegisterAlwaysReachable(t *testing.T) {
	t.Parallel()

	states := []model.SessionState{
		model.LoggedOut(),
		model.LoggingIn(),
		model.AuthFailure("bad password", false),
		model.Authenticated("tok1", model.Identity{ID: 1, Username: "demo"}),
	}

	for _, state := range states {
		assert.True(t, Decide(state, RouteLogin).Allow)
		assert.True(t, Decide(state, RouteRegister).Allow)
	}
}

func TestProtectedRouteRequiresAuthentication(t *testing.T) {
	t.Parallel()

	d := Decide(model.LoggedOut(), RouteFeed)
	assert.False(t, d.Allow)
	assert.Equal(t, RouteLogin, d.RedirectTo)

	d = Decide(model.Authenticated("tok1", model.Identity{ID: 1}), RouteFeed)
	assert.True(t, d.Allow)
}

func TestDecisionTracksAsynchronousTeardown(t *testing.T) {
	t.Parallel()

	// The same navigation target flips once the session is torn down;
	// this is why decisions must never be cached.
	authed := model.Authenticated("tok1", model.Identity{ID: 1})
	assert.True(t, Decide(authed, RouteFeed).Allow)

	assert.Equal(t, RouteLogin, Decide(model.LoggedOut(), RouteFeed).RedirectTo)
}

func TestTransitionalPhasesAreNotAuthenticated(t *testing.T) {
	t.Parallel()

	assert.False(t, Decide(model.LoggingIn(), RouteFeed).Allow)
	assert.False(t, Decide(model.AuthFailure("timeout", true), RouteFeed).Allow)
}
