package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/nhle/patient-portal/internal/api"
	"github.com/nhle/patient-portal/internal/credential"
	"github.com/nhle/patient-portal/internal/model"
)

// ErrLoginInFlight is returned when a login is attempted while another one
// has not completed. Transitions are serialized; overlapping logins are
// rejected rather than raced.
var ErrLoginInFlight = errors.New("a login attempt is already in flight")

// Gateway is the subset of the API client the controller needs. It is an
// interface so tests can run against a scripted fake.
type Gateway interface {
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, reg api.RegisterRequest) error
	Me(ctx context.Context, token string) (*model.Identity, error)
}

// Controller owns the session state machine: login, registration, restore
// and logout transitions, plus the global credential-rejected signal any
// collaborator may raise after a 401. It is the only writer of the session
// state and the only caller of the credential store's mutators.
type Controller struct {
	gateway Gateway
	creds   credential.Store

	mu            sync.Mutex
	state         model.SessionState
	loginInFlight bool
	subs          []chan model.SessionState
	disposed      bool
}

// New creates a controller in the LoggedOut state.
func New(gateway Gateway, creds credential.Store) *Controller {
	return &Controller{
		gateway: gateway,
		creds:   creds,
		state:   model.LoggedOut(),
	}
}

// State returns a snapshot of the current session state.
func (c *Controller) State() model.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers a listener for session state changes. The channel is
// buffered and never blocks a transition; a slow consumer misses
// intermediate snapshots, not the latest one it reads.
func (c *Controller) Subscribe() <-chan model.SessionState {
	ch := make(chan model.SessionState, 8)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, ch)
	return ch
}

// Login authenticates with the gateway. On success the credential is
// persisted, the identity resolved, and the session becomes Authenticated.
// On rejection the session becomes AuthError with the server-supplied
// reason and the credential store is left untouched.
func (c *Controller) Login(ctx context.Context, username, password string) (*model.Identity, error) {
	c.mu.Lock()
	if c.loginInFlight {
		c.mu.Unlock()
		return nil, ErrLoginInFlight
	}
	c.loginInFlight = true
	c.setStateLocked(model.LoggingIn())
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.loginInFlight = false
		c.mu.Unlock()
	}()

	token, err := c.gateway.Login(ctx, username, password)
	if err != nil {
		c.setState(model.AuthFailure(api.Detail(err), isTransient(err)))
		return nil, err
	}

	if err := c.creds.Save(token); err != nil {
		c.setState(model.AuthFailure(err.Error(), true))
		return nil, fmt.Errorf("persisting credential: %w", err)
	}

	identity, err := c.gateway.Me(ctx, token)
	if err != nil {
		if api.IsUnauthorized(err) {
			// The token was rejected immediately; discard it.
			if clearErr := c.creds.Clear(); clearErr != nil {
				log.Printf("session: clearing rejected credential: %v", clearErr)
			}
			c.setState(model.AuthFailure(api.Detail(err), false))
			return nil, err
		}
		c.setState(model.AuthFailure(api.Detail(err), true))
		return nil, err
	}

	c.setState(model.Authenticated(token, *identity))
	return identity, nil
}

// Register creates a new account. It is a pure request/response operation:
// the session state is not touched and success does not imply login.
func (c *Controller) Register(ctx context.Context, username, email, password string, role model.Role) error {
	return c.gateway.Register(ctx, api.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
		Role:     string(role),
	})
}

// Restore resolves a previously persisted credential at startup. An
// unauthorized response destroys the stale credential and leaves the
// session LoggedOut; a transport failure keeps both the credential and the
// LoggingIn state so the caller can retry.
func (c *Controller) Restore(ctx context.Context) error {
	token, err := c.creds.Load()
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			c.setState(model.LoggedOut())
			return nil
		}
		c.setState(model.LoggedOut())
		return fmt.Errorf("loading persisted credential: %w", err)
	}

	c.setState(model.LoggingIn())

	identity, err := c.gateway.Me(ctx, token)
	if err != nil {
		if api.IsUnauthorized(err) {
			if clearErr := c.creds.Clear(); clearErr != nil {
				log.Printf("session: clearing stale credential: %v", clearErr)
			}
			c.setState(model.LoggedOut())
			return nil
		}
		// Transport failure: the credential may still be good.
		return fmt.Errorf("resolving persisted session: %w", err)
	}

	c.setState(model.Authenticated(token, *identity))
	return nil
}

// Logout clears the credential store and forces the session to LoggedOut
// unconditionally. Listeners (the push channel among them) observe the
// transition in the same dispatch turn.
func (c *Controller) Logout() {
	if err := c.creds.Clear(); err != nil {
		log.Printf("session: clearing credential on logout: %v", err)
	}
	c.setState(model.LoggedOut())
}

// CredentialRejected is the global forced-logout signal. Any collaborator
// that receives an unauthorized response on an authenticated request calls
// this; the now-invalid credential is discarded and the session torn down.
// Calling it while not authenticated is a no-op.
func (c *Controller) CredentialRejected() {
	c.mu.Lock()
	authenticated := c.state.Phase == model.SessionAuthenticated
	c.mu.Unlock()

	if !authenticated {
		return
	}

	if err := c.creds.Clear(); err != nil {
		log.Printf("session: clearing rejected credential: %v", err)
	}
	c.setState(model.LoggedOut())
}

// Dispose closes all subscriber channels. The controller must not be used
// afterwards.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}
	c.disposed = true
	for _, ch := range c.subs {
		close(ch)
	}
	c.subs = nil
}

// setState records a new state and fans it out to subscribers without
// blocking.
func (c *Controller) setState(s model.SessionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStateLocked(s)
}

func (c *Controller) setStateLocked(s model.SessionState) {
	if c.disposed {
		return
	}
	c.state = s
	for _, ch := range c.subs {
		select {
		case ch <- s:
		default:
			// Drop rather than block the transition.
		}
	}
}

// isTransient reports whether a login failure should be surfaced as
// retry-eligible rather than a rejection of the submitted credentials.
func isTransient(err error) bool {
	return !api.IsUnauthorized(err) && !api.IsValidation(err)
}
