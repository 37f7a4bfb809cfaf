package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/patient-portal/internal/model"
)

// ConnState enumerates the lifecycle states of the push connection.
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateClosed
)

// String returns a human-readable state name for the status bar.
func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "live"
	case StateClosed:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the connection state, scoped to the identity the
// connection is (or was) addressed to.
type Status struct {
	State      ConnState
	IdentityID int

	// Reason describes the last closure; empty for Idle/Connecting/Open.
	Reason string
}

// Channel maintains at most one live push connection per authenticated
// identity. Open and Close serialize connection hand-offs: a new socket is
// never dialed until the previous one's reader has exited and its resources
// are released, so a stale connection can never emit events attributed to
// the wrong identity.
type Channel struct {
	transport  Transport
	baseURL    string
	minBackoff time.Duration
	maxBackoff time.Duration

	mu         sync.Mutex
	identityID int
	gen        int
	cancel     context.CancelFunc
	done       chan struct{}
	status     Status

	events   chan model.NotificationEvent
	statusCh chan Status
}

// Option configures a Channel.
type Option func(*Channel)

// WithBackoff overrides the reconnect backoff bounds.
func WithBackoff(min, max time.Duration) Option {
	return func(c *Channel) {
		c.minBackoff = min
		c.maxBackoff = max
	}
}

// New creates a push channel in the Idle state. baseURL is the root push
// endpoint; the identity id is appended as a path segment on dial.
func New(transport Transport, baseURL string, opts ...Option) *Channel {
	c := &Channel{
		transport:  transport,
		baseURL:    strings.TrimRight(baseURL, "/"),
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
		status:     Status{State: StateIdle},
		events:     make(chan model.NotificationEvent, 16),
		statusCh:   make(chan Status, 16),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events returns the stream of validated notification events. Delivery is
// in arrival order within one connection instance; no ordering is promised
// across a reconnect boundary.
func (c *Channel) Events() <-chan model.NotificationEvent {
	return c.events
}

// StatusChanges returns the stream of connection state transitions.
func (c *Channel) StatusChanges() <-chan Status {
	return c.statusCh
}

// Current returns a snapshot of the connection status.
func (c *Channel) Current() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Open ensures a live connection for identityID. It is idempotent for the
// identity that is already connected; for a different identity it closes
// the existing connection first, then dials. The call itself never blocks
// on network I/O.
func (c *Channel) Open(identityID int) {
	c.mu.Lock()
	if c.cancel != nil && c.identityID == identityID {
		c.mu.Unlock()
		return
	}

	prevDone := c.teardownLocked("superseded")

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.identityID = identityID
	c.gen++
	gen := c.gen
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	go c.run(ctx, identityID, gen, prevDone, done)
}

// Close releases the connection and suppresses reconnection. It blocks
// until the reader goroutine has exited so that the socket resources are
// released when it returns. Closing an idle channel is a no-op.
func (c *Channel) Close() {
	c.mu.Lock()
	done := c.teardownLocked("closed")
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

// teardownLocked cancels the current connection, if any, and invalidates
// its generation so late reads from the dying socket are discarded. It
// returns the done channel of the outgoing reader, or nil when idle.
func (c *Channel) teardownLocked(reason string) chan struct{} {
	if c.cancel == nil {
		return nil
	}

	c.cancel()
	c.cancel = nil
	c.gen++

	done := c.done
	c.done = nil

	c.setStatusLocked(Status{State: StateIdle, Reason: reason})
	return done
}

// run owns one connection generation: it waits out the previous socket,
// then dials, reads, and reconnects with exponential backoff until the
// generation is invalidated.
func (c *Channel) run(ctx context.Context, identityID, gen int, prevDone, done chan struct{}) {
	defer close(done)

	// The previous socket must be fully released before a new one is
	// dialed; otherwise two sockets could briefly coexist.
	if prevDone != nil {
		<-prevDone
	}

	backoff := c.minBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		c.setStatus(gen, Status{State: StateConnecting, IdentityID: identityID})

		conn, err := c.transport.Dial(ctx, c.urlFor(identityID))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.setStatus(gen, Status{
				State:      StateClosed,
				IdentityID: identityID,
				Reason:     err.Error(),
			})
			if !c.sleep(ctx, backoff) {
				return
			}
			backoff = c.nextBackoff(backoff)
			continue
		}

		c.setStatus(gen, Status{State: StateOpen, IdentityID: identityID})
		backoff = c.minBackoff

		readErr := c.readLoop(ctx, conn, gen)
		conn.Close()

		if ctx.Err() != nil {
			return
		}

		// Abnormal closure with the generation still live: reconnect.
		reason := "connection lost"
		if readErr != nil {
			reason = readErr.Error()
		}
		c.setStatus(gen, Status{
			State:      StateClosed,
			IdentityID: identityID,
			Reason:     reason,
		})

		if !c.sleep(ctx, backoff) {
			return
		}
		backoff = c.nextBackoff(backoff)
	}
}

// readLoop reads frames until the connection fails or the context is
// canceled. Malformed frames are logged and dropped; the connection stays
// open.
func (c *Channel) readLoop(ctx context.Context, conn Conn, gen int) error {
	readerDone := make(chan struct{})
	defer close(readerDone)

	// Unblock the pending read when the generation is torn down.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-readerDone:
		}
	}()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		event, err := decodeEvent(data)
		if err != nil {
			log.Printf("push: dropping malformed frame: %v", err)
			continue
		}

		c.emit(gen, event)
	}
}

// emit delivers an event unless its generation has been invalidated by an
// identity switch or close in the meantime.
func (c *Channel) emit(gen int, event model.NotificationEvent) {
	c.mu.Lock()
	live := gen == c.gen
	c.mu.Unlock()
	if !live {
		return
	}

	select {
	case c.events <- event:
	default:
		log.Printf("push: event buffer full, dropping %q", event.Type)
	}
}

// setStatus records a status change unless the generation is stale.
func (c *Channel) setStatus(gen int, s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.setStatusLocked(s)
}

func (c *Channel) setStatusLocked(s Status) {
	c.status = s
	select {
	case c.statusCh <- s:
	default:
		// Drop rather than block the state machine.
	}
}

func (c *Channel) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (c *Channel) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > c.maxBackoff {
		next = c.maxBackoff
	}
	return next
}

func (c *Channel) urlFor(identityID int) string {
	return c.baseURL + "/" + strconv.Itoa(identityID)
}

// decodeEvent validates an inbound frame. Every message is untrusted
// input: type, title and message are required, the timestamp defaults to
// arrival time, and an id is assigned when the frame carries none.
func decodeEvent(data []byte) (model.NotificationEvent, error) {
	var event model.NotificationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return model.NotificationEvent{}, fmt.Errorf("decoding frame: %w", err)
	}

	if event.Type == "" {
		return model.NotificationEvent{}, fmt.Errorf("frame missing type")
	}
	if event.Title == "" && event.Message == "" {
		return model.NotificationEvent{}, fmt.Errorf("frame %q has neither title nor message", event.Type)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	return event, nil
}
