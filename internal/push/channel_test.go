package push

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is a scripted single-use connection.
type fakeConn struct {
	url    string
	frames chan []byte
	done   chan struct{}
	once   sync.Once

	// openAtDial reports whether another conn was still open when this
	// one was dialed; the channel must never let that happen.
	openAtDial bool
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data, ok := <-c.frames:
		if !ok {
			return nil, errors.New("server closed connection")
		}
		return data, nil
	case <-c.done:
		return nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// push delivers a frame; the buffer is large enough that delivery never
// blocks even when the reader is already gone.
func (c *fakeConn) push(frame string) {
	c.frames <- []byte(frame)
}

// drop simulates an abnormal closure from the server side.
func (c *fakeConn) drop() {
	close(c.frames)
}

// fakeTransport hands out fakeConns and records every dial.
type fakeTransport struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials chan *fakeConn
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{dials: make(chan *fakeConn, 8)}
}

func (t *fakeTransport) Dial(ctx context.Context, url string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	stillOpen := false
	for _, c := range t.conns {
		if !c.closed() {
			stillOpen = true
		}
	}
	conn := &fakeConn{
		url:        url,
		frames:     make(chan []byte, 16),
		done:       make(chan struct{}),
		openAtDial: stillOpen,
	}
	t.conns = append(t.conns, conn)
	t.mu.Unlock()

	t.dials <- conn
	return conn, nil
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

func newTestChannel(t *testing.T, tr *fakeTransport) *Channel {
	t.Helper()
	ch := New(tr, "ws://gateway/api/v1/notifications/ws",
		WithBackoff(10*time.Millisecond, 40*time.Millisecond))
	t.Cleanup(ch.Close)
	return ch
}

func awaitDial(t *testing.T, tr *fakeTransport) *fakeConn {
	t.Helper()
	select {
	case conn := <-tr.dials:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dial")
		return nil
	}
}

func awaitState(t *testing.T, ch *Channel, want ConnState) Status {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-ch.StatusChanges():
			if s.State == want {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v (current %v)", want, ch.Current().State)
			return Status{}
		}
	}
}

func TestOpenDialsIdentityScopedURL(t *testing.T) {
	tr := newFakeTransport()
	ch := newTestChannel(t, tr)

	ch.Open(1)
	conn := awaitDial(t, tr)
	assert.True(t, strings.HasSuffix(conn.url, "/ws/1"), "got %s", conn.url)

	status := awaitState(t, ch, StateOpen)
	assert.Equal(t, 1, status.IdentityID)
}

func TestEventDelivery(t *testing.T) {
	tr := newFakeTransport()
	ch := newTestChannel(t, tr)

	ch.Open(1)
	conn := awaitDial(t, tr)
	awaitState(t, ch, StateOpen)

	conn.push(`{"type":"test","title":"Test Notification","message":"hello"}`)

	select {
	case event := <-ch.Events():
		assert.Equal(t, "test", event.Type)
		assert.Equal(t, "Test Notification", event.Title)
		assert.Equal(t, "hello", event.Message)
		assert.NotEmpty(t, event.ID)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestMalformedFramesAreDroppedWithoutClosing(t *testing.T) {
	tr := newFakeTransport()
	ch := newTestChannel(t, tr)

	ch.Open(1)
	conn := awaitDial(t, tr)
	awaitState(t, ch, StateOpen)

	conn.push(`not json at all`)
	conn.push(`{"title":"no type"}`)
	conn.push(`{"type":"billing","title":"Bill ready","message":"Due Friday"}`)

	select {
	case event := <-ch.Events():
		assert.Equal(t, "billing", event.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	// The connection survived the bad frames.
	assert.False(t, conn.closed())
	assert.Equal(t, 1, tr.dialCount())
}

func TestOpenIsIdempotentForSameIdentity(t *testing.T) {
	tr := newFakeTransport()
	ch := newTestChannel(t, tr)

	ch.Open(1)
	awaitDial(t, tr)
	awaitState(t, ch, StateOpen)

	ch.Open(1)
	ch.Open(1)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, tr.dialCount())
}

func TestIdentitySwitchReleasesPreviousSocketFirst(t *testing.T) {
	tr := newFakeTransport()
	ch := newTestChannel(t, tr)

	ch.Open(1)
	first := awaitDial(t, tr)
	awaitState(t, ch, StateOpen)

	ch.Open(2)
	second := awaitDial(t, tr)

	assert.True(t, strings.HasSuffix(second.url, "/ws/2"), "got %s", second.url)
	assert.False(t, second.openAtDial, "previous socket still open at dial")
	assert.True(t, first.closed())

	// A frame lingering on the dead socket is never attributed to the
	// new identity's stream.
	first.push(`{"type":"test","title":"Stale","message":"for identity 1"}`)

	awaitState(t, ch, StateOpen)
	second.push(`{"type":"test","title":"Fresh","message":"for identity 2"}`)

	select {
	case event := <-ch.Events():
		assert.Equal(t, "Fresh", event.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	tr := newFakeTransport()
	ch := newTestChannel(t, tr)

	// Closing a channel that was never opened is a no-op.
	ch.Close()

	ch.Open(1)
	awaitDial(t, tr)
	awaitState(t, ch, StateOpen)

	ch.Close()
	ch.Close()
	assert.Equal(t, StateIdle, ch.Current().State)
}

func TestExplicitCloseSuppressesReconnect(t *testing.T) {
	tr := newFakeTransport()
	ch := newTestChannel(t, tr)

	ch.Open(1)
	awaitDial(t, tr)
	awaitState(t, ch, StateOpen)

	ch.Close()

	// Well past the backoff window: no new dial.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, tr.dialCount())
	assert.Equal(t, StateIdle, ch.Current().State)
}

func TestAbnormalClosureReconnects(t *testing.T) {
	tr := newFakeTransport()
	ch := newTestChannel(t, tr)

	ch.Open(1)
	first := awaitDial(t, tr)
	awaitState(t, ch, StateOpen)

	first.drop()
	awaitState(t, ch, StateClosed)

	second := awaitDial(t, tr)
	assert.True(t, strings.HasSuffix(second.url, "/ws/1"))
	awaitState(t, ch, StateOpen)

	// The replacement connection delivers events again.
	second.push(`{"type":"appointment","title":"Reminder","message":"Tomorrow at 9"}`)
	select {
	case event := <-ch.Events():
		assert.Equal(t, "appointment", event.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestDecodeEventValidation(t *testing.T) {
	t.Parallel()

	_, err := decodeEvent([]byte(`{`))
	require.Error(t, err)

	_, err = decodeEvent([]byte(`{"title":"x","message":"y"}`))
	require.Error(t, err)

	_, err = decodeEvent([]byte(`{"type":"test"}`))
	require.Error(t, err)

	event, err := decodeEvent([]byte(`{"type":"test","title":"T","message":"M","payload":{"k":"v"}}`))
	require.NoError(t, err)
	assert.Equal(t, "v", event.Payload["k"])
}
