package push

import (
	"context"

	"github.com/gorilla/websocket"
)

// Conn is a single established push connection. ReadMessage blocks until a
// frame arrives, the peer closes, or Close is called from another
// goroutine.
type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// Transport dials push connections. It is an interface so the channel's
// lifecycle can be tested against a scripted fake instead of a real socket.
type Transport interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketTransport dials with gorilla/websocket.
type WebsocketTransport struct {
	dialer *websocket.Dialer
}

var _ Transport = (*WebsocketTransport)(nil)

// NewWebsocketTransport returns a transport using the default dialer.
func NewWebsocketTransport() *WebsocketTransport {
	return &WebsocketTransport{dialer: websocket.DefaultDialer}
}

// Dial establishes a websocket connection to url.
func (t *WebsocketTransport) Dial(ctx context.Context, url string) (Conn, error) {
	c, resp, err := t.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w wsConn) ReadMessage() ([]byte, error) {
	_, data, err := w.c.ReadMessage()
	return data, err
}

func (w wsConn) Close() error {
	return w.c.Close()
}
