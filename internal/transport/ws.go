package transport

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/coder/websocket"
)

// WSConn is a live WebSocket connection. Requests are written as single text
// frames; inbound frames are delivered through onMessage in arrival order.
type WSConn struct {
	conn   *websocket.Conn
	cancel context.CancelFunc
	closed atomic.Bool
}

// DialWS opens the socket and starts a reader goroutine. onDown fires once
// when the read loop ends, with a nil error for a normal closure.
func DialWS(ctx context.Context, ep Endpoint, onMessage func([]byte), onDown func(error)) (*WSConn, error) {
	var opts *websocket.DialOptions
	if len(ep.Headers) > 0 {
		hdr := make(http.Header)
		for k, v := range ep.Headers {
			hdr.Set(k, v)
		}
		opts = &websocket.DialOptions{HTTPHeader: hdr}
	}
	conn, _, err := websocket.Dial(ctx, ep.URL, opts)
	if err != nil {
		return nil, err
	}
	readCtx, cancel := context.WithCancel(context.Background())
	c := &WSConn{conn: conn, cancel: cancel}
	go c.readPump(readCtx, onMessage, onDown)
	return c, nil
}

func (c *WSConn) readPump(ctx context.Context, onMessage func([]byte), onDown func(error)) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if c.closed.Load() || errors.Is(err, context.Canceled) || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				err = nil
			}
			onDown(err)
			return
		}
		onMessage(data)
	}
}

// Send writes one text frame to the socket.
func (c *WSConn) Send(ctx context.Context, payload []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

// Close stops the read loop and closes the socket.
func (c *WSConn) Close() error {
	c.closed.Store(true)
	c.cancel()
	return c.conn.Close(websocket.StatusNormalClosure, "closing")
}
