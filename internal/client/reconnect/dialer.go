package reconnect

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is an established connection as the agent sees it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	CloseWithCode(code int, reason string) error
}

// Dialer opens a connection.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// WSDialer dials the notifier websocket, passing the token as a query
// parameter.
type WSDialer struct {
	URL    string
	Token  string
	Dialer *websocket.Dialer
}

func (d *WSDialer) Dial(ctx context.Context) (Conn, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("token", d.Token)
	u.RawQuery = q.Encode()

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", redact(u), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", redact(u), err)
	}
	return &wsConn{conn: conn}, nil
}

// redact hides credentials in u, including the token query parameter.
func redact(u *url.URL) string {
	c := *u
	if c.RawQuery != "" {
		q := c.Query()
		if q.Has("token") {
			q.Set("token", "REDACTED")
		}
		c.RawQuery = q.Encode()
	}
	return c.Redacted()
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() (int, []byte, error) {
	return c.conn.ReadMessage()
}

func (c *wsConn) CloseWithCode(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = c.conn.Close()
	return err
}
