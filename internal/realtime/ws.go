package realtime

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var ErrSocketClosed = errors.New("socket closed")

// WSOptions tunes a WSSocket.
type WSOptions struct {
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64
}

// DefaultWSOptions mirrors the defaults in config.
var DefaultWSOptions = WSOptions{
	WriteTimeout:   10 * time.Second,
	PingInterval:   30 * time.Second,
	PongTimeout:    60 * time.Second,
	MaxMessageSize: 4096,
}

// WSSocket adapts a gorilla websocket connection to Socket. Writes are
// serialized; Run owns the read side.
type WSSocket struct {
	conn *websocket.Conn
	opts WSOptions

	writeMu   sync.Mutex
	open      atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

func NewWSSocket(conn *websocket.Conn, opts WSOptions) *WSSocket {
	s := &WSSocket{
		conn: conn,
		opts: opts,
		done: make(chan struct{}),
	}
	s.open.Store(true)
	return s
}

func (s *WSSocket) Send(data []byte) error {
	if !s.open.Load() {
		return ErrSocketClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.terminate()
		return err
	}
	return nil
}

func (s *WSSocket) IsOpen() bool { return s.open.Load() }

func (s *WSSocket) Done() <-chan struct{} { return s.done }

// Close sends a close frame with code and reason, then drops the connection.
func (s *WSSocket) Close(code int, reason string) error {
	if !s.open.Load() {
		return nil
	}
	msg := websocket.FormatCloseMessage(code, reason)
	err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.opts.WriteTimeout))
	s.terminate()
	return err
}

// Run reads until the peer goes away, answering pings and sending keepalive
// pings of its own. Inbound messages are discarded. It blocks until the
// socket is terminated.
func (s *WSSocket) Run() {
	s.conn.SetReadLimit(s.opts.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	})

	go s.keepalive()

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			break
		}
	}
	s.terminate()
}

func (s *WSSocket) keepalive() {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteTimeout)); err != nil {
				s.terminate()
				return
			}
		}
	}
}

func (s *WSSocket) terminate() {
	s.closeOnce.Do(func() {
		s.open.Store(false)
		_ = s.conn.Close()
		close(s.done)
	})
}
