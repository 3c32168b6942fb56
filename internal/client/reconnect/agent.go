// Package reconnect keeps the delivery agent's websocket open, reconnecting
// after unexpected drops.
package reconnect

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"cakeshop-notifier/internal/common/logger"
	"cakeshop-notifier/internal/models"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

// State of the agent's connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	}
	return "unknown"
}

const dialTimeout = 10 * time.Second

// Config wires an Agent. Clock, Policy and the callbacks are optional.
type Config struct {
	Dialer         Dialer
	Policy         Policy
	Clock          clockwork.Clock
	OnNotification func(models.Notification)
	OnStateChange  func(from, to State)
	Logger         logger.Logger
}

// Agent runs the Disconnected, Connecting, Connected cycle until Stop.
// A normal closure (1000) from the server ends in Closed without reconnecting.
type Agent struct {
	dialer   Dialer
	policy   Policy
	clock    clockwork.Clock
	onNotify func(models.Notification)
	onState  func(from, to State)
	logger   logger.Logger

	mu      sync.Mutex
	state   State
	attempt int
	timer   clockwork.Timer
	conn    Conn
	stopped bool
	pending []transition
}

type transition struct{ from, to State }

func New(cfg Config) *Agent {
	a := &Agent{
		dialer:   cfg.Dialer,
		policy:   cfg.Policy,
		clock:    cfg.Clock,
		onNotify: cfg.OnNotification,
		onState:  cfg.OnStateChange,
		logger:   logger.ForComponent(cfg.Logger, "reconnect"),
		state:    Disconnected,
	}
	if a.policy.Initial <= 0 {
		a.policy = DefaultPolicy
	}
	if a.clock == nil {
		a.clock = clockwork.NewRealClock()
	}
	return a
}

// State returns the current state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Start makes the first connection attempt. It returns once that attempt
// has either connected or scheduled a retry.
func (a *Agent) Start() {
	a.connect()
}

// Stop cancels any pending reconnect, closes the connection with 1000 and
// moves to Closed.
func (a *Agent) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	conn := a.conn
	a.conn = nil
	a.setStateLocked(Closed)
	a.unlockAndNotify()

	if conn != nil {
		if err := conn.CloseWithCode(websocket.CloseNormalClosure, "client shutdown"); err != nil {
			a.logger.Debug("close on stop failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (a *Agent) connect() {
	a.mu.Lock()
	if a.stopped || a.state == Connecting || a.state == Connected {
		a.mu.Unlock()
		return
	}
	a.setStateLocked(Connecting)
	a.unlockAndNotify()

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	conn, err := a.dialer.Dial(ctx)
	cancel()

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		if conn != nil {
			_ = conn.CloseWithCode(websocket.CloseNormalClosure, "client shutdown")
		}
		return
	}
	if err != nil {
		a.logger.Warn("connection attempt failed", map[string]interface{}{"attempt": a.attempt + 1, "error": err.Error()})
		a.setStateLocked(Disconnected)
		a.scheduleLocked()
		a.unlockAndNotify()
		return
	}

	a.conn = conn
	a.attempt = 0
	a.setStateLocked(Connected)
	a.unlockAndNotify()

	a.logger.Info("connected", nil)
	go a.readLoop(conn)
}

func (a *Agent) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			a.handleClose(conn, err)
			return
		}

		var n models.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			a.logger.Warn("dropping malformed message", map[string]interface{}{"error": err.Error(), "bytes": len(data)})
			continue
		}
		if a.onNotify != nil {
			a.onNotify(n)
		}
	}
}

func (a *Agent) handleClose(conn Conn, err error) {
	a.mu.Lock()
	if a.conn != conn {
		a.mu.Unlock()
		return
	}
	a.conn = nil

	code := closeCode(err)
	if code == websocket.CloseNormalClosure {
		a.logger.Info("server closed connection normally", nil)
		a.stopped = true
		a.setStateLocked(Closed)
		a.unlockAndNotify()
		return
	}

	a.logger.Warn("connection lost", map[string]interface{}{"code": code, "error": err.Error()})
	a.setStateLocked(Disconnected)
	a.scheduleLocked()
	a.unlockAndNotify()
}

// scheduleLocked arms the single reconnect timer.
func (a *Agent) scheduleLocked() {
	if a.timer != nil || a.stopped {
		return
	}
	delay := a.policy.Delay(a.attempt)
	a.attempt++
	a.logger.Info("reconnect scheduled", map[string]interface{}{"delay": delay.String(), "attempt": a.attempt})

	a.timer = a.clock.AfterFunc(delay, func() {
		a.mu.Lock()
		a.timer = nil
		a.mu.Unlock()
		a.connect()
	})
}

func (a *Agent) setStateLocked(to State) {
	if a.state == to {
		return
	}
	a.pending = append(a.pending, transition{from: a.state, to: to})
	a.state = to
}

// unlockAndNotify releases mu, then reports the transitions queued while it
// was held.
func (a *Agent) unlockAndNotify() {
	pending := a.pending
	a.pending = nil
	a.mu.Unlock()

	for _, t := range pending {
		a.logger.Debug("state change", map[string]interface{}{"from": t.from.String(), "to": t.to.String()})
		if a.onState != nil {
			a.onState(t.from, t.to)
		}
	}
}

func closeCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}
