package reconnect

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cakeshop-notifier/internal/common/logger"
	"cakeshop-notifier/internal/models"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test doubles
// ==========================

type fakeConn struct {
	msgs      chan []byte
	errs      chan error
	closeCode atomic.Int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{msgs: make(chan []byte, 8), errs: make(chan error, 1)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case m := <-c.msgs:
		return websocket.TextMessage, m, nil
	case err := <-c.errs:
		return 0, nil, err
	}
}

func (c *fakeConn) CloseWithCode(code int, _ string) error {
	c.closeCode.Store(int32(code))
	c.drop(&websocket.CloseError{Code: code})
	return nil
}

func (c *fakeConn) drop(err error) {
	select {
	case c.errs <- err:
	default:
	}
}

type fakeDialer struct {
	mu      sync.Mutex
	results []dialResult
	dials   atomic.Int32
}

type dialResult struct {
	conn Conn
	err  error
}

func (d *fakeDialer) push(conn Conn, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = append(d.results, dialResult{conn: conn, err: err})
}

func (d *fakeDialer) Dial(context.Context) (Conn, error) {
	d.dials.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.results) == 0 {
		return nil, errors.New("no more connections")
	}
	r := d.results[0]
	d.results = d.results[1:]
	return r.conn, r.err
}

type stateRecorder struct {
	mu          sync.Mutex
	transitions []string
}

func (r *stateRecorder) record(from, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, from.String()+"->"+to.String())
}

func (r *stateRecorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.transitions...)
}

func newTestAgent(t *testing.T, dialer Dialer, clk clockwork.Clock, onNotify func(models.Notification)) (*Agent, *stateRecorder) {
	rec := &stateRecorder{}
	a := New(Config{
		Dialer:         dialer,
		Clock:          clk,
		OnNotification: onNotify,
		OnStateChange:  rec.record,
		Logger:         logger.NewTestLogger(t),
	})
	t.Cleanup(a.Stop)
	return a, rec
}

func waitForState(t *testing.T, a *Agent, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return a.State() == want }, 2*time.Second, 5*time.Millisecond,
		"want state %s, have %s", want, a.State())
}

// waitForReconnect blocks until the agent has armed its reconnect timer.
func waitForReconnect(t *testing.T, clk *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clk.BlockUntilContext(ctx, 1), "reconnect timer not armed")
}

func waitForDials(t *testing.T, d *fakeDialer, n int32) {
	t.Helper()
	require.Eventually(t, func() bool { return d.dials.Load() == n }, 2*time.Second, 5*time.Millisecond,
		"want %d dials, have %d", n, d.dials.Load())
}

// assertNoMoreDials keeps advancing the clock and fails if another dial
// happens.
func assertNoMoreDials(t *testing.T, clk *clockwork.FakeClock, d *fakeDialer, n int32) {
	t.Helper()
	assert.Never(t, func() bool {
		clk.Advance(10 * time.Second)
		return d.dials.Load() != n
	}, 200*time.Millisecond, 10*time.Millisecond)
}

// ==========================
// State machine
// ==========================

func TestAgent_AbnormalCloseSchedulesExactlyOneReconnect(t *testing.T) {
	clk := clockwork.NewFakeClock()
	first, second := newFakeConn(), newFakeConn()
	dialer := &fakeDialer{}
	dialer.push(first, nil)
	dialer.push(second, nil)

	a, rec := newTestAgent(t, dialer, clk, nil)
	a.Start()
	require.Equal(t, Connected, a.State())

	first.drop(&websocket.CloseError{Code: websocket.CloseAbnormalClosure})
	waitForState(t, a, Disconnected)
	waitForReconnect(t, clk)
	assert.Equal(t, int32(1), dialer.dials.Load())

	clk.Advance(2999 * time.Millisecond)
	assert.Never(t, func() bool { return dialer.dials.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	clk.Advance(time.Millisecond)
	waitForDials(t, dialer, 2)
	waitForState(t, a, Connected)
	assertNoMoreDials(t, clk, dialer, 2)

	require.Eventually(t, func() bool { return len(rec.get()) == 5 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{
		"disconnected->connecting",
		"connecting->connected",
		"connected->disconnected",
		"disconnected->connecting",
		"connecting->connected",
	}, rec.get())
}

func TestAgent_NormalCloseEndsClosedWithoutReconnect(t *testing.T) {
	clk := clockwork.NewFakeClock()
	conn := newFakeConn()
	dialer := &fakeDialer{}
	dialer.push(conn, nil)

	a, _ := newTestAgent(t, dialer, clk, nil)
	a.Start()
	conn.drop(&websocket.CloseError{Code: websocket.CloseNormalClosure})

	waitForState(t, a, Closed)
	assertNoMoreDials(t, clk, dialer, 1)
	assert.Equal(t, Closed, a.State())
}

func TestAgent_DialFailureRetriesAfterDelay(t *testing.T) {
	clk := clockwork.NewFakeClock()
	dialer := &fakeDialer{}
	dialer.push(nil, errors.New("connection refused"))
	dialer.push(nil, errors.New("connection refused"))
	dialer.push(newFakeConn(), nil)

	a, _ := newTestAgent(t, dialer, clk, nil)
	a.Start()
	assert.Equal(t, Disconnected, a.State())
	waitForReconnect(t, clk)

	clk.Advance(3 * time.Second)
	waitForDials(t, dialer, 2)
	waitForReconnect(t, clk)
	assert.Equal(t, Disconnected, a.State())

	clk.Advance(2999 * time.Millisecond)
	assert.Never(t, func() bool { return dialer.dials.Load() > 2 }, 50*time.Millisecond, 5*time.Millisecond,
		"fixed delay regardless of failure count")

	clk.Advance(time.Millisecond)
	waitForDials(t, dialer, 3)
	waitForState(t, a, Connected)
}

func TestAgent_StopCancelsPendingReconnect(t *testing.T) {
	clk := clockwork.NewFakeClock()
	dialer := &fakeDialer{}
	dialer.push(nil, errors.New("down"))

	a, _ := newTestAgent(t, dialer, clk, nil)
	a.Start()
	waitForReconnect(t, clk)

	a.Stop()
	assert.Equal(t, Closed, a.State())
	assertNoMoreDials(t, clk, dialer, 1)
}

func TestAgent_StopClosesWithNormalCode(t *testing.T) {
	clk := clockwork.NewFakeClock()
	conn := newFakeConn()
	dialer := &fakeDialer{}
	dialer.push(conn, nil)

	a, _ := newTestAgent(t, dialer, clk, nil)
	a.Start()
	a.Stop()

	assert.Equal(t, Closed, a.State())
	assert.Equal(t, int32(websocket.CloseNormalClosure), conn.closeCode.Load())

	assertNoMoreDials(t, clk, dialer, 1)
	assert.Equal(t, Closed, a.State())
}

func TestAgent_MalformedMessageIsDropped(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{}
	dialer.push(conn, nil)

	got := make(chan models.Notification, 2)
	a, _ := newTestAgent(t, dialer, clockwork.NewFakeClock(), func(n models.Notification) { got <- n })
	a.Start()

	conn.msgs <- []byte(`{"type": "order_assigned", "orderId": `)
	conn.msgs <- []byte(`{"type":"order_assigned","orderId":12,"orderNumber":"CK-12","message":"hi","timestamp":"2026-10-15T10:00:00Z"}`)

	select {
	case n := <-got:
		assert.Equal(t, models.TypeOrderAssigned, n.Type)
		assert.Equal(t, int64(12), n.OrderID)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
	assert.Equal(t, Connected, a.State())
	assert.Empty(t, got)
}

// ==========================
// Policy
// ==========================

func TestPolicy_Delay(t *testing.T) {
	for n := 0; n < 5; n++ {
		assert.Equal(t, 3*time.Second, DefaultPolicy.Delay(n))
	}

	exp := Policy{Initial: time.Second, Max: 5 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, exp.Delay(0))
	assert.Equal(t, 2*time.Second, exp.Delay(1))
	assert.Equal(t, 4*time.Second, exp.Delay(2))
	assert.Equal(t, 5*time.Second, exp.Delay(3))
	assert.Equal(t, 5*time.Second, exp.Delay(10))

	assert.Equal(t, 3*time.Second, Policy{}.Delay(4))
}

// ==========================
// WSDialer against a real server
// ==========================

func TestWSDialer_PassesTokenAndReadsFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	tokens := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens <- r.URL.Query().Get("token")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connected","message":"hello","timestamp":"2026-10-15T10:00:00Z"}`))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	got := make(chan models.Notification, 1)
	a, _ := newTestAgent(t, &WSDialer{URL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/delivery", Token: "abc.def"}, clockwork.NewFakeClock(), func(n models.Notification) {
		got <- n
	})
	a.Start()

	assert.Equal(t, "abc.def", <-tokens)
	select {
	case n := <-got:
		assert.Equal(t, models.TypeConnected, n.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame")
	}
	waitForState(t, a, Closed)
}

func TestWSDialer_ErrorHidesToken(t *testing.T) {
	d := &WSDialer{URL: "ws://127.0.0.1:1/ws/delivery", Token: "SECRET-BEARER-123"}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := d.Dial(ctx)

	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-BEARER-123")
	assert.Contains(t, err.Error(), "token=REDACTED")
}
