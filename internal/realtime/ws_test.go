package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cakeshop-notifier/internal/common/logger"
	"cakeshop-notifier/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWSServer(t *testing.T, pool *Pool, actorID int64) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sock := NewWSSocket(conn, DefaultWSOptions)
		pool.Register(actorID, sock)
		sock.Run()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

func TestWSSocket_DeliversTextFrames(t *testing.T) {
	reg := NewRegistry(logger.NewTestLogger(t))
	pool := reg.Delivery()
	srv := newWSServer(t, pool, 21)

	client := dial(t, srv)
	defer client.Close()

	require.Eventually(t, func() bool { return pool.IsOnline(21) }, 2*time.Second, 10*time.Millisecond)
	require.True(t, pool.Send(21, models.NewConnectedNotification("hello")))

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.Contains(t, string(data), `"type":"connected"`)
}

func TestWSSocket_ClientDisconnectUnregisters(t *testing.T) {
	reg := NewRegistry(logger.NewTestLogger(t))
	pool := reg.Delivery()
	srv := newWSServer(t, pool, 22)

	client := dial(t, srv)
	require.Eventually(t, func() bool { return pool.IsOnline(22) }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, client.Close())

	require.Eventually(t, func() bool { return !pool.IsOnline(22) }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, pool.Send(22, models.NewConnectedNotification("late")))
}

func TestWSSocket_ServerCloseSendsCode(t *testing.T) {
	reg := NewRegistry(logger.NewTestLogger(t))
	pool := reg.Admin()
	srv := newWSServer(t, pool, 1)

	client := dial(t, srv)
	defer client.Close()
	require.Eventually(t, func() bool { return pool.IsOnline(1) }, 2*time.Second, 10*time.Millisecond)

	reg.CloseAll(websocket.CloseGoingAway, "shutdown")

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}
