package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"cakeshop-notifier/internal/common/logger"
	"cakeshop-notifier/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeSocket struct {
	mu      sync.Mutex
	open    bool
	sent    [][]byte
	sendErr error
	done    chan struct{}
	once    sync.Once
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{open: true, done: make(chan struct{})}
}

func (f *fakeSocket) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeSocket) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeSocket) Done() <-chan struct{} { return f.done }

func (f *fakeSocket) Close(int, string) error {
	f.mu.Lock()
	f.open = false
	f.mu.Unlock()
	f.once.Do(func() { close(f.done) })
	return nil
}

func (f *fakeSocket) frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

func newTestRegistry(t *testing.T) *Registry {
	return NewRegistry(logger.NewTestLogger(t))
}

func assignment() models.Notification {
	return models.NewNotification(models.TypeOrderAssigned,
		models.Order{ID: 12, OrderNumber: "CK-0012"}, "New order assigned", &models.OrderDetails{CustomerName: "Ravi"})
}

// ==========================
// Core Functionality Tests
// ==========================

func TestPool_SendToAbsentActor(t *testing.T) {
	reg := newTestRegistry(t)
	pool := reg.Delivery()

	present := newFakeSocket()
	pool.Register(1, present)

	for _, id := range []int64{2, 3, 99} {
		assert.False(t, pool.Send(id, assignment()), "actor %d", id)
		assert.False(t, pool.IsOnline(id))
	}
	assert.Equal(t, 1, pool.Broadcast(assignment()))
}

func TestPool_SendWritesJSONFrame(t *testing.T) {
	reg := newTestRegistry(t)
	sock := newFakeSocket()
	reg.Delivery().Register(7, sock)

	require.True(t, reg.Delivery().Send(7, assignment()))

	frames := sock.frames()
	require.Len(t, frames, 1)
	var got models.Notification
	require.NoError(t, json.Unmarshal(frames[0], &got))
	assert.Equal(t, models.TypeOrderAssigned, got.Type)
	assert.Equal(t, int64(12), got.OrderID)
	require.NotNil(t, got.OrderDetails)
	assert.Equal(t, "Ravi", got.OrderDetails.CustomerName)
}

func TestPool_CloseRemovesEntry(t *testing.T) {
	reg := newTestRegistry(t)
	pool := reg.Delivery()
	sock := newFakeSocket()

	pool.Register(5, sock)
	require.True(t, pool.IsOnline(5))

	require.NoError(t, sock.Close(1006, ""))

	assert.False(t, pool.IsOnline(5))
	assert.False(t, pool.Send(5, assignment()))
	require.Eventually(t, func() bool {
		pool.mu.RLock()
		defer pool.mu.RUnlock()
		_, ok := pool.conns[5]
		return !ok
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, pool.ActiveCount())
}

func TestPool_ReconnectReplacesEntry(t *testing.T) {
	reg := newTestRegistry(t)
	pool := reg.Delivery()

	first := newFakeSocket()
	second := newFakeSocket()
	pool.Register(3, first)
	pool.Register(3, second)

	// The stale socket closing must not evict the new one.
	require.NoError(t, first.Close(1006, ""))
	time.Sleep(20 * time.Millisecond)

	assert.True(t, pool.IsOnline(3))
	assert.True(t, pool.Send(3, assignment()))
	assert.Len(t, second.frames(), 1)
	assert.Empty(t, first.frames())
	assert.Equal(t, 1, pool.ActiveCount())
}

func TestPool_BroadcastCountsSuccessfulWrites(t *testing.T) {
	reg := newTestRegistry(t)
	pool := reg.Admin()

	ok1, ok2, broken := newFakeSocket(), newFakeSocket(), newFakeSocket()
	broken.sendErr = errors.New("broken pipe")
	pool.Register(1, ok1)
	pool.Register(2, ok2)
	pool.Register(3, broken)

	n := models.NewNotification(models.TypeNewOrder, models.Order{ID: 40, OrderNumber: "CK-0040"}, "New order", nil)
	assert.Equal(t, 2, pool.Broadcast(n))
	assert.Equal(t, 0, reg.Delivery().Broadcast(n))
}

func TestRegistry_PoolsAreIndependent(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Delivery().Register(1, newFakeSocket())

	assert.True(t, reg.Delivery().IsOnline(1))
	assert.False(t, reg.Admin().IsOnline(1))
	assert.Same(t, reg.Admin(), reg.Pool(PoolAdmin))
	assert.Nil(t, reg.Pool("customer"))
}

func TestRegistry_CloseAll(t *testing.T) {
	reg := newTestRegistry(t)
	a, b := newFakeSocket(), newFakeSocket()
	reg.Delivery().Register(1, a)
	reg.Admin().Register(1, b)

	reg.CloseAll(1001, "server shutting down")

	assert.False(t, a.IsOpen())
	assert.False(t, b.IsOpen())
	assert.Equal(t, 0, reg.Delivery().ActiveCount()+reg.Admin().ActiveCount())
}
