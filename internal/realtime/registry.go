// Package realtime tracks which actors hold a live websocket and writes
// notifications to them.
package realtime

import (
	"encoding/json"
	"sync"

	apperrors "cakeshop-notifier/internal/common/errors"
	"cakeshop-notifier/internal/common/logger"
	"cakeshop-notifier/internal/common/metrics"
	"cakeshop-notifier/internal/models"
)

// Socket is an open duplex connection to one actor.
type Socket interface {
	// Send writes one text frame.
	Send(data []byte) error
	IsOpen() bool
	// Done is closed once the socket terminates for any reason.
	Done() <-chan struct{}
	Close(code int, reason string) error
}

// PoolName identifies a connection pool.
type PoolName string

const (
	PoolDelivery PoolName = "delivery"
	PoolAdmin    PoolName = "admin"
)

// Registry owns the delivery and admin pools. Build one at startup and pass
// it to whatever needs to reach connected actors.
type Registry struct {
	delivery *Pool
	admin    *Pool
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		delivery: newPool(PoolDelivery, log),
		admin:    newPool(PoolAdmin, log),
	}
}

func (r *Registry) Delivery() *Pool { return r.delivery }
func (r *Registry) Admin() *Pool    { return r.admin }

// Pool returns the pool with the given name, or nil.
func (r *Registry) Pool(name PoolName) *Pool {
	switch name {
	case PoolDelivery:
		return r.delivery
	case PoolAdmin:
		return r.admin
	}
	return nil
}

// CloseAll closes every registered socket in both pools.
func (r *Registry) CloseAll(code int, reason string) {
	r.delivery.closeAll(code, reason)
	r.admin.closeAll(code, reason)
}

// Pool maps actor id to its current socket. At most one entry per id.
type Pool struct {
	name  PoolName
	log   logger.Logger
	mu    sync.RWMutex
	conns map[int64]Socket
}

func newPool(name PoolName, log logger.Logger) *Pool {
	return &Pool{
		name:  name,
		log:   log.WithFields(map[string]interface{}{"component": "realtime", "pool": string(name)}),
		conns: make(map[int64]Socket),
	}
}

func (p *Pool) Name() PoolName { return p.name }

// Register stores s as actorID's socket, replacing any previous one, and
// removes it again once s terminates. The replaced socket is left open; its
// own termination will not evict s.
func (p *Pool) Register(actorID int64, s Socket) {
	p.mu.Lock()
	p.conns[actorID] = s
	n := len(p.conns)
	p.mu.Unlock()

	metrics.RealtimeConnections.WithLabelValues(string(p.name)).Set(float64(n))
	p.log.Info("actor connected", map[string]interface{}{"actorId": actorID, "active": n})

	go func() {
		<-s.Done()
		p.remove(actorID, s)
	}()
}

func (p *Pool) remove(actorID int64, s Socket) {
	p.mu.Lock()
	current, ok := p.conns[actorID]
	removed := ok && current == s
	if removed {
		delete(p.conns, actorID)
	}
	n := len(p.conns)
	p.mu.Unlock()

	if removed {
		metrics.RealtimeConnections.WithLabelValues(string(p.name)).Set(float64(n))
		p.log.Info("actor disconnected", map[string]interface{}{"actorId": actorID, "active": n})
	}
}

// Send writes n to actorID's socket. It reports false when the actor has no
// open socket or the write fails; neither is an error for the caller.
func (p *Pool) Send(actorID int64, n models.Notification) bool {
	p.mu.RLock()
	s, ok := p.conns[actorID]
	p.mu.RUnlock()
	if !ok || !s.IsOpen() {
		return false
	}

	data, err := json.Marshal(n)
	if err != nil {
		p.log.Error("failed to encode notification", map[string]interface{}{"error": err})
		return false
	}
	return p.write(actorID, s, data)
}

// Broadcast writes n to every open socket and returns how many writes
// succeeded.
func (p *Pool) Broadcast(n models.Notification) int {
	data, err := json.Marshal(n)
	if err != nil {
		p.log.Error("failed to encode notification", map[string]interface{}{"error": err})
		return 0
	}

	p.mu.RLock()
	targets := make(map[int64]Socket, len(p.conns))
	for id, s := range p.conns {
		targets[id] = s
	}
	p.mu.RUnlock()

	sent := 0
	for id, s := range targets {
		if s.IsOpen() && p.write(id, s, data) {
			sent++
		}
	}
	return sent
}

func (p *Pool) write(actorID int64, s Socket, data []byte) bool {
	if err := s.Send(data); err != nil {
		p.log.Warn("socket write failed", map[string]interface{}{"error": apperrors.NewSocketWriteFailedError(actorID, err)})
		return false
	}
	return true
}

// IsOnline reports whether actorID has an open socket.
func (p *Pool) IsOnline(actorID int64) bool {
	p.mu.RLock()
	s, ok := p.conns[actorID]
	p.mu.RUnlock()
	return ok && s.IsOpen()
}

// ActiveCount returns the number of open sockets.
func (p *Pool) ActiveCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0
	for _, s := range p.conns {
		if s.IsOpen() {
			count++
		}
	}
	return count
}

func (p *Pool) closeAll(code int, reason string) {
	p.mu.RLock()
	sockets := make([]Socket, 0, len(p.conns))
	for _, s := range p.conns {
		sockets = append(sockets, s)
	}
	p.mu.RUnlock()

	for _, s := range sockets {
		_ = s.Close(code, reason)
	}
}
