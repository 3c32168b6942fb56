package push

import (
	"context"
	"sync"
	"time"

	"cakeshop-notifier/internal/models"
)

// MemoryStore is the Store used when no database is configured. Records do
// not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]models.PushSubscriptionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]models.PushSubscriptionRecord)}
}

func (m *MemoryStore) Save(_ context.Context, actorID int64, sub models.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[actorID] = models.PushSubscriptionRecord{
		DeliveryBoyID: actorID,
		Endpoint:      sub.Endpoint,
		P256dh:        sub.Keys.P256dh,
		Auth:          sub.Keys.Auth,
		IsActive:      true,
		UpdatedAt:     time.Now().UTC(),
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, actorID int64) (*models.PushSubscriptionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[actorID]
	if !ok || !rec.IsActive {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *MemoryStore) Deactivate(_ context.Context, actorID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.records[actorID]; ok {
		rec.IsActive = false
		rec.UpdatedAt = time.Now().UTC()
		m.records[actorID] = rec
	}
	return nil
}

// ActiveCount returns how many actors hold an active subscription.
func (m *MemoryStore) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, rec := range m.records {
		if rec.IsActive {
			n++
		}
	}
	return n
}
