package cache

import (
	"context"
	"sync"

	"github.com/dukerupert/embla/internal/domain"
)

// Snapshot is the persisted subset of the cart cache. Transient UI flags
// (open, loaded) are deliberately excluded and reset on every rehydrate.
type Snapshot struct {
	Items  []domain.CartItem `json:"items"`
	CartID string            `json:"cartId"`
}

// Store persists cache snapshots across reloads, keyed by session.
// Load returns (nil, nil) when no snapshot exists for the key.
type Store interface {
	Load(ctx context.Context, key string) (*Snapshot, error)
	Save(ctx context.Context, key string, snapshot *Snapshot) error
}

// MemoryStore is an in-process Store for tests and single-node development.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]Snapshot)}
}

func (m *MemoryStore) Load(ctx context.Context, key string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot, ok := m.snapshots[key]
	if !ok {
		return nil, nil
	}
	copied := snapshot
	copied.Items = append([]domain.CartItem(nil), snapshot.Items...)
	return &copied, nil
}

func (m *MemoryStore) Save(ctx context.Context, key string, snapshot *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *snapshot
	copied.Items = append([]domain.CartItem(nil), snapshot.Items...)
	m.snapshots[key] = copied
	return nil
}
