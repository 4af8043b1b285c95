package store

import (
	"context"
	"sync"

	"riskdash/internal/pages"
)

type slotID struct {
	page string
	slot string
}

// MemoryStore is a process-local StatusStore.
type MemoryStore struct {
	mu       sync.RWMutex
	statuses map[slotID]*pages.InputStatus
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{statuses: make(map[slotID]*pages.InputStatus)}
}

func (m *MemoryStore) Get(_ context.Context, pageKey, slotKey string) (*pages.InputStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.statuses[slotID{pageKey, slotKey}]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(st), nil
}

func (m *MemoryStore) List(_ context.Context, pageKey string) (map[string]*pages.InputStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*pages.InputStatus)
	for id, st := range m.statuses {
		if id.page == pageKey {
			out[id.slot] = clone(st)
		}
	}
	return out, nil
}

func (m *MemoryStore) Put(_ context.Context, status *pages.InputStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[slotID{status.PageKey, status.SlotKey}] = clone(status)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, pageKey, slotKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, slotID{pageKey, slotKey})
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
