package save

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps saves in memory (dev/test use)
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string]Record)}
}

func (m *MemoryStore) Put(ctx context.Context, r Record) error {
	r, err := prepare(r)
	if err != nil {
		return err
	}
	c, err := clone(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[r.Slot] = c
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, slot string) (Record, error) {
	m.mu.RLock()
	r, ok := m.slots[slot]
	m.mu.RUnlock()

	if !ok {
		return Record{}, fmt.Errorf("%w: %q", ErrNotFound, slot)
	}
	return clone(r)
}

func (m *MemoryStore) List(ctx context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(m.slots))
	for _, r := range m.slots {
		c, err := clone(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

func (m *MemoryStore) Delete(ctx context.Context, slot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.slots[slot]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, slot)
	}
	delete(m.slots, slot)
	return nil
}
