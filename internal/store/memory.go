package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store for tests and ephemeral servers.
type Memory struct {
	mu      sync.RWMutex
	records map[uint64]Record
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[uint64]Record)}
}

func (m *Memory) Get(ctx context.Context, id uint64) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) MaxID(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var max uint64
	for id := range m.records {
		if id > max {
			max = id
		}
	}
	return max, nil
}

func (m *Memory) Put(ctx context.Context, id uint64, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = rec
	return nil
}

func (m *Memory) Close() error { return nil }
