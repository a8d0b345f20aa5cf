package store

import (
	"sync"

	"github.com/atlas-desktop/strategy-kernel/pkg/types"
)

// MemoryStore is the no-op/in-memory PositionStore implementation used
// by backtests: state lives only in the process, so backtest runs never
// touch persistent state.
type MemoryStore struct {
	mu        sync.Mutex
	pending   map[Key]*types.Signal
	scheduled map[Key]*types.Signal
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pending:   make(map[Key]*types.Signal),
		scheduled: make(map[Key]*types.Signal),
	}
}

// ReadPending implements Store.
func (m *MemoryStore) ReadPending(key Key) (*types.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending[key], nil
}

// ReadScheduled implements Store.
func (m *MemoryStore) ReadScheduled(key Key) (*types.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scheduled[key], nil
}

// WritePending implements Store.
func (m *MemoryStore) WritePending(key Key, sig *types.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sig == nil {
		delete(m.pending, key)
		return nil
	}
	m.pending[key] = sig
	return nil
}

// WriteScheduled implements Store.
func (m *MemoryStore) WriteScheduled(key Key, sig *types.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sig == nil {
		delete(m.scheduled, key)
		return nil
	}
	m.scheduled[key] = sig
	return nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, key)
	delete(m.scheduled, key)
	return nil
}
