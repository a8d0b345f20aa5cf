// Package store implements PositionStore: a durable key-value snapshot
// of at most one pending and one scheduled signal per (strategyName,
// symbol), atomic on every write.
//
// FileStore keeps one directory per strategy holding one JSON file per
// (symbol, slot), and always writes to a temp file followed by os.Rename, so a crash mid-write
// leaves either the old or the new content, never a torn record.
package store

import (
	"github.com/atlas-desktop/strategy-kernel/pkg/types"
)

// Key identifies one (strategyName, symbol) snapshot slot.
type Key struct {
	StrategyName string
	Symbol       string
}

// Store is the PositionStore interface. FileStore and MemoryStore both
// implement it; backtests must use MemoryStore so runs never touch
// persistent state.
type Store interface {
	ReadPending(key Key) (*types.Signal, error)
	ReadScheduled(key Key) (*types.Signal, error)
	WritePending(key Key, sig *types.Signal) error
	WriteScheduled(key Key, sig *types.Signal) error
	Clear(key Key) error
}
