package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"go.uber.org/zap"
)

// FileStore persists each key's pending/scheduled slots as
// "<dir>/<strategyName>/<symbol>.pending.json" and
// "<dir>/<strategyName>/<symbol>.scheduled.json". Every write goes
// through a temp file + rename so a crash mid-write leaves either the
// old or new content, never a torn record.
type FileStore struct {
	mu      sync.Mutex
	logger  *zap.Logger
	baseDir string
}

// NewFileStore creates a FileStore rooted at baseDir.
func NewFileStore(logger *zap.Logger, baseDir string) *FileStore {
	return &FileStore{logger: logger, baseDir: baseDir}
}

func (f *FileStore) path(key Key, slot string) string {
	return filepath.Join(f.baseDir, key.StrategyName, fmt.Sprintf("%s.%s.json", key.Symbol, slot))
}

func (f *FileStore) read(key Key, slot string) (*types.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(key, slot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read %s/%s: %w", key.StrategyName, key.Symbol, err)
	}
	var sig types.Signal
	if err := json.Unmarshal(data, &sig); err != nil {
		return nil, fmt.Errorf("store: decode %s/%s: %w", key.StrategyName, key.Symbol, err)
	}
	return &sig, nil
}

func (f *FileStore) write(key Key, slot string, sig *types.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Join(f.baseDir, key.StrategyName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir %s: %w", dir, err)
	}

	target := f.path(key, slot)

	if sig == nil {
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("store: remove %s/%s: %w", key.StrategyName, key.Symbol, err)
		}
		return nil
	}

	data, err := json.MarshalIndent(sig, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s/%s: %w", key.StrategyName, key.Symbol, err)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write temp %s/%s: %w", key.StrategyName, key.Symbol, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("store: rename %s/%s: %w", key.StrategyName, key.Symbol, err)
	}
	return nil
}

// ReadPending implements Store.
func (f *FileStore) ReadPending(key Key) (*types.Signal, error) { return f.read(key, "pending") }

// ReadScheduled implements Store.
func (f *FileStore) ReadScheduled(key Key) (*types.Signal, error) { return f.read(key, "scheduled") }

// WritePending implements Store.
func (f *FileStore) WritePending(key Key, sig *types.Signal) error {
	return f.write(key, "pending", sig)
}

// WriteScheduled implements Store.
func (f *FileStore) WriteScheduled(key Key, sig *types.Signal) error {
	return f.write(key, "scheduled", sig)
}

// Clear removes both slots for key.
func (f *FileStore) Clear(key Key) error {
	if err := f.write(key, "pending", nil); err != nil {
		return err
	}
	return f.write(key, "scheduled", nil)
}
