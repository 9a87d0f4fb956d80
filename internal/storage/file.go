package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// FileStore is a MemoryStore that snapshots itself to a JSON file after
// every mutation, so gateway state survives restarts. Flushing is
// best-effort: a failed flush is logged and the in-memory state stays
// authoritative.
type FileStore struct {
	*MemoryStore

	flushMu sync.Mutex
	path    string
	logger  *zap.Logger
}

// OpenFileStore loads the snapshot at path (if any) into a new store.
func OpenFileStore(path string, quotaBytes int, logger *zap.Logger) (*FileStore, error) {
	fs := &FileStore{
		MemoryStore: NewMemoryStore(quotaBytes),
		path:        path,
		logger:      logger,
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("failed to read storage snapshot: %w", err)
	}

	var snapshot map[string]string
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse storage snapshot: %w", err)
	}

	for key, value := range snapshot {
		if err := fs.MemoryStore.Set(key, []byte(value)); err != nil {
			// A snapshot larger than the quota loads what fits.
			logger.Warn("Skipping oversized snapshot entry",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
	return fs, nil
}

func (f *FileStore) Set(key string, value []byte) error {
	if err := f.MemoryStore.Set(key, value); err != nil {
		return err
	}
	f.flush()
	return nil
}

func (f *FileStore) Remove(key string) {
	f.MemoryStore.Remove(key)
	f.flush()
}

func (f *FileStore) Clear() {
	f.MemoryStore.Clear()
	f.flush()
}

func (f *FileStore) flush() {
	f.flushMu.Lock()
	defer f.flushMu.Unlock()

	snapshot := make(map[string]string)
	for _, key := range f.MemoryStore.Keys() {
		if value, ok := f.MemoryStore.Get(key); ok {
			snapshot[key] = string(value)
		}
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		f.logger.Warn("Failed to encode storage snapshot", zap.Error(err))
		return
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		f.logger.Warn("Failed to create storage directory", zap.Error(err))
		return
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		f.logger.Warn("Failed to write storage snapshot", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, f.path); err != nil {
		f.logger.Warn("Failed to replace storage snapshot", zap.Error(err))
	}
}
