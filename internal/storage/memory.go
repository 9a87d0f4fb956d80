package storage

import "sync"

// DefaultQuotaBytes caps the key space at 5MB unless configured otherwise.
const DefaultQuotaBytes = 5 * 1024 * 1024

// MemoryStore is a quota-limited in-memory Store. Usage is accounted as
// len(key)+len(value) per entry, checked before every write.
type MemoryStore struct {
	mu         sync.RWMutex
	data       map[string][]byte
	quotaBytes int
	usedBytes  int
}

// NewMemoryStore creates a store with the given byte budget. A budget of 0
// or less falls back to DefaultQuotaBytes.
func NewMemoryStore(quotaBytes int) *MemoryStore {
	if quotaBytes <= 0 {
		quotaBytes = DefaultQuotaBytes
	}
	return &MemoryStore{
		data:       make(map[string][]byte),
		quotaBytes: quotaBytes,
	}
}

func (m *MemoryStore) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true
}

func (m *MemoryStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entrySize := len(key) + len(value)
	previousSize := 0
	if previous, ok := m.data[key]; ok {
		previousSize = len(key) + len(previous)
	}

	if m.usedBytes-previousSize+entrySize > m.quotaBytes {
		return ErrQuotaExceeded
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	m.usedBytes += entrySize - previousSize
	return nil
}

func (m *MemoryStore) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if value, ok := m.data[key]; ok {
		m.usedBytes -= len(key) + len(value)
		delete(m.data, key)
	}
}

func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	return keys
}

func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[string][]byte)
	m.usedBytes = 0
}

// UsedBytes reports current accounted usage.
func (m *MemoryStore) UsedBytes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usedBytes
}
