package storage

import (
	"encoding/json"

	"go.uber.org/zap"

	"vitrine/internal/imaging"
	"vitrine/internal/keyspace"
	"vitrine/internal/telemetry"
)

// Adapter is the best-effort save path in front of a Store. It shrinks image
// payloads, applies entity schemas, and recovers from quota failures by
// evicting every key except the survivor and retrying once. No error ever
// escapes it; callers get a boolean and decide whether to warn the user.
type Adapter struct {
	store       Store
	logger      *zap.Logger
	maxWidth    int
	jpegQuality int
}

// NewAdapter wraps store with the default image constraints.
func NewAdapter(store Store, logger *zap.Logger) *Adapter {
	return &Adapter{
		store:       store,
		logger:      logger,
		maxWidth:    imaging.DefaultMaxWidth,
		jpegQuality: imaging.DefaultQuality,
	}
}

// Store exposes the underlying key-value space for reads and removals.
func (a *Adapter) Store() Store {
	return a.store
}

// TrySave serializes value and stores it under key, shrinking any inline
// image first. It reports whether the value ended up in storage.
func (a *Adapter) TrySave(key string, value any) bool {
	return a.save(key, value, nil)
}

// TrySaveFiltered is TrySave restricted to the schema's field allow-list.
// The write is lossy: only fields the schema names round-trip.
func (a *Adapter) TrySaveFiltered(key string, value any, schema Schema) bool {
	return a.save(key, value, &schema)
}

func (a *Adapter) save(key string, value any, schema *Schema) bool {
	payload, err := toMap(value)
	if err != nil {
		a.logger.Warn("Failed to serialize payload", zap.String("key", key), zap.Error(err))
		return false
	}

	a.shrinkImage(key, payload)

	var raw []byte
	if payload != nil {
		if schema != nil {
			payload = schema.Apply(payload)
		}
		raw, err = json.Marshal(payload)
	} else {
		// Non-object values (arrays, scalars) store as-is.
		raw, err = json.Marshal(value)
	}
	if err != nil {
		a.logger.Warn("Failed to serialize payload", zap.String("key", key), zap.Error(err))
		return false
	}

	if err := a.store.Set(key, raw); err == nil {
		return true
	} else if err != ErrQuotaExceeded {
		a.logger.Warn("Storage write failed", zap.String("key", key), zap.Error(err))
		return false
	}

	a.evict()

	if err := a.store.Set(key, raw); err != nil {
		telemetry.StorageSaveFailures.Inc()
		a.logger.Warn("Storage write failed after eviction",
			zap.String("key", key),
			zap.Int("bytes", len(raw)),
			zap.Error(err),
		)
		return false
	}
	return true
}

// evict deletes every stored key except the survivor. Deliberately blunt:
// there is no eviction ordering to reason about, just a full sweep.
func (a *Adapter) evict() {
	telemetry.StorageEvictions.Inc()

	removed := 0
	for _, key := range a.store.Keys() {
		if key == keyspace.Survivor {
			continue
		}
		a.store.Remove(key)
		removed++
	}

	a.logger.Warn("Evicted key space to recover storage quota",
		zap.Int("removed", removed),
		zap.String("survivor", keyspace.Survivor),
	)
}

func (a *Adapter) shrinkImage(key string, payload map[string]any) {
	if payload == nil {
		return
	}
	value, ok := payload["image"].(string)
	if !ok || !imaging.IsDataURI(value) {
		return
	}

	normalized, err := imaging.Normalize(value, a.maxWidth, a.jpegQuality)
	if err != nil {
		// Keep the original image; the quota path still applies.
		a.logger.Warn("Failed to normalize image payload", zap.String("key", key), zap.Error(err))
		return
	}
	payload["image"] = normalized
}

// toMap round-trips value through JSON into a generic map. Non-object values
// return a nil map and no error.
func toMap(value any) (map[string]any, error) {
	if m, ok := value.(map[string]any); ok {
		copied := make(map[string]any, len(m))
		for k, v := range m {
			copied[k] = v
		}
		return copied, nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil
	}
	return m, nil
}
