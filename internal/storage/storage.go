// Package storage provides the local key-value space that holds every piece
// of durable state in the gateway, plus the save adapter that shrinks and
// retries writes when the space runs out of room. Values are JSON-encoded
// text; keys are owned by the keyspace package.
package storage

import "errors"

// ErrQuotaExceeded is returned by Set when a write would push the store past
// its configured byte budget.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Store is a synchronous key-value space: last writer wins, no
// transactions, no cross-process coherence.
type Store interface {
	// Get returns the stored value and whether the key exists.
	Get(key string) ([]byte, bool)

	// Set stores value under key, replacing any previous value. It returns
	// ErrQuotaExceeded when the write does not fit.
	Set(key string, value []byte) error

	// Remove deletes the key. Removing an absent key is a no-op.
	Remove(key string)

	// Keys returns every stored key, in no particular order.
	Keys() []string

	// Clear deletes everything.
	Clear()
}
