// Package session owns the authenticated identity: hydrated once from the
// key-value space at construction, mutated by login/logout/update, and
// broadcast to subscribers on every change through an explicit
// subscription interface.
package session

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"vitrine/internal/domain"
	"vitrine/internal/keyspace"
	"vitrine/internal/storage"
)

// ErrNoIdentity is returned by operations that require a logged-in user.
var ErrNoIdentity = errors.New("no active identity")

// Listener receives the essential identity after every change. A nil
// identity means logout. Listeners run synchronously on the mutating
// goroutine, in subscription order.
type Listener func(identity *domain.Identity)

type subscriber struct {
	id int
	fn Listener
}

// Store holds the current identity.
type Store struct {
	mu      sync.Mutex
	adapter *storage.Adapter
	kv      storage.Store
	logger  *zap.Logger

	// identity is the merged current state as a generic map so partial
	// updates and schema filtering compose; nil means logged out.
	identity map[string]any

	subs      []subscriber
	nextSubID int
}

// New hydrates the store from the persisted session. This is the only point
// that reads the saved identity: the summary under currentUser, with the
// image taken from the full profile when one exists.
func New(adapter *storage.Adapter, logger *zap.Logger) *Store {
	s := &Store{
		adapter: adapter,
		kv:      adapter.Store(),
		logger:  logger,
	}

	raw, ok := s.kv.Get(keyspace.CurrentUser())
	if !ok {
		return s
	}

	var saved map[string]any
	if err := json.Unmarshal(raw, &saved); err != nil {
		logger.Warn("Discarding unreadable saved session", zap.Error(err))
		return s
	}

	if id, ok := identityID(saved); ok {
		if rawProfile, ok := s.kv.Get(keyspace.UserProfile(id)); ok {
			var profile map[string]any
			if err := json.Unmarshal(rawProfile, &profile); err == nil {
				if image, ok := profile["image"].(string); ok && image != "" {
					saved["image"] = image
				}
			}
		}
	}

	s.identity = saved
	return s
}

// Current returns a copy of the active identity, or nil when logged out.
func (s *Store) Current() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return toIdentity(s.identity)
}

// CurrentID returns the active user id.
func (s *Store) CurrentID() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return 0, false
	}
	return identityID(s.identity)
}

// Login replaces the current identity and persists it verbatim, unfiltered,
// under currentUser.
func (s *Store) Login(identity domain.Identity) {
	s.mu.Lock()

	payload := toMap(identity)
	s.identity = payload

	raw, err := json.Marshal(identity)
	if err == nil {
		if err := s.kv.Set(keyspace.CurrentUser(), raw); err != nil {
			s.logger.Warn("Failed to persist session", zap.Error(err))
		}
	}

	subs := s.snapshot()
	s.mu.Unlock()

	notify(subs, &identity)
}

// Logout clears the identity and removes the session plus the outgoing
// user's cached posts and comments. Cart and purchase history deliberately
// survive so the user finds them again after the next login.
func (s *Store) Logout() {
	s.mu.Lock()

	if s.identity != nil {
		if id, ok := identityID(s.identity); ok {
			s.kv.Remove(keyspace.UserPosts(id))
			s.kv.Remove(keyspace.UserComments(id))
		}
	}
	s.kv.Remove(keyspace.CurrentUser())
	s.identity = nil

	subs := s.snapshot()
	s.mu.Unlock()

	notify(subs, nil)
}

// Update merges partial into the current identity. The essential summary
// persists under currentUser and the full merged profile, stamped with
// lastUpdated, persists under userProfile_{id}. Subscribers receive the
// summary whether or not persistence succeeded; the returned flag tells the
// caller if it did.
func (s *Store) Update(partial map[string]any) (*domain.Identity, bool, error) {
	s.mu.Lock()

	if s.identity == nil {
		s.mu.Unlock()
		return nil, false, ErrNoIdentity
	}

	merged := s.fullProfileLocked()
	for key, value := range partial {
		merged[key] = value
	}
	merged["lastUpdated"] = time.Now().UTC().Format(time.RFC3339)

	persisted := s.adapter.TrySaveFiltered(keyspace.CurrentUser(), merged, storage.IdentitySummarySchema)

	if id, ok := identityID(merged); ok {
		if !s.adapter.TrySaveFiltered(keyspace.UserProfile(id), merged, storage.ProfileSchema) {
			s.logger.Warn("Profile persisted partially due to storage limits", zap.Int("user_id", id))
			persisted = false
		}
	}

	summary := storage.IdentitySummarySchema.Apply(merged)
	s.identity = summary
	identity := toIdentity(summary)

	subs := s.snapshot()
	s.mu.Unlock()

	notify(subs, identity)
	return identity, persisted, nil
}

// Profile returns the full merged profile for the active identity.
func (s *Store) Profile() (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity == nil {
		return nil, ErrNoIdentity
	}

	merged := s.fullProfileLocked()
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	var profile domain.Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Subscribe registers a listener and returns its unsubscribe function.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Reset drops the in-memory identity and all subscribers without touching
// storage. Test teardown hook.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = nil
	s.subs = nil
}

// fullProfileLocked merges the stored full profile under the in-memory
// identity. Caller holds the lock.
func (s *Store) fullProfileLocked() map[string]any {
	merged := make(map[string]any)

	if id, ok := identityID(s.identity); ok {
		if raw, ok := s.kv.Get(keyspace.UserProfile(id)); ok {
			var stored map[string]any
			if err := json.Unmarshal(raw, &stored); err == nil {
				for key, value := range stored {
					merged[key] = value
				}
			}
		}
	}
	for key, value := range s.identity {
		merged[key] = value
	}
	return merged
}

func (s *Store) snapshot() []subscriber {
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	return subs
}

func notify(subs []subscriber, identity *domain.Identity) {
	for _, sub := range subs {
		sub.fn(identity)
	}
}

func identityID(payload map[string]any) (int, bool) {
	switch id := payload["id"].(type) {
	case float64:
		return int(id), id > 0
	case int:
		return id, id > 0
	default:
		return 0, false
	}
}

func toMap(identity domain.Identity) map[string]any {
	raw, _ := json.Marshal(identity)
	var payload map[string]any
	_ = json.Unmarshal(raw, &payload)
	return payload
}

func toIdentity(payload map[string]any) *domain.Identity {
	if payload == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	var identity domain.Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return nil
	}
	return &identity
}
