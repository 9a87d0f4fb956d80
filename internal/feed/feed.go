// Package feed builds the social feed bundle: a one-shot bulk fetch of
// users, posts and comments from upstream, joined by author id and cached
// wholesale. The cached bundle has no TTL; it lives until its storage entry
// is cleared externally.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vitrine/internal/domain"
	"vitrine/internal/keyspace"
	"vitrine/internal/session"
	"vitrine/internal/storage"
	"vitrine/internal/telemetry"
)

var (
	// ErrNoIdentity rejects comments from logged-out callers.
	ErrNoIdentity = errors.New("no active identity")

	// ErrNotLoaded means AddComment ran before any successful Load.
	ErrNotLoaded = errors.New("feed bundle not loaded")
)

const maxSynthesizedViews = 1000

// Store owns the feed bundle.
type Store struct {
	mu       sync.Mutex
	bundle   *domain.FeedBundle
	kv       storage.Store
	client   Fetcher
	sessions *session.Store
	logger   *zap.Logger
}

// Fetcher is the slice of the upstream client the feed needs.
type Fetcher interface {
	AllUsers(ctx context.Context) ([]domain.FeedUser, error)
	AllPosts(ctx context.Context) ([]domain.Post, error)
	AllComments(ctx context.Context) ([]domain.Comment, error)
	PostsByUser(ctx context.Context, userID int) ([]domain.Post, error)
}

func New(kv storage.Store, client Fetcher, sessions *session.Store, logger *zap.Logger) *Store {
	return &Store{kv: kv, client: client, sessions: sessions, logger: logger}
}

// Load returns the feed bundle, fetching it from upstream exactly once per
// storage lifetime. The lock is held across the fetch, so concurrent first
// calls collapse into a single upstream round.
func (s *Store) Load(ctx context.Context) (*domain.FeedBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bundle != nil {
		return s.bundle, nil
	}

	if raw, ok := s.kv.Get(keyspace.FeedBundle); ok {
		var cached domain.FeedBundle
		if err := json.Unmarshal(raw, &cached); err == nil {
			telemetry.FeedCacheHits.Inc()
			s.bundle = &cached
			return s.bundle, nil
		}
		s.logger.Warn("Discarding unreadable feed cache")
		s.kv.Remove(keyspace.FeedBundle)
	}

	telemetry.FeedCacheMisses.Inc()

	bundle, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	s.bundle = bundle
	s.persistLocked()
	return s.bundle, nil
}

// fetch pulls the three collections in parallel and joins them.
func (s *Store) fetch(ctx context.Context) (*domain.FeedBundle, error) {
	var (
		users    []domain.FeedUser
		posts    []domain.Post
		comments []domain.Comment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = s.client.AllUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		posts, err = s.client.AllPosts(gctx)
		return err
	})
	g.Go(func() (err error) {
		comments, err = s.client.AllComments(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load feed: %w", err)
	}

	byID := make(map[int]domain.FeedUser, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}

	for i := range posts {
		if user, ok := byID[posts[i].UserID]; ok {
			u := user
			posts[i].User = &u
		}
		posts[i].Views = rand.Intn(maxSynthesizedViews)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for i := range comments {
		if user, ok := byID[comments[i].User.ID]; ok {
			comments[i].User = user
		}
		if comments[i].CreatedAt == "" {
			comments[i].CreatedAt = now
		}
	}

	return &domain.FeedBundle{Posts: posts, Comments: comments, Users: users}, nil
}

// AddComment prepends a comment authored by the active identity to the
// in-memory and cached comment list. It never calls upstream.
func (s *Store) AddComment(postID int, body string) (*domain.Comment, error) {
	identity := s.sessions.Current()
	if identity == nil {
		return nil, ErrNoIdentity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bundle == nil {
		return nil, ErrNotLoaded
	}

	comment := domain.Comment{
		ID:     time.Now().UnixMilli(),
		Body:   body,
		PostID: postID,
		User: domain.FeedUser{
			ID:        identity.ID,
			FirstName: identity.FirstName,
			LastName:  identity.LastName,
			Username:  identity.Username,
			Image:     identity.Image,
		},
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	s.bundle.Comments = append([]domain.Comment{comment}, s.bundle.Comments...)
	s.persistLocked()
	return &comment, nil
}

// PostsOf returns one user's own posts, cached under their posts key so the
// profile view survives upstream outages.
func (s *Store) PostsOf(ctx context.Context, userID int) ([]domain.Post, error) {
	key := keyspace.UserPosts(userID)
	if raw, ok := s.kv.Get(key); ok {
		var cached []domain.Post
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		s.kv.Remove(key)
	}

	posts, err := s.client.PostsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(posts); err == nil {
		if err := s.kv.Set(key, raw); err != nil {
			s.logger.Warn("User posts kept in memory only", zap.Error(err))
		}
	}
	return posts, nil
}

// CommentsOf filters the feed bundle down to one author's comments, cached
// under their comments key.
func (s *Store) CommentsOf(ctx context.Context, userID int) ([]domain.Comment, error) {
	key := keyspace.UserComments(userID)
	if raw, ok := s.kv.Get(key); ok {
		var cached []domain.Comment
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		s.kv.Remove(key)
	}

	bundle, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	mine := make([]domain.Comment, 0)
	for _, comment := range bundle.Comments {
		if comment.User.ID == userID {
			mine = append(mine, comment)
		}
	}

	if raw, err := json.Marshal(mine); err == nil {
		if err := s.kv.Set(key, raw); err != nil {
			s.logger.Warn("User comments kept in memory only", zap.Error(err))
		}
	}
	return mine, nil
}

func (s *Store) persistLocked() {
	raw, err := json.Marshal(s.bundle)
	if err != nil {
		s.logger.Warn("Failed to encode feed bundle", zap.Error(err))
		return
	}
	if err := s.kv.Set(keyspace.FeedBundle, raw); err != nil {
		s.logger.Warn("Feed bundle kept in memory only", zap.Error(err))
	}
}
