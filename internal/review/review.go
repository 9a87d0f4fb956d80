// Package review keeps user-submitted product reviews: per-product,
// append-only, newest-first by insertion at the storage layer. Merging with
// a product's embedded reviews and re-sorting by date happens at read time.
package review

import (
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vitrine/internal/domain"
	"vitrine/internal/keyspace"
	"vitrine/internal/storage"
)

type Store struct {
	kv     storage.Store
	logger *zap.Logger
}

func New(kv storage.Store, logger *zap.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// List returns the locally stored reviews for a product, newest-first.
func (s *Store) List(productID int) []domain.Review {
	raw, ok := s.kv.Get(keyspace.ProductReviews(productID))
	if !ok {
		return nil
	}

	var reviews []domain.Review
	if err := json.Unmarshal(raw, &reviews); err != nil {
		s.logger.Warn("Discarding unreadable review list",
			zap.Int("product_id", productID),
			zap.Error(err),
		)
		return nil
	}
	return reviews
}

// Add prepends a review to the product's list and persists it. The review
// gets an id and its product binding here; there is no update or delete.
func (s *Store) Add(productID int, review domain.Review) domain.Review {
	review.ID = uuid.New().String()
	review.ProductID = productID

	all := append([]domain.Review{review}, s.List(productID)...)

	raw, err := json.Marshal(all)
	if err != nil {
		s.logger.Warn("Failed to encode reviews", zap.Error(err))
		return review
	}
	if err := s.kv.Set(keyspace.ProductReviews(productID), raw); err != nil {
		s.logger.Warn("Review kept in memory only",
			zap.Int("product_id", productID),
			zap.Error(err),
		)
	}
	return review
}

// Merged combines the product's embedded reviews with the locally stored
// ones, sorted by date descending.
func (s *Store) Merged(product domain.Product) []domain.Review {
	merged := append(s.List(product.ID), product.Reviews...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Date > merged[j].Date
	})
	return merged
}
