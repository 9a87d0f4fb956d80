// Package transport exposes the gateway's HTTP API: authentication against
// the upstream identity provider, the locally persisted cart, purchases,
// reviews and profile, and the cached social feed.
package transport

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"vitrine/internal/domain"
	"vitrine/internal/middleware"
	"vitrine/internal/remote"
)

// Catalog is the slice of the upstream client the product handlers need.
type Catalog interface {
	Products(ctx context.Context, limit, skip int) (*remote.ProductPage, error)
	Product(ctx context.Context, id int) (*domain.Product, error)
	Categories(ctx context.Context) ([]string, error)
}

// decodeRequest binds and validates a JSON body, writing the error response
// itself. Returns false when the request was rejected.
func decodeRequest(logger *zap.Logger, w http.ResponseWriter, r *http.Request, target any) bool {
	if err := middleware.DecodeAndValidate(r, target); err != nil {
		logger.Debug("Request validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// urlID parses a numeric chi route parameter.
func urlID(r *http.Request, name string) (int, error) {
	return strconv.Atoi(chi.URLParam(r, name))
}
