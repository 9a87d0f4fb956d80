package transport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"vitrine/internal/domain"
	"vitrine/internal/middleware"
	"vitrine/internal/resilience"
	"vitrine/internal/review"
	"vitrine/internal/session"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// AddReviewRequest represents the review submission payload
type AddReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"required"`
}

// CatalogHandler proxies catalog reads and serves product reviews.
type CatalogHandler struct {
	catalog  Catalog
	reviews  *review.Store
	sessions *session.Store
	logger   *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalog Catalog, reviews *review.Store, sessions *session.Store, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog:  catalog,
		reviews:  reviews,
		sessions: sessions,
		logger:   logger,
	}
}

// RegisterRoutes registers the catalog routes. Reads are public, review
// submission requires auth.
func (h *CatalogHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/categories", h.ListCategories)
		r.Get("/{productID}", h.GetProduct)
		r.Get("/{productID}/reviews", h.ListReviews)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/{productID}/reviews", h.AddReview)
		})
	})
}

// ListProducts returns one catalog page.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageLimit)
	if limit < 1 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	skip := queryInt(r, "skip", 0)
	if skip < 0 {
		skip = 0
	}

	page, err := h.catalog.Products(r.Context(), limit, skip)
	if err != nil {
		h.respondUpstreamError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, page)
}

// ListCategories returns the catalog category names.
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.respondUpstreamError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

// GetProduct returns one product with local reviews merged into the
// upstream ones, newest first.
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, ok := h.fetchProduct(w, r)
	if !ok {
		return
	}

	product.Reviews = h.reviews.Merged(*product)
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// ListReviews returns the merged review list of one product.
func (h *CatalogHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	product, ok := h.fetchProduct(w, r)
	if !ok {
		return
	}

	merged := h.reviews.Merged(*product)
	if merged == nil {
		merged = []domain.Review{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, merged)
}

// AddReview stores a review authored by the active identity. Reviews are
// append-only; there is no edit or delete.
func (h *CatalogHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	productID, err := urlID(r, "productID")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	identity := h.sessions.Current()
	if identity == nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "no active session")
		return
	}

	var req AddReviewRequest
	if !decodeRequest(h.logger, w, r, &req) {
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)
	saved := h.reviews.Add(productID, domain.Review{
		UserID:        identity.ID,
		Rating:        req.Rating,
		Comment:       req.Comment,
		Date:          now,
		ReviewerName:  identity.FirstName + " " + identity.LastName,
		ReviewerEmail: identity.Email,
		CreatedAt:     now,
	})

	h.logger.Info("Review added",
		zap.Int("product_id", productID),
		zap.Int("user_id", identity.ID),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, saved)
}

func (h *CatalogHandler) fetchProduct(w http.ResponseWriter, r *http.Request) (*domain.Product, bool) {
	productID, err := urlID(r, "productID")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return nil, false
	}

	product, err := h.catalog.Product(r.Context(), productID)
	if err != nil {
		if err == resilience.ErrCircuitOpen {
			h.respondUpstreamError(w, err)
			return nil, false
		}
		h.logger.Debug("Product lookup failed", zap.Int("product_id", productID), zap.Error(err))
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		return nil, false
	}
	return product, true
}

func (h *CatalogHandler) respondUpstreamError(w http.ResponseWriter, err error) {
	if err == resilience.ErrCircuitOpen {
		middleware.RespondWithError(w, http.StatusServiceUnavailable, "catalog temporarily unavailable")
		return
	}
	h.logger.Error("Catalog request failed", zap.Error(err))
	middleware.RespondWithError(w, http.StatusBadGateway, "upstream error")
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
