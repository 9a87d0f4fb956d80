package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"vitrine/internal/feed"
	"vitrine/internal/middleware"
)

// AddCommentRequest represents the comment submission payload
type AddCommentRequest struct {
	Body string `json:"body" validate:"required"`
}

// FeedHandler serves the cached social feed.
type FeedHandler struct {
	feeds  *feed.Store
	logger *zap.Logger
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(feeds *feed.Store, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{
		feeds:  feeds,
		logger: logger,
	}
}

// RegisterRoutes registers the feed routes. Reading is public, commenting
// requires auth.
func (h *FeedHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/feed", func(r chi.Router) {
		r.Get("/", h.GetFeed)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/posts/{postID}/comments", h.AddComment)
		})
	})
}

// GetFeed returns the joined feed bundle, fetching it from upstream on the
// first call only.
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.feeds.Load(r.Context())
	if err != nil {
		h.logger.Error("Feed load failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadGateway, "failed to load feed")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, bundle)
}

// AddComment prepends a comment by the active user to a post's comments.
func (h *FeedHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	postID, err := urlID(r, "postID")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	var req AddCommentRequest
	if !decodeRequest(h.logger, w, r, &req) {
		return
	}

	comment, err := h.feeds.AddComment(postID, req.Body)
	if err != nil {
		switch err {
		case feed.ErrNoIdentity:
			middleware.RespondWithError(w, http.StatusUnauthorized, "no active session")
		case feed.ErrNotLoaded:
			middleware.RespondWithError(w, http.StatusConflict, "feed not loaded yet")
		default:
			h.logger.Error("Comment rejected", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to add comment")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, comment)
}
