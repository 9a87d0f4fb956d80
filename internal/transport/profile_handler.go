package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"vitrine/internal/feed"
	"vitrine/internal/middleware"
	"vitrine/internal/session"
)

// UpdateProfileResponse reports the merged identity and whether the change
// survived persistence. A false persisted flag means storage is full even
// after eviction; the update still applies to the live session.
type UpdateProfileResponse struct {
	User      any  `json:"user"`
	Persisted bool `json:"persisted"`
}

// ProfileHandler serves the signed-in user's profile and activity.
type ProfileHandler struct {
	sessions *session.Store
	feeds    *feed.Store
	logger   *zap.Logger
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(sessions *session.Store, feeds *feed.Store, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		sessions: sessions,
		feeds:    feeds,
		logger:   logger,
	}
}

// RegisterRoutes registers the profile routes, all behind auth.
func (h *ProfileHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/profile", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.GetProfile)
		r.Put("/", h.UpdateProfile)
		r.Get("/posts", h.GetPosts)
		r.Get("/comments", h.GetComments)
	})
}

// GetProfile returns the full persisted profile of the active identity.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.sessions.Profile()
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "no active session")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, profile)
}

// UpdateProfile merges a partial update into the stored profile. Unknown
// fields are dropped by the persistence schema, oversized avatar images are
// downscaled before saving.
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var partial map[string]any
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		h.logger.Debug("Profile update decode failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(partial) == 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "empty update")
		return
	}

	identity, persisted, err := h.sessions.Update(partial)
	if err != nil {
		if err == session.ErrNoIdentity {
			middleware.RespondWithError(w, http.StatusUnauthorized, "no active session")
			return
		}
		h.logger.Error("Profile update failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	if !persisted {
		h.logger.Warn("Profile update not persisted", zap.Int("user_id", identity.ID))
	}
	middleware.RespondWithJSON(w, http.StatusOK, UpdateProfileResponse{User: identity, Persisted: persisted})
}

// GetPosts lists the active user's own posts.
func (h *ProfileHandler) GetPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.sessions.CurrentID()
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "no active session")
		return
	}

	posts, err := h.feeds.PostsOf(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to load user posts", zap.Int("user_id", userID), zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadGateway, "upstream unavailable")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, posts)
}

// GetComments lists the active user's own comments from the feed bundle.
func (h *ProfileHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.sessions.CurrentID()
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "no active session")
		return
	}

	comments, err := h.feeds.CommentsOf(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to load user comments", zap.Int("user_id", userID), zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadGateway, "upstream unavailable")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, comments)
}
