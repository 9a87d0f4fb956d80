package transport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"vitrine/internal/domain"
	"vitrine/internal/middleware"
	"vitrine/internal/session"
)

// LoginRequest represents the login request payload
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the gateway token and the signed-in identity.
type LoginResponse struct {
	Token string          `json:"token"`
	User  domain.Identity `json:"user"`
}

// Authenticator is the slice of the upstream client the auth handler needs.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*domain.Identity, error)
}

// AuthHandler handles login and logout against the upstream identity API.
type AuthHandler struct {
	client   Authenticator
	sessions *session.Store
	tokens   *session.TokenIssuer
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(client Authenticator, sessions *session.Store, tokens *session.TokenIssuer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		client:   client,
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
	}
}

// RegisterRoutes registers the auth routes
func (h *AuthHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/logout", h.Logout)
		})
	})
}

// Login authenticates against upstream, activates the session and issues
// the gateway's own token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeRequest(h.logger, w, r, &req) {
		return
	}

	identity, err := h.client.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Debug("Upstream login rejected", zap.String("username", req.Username), zap.Error(err))
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	h.sessions.Login(*identity)

	token, err := h.tokens.Issue(*identity)
	if err != nil {
		h.logger.Error("Token issue failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	h.logger.Info("User logged in successfully", zap.Int("user_id", identity.ID))
	middleware.RespondWithJSON(w, http.StatusOK, LoginResponse{Token: token, User: *identity})
}

// Logout deactivates the session. The cart and purchase history stay
// persisted; the user's cached posts and comments are dropped.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout()

	h.logger.Info("User logged out successfully")
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}
