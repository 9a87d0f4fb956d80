package server

import (
	"fmt"
	"net/http"
	"time"

	"vitrine/internal/cart"
	"vitrine/internal/config"
	"vitrine/internal/feed"
	custommiddleware "vitrine/internal/middleware"
	"vitrine/internal/remote"
	"vitrine/internal/review"
	"vitrine/internal/session"
	"vitrine/internal/storage"
	"vitrine/internal/telemetry"
	"vitrine/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	store  storage.Store
}

// NewServer assembles the router and all stores on top of the given
// storage backend. redisClient may be nil; rate limiting is skipped then.
func NewServer(cfg *config.Config, logger *zap.Logger, store storage.Store, redisClient *redis.Client) *Server {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env == "development"))
	router.Use(telemetry.Middleware)

	if cfg.RateLimit.Enabled && redisClient != nil {
		router.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			Window:            time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
			KeyPrefix:         "rate_limit",
		}, logger))
	}

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	router.Handle("/metrics", promhttp.Handler())

	// Initialize upstream client and stores
	client := remote.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, logger)
	adapter := storage.NewAdapter(store, logger)
	sessions := session.New(adapter, logger)
	tokens := session.NewTokenIssuer(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessExpiry)*time.Minute)
	carts := cart.New(store, sessions, logger)
	feeds := feed.New(store, client, sessions, logger)
	reviews := review.New(store, logger)

	// Create auth middleware
	authMiddleware := custommiddleware.AuthMiddleware(tokens, logger)

	// Register routes
	transport.NewAuthHandler(client, sessions, tokens, logger).RegisterRoutes(router, authMiddleware)
	transport.NewProfileHandler(sessions, feeds, logger).RegisterRoutes(router, authMiddleware)
	transport.NewCartHandler(carts, client, logger).RegisterRoutes(router, authMiddleware)
	transport.NewCatalogHandler(client, reviews, sessions, logger).RegisterRoutes(router, authMiddleware)
	transport.NewFeedHandler(feeds, logger).RegisterRoutes(router, authMiddleware)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		store:  store,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if closer, ok := s.store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.logger.Error("Failed to close storage backend", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
