package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/storymap/backend/internal/auth"
	"github.com/storymap/backend/internal/middleware"
)

// Router holds all handlers and creates the chi router
type Router struct {
	authHandler   *AuthHandler
	storyHandler  *StoryHandler
	healthHandler *HealthHandler
	jwtManager    *auth.JWTManager
	logger        *zap.Logger
}

// NewRouter creates a new router
func NewRouter(
	authHandler *AuthHandler,
	storyHandler *StoryHandler,
	healthHandler *HealthHandler,
	jwtManager *auth.JWTManager,
	logger *zap.Logger,
) *Router {
	return &Router{
		authHandler:   authHandler,
		storyHandler:  storyHandler,
		healthHandler: healthHandler,
		jwtManager:    jwtManager,
		logger:        logger,
	}
}

// Setup configures and returns the chi router
func (rt *Router) Setup() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RecoveryMiddleware(rt.logger))
	r.Use(middleware.LoggingMiddleware(rt.logger))
	r.Use(middleware.CORSMiddleware())
	r.Use(chimiddleware.Compress(5))

	// Health endpoints (no auth required)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", rt.healthHandler.Health)
		r.Get("/ready", rt.healthHandler.Ready)
		r.Get("/live", rt.healthHandler.Live)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", rt.authHandler.Register)
			r.Post("/login", rt.authHandler.Login)
		})

		r.Route("/stories", func(r chi.Router) {
			// Reads are public
			r.Get("/", rt.storyHandler.List)
			r.Get("/{id}", rt.storyHandler.Get)

			// Writes require auth
			r.Group(func(r chi.Router) {
				r.Use(middleware.AuthMiddleware(rt.jwtManager))

				r.Post("/", rt.storyHandler.Create)
				r.Patch("/{id}", rt.storyHandler.Update)
				r.Delete("/{id}", rt.storyHandler.Delete)
				r.Post("/{id}/like", rt.storyHandler.ToggleLike)
				r.Post("/{id}/comments", rt.storyHandler.AddComment)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(rt.jwtManager))
			r.Get("/me", rt.authHandler.Me)
		})
	})

	return r
}
