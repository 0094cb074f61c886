// internal/server/server.go

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nats-io/nats.go"

	"proximate/internal/config"
	"proximate/internal/domain/location"
	"proximate/internal/domain/match"
	"proximate/internal/domain/user"
	"proximate/internal/server/handlers"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *chi.Mux
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.ServerConfig,
	authCfg config.AuthConfig,
	natsConn *nats.Conn,
	publisher handlers.PingPublisher,
	scanner location.Scanner,
	engine match.Engine,
	users user.Store,
) *Server {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Create handler dependencies
	locationHandler := handlers.NewLocationHandler(publisher, scanner, users)
	matchHandler := handlers.NewMatchHandler(engine)
	userHandler := handlers.NewUserHandler(users)
	authenticate := handlers.Authenticator(authCfg.TokenSecret)

	// Routes
	router.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		// API version
		r.Route("/v1", func(r chi.Router) {
			r.Use(authenticate)

			// Location API
			r.Route("/location", func(r chi.Router) {
				r.Post("/update", locationHandler.UpdateLocation)
			})
			r.Get("/nearby", locationHandler.GetNearbyUsers)

			// Matches API
			r.Route("/matches", func(r chi.Router) {
				r.Get("/", matchHandler.GetMatches)
				r.Post("/like", matchHandler.Like)
			})

			// Users API
			r.Route("/users", func(r chi.Router) {
				r.Get("/me", userHandler.GetMe)
				r.Put("/me", userHandler.UpdateMe)
			})
		})
	})

	// WebSocket endpoint for real-time notifications
	if natsConn != nil {
		router.With(authenticate).Get("/ws/notifications", handlers.NotificationWebSocketHandler(natsConn))
	}

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		server: httpServer,
		router: router,
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
