// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects the store, services,
// handlers, middleware and routes. It is the "composition root": every
// dependency is built in New, not scattered across the codebase.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Store (sqlite or postgres)
//	Store → service.UserService → handler.UserHandler
//	Store → auth.RequireAuth (token lookup)
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/user-accounts/internal/auth"
	"github.com/sakif/user-accounts/internal/config"
	"github.com/sakif/user-accounts/internal/handler"
	"github.com/sakif/user-accounts/internal/middleware"
	"github.com/sakif/user-accounts/internal/repository"
	"github.com/sakif/user-accounts/internal/repository/postgres"
	sqliteRepo "github.com/sakif/user-accounts/internal/repository/sqlite"
	"github.com/sakif/user-accounts/internal/service"
	"github.com/sakif/user-accounts/internal/validation"
)

// Store is an Account Store the server owns: the repository plus the
// connection lifecycle. Both sqliteRepo.DB and postgres.DB satisfy it.
type Store interface {
	repository.UserRepository
	Ping(ctx context.Context) error
	Close() error
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store. Start closes it during shutdown, after the
// last in-flight request has finished.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	store  Store
}

// OpenStore opens the store selected by cfg.DBDriver and applies migrations.
func OpenStore(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		db, err := sqliteRepo.New(ctx, cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("server: unsupported store driver %q", cfg.DBDriver)
	}
}

// New opens the configured store and builds the server around it.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s, err := NewWithStore(cfg, store, logger)
	if err != nil {
		store.Close() // Clean up DB if wiring fails
		return nil, err
	}
	return s, nil
}

// NewWithStore builds the server around an already open store. Tests use it
// with an in-memory SQLite database.
//
// Each layer only receives what it needs:
//   - UserService gets the repository interface (not the concrete DB)
//   - UserHandler gets the service (not the repository)
//   - RequireAuth gets the store as a token lookup
func NewWithStore(cfg config.Config, store Store, logger *slog.Logger) (*Server, error) {
	passwords, err := auth.NewPasswordService(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("creating password service: %w", err)
	}

	v, err := validation.New()
	if err != nil {
		return nil, fmt.Errorf("creating validator: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}

	users := service.NewUserService(store, passwords, auth.NewTokenService(), v, logger)
	s.setupRoutes(handler.NewUserHandler(users, logger))

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// POST   /api/users          → register
// POST   /api/users/login    → login
// GET    /api/users/current  → current profile      (auth)
// PATCH  /api/users/current  → update profile       (auth)
// DELETE /api/users/logout   → revoke token         (auth)
// GET    /healthz            → store ping
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns an ID the logger picks up
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger: logs each request with timing info
// 4. Recoverer: catches panics and returns 500 instead of crashing
// 5. CORS: answers preflight requests before any route runs
func (s *Server) setupRoutes(users *handler.UserHandler) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodPut, http.MethodPatch,
		},
		AllowedHeaders: []string{"Accept", "Content-Type", auth.HeaderName},
		MaxAge:         300,
	}))

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api/users", func(r chi.Router) {
		r.Post("/", users.HandleRegister)
		r.Post("/login", users.HandleLogin)

		// Everything in this group needs a valid token.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(s.store, s.logger))

			r.Get("/current", users.HandleGetCurrent)
			r.Patch("/current", users.HandleUpdateCurrent)
			r.Delete("/logout", users.HandleLogout)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Handler returns the fully wired router. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the store. Start calls it on the way out; callers that only
// use Handler must call it themselves.
func (s *Server) Close() error {
	return s.store.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait up to ShutdownTimeout for in-flight requests to finish
// 3. Close the store (flushes the SQLite WAL, releases Postgres connections)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("App start",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("driver", s.config.DBDriver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
