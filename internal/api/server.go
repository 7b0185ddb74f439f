// Package api exposes the circulation service over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"library-circulation/internal/ratelimit"
	"library-circulation/internal/validation"
	"library-circulation/library"
)

// SessionHeader carries the user ID resolved by the identity proxy in front of this service.
const SessionHeader = "X-Authenticated-User"

// Options configures optional server behavior.
type Options struct {
	CORSOrigins []string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	manager   *library.LibraryManager
	validator *validation.Validator
	limiter   *ratelimit.KeyedRateLimiter
	router    *chi.Mux
	logger    *slog.Logger
	opts      Options
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(manager *library.LibraryManager, validator *validation.Validator, limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger, opts Options) *Server {
	s := &Server{
		manager:   manager,
		validator: validator,
		limiter:   limiter,
		router:    chi.NewRouter(),
		logger:    logger,
		opts:      opts,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	if len(s.opts.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", SessionHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireSession)

		r.Route("/borrowings", func(r chi.Router) {
			r.With(s.limitBorrows).Post("/", s.handleBorrow)
			r.Get("/", s.handleListBorrowings)
			r.With(s.requireLibrarian).Get("/overdue", s.handleOverdue)
			r.Get("/my_overdue", s.handleMyOverdue)
			r.Patch("/{id}/return", s.handleReturn)
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.With(s.requireLibrarian).Get("/librarian", s.handleLibrarianDashboard)
			r.Get("/member", s.handleMemberDashboard)
		})

		r.Route("/books", func(r chi.Router) {
			r.Get("/", s.handleListBooks)
			r.Get("/{id}", s.handleGetBook)

			r.Group(func(r chi.Router) {
				r.Use(s.requireLibrarian)
				r.Post("/", s.handleCreateBook)
				r.Patch("/{id}/copies", s.handleSetCopies)
				r.Delete("/{id}", s.handleDeleteBook)
			})
		})
	})
}
