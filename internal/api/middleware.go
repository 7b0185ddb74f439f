package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"library-circulation/library"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const contextKeySession contextKey = "session"

// requireSession loads the user named by SessionHeader and attaches a library.Session.
// Token validation happens upstream; this only trusts the forwarded user ID.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(SessionHeader))
		if raw == "" {
			s.unauthorized(w, "missing "+SessionHeader+" header")
			return
		}
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			s.unauthorized(w, "invalid "+SessionHeader+" header")
			return
		}

		session, err := s.manager.SessionFor(r.Context(), userID)
		if err != nil {
			if library.KindOf(err) == library.KindNotFound {
				s.unauthorized(w, "unknown user")
				return
			}
			s.handleError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), contextKeySession, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireLibrarian rejects members. Must be used after requireSession.
func (s *Server) requireLibrarian(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !getSession(r.Context()).User.IsLibrarian() {
			s.handleError(w, r, library.Forbiddenf("librarian access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBorrows applies the per-user borrow rate limit.
func (s *Server) limitBorrows(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			key := strconv.FormatInt(getSession(r.Context()).User.ID, 10)
			if !s.limiter.Allow(key) {
				w.Header().Set("Retry-After", "1")
				s.writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many borrow requests", nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// getSession returns the request's session. The zero Session is returned outside
// requireSession so role checks fail closed.
func getSession(ctx context.Context) *library.Session {
	if s, ok := ctx.Value(contextKeySession).(*library.Session); ok && s != nil {
		return s
	}
	return &library.Session{}
}
