package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"library-circulation/library"
)

func badRequest(msg string, cause error) error {
	return library.Wrap(cause, library.KindValidation, msg)
}

// handleError maps library errors to their status code. Anything else is a 500 and is logged.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *library.Error
	if !errors.As(err, &domainErr) || domainErr.Kind == library.KindInternal {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err)
		s.writeError(w, http.StatusInternalServerError, string(library.KindInternal), "internal server error", nil)
		return
	}

	if domainErr.Kind == library.KindInvariantViolation {
		s.logger.Error("invariant violation surfaced to client", "path", r.URL.Path, "error", err)
	}
	s.writeError(w, domainErr.Kind.HTTPStatus(), string(domainErr.Kind), domainErr.Message, domainErr.Details)
}
