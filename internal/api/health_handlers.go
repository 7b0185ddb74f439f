package api

import "net/http"

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "UNHEALTHY", "database unavailable", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}
