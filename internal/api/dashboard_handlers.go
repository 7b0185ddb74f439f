package api

import "net/http"

func (s *Server) handleLibrarianDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.manager.LibrarianDashboard(r.Context(), getSession(r.Context()))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMemberDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.manager.MemberDashboard(r.Context(), getSession(r.Context()))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}
