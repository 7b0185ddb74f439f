package api

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is the body of every JSON response.
type Envelope struct {
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
	Success bool   `json:"success"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	s.write(w, status, Envelope{Success: status < 400, Data: data})
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string, details any) {
	s.write(w, status, Envelope{Error: message, Code: code, Details: details})
}

func (s *Server) unauthorized(w http.ResponseWriter, message string) {
	s.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", message, nil)
}

func (s *Server) write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// decodeJSON reads a request body into dst and validates it.
func (s *Server) decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid JSON body", err)
	}
	return s.validator.Validate(dst)
}
