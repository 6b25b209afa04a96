package server

import (
	"net/http"
)

const (
	statusServing    = "SERVING"
	statusNotServing = "NOT_SERVING"
)

// handleLiveness always reports OK while the process runs
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// handleReadiness reports SERVING once SetReady was called and until Stop
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": statusNotServing})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": statusServing})
}
