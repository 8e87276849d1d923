package http

import (
	"net/http"
)

// handleCreateSession opens a fresh, empty ledger. It is the only route
// that does not require an existing identity.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, sess)
}
