package http

import (
	"net/http"

	"dime/internal/core"
)

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.messages.List(r.Context(), sessionID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []core.Message{}
	}
	respondJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleMarkMessageRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	msg, err := s.messages.MarkRead(r.Context(), sessionID(r), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, msg)
}
