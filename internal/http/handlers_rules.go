package http

import (
	"net/http"

	"dime/internal/core"
)

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	list, err := s.rules.List(r.Context(), sessionID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if list == nil {
		list = []core.CategoryRule{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var in core.CategoryRuleInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	rule, err := s.rules.Create(r.Context(), sessionID(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	rule, err := s.rules.Get(r.Context(), sessionID(r), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var in core.CategoryRuleInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	rule, err := s.rules.Update(r.Context(), sessionID(r), id, in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.rules.Delete(r.Context(), sessionID(r), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
