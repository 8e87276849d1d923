package http

import (
	"net/http"

	"dime/internal/core"
)

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	list, err := s.goals.List(r.Context(), sessionID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if list == nil {
		list = []core.SavingGoal{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var in core.SavingGoalInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	goal, err := s.goals.Create(r.Context(), sessionID(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, goal)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.goals.Delete(r.Context(), sessionID(r), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
