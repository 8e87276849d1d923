package http

import (
	"net/http"

	"dime/internal/core"
)

func (s *Server) handleListPaymentRequests(w http.ResponseWriter, r *http.Request) {
	list, err := s.payments.List(r.Context(), sessionID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if list == nil {
		list = []core.PaymentRequest{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreatePaymentRequest(w http.ResponseWriter, r *http.Request) {
	var in core.PaymentRequestInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	pr, err := s.payments.Create(r.Context(), sessionID(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, pr)
}
