package http

import (
	"net/http"
	"strings"

	"dime/internal/core"
	"dime/internal/ledger"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt64(r, "offset", 0)
	if err != nil {
		respondError(w, r, err)
		return
	}
	limit, err := queryInt64(r, "limit", 20)
	if err != nil {
		respondError(w, r, err)
		return
	}
	p := ledger.ListParams{Offset: offset, Limit: limit}
	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		cat, err := queryInt64(r, "category", 0)
		if err != nil {
			respondError(w, r, err)
			return
		}
		p.Category = &cat
	}

	txs, err := s.ledger.List(r.Context(), sessionID(r), p)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	respondJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in core.TransactionInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	tx, err := s.ledger.Insert(r.Context(), sessionID(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	tx, err := s.ledger.Get(r.Context(), sessionID(r), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var in core.TransactionInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	tx, err := s.ledger.Update(r.Context(), sessionID(r), id, in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.ledger.Delete(r.Context(), sessionID(r), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// handleAssignCategory sets a transaction's category by hand, outside the
// rule engine.
func (s *Server) handleAssignCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var body struct {
		CategoryID *int64 `json:"category_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	if body.CategoryID == nil {
		respondError(w, r, core.ErrInvalidInput)
		return
	}
	tx, err := s.ledger.SetCategory(r.Context(), sessionID(r), id, *body.CategoryID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}
