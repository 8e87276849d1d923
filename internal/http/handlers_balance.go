package http

import (
	"net/http"
	"strings"

	"dime/internal/ledger"
)

// handleBalanceHistory answers the candlestick view of the session balance.
func (s *Server) handleBalanceHistory(w http.ResponseWriter, r *http.Request) {
	interval := strings.TrimSpace(r.URL.Query().Get("interval"))
	if interval == "" {
		interval = ledger.IntervalMonth
	}
	count, err := queryInt64(r, "intervals", 24)
	if err != nil {
		respondError(w, r, err)
		return
	}

	buckets, err := s.ledger.History(r.Context(), sessionID(r), interval, int(count))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, buckets)
}
