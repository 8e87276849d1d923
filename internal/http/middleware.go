package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"dime/internal/core"
)

type contextKey string

const sessionContextKey contextKey = "session_id"

// withSession resolves the caller's session identity and rejects the
// request when it is missing, contradictory or unknown.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := sessionIDFromRequest(r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if err := s.sessions.Require(r.Context(), id); err != nil {
			respondError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionIDFromRequest reads the identity from the X-session-ID header or
// the session_id query parameter. When both are present they must agree.
func sessionIDFromRequest(r *http.Request) (int64, error) {
	header := strings.TrimSpace(r.Header.Get("X-session-ID"))
	query := strings.TrimSpace(r.URL.Query().Get("session_id"))

	var raw string
	switch {
	case header != "" && query != "":
		if header != query {
			return 0, fmt.Errorf("%w: conflicting session identifiers", core.ErrUnauthorized)
		}
		raw = header
	case header != "":
		raw = header
	case query != "":
		raw = query
	default:
		return 0, fmt.Errorf("%w: no session provided", core.ErrUnauthorized)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed session id %q", core.ErrUnauthorized, raw)
	}
	return id, nil
}

// sessionID returns the identity resolved by withSession.
func sessionID(r *http.Request) int64 {
	id, _ := r.Context().Value(sessionContextKey).(int64)
	return id
}
