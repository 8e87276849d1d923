package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"dime/internal/core"
	applog "dime/internal/log"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	if v == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// respondError maps domain sentinels to status codes. Validation failures
// answer 405, matching the API's published contract.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, core.ErrInvalidInput):
		status = http.StatusMethodNotAllowed
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		sl := applog.NewStructuredLogger(applog.FromContext(r.Context()))
		sl.LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, r.Method,
			applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, ""))
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

// decodeJSON reads the request body into dst. A missing or malformed body
// is a validation failure.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body", core.ErrInvalidInput)
	}
	return nil
}

// pathID parses the {id} route parameter. A non-numeric id can never
// address a resource, so it reads as not found.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: no resource %q", core.ErrNotFound, raw)
	}
	return id, nil
}

// queryInt64 parses an optional numeric query parameter.
func queryInt64(r *http.Request, key string, def int64) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", core.ErrInvalidInput, key)
	}
	return v, nil
}
