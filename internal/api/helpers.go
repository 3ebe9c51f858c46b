package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mkravets/vox/internal/call"
	"github.com/mkravets/vox/internal/signal"
	"go.uber.org/zap"
)

// respondJSON sends a JSON response with the given status code.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.log.Error("failed to encode response", zap.Error(err))
		}
	}
}

// respondError sends an error response with the appropriate status code.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// handleError maps component errors onto HTTP statuses.
func (s *Server) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, call.ErrCallInProgress):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, call.ErrPermissionDenied):
		s.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, signal.ErrNotConnected):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// pathID parses the {id} route parameter as a positive integer.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter, 0 when absent.
func queryInt(r *http.Request, name string) int64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// decodeBody reads a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(dst)
}
