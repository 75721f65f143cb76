package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
)

const maxBodyBytes = 1 << 20

// errorResponse is the JSON body of every failed API call.
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: domain.ErrValidation.Error(), Fields: verr.Fields})
	case errors.Is(err, domain.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrVenueNotFound), errors.Is(err, domain.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func badRequest(field, message string) error {
	return domain.NewValidationError(field, message)
}

// decodeBody reads a JSON request body into v.
func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return badRequest("body", "could not be read")
	}
	if len(body) > maxBodyBytes {
		return badRequest("body", "is too large")
	}
	if len(body) == 0 {
		return badRequest("body", "is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return badRequest("body", "is not valid JSON")
	}
	return nil
}

// queryFloat parses a required float query parameter.
func queryFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, badRequest(name, "is required")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, badRequest(name, "must be a number")
	}
	return f, nil
}

// queryInt parses an optional positive integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, badRequest(name, "must be a positive integer")
	}
	return n, nil
}
