package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mymiscarriage/apiserver/internal/logging"
	"github.com/mymiscarriage/apiserver/internal/services"
	"github.com/mymiscarriage/apiserver/internal/store"
	"github.com/mymiscarriage/apiserver/types"
)

const maxBodyBytes = 64 << 10

type contextKey string

const contextModeratorKey contextKey = "moderator"

// ErrorResponse is the body of every failed request. Fields is only set
// for validation failures.
type ErrorResponse struct {
	Error  string             `json:"error"`
	Fields []types.FieldError `json:"fields,omitempty"`
}

// ModeratorFromContext returns the moderator attached by RequireModerator.
func ModeratorFromContext(ctx context.Context) (types.Moderator, bool) {
	moderator, ok := ctx.Value(contextModeratorKey).(types.Moderator)
	return moderator, ok
}

func withModerator(ctx context.Context, moderator types.Moderator) context.Context {
	return context.WithValue(ctx, contextModeratorKey, moderator)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps a service or store error to its HTTP status.
// notFound is the message used for store.ErrNotFound.
func writeServiceError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error, notFound string) {
	var verr *types.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, services.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, store.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a bounded JSON body into dst. Unknown fields are ignored.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}
