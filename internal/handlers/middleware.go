package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/mymiscarriage/apiserver/internal/logging"
	"github.com/mymiscarriage/apiserver/internal/services"
	"github.com/mymiscarriage/apiserver/internal/store"
	"github.com/mymiscarriage/apiserver/types"
)

// Authenticator resolves a bearer token to a moderator.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (types.Moderator, error)
}

// ReadinessChecker reports whether the store can serve requests.
type ReadinessChecker interface {
	IsReady(ctx context.Context) bool
}

// RequireModerator rejects requests without a valid bearer token and
// attaches the moderator to the request context.
func RequireModerator(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			moderator, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, services.ErrUnauthorized):
					writeError(w, http.StatusUnauthorized, "unauthorized")
				case errors.Is(err, store.ErrUnavailable):
					writeError(w, http.StatusServiceUnavailable, "service unavailable")
				default:
					writeError(w, http.StatusInternalServerError, "internal error")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(withModerator(r.Context(), moderator)))
		})
	}
}

// bearerToken accepts "Bearer <token>" or the bare token. The token
// itself is returned untouched.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	if scheme, token, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return token
	}
	return auth
}

// RequireReady answers 503 while the store is unreachable.
func RequireReady(checker ReadinessChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !checker.IsReady(r.Context()) {
				writeError(w, http.StatusServiceUnavailable, "service unavailable")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORS echoes the request origin when it is on the allow-list. A "*"
// entry allows every origin.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	allowAll := false
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if _, ok := allowed[origin]; origin != "" && (ok || allowAll) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request. Headers and bodies are never
// logged, so tokens and passwords stay out of the log.
func RequestLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			}
			if status >= http.StatusInternalServerError {
				log.Error(r.Context(), "request", args...)
				return
			}
			log.Info(r.Context(), "request", args...)
		})
	}
}
