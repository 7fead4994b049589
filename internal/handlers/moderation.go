package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mymiscarriage/apiserver/internal/logging"
	"github.com/mymiscarriage/apiserver/internal/store"
	"github.com/mymiscarriage/apiserver/types"
)

// ModerationTestimonies is what the moderation routes need from the
// testimony service.
type ModerationTestimonies interface {
	ListPending(ctx context.Context, limit int) ([]types.Testimony, error)
	Update(ctx context.Context, id string, patch types.TestimonyPatch) (types.Testimony, error)
}

// ModerationHandler serves the token-protected moderation routes.
type ModerationHandler struct {
	testimonies ModerationTestimonies
	log         logging.Logger
}

func NewModerationHandler(testimonies ModerationTestimonies, log logging.Logger) *ModerationHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &ModerationHandler{testimonies: testimonies, log: log}
}

// ModerationRouter registers moderation routes behind the access gate.
func ModerationRouter(r chi.Router, testimonies ModerationTestimonies, gate func(http.Handler) http.Handler, log logging.Logger) {
	handler := NewModerationHandler(testimonies, log)

	r.Use(gate)
	r.Get("/testimonies", handler.ListPending)
	r.Patch("/testimonies/{testimonyID}", handler.UpdateTestimony)
	r.Put("/testimonies/{testimonyID}", handler.UpdateTestimony)
}

// ListPending returns the moderation queue. Lookup failures other than an
// unreachable store are reported as 404.
func (h *ModerationHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	var verr types.ValidationError
	limit := queryInt(r.URL.Query(), "limit", defaultLimit, 1, &verr)
	if limit > maxLimit {
		limit = maxLimit
	}
	if err := verr.OrNil(); err != nil {
		writeServiceError(w, r, h.log, err, "")
		return
	}

	items, err := h.testimonies.ListPending(r.Context(), limit)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "service unavailable")
			return
		}
		h.log.Warn(r.Context(), "list pending testimonies failed", "error", err)
		writeError(w, http.StatusNotFound, "pending testimonies not found")
		return
	}

	writeJSON(w, http.StatusOK, items)
}

func (h *ModerationHandler) UpdateTestimony(w http.ResponseWriter, r *http.Request) {
	var patch types.TestimonyPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	id := chi.URLParam(r, "testimonyID")
	updated, err := h.testimonies.Update(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, r, h.log, err, "testimony not found")
		return
	}

	if moderator, ok := ModeratorFromContext(r.Context()); ok && patch.Status != nil {
		h.log.Info(r.Context(), "testimony moderated", "testimony_id", id, "status", updated.Status, "moderator_id", moderator.ID)
	}
	writeJSON(w, http.StatusOK, updated)
}
