package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mymiscarriage/apiserver/internal/logging"
	"github.com/mymiscarriage/apiserver/types"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// PublicTestimonies is what the public routes need from the testimony service.
type PublicTestimonies interface {
	Create(ctx context.Context, in types.TestimonyInput) (types.Testimony, error)
	ListPublished(ctx context.Context, filter types.TestimonyFilter, page, limit int) (types.TestimonyPage, error)
	GetPublished(ctx context.Context, id string) (types.Testimony, error)
}

// TestimonyHandler serves the unauthenticated testimony routes.
type TestimonyHandler struct {
	testimonies PublicTestimonies
	log         logging.Logger
}

func NewTestimonyHandler(testimonies PublicTestimonies, log logging.Logger) *TestimonyHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &TestimonyHandler{testimonies: testimonies, log: log}
}

// TestimonyRouter registers public testimony routes on the given router.
func TestimonyRouter(r chi.Router, testimonies PublicTestimonies, log logging.Logger) {
	handler := NewTestimonyHandler(testimonies, log)

	r.Post("/", handler.CreateTestimony)
	r.Get("/", handler.ListTestimonies)
	r.Get("/{testimonyID}", handler.GetTestimony)
}

func (h *TestimonyHandler) CreateTestimony(w http.ResponseWriter, r *http.Request) {
	var in types.TestimonyInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.testimonies.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.log, err, "testimony not found")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *TestimonyHandler) ListTestimonies(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var verr types.ValidationError
	page := queryInt(query, "page", defaultPage, 1, &verr)
	limit := queryInt(query, "limit", defaultLimit, 1, &verr)
	if limit > maxLimit {
		limit = maxLimit
	}
	filter := parseTestimonyFilter(query, &verr)
	if err := verr.OrNil(); err != nil {
		writeServiceError(w, r, h.log, err, "")
		return
	}

	result, err := h.testimonies.ListPublished(r.Context(), filter, page, limit)
	if err != nil {
		writeServiceError(w, r, h.log, err, "testimony not found")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *TestimonyHandler) GetTestimony(w http.ResponseWriter, r *http.Request) {
	testimony, err := h.testimonies.GetPublished(r.Context(), chi.URLParam(r, "testimonyID"))
	if err != nil {
		writeServiceError(w, r, h.log, err, "testimony not found")
		return
	}

	writeJSON(w, http.StatusOK, testimony)
}

// parseTestimonyFilter reads equality filters from the query string.
// status is not read; visibility is decided by the service.
func parseTestimonyFilter(query url.Values, verr *types.ValidationError) types.TestimonyFilter {
	var filter types.TestimonyFilter

	if name := strings.TrimSpace(query.Get("name")); name != "" {
		filter.Name = &name
	}
	filter.WhenWeeks = queryIntPtr(query, "when_weeks", verr)
	filter.WhenWeeksNoticed = queryIntPtr(query, "when_weeks_noticed", verr)
	filter.Hospital = queryBoolPtr(query, "hospital", verr)
	filter.PeriodPain = queryBoolPtr(query, "period_pain", verr)

	if v := query.Get("physical_pain"); v != "" {
		pain := types.Pain(v)
		if !pain.Valid() {
			verr.Add("physical_pain", "unknown value")
		}
		filter.PhysicalPain = &pain
	}
	if v := query.Get("mental_pain"); v != "" {
		pain := types.Pain(v)
		if !pain.Valid() {
			verr.Add("mental_pain", "unknown value")
		}
		filter.MentalPain = &pain
	}
	if v := query.Get("period_volume"); v != "" {
		volume := types.PeriodVolume(v)
		if !volume.Valid() {
			verr.Add("period_volume", "unknown value")
		}
		filter.PeriodVolume = &volume
	}
	if v := query.Get("period_length"); v != "" {
		length := types.PeriodLength(v)
		if !length.Valid() {
			verr.Add("period_length", "unknown value")
		}
		filter.PeriodLength = &length
	}

	return filter
}

func queryInt(query url.Values, key string, fallback, lowest int, verr *types.ValidationError) int {
	raw := strings.TrimSpace(query.Get(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < lowest {
		verr.Add(key, "must be an integer of at least "+strconv.Itoa(lowest))
		return fallback
	}
	return value
}

func queryIntPtr(query url.Values, key string, verr *types.ValidationError) *int {
	raw := strings.TrimSpace(query.Get(key))
	if raw == "" {
		return nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		verr.Add(key, "must be an integer")
		return nil
	}
	return &value
}

func queryBoolPtr(query url.Values, key string, verr *types.ValidationError) *bool {
	raw := strings.TrimSpace(query.Get(key))
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		verr.Add(key, "must be true or false")
		return nil
	}
	return &value
}
