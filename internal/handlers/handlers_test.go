package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mymiscarriage/apiserver/internal/services"
	"github.com/mymiscarriage/apiserver/internal/store"
	"github.com/mymiscarriage/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validToken = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

type fakeTestimonies struct {
	created    types.TestimonyInput
	createErr  error
	filter     types.TestimonyFilter
	page       int
	limit      int
	listErr    error
	getErr     error
	pendingErr error
	patch      types.TestimonyPatch
	updateErr  error
}

func (f *fakeTestimonies) Create(ctx context.Context, in types.TestimonyInput) (types.Testimony, error) {
	f.created = in
	if f.createErr != nil {
		return types.Testimony{}, f.createErr
	}
	return types.Testimony{ID: "t-1", Name: "Anonymous", WhenWeeks: *in.WhenWeeks, Status: types.StatusPending}, nil
}

func (f *fakeTestimonies) ListPublished(ctx context.Context, filter types.TestimonyFilter, page, limit int) (types.TestimonyPage, error) {
	f.filter, f.page, f.limit = filter, page, limit
	if f.listErr != nil {
		return types.TestimonyPage{}, f.listErr
	}
	return types.TestimonyPage{Items: []types.Testimony{}, TotalPages: 3, CurrentPage: page}, nil
}

func (f *fakeTestimonies) GetPublished(ctx context.Context, id string) (types.Testimony, error) {
	if f.getErr != nil {
		return types.Testimony{}, f.getErr
	}
	return types.Testimony{ID: id, Status: types.StatusApproved}, nil
}

func (f *fakeTestimonies) ListPending(ctx context.Context, limit int) ([]types.Testimony, error) {
	f.limit = limit
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	return []types.Testimony{{ID: "t-2", Status: types.StatusPending}}, nil
}

func (f *fakeTestimonies) Update(ctx context.Context, id string, patch types.TestimonyPatch) (types.Testimony, error) {
	f.patch = patch
	if f.updateErr != nil {
		return types.Testimony{}, f.updateErr
	}
	out := types.Testimony{ID: id, Status: types.StatusPending}
	if patch.Status != nil {
		out.Status = *patch.Status
	}
	return out, nil
}

type fakeAuth struct {
	registerErr error
	loginErr    error
	authErr     error
}

func (f *fakeAuth) Register(ctx context.Context, email, password, key string) (types.Credentials, error) {
	if f.registerErr != nil {
		return types.Credentials{}, f.registerErr
	}
	return types.Credentials{ID: "m-1", AccessToken: validToken, Email: email}, nil
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (types.Credentials, error) {
	if f.loginErr != nil {
		return types.Credentials{}, f.loginErr
	}
	return types.Credentials{ID: "m-1", AccessToken: validToken, Email: email}, nil
}

func (f *fakeAuth) Authenticate(ctx context.Context, token string) (types.Moderator, error) {
	if f.authErr != nil {
		return types.Moderator{}, f.authErr
	}
	if token != validToken {
		return types.Moderator{}, services.ErrUnauthorized
	}
	return types.Moderator{ID: "m-1", Email: "mod@example.com"}, nil
}

func newTestRouter(testimonies *fakeTestimonies, auth *fakeAuth) http.Handler {
	r := chi.NewRouter()
	r.Route("/testimonies", func(r chi.Router) {
		TestimonyRouter(r, testimonies, nil)
	})
	r.Route("/moderation", func(r chi.Router) {
		ModerationRouter(r, testimonies, RequireModerator(auth), nil)
	})
	r.Route("/moderators", func(r chi.Router) {
		ModeratorRouter(r, auth, nil)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader([]byte(body)))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreateTestimony_IgnoresServerFields(t *testing.T) {
	testimonies := &fakeTestimonies{}
	h := newTestRouter(testimonies, &fakeAuth{})

	rec := do(t, h, http.MethodPost, "/testimonies", `{"when_weeks":8,"status":"approved","created_at":"2001-01-01T00:00:00Z","id":"mine"}`, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got types.Testimony
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, types.StatusPending, got.Status)
	assert.Equal(t, "t-1", got.ID)
}

func TestCreateTestimony_ValidationPayload(t *testing.T) {
	testimonies := &fakeTestimonies{createErr: &types.ValidationError{Fields: []types.FieldError{{Field: "when_weeks", Message: "must be between 5 and 20"}}}}
	h := newTestRouter(testimonies, &fakeAuth{})

	rec := do(t, h, http.MethodPost, "/testimonies", `{"when_weeks":3}`, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "validation failed", resp.Error)
	assert.Equal(t, []types.FieldError{{Field: "when_weeks", Message: "must be between 5 and 20"}}, resp.Fields)
}

func TestCreateTestimony_MalformedBody(t *testing.T) {
	h := newTestRouter(&fakeTestimonies{}, &fakeAuth{})

	rec := do(t, h, http.MethodPost, "/testimonies", `{"when_weeks":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/testimonies", `{"when_weeks":"eight"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTestimonies_ParsesQuery(t *testing.T) {
	testimonies := &fakeTestimonies{}
	h := newTestRouter(testimonies, &fakeAuth{})

	rec := do(t, h, http.MethodGet, "/testimonies?page=2&limit=500&when_weeks=8&hospital=true&physical_pain=Severe%20Pain&status=pending", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, testimonies.page)
	assert.Equal(t, maxLimit, testimonies.limit)
	require.NotNil(t, testimonies.filter.WhenWeeks)
	assert.Equal(t, 8, *testimonies.filter.WhenWeeks)
	assert.True(t, *testimonies.filter.Hospital)
	assert.Equal(t, types.PainSevere, *testimonies.filter.PhysicalPain)
	assert.Nil(t, testimonies.filter.Status)
	assert.JSONEq(t, `{"items":[],"totalPages":3,"currentPage":2}`, rec.Body.String())
}

func TestListTestimonies_BadQuery(t *testing.T) {
	h := newTestRouter(&fakeTestimonies{}, &fakeAuth{})

	rec := do(t, h, http.MethodGet, "/testimonies?page=0&when_weeks=x&hospital=maybe&period_volume=More", "", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := map[string]bool{}
	for _, f := range decodeError(t, rec).Fields {
		fields[f.Field] = true
	}
	assert.Equal(t, map[string]bool{"page": true, "when_weeks": true, "hospital": true, "period_volume": true}, fields)
}

func TestGetTestimony_NotFound(t *testing.T) {
	h := newTestRouter(&fakeTestimonies{getErr: store.ErrNotFound}, &fakeAuth{})

	rec := do(t, h, http.MethodGet, "/testimonies/abc", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "testimony not found", decodeError(t, rec).Error)
}

func TestModeration_RequiresExactToken(t *testing.T) {
	testimonies := &fakeTestimonies{}
	h := newTestRouter(testimonies, &fakeAuth{})

	rejected := []string{
		"",
		"Bearer",
		"Bearer " + validToken[:63],
		"Bearer " + validToken + "0",
		"Bearer " + strings.ToUpper(validToken),
		"Token " + validToken,
		"Bearer  " + validToken,
	}
	for _, header := range rejected {
		rec := do(t, h, http.MethodGet, "/moderation/testimonies", "", map[string]string{"Authorization": header})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.Equal(t, "unauthorized", decodeError(t, rec).Error)
	}

	for _, header := range []string{"Bearer " + validToken, "bearer " + validToken, validToken} {
		rec := do(t, h, http.MethodGet, "/moderation/testimonies?limit=5", "", map[string]string{"Authorization": header})
		assert.Equal(t, http.StatusOK, rec.Code, "header %q", header)
	}
	assert.Equal(t, 5, testimonies.limit)
}

func TestModeration_StoreUnavailableDuringAuth(t *testing.T) {
	h := newTestRouter(&fakeTestimonies{}, &fakeAuth{authErr: store.ErrUnavailable})

	rec := do(t, h, http.MethodGet, "/moderation/testimonies", "", map[string]string{"Authorization": validToken})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListPending_LookupFailureIsNotFound(t *testing.T) {
	auth := map[string]string{"Authorization": "Bearer " + validToken}

	rec := do(t, newTestRouter(&fakeTestimonies{pendingErr: errors.New("boom")}, &fakeAuth{}), http.MethodGet, "/moderation/testimonies", "", auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, newTestRouter(&fakeTestimonies{pendingErr: store.ErrUnavailable}, &fakeAuth{}), http.MethodGet, "/moderation/testimonies", "", auth)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUpdateTestimony(t *testing.T) {
	auth := map[string]string{"Authorization": "Bearer " + validToken}
	testimonies := &fakeTestimonies{}
	h := newTestRouter(testimonies, &fakeAuth{})

	for _, method := range []string{http.MethodPatch, http.MethodPut} {
		rec := do(t, h, method, "/moderation/testimonies/t-9", `{"status":"approved","when_weeks":19}`, auth)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, types.StatusApproved, *testimonies.patch.Status)
		assert.Nil(t, testimonies.patch.Name)
	}

	rec := do(t, h, http.MethodPatch, "/moderation/testimonies/t-9", `{"status":"approved"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateTestimony_Errors(t *testing.T) {
	auth := map[string]string{"Authorization": "Bearer " + validToken}

	rec := do(t, newTestRouter(&fakeTestimonies{updateErr: store.ErrNotFound}, &fakeAuth{}), http.MethodPatch, "/moderation/testimonies/nope", `{"name":"x"}`, auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	verr := &types.ValidationError{}
	verr.Add("status", "must be one of")
	rec = do(t, newTestRouter(&fakeTestimonies{updateErr: verr}, &fakeAuth{}), http.MethodPatch, "/moderation/testimonies/t-1", `{"status":"gone"}`, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	h := newTestRouter(&fakeTestimonies{}, &fakeAuth{})

	rec := do(t, h, http.MethodPost, "/moderators/register", `{"email":"mod@example.com","password":"pw"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"m-1","accessToken":"`+validToken+`","email":"mod@example.com"}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/moderators/login", `{"email":"mod@example.com","password":"pw"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), validToken)
}

func TestRegister_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{services.ErrUnauthorized, http.StatusUnauthorized},
		{store.ErrConflict, http.StatusConflict},
		{&types.ValidationError{Fields: []types.FieldError{{Field: "email", Message: "is required"}}}, http.StatusBadRequest},
		{store.ErrUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		h := newTestRouter(&fakeTestimonies{}, &fakeAuth{registerErr: tc.err})
		rec := do(t, h, http.MethodPost, "/moderators/register", `{"email":"mod@example.com","password":"secret-pw"}`, nil)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.NotContains(t, rec.Body.String(), "secret-pw")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	h := newTestRouter(&fakeTestimonies{}, &fakeAuth{loginErr: services.ErrInvalidCredentials})

	rec := do(t, h, http.MethodPost, "/moderators/login", `{"email":"mod@example.com","password":"bad"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", decodeError(t, rec).Error)
}
