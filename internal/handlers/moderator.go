package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mymiscarriage/apiserver/internal/logging"
	"github.com/mymiscarriage/apiserver/types"
)

// ModeratorAuth is what the moderator account routes need.
type ModeratorAuth interface {
	Register(ctx context.Context, email, password, key string) (types.Credentials, error)
	Login(ctx context.Context, email, password string) (types.Credentials, error)
}

// ModeratorHandler serves moderator registration and login.
type ModeratorHandler struct {
	auth ModeratorAuth
	log  logging.Logger
}

func NewModeratorHandler(auth ModeratorAuth, log logging.Logger) *ModeratorHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &ModeratorHandler{auth: auth, log: log}
}

// ModeratorRouter registers moderator account routes on the given router.
func ModeratorRouter(r chi.Router, auth ModeratorAuth, log logging.Logger) {
	handler := NewModeratorHandler(auth, log)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Key      string `json:"key"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *ModeratorHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	creds, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Key)
	if err != nil {
		writeServiceError(w, r, h.log, err, "signup key not found")
		return
	}

	writeJSON(w, http.StatusCreated, creds)
}

// Login returns the moderator's long-lived token. It answers 201 like
// Register so clients can treat both the same way.
func (h *ModeratorHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	creds, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.log, err, "invalid credentials")
		return
	}

	writeJSON(w, http.StatusCreated, creds)
}
