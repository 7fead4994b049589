package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mymiscarriage/apiserver/config"
	"github.com/mymiscarriage/apiserver/internal/db"
	"github.com/mymiscarriage/apiserver/internal/events"
	"github.com/mymiscarriage/apiserver/internal/handlers"
	"github.com/mymiscarriage/apiserver/internal/logging"
	"github.com/mymiscarriage/apiserver/internal/mq"
	"github.com/mymiscarriage/apiserver/internal/services"
	"github.com/mymiscarriage/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *db.Handle
	queue      *mq.MQ
	log        logging.Logger
}

// New connects to the database and the optional message queue and
// builds the router.
func New(ctx context.Context, cfg config.Config, log logging.Logger) (*Server, error) {
	handle, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("open message queue: %w", err)
	}

	srv := NewWithHandle(cfg, handle, queue, log)
	return srv, nil
}

// NewWithHandle builds a Server over already opened dependencies.
// queue may be nil.
func NewWithHandle(cfg config.Config, handle *db.Handle, queue *mq.MQ, log logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}

	testimonyRepo := store.NewTestimonyRepository(handle.DB())
	moderatorRepo := store.NewModeratorRepository(handle.DB())
	signupKeyRepo := store.NewSignupKeyRepository(handle.DB())

	publisher := events.NewPublisher(queue, log.With("component", "events"))
	testimonyService := services.NewTestimonyService(testimonyRepo, publisher)
	authService := services.NewAuthService(moderatorRepo, signupKeyRepo, services.AuthOptions{
		SignupGating: cfg.Auth.SignupGating,
		BcryptCost:   cfg.Auth.BcryptCost,
	}, log.With("component", "auth"))

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.RequestLogger(log),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
		handlers.CORS(cfg.CORSOrigins),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Group(func(r chi.Router) {
		r.Use(handlers.RequireReady(handle))
		r.Get("/", handlers.Root)
		r.Route("/testimonies", func(r chi.Router) {
			handlers.TestimonyRouter(r, testimonyService, log)
		})
		r.Route("/moderation", func(r chi.Router) {
			handlers.ModerationRouter(r, testimonyService, handlers.RequireModerator(authService), log)
		})
		r.Route("/moderators", func(r chi.Router) {
			handlers.ModeratorRouter(r, authService, log)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         handle,
		queue:      queue,
		log:        log,
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.log.Info(context.Background(), "server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the queue and the database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.queue != nil {
		if qerr := s.queue.Close(); qerr != nil {
			s.log.Warn(ctx, "close message queue", "error", qerr)
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
