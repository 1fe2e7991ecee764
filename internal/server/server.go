package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/studyplanner/planner/config"
	"github.com/studyplanner/planner/internal/db"
	"github.com/studyplanner/planner/internal/handlers"
	"github.com/studyplanner/planner/internal/logging"
	"github.com/studyplanner/planner/internal/metrics"
	"github.com/studyplanner/planner/internal/mq"
	"github.com/studyplanner/planner/internal/services"
	"github.com/studyplanner/planner/internal/session"
	"github.com/studyplanner/planner/internal/storage"
	"github.com/studyplanner/planner/internal/store"
	"github.com/studyplanner/planner/internal/timetable"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	bus        *mq.MQ
	revoker    *session.RedisRevoker
	log        logrus.FieldLogger
}

// Deps holds the collaborators the router is built from.
type Deps struct {
	Users     services.UserRepository
	Notes     services.NoteRepository
	Events    services.EventRepository
	Fetcher   services.TimetableFetcher
	Sessions  *session.Manager
	Snapshots *storage.Storage
	Bus       *mq.MQ
	Metrics   *metrics.Metrics
	Log       logrus.FieldLogger
}

// New connects every configured backend and builds the router.
func New(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*Server, error) {
	if cfg.Session.Secret == "" {
		return nil, errors.New("SESSION_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	srv := &Server{db: dbConn, log: log}
	fail := func(err error) (*Server, error) {
		srv.closeBackends()
		return nil, err
	}

	var revoker session.Revoker = session.NewMemoryRevoker()
	if cfg.Redis.URL != "" {
		redisRevoker, err := session.NewRedisRevokerFromURL(ctx, cfg.Redis.URL)
		if err != nil {
			return fail(err)
		}
		srv.revoker = redisRevoker
		revoker = redisRevoker
	}

	var snapshots *storage.Storage
	if cfg.Timetable.Snapshots {
		snapshots, err = storage.Open(ctx, cfg.Storage)
		if err != nil {
			return fail(err)
		}
	}

	bus, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		return fail(err)
	}
	srv.bus = bus

	fetcher := timetable.NewFetcher(timetable.FetcherConfig{
		URL:       cfg.Timetable.URL,
		UserAgent: cfg.Timetable.UserAgent,
		Timeout:   cfg.Timetable.Timeout,
	}, nil)

	location, err := time.LoadLocation(cfg.Timetable.Timezone)
	if err != nil {
		return fail(fmt.Errorf("invalid TIMETABLE_TIMEZONE: %w", err))
	}

	router := NewRouter(cfg, location, Deps{
		Users:     store.NewUserRepository(dbConn),
		Notes:     store.NewNoteRepository(dbConn),
		Events:    store.NewEventRepository(dbConn),
		Fetcher:   fetcher,
		Sessions:  session.NewManager(cfg.Session.Secret, cfg.Session.TTL, revoker),
		Snapshots: snapshots,
		Bus:       bus,
		Metrics:   metrics.New(),
		Log:       log,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	srv.router = router
	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

// NewRouter wires services and handlers onto a chi router.
func NewRouter(cfg config.Config, location *time.Location, deps Deps) *chi.Mux {
	importCfg := services.ImportConfig{
		Location:    location,
		Deduplicate: cfg.Timetable.Deduplicate,
	}
	userService := services.NewUserService(deps.Users)
	if deps.Snapshots != nil {
		importCfg.Snapshots = deps.Snapshots
		userService.WithSnapshotPurger(deps.Snapshots, deps.Log)
	}
	if deps.Bus != nil {
		importCfg.Publisher = deps.Bus
		importCfg.Channel = cfg.MQ.Channel
	}

	noteService := services.NewNoteService(deps.Notes, deps.Log, deps.Metrics)
	eventService := services.NewEventService(deps.Events)
	importService := services.NewImportService(deps.Fetcher, deps.Events, importCfg, deps.Log, deps.Metrics)

	auth := handlers.NewAuthHandler(userService, deps.Sessions, handlers.CookieConfig{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.CookieSecure,
	}, deps.Log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		deps.Metrics.Middleware,
		logging.Middleware(deps.Log),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, auth)
	})
	router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Route("/account", func(r chi.Router) {
			handlers.AccountRouter(r, auth)
		})
		r.Route("/notes", func(r chi.Router) {
			handlers.NoteRouter(r, handlers.NewNoteHandler(noteService, deps.Log))
		})
		r.Route("/events", func(r chi.Router) {
			handlers.EventRouter(r, handlers.NewEventHandler(eventService, deps.Log))
		})
		r.Route("/timetable", func(r chi.Router) {
			handlers.TimetableRouter(r, handlers.NewTimetableHandler(importService, location, deps.Log))
		})
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.httpServer.Addr).Info("http server listening")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.closeBackends()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests and closes backends.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)
	s.closeBackends()
	return err
}

func (s *Server) closeBackends() {
	if s.bus != nil {
		_ = s.bus.Close()
	}
	if s.revoker != nil {
		_ = s.revoker.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
