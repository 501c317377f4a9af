// Package server provides the HTTP server and routing for the auto-invest
// core.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/bluum-finance/autoinvest/internal/config"
	"github.com/bluum-finance/autoinvest/internal/database"
	"github.com/bluum-finance/autoinvest/internal/modules/accounts"
	accountshandlers "github.com/bluum-finance/autoinvest/internal/modules/accounts/handlers"
	"github.com/bluum-finance/autoinvest/internal/modules/lifeevents"
	lifeeventshandlers "github.com/bluum-finance/autoinvest/internal/modules/lifeevents/handlers"
	"github.com/bluum-finance/autoinvest/internal/modules/policy"
	policyhandlers "github.com/bluum-finance/autoinvest/internal/modules/policy/handlers"
	"github.com/bluum-finance/autoinvest/internal/modules/schedules"
	scheduleshandlers "github.com/bluum-finance/autoinvest/internal/modules/schedules/handlers"
	"github.com/bluum-finance/autoinvest/internal/orchestrator"
)

// Config holds server configuration
type Config struct {
	Log          zerolog.Logger
	CoreDB       *database.DB
	Config       *config.Config
	Orchestrator *orchestrator.Orchestrator
	ScheduleRepo *schedules.Repository
	PolicyRepo   *policy.Repository
	EventRepo    *lifeevents.Repository
	AccountRepo  *accounts.Repository
	Port         int
	DevMode      bool
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	coreDB         *database.DB
	cfg            *config.Config
	orch           *orchestrator.Orchestrator
	scheduleRepo   *schedules.Repository
	policyRepo     *policy.Repository
	eventRepo      *lifeevents.Repository
	accountRepo    *accounts.Repository
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		coreDB:         cfg.CoreDB,
		cfg:            cfg.Config,
		orch:           cfg.Orchestrator,
		scheduleRepo:   cfg.ScheduleRepo,
		policyRepo:     cfg.PolicyRepo,
		eventRepo:      cfg.EventRepo,
		accountRepo:    cfg.AccountRepo,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.Config.DataDir, cfg.CoreDB),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
		})

		scheduleHandler := scheduleshandlers.NewHandler(s.scheduleRepo, s.orch, s.log)
		scheduleHandler.RegisterRoutes(r)

		policyHandler := policyhandlers.NewHandler(s.policyRepo, s.orch, s.log)
		policyHandler.RegisterRoutes(r)

		lifeEventHandler := lifeeventshandlers.NewHandler(s.eventRepo, s.orch, s.log)
		lifeEventHandler.RegisterRoutes(r)

		fundingHandler := accountshandlers.NewHandler(s.accountRepo, s.orch, s.log)
		fundingHandler.RegisterRoutes(r)
	})
}

// handleHealth is the liveness probe: a trivial database round trip plus a
// static body.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := `{"status":"ok"}`
	if err := s.coreDB.Conn().PingContext(ctx); err != nil {
		s.log.Error().Err(err).Msg("Health check database ping failed")
		status = http.StatusServiceUnavailable
		body = `{"status":"degraded"}`
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the chi router. Used by tests to drive requests without a
// listening socket.
func (s *Server) Router() http.Handler {
	return s.router
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
