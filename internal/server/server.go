package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meltforce/trainlog/internal/training"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	sessions *training.Manager
	tracker  *training.Tracker
	reports  *training.Aggregator
	auth     []func(http.Handler) http.Handler
	log      *slog.Logger
	router   chi.Router
}

// New creates a new Server with all routes configured. The auth middlewares
// run in order in front of every API route and must leave a user id in the
// request context.
func New(sessions *training.Manager, tracker *training.Tracker, reports *training.Aggregator, log *slog.Logger, auth ...func(http.Handler) http.Handler) *Server {
	s := &Server{
		sessions: sessions,
		tracker:  tracker,
		reports:  reports,
		auth:     auth,
		log:      log,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth...)

		r.Get("/me", s.handleMe)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleStartSession)
			r.Get("/", s.handleListSessions)
			r.Get("/active", s.handleActiveSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Post("/pause", s.handlePauseSession)
				r.Post("/resume", s.handleResumeSession)
				r.Post("/cancel", s.handleCancelSession)
				r.Post("/complete", s.handleCompleteSession)
			})
		})

		r.Patch("/sets/{id}", s.handleRecordSet)

		r.Get("/summary/weekly", s.handleWeeklySummary)
		r.Get("/summary/monthly", s.handleMonthlySummary)
	})
}

// SetMCP mounts an MCP transport handler at /mcp behind the same auth as the API.
func (s *Server) SetMCP(h http.Handler) {
	s.router.Group(func(r chi.Router) {
		r.Use(s.auth...)
		r.Handle("/mcp", h)
	})
}
