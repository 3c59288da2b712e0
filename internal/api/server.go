// Package api serves the browser view: one document session and question
// history per visitor, rendered as an HTML page with a JSON mirror.
package api

import (
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dgallion1/insurspeak/internal/config"
	"github.com/dgallion1/insurspeak/internal/service"
	"github.com/dgallion1/insurspeak/internal/session"
)

// Backend is the term extraction and question answering service.
type Backend interface {
	session.Ingestor
	session.Answerer
	Stats() map[string]service.CallStats
}

// Server is the HTTP server for the browser view.
type Server struct {
	router   chi.Router
	backend  Backend
	sessions *sessionRegistry
	page     *template.Template
	log      *zap.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(backend Backend, log *zap.Logger, cfg config.Config) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		backend: backend,
		page:    pageTemplate,
		log:     log.With(zap.String("component", "api")),
		cfg:     cfg,
	}
	s.sessions = newSessionRegistry(cfg.SessionTTL, s.newViewSession, s.log)
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.withSession)

		r.Get("/", s.handlePage)

		r.Post("/document", s.handleSubmitDocument)
		r.Post("/document/reset", s.handleResetDocument)
		r.Post("/category", s.handleSetCategory)

		r.Post("/terms/dismiss", s.handleDismissTerm)
		r.Post("/terms/{start}-{end}", s.handleActivateTerm)

		r.Post("/questions", s.handleAskQuestion)
		r.Post("/questions/clear", s.handleClearQuestions)

		r.Get("/api/state", s.handleState)
	})
	r.Get("/api/stats", s.handleStats)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
