package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jvidalg/albasort/internal/config"
	"github.com/jvidalg/albasort/internal/extract"
	"github.com/jvidalg/albasort/internal/pipeline"
	"github.com/jvidalg/albasort/internal/rules"
)

// Server is the HTTP API server for albasort.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	rules        *rules.Store
	extractor    *extract.Extractor
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, rs *rules.Store, ext *extract.Extractor, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		rules:        rs,
		extractor:    ext,
		log:          log,
		cfg:          cfg,
	}
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

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/batches", s.handleCreateBatch)
		r.Get("/api/batches/{jobID}", s.handleBatchStatus)

		r.Get("/api/rules", s.handleListRules)
		r.Get("/api/rules/{key}", s.handleGetRule)
		r.Put("/api/rules/{key}", s.handlePutRule)
		r.Delete("/api/rules/{key}", s.handleDeleteRule)

		r.Get("/api/stats/ocr", s.handleOCRStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
