// Package server exposes the lead funnel and admin API over HTTP.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/fleetaudit/internal/config"
	"github.com/sells-group/fleetaudit/internal/model"
	"github.com/sells-group/fleetaudit/internal/store"
	"github.com/sells-group/fleetaudit/pkg/fmcsa"
)

// Dispatcher enqueues accepted leads for background fulfillment.
type Dispatcher interface {
	Enqueue(lead *model.Lead) error
}

// Server bundles the API handlers and their dependencies.
type Server struct {
	cfg        config.ServerConfig
	store      store.Store
	carriers   fmcsa.Client
	dispatcher Dispatcher
	limiter    *ipRateLimiter
}

// New creates a Server.
func New(cfg config.ServerConfig, st store.Store, carriers fmcsa.Client, dispatcher Dispatcher) *Server {
	rate := cfg.RatePerMinute
	if rate <= 0 {
		rate = 5
	}
	return &Server{
		cfg:        cfg,
		store:      st,
		carriers:   carriers,
		dispatcher: dispatcher,
		limiter:    newIPRateLimiter(rate),
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Admin-Token"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/leads", func(r chi.Router) {
			r.With(s.rateLimit).Get("/audit/preview/{dotNumber}", s.handleAuditPreview)
			r.With(s.rateLimit).Post("/", s.handleCreateLead)
			r.With(s.adminOnly).Get("/", s.handleListLeads)
		})
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Get("/export", s.handleExport)
			r.Post("/import", s.handleImport)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
