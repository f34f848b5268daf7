package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/savegress/amldesk/internal/config"
	"github.com/savegress/amldesk/pkg/models"
)

// Server represents the API server
type Server struct {
	config   *config.Config
	router   chi.Router
	handlers *Handlers
	hub      *Hub
	logger   *zap.Logger
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		handlers: NewHandlers(deps, cfg.Ledger.CommentPageSize, cfg.Ledger.ReportComments, logger),
		hub:      deps.Hub,
		logger:   logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) authenticator() func(http.Handler) http.Handler {
	if s.config.Server.JWTSecret == "" {
		s.logger.Warn("no JWT secret configured, trusting X-User-* headers")
		return DevIdentity
	}
	return AuthMiddleware(s.config.Server.JWTSecret)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handlers.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1/amldesk", func(r chi.Router) {
		r.Use(s.authenticator())

		// Clients
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", s.handlers.ListClients)
			r.With(RequireRole(models.RoleAdmin)).Post("/", s.handlers.IngestClients)
			r.Get("/export.csv", s.handlers.ExportCSV)
			r.Get("/{id}", s.handlers.GetClient)
			r.Get("/{id}/comments", s.handlers.ListComments)
			r.Post("/{id}/actions/{action}", s.handlers.RecordAction)
			r.Get("/{id}/report", s.handlers.GetReport)
			r.Get("/{id}/report.txt", s.handlers.GetReportText)
		})

		// Dashboard
		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/", s.handlers.GetDashboard)
			r.Post("/refresh", s.handlers.RefreshDashboard)
			if s.hub != nil {
				r.Get("/ws", s.hub.ServeWS)
			}
		})

		// Audit
		r.Get("/audit", s.handlers.ListAudit)
	})
}

// Router returns the chi router
func (s *Server) Router() http.Handler {
	return s.router
}
