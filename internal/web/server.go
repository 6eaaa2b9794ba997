// Package web serves the upload page, the JSON API and the generated charts.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/KaramelBytes/edaloom/internal/analysis"
	"github.com/KaramelBytes/edaloom/internal/artifacts"
	"github.com/KaramelBytes/edaloom/internal/config"
	"github.com/KaramelBytes/edaloom/internal/eda"
	"github.com/KaramelBytes/edaloom/internal/plot"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server wires the analysis pipeline to HTTP.
type Server struct {
	cfg     *config.Global
	store   *artifacts.Store
	agent   *eda.Agent
	load    analysis.Options
	tmpl    *template.Template
	metrics *Metrics
	logger  *zap.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithPlotter replaces the default go-chart renderer.
func WithPlotter(p eda.Plotter) Option {
	return func(s *Server) {
		s.agent = eda.NewAgent(p, edaOptions(s.cfg), s.logger)
	}
}

func edaOptions(cfg *config.Global) eda.Options {
	return eda.Options{
		BinaryMaxDistinct:      cfg.BinaryMaxDistinct,
		CategoricalMaxDistinct: cfg.CategoricalMaxDistinct,
	}
}

// New builds a server from configuration. A nil logger disables logging.
func New(cfg *config.Global, logger *zap.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store, err := artifacts.NewStore(cfg.PlotDir, cfg.KeepReports)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	load := analysis.DefaultOptions()
	load.MaxRows = cfg.MaxRows

	s := &Server{
		cfg:    cfg,
		store:  store,
		load:   load,
		tmpl:   tmpl,
		logger: logger,
	}
	s.agent = eda.NewAgent(plot.New(), edaOptions(cfg), logger)
	if cfg.MetricsEnabled {
		s.metrics = NewMetrics("edaloom")
	}
	for _, o := range opts {
		o(s)
	}
	logger.Debug("report store ready",
		zap.String("plot_dir", store.Root()),
		zap.Int("keep_reports", cfg.KeepReports),
		zap.Bool("metrics", s.metrics != nil),
	)
	return s, nil
}

// Metrics returns the collectors, or nil when metrics are disabled.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Routes configures all routes and middleware.
func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(accessLog(s.logger))
	router.Use(chimiddleware.Recoverer)
	if s.metrics != nil {
		router.Use(s.metrics.Middleware)
	}

	router.Get("/", s.handleIndex)
	router.Post("/", s.handleUpload)
	router.Get("/plots/{reportID}/{name}", s.handlePlot)
	router.Get("/health", s.handleHealth)
	if s.metrics != nil {
		router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		if len(s.cfg.CORSOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: s.cfg.CORSOrigins,
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
				ExposedHeaders: []string{"X-Request-ID"},
				MaxAge:         300,
			}))
		}
		r.Post("/analyze", s.handleAnalyze)
	})
	return router
}
