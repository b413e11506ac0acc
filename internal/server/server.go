package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/modasir321/coastline-analysis/internal/api"
	"github.com/modasir321/coastline-analysis/internal/api/viewer"
	"github.com/modasir321/coastline-analysis/internal/backend"
	"github.com/modasir321/coastline-analysis/internal/render"
	"github.com/modasir321/coastline-analysis/internal/service"
	"github.com/modasir321/coastline-analysis/internal/templates"
	"github.com/modasir321/coastline-analysis/web"
)

// Config holds the server configuration.
type Config struct {
	Host       string
	Port       string
	BackendURL string
	Mode       string
	MinDate    string
	Timeout    time.Duration
	Tolerance  float64
	Logger     *slog.Logger

	// Backend overrides the HTTP client built from BackendURL.
	Backend service.Backend
}

// Server is the coastline viewer HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	services *api.Services
	renderer *templates.Renderer
	logger   *slog.Logger
}

// New creates a new viewer server.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BackendURL == "" {
		cfg.BackendURL = backend.DefaultBaseURL
	}

	mode, err := service.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	selector, err := service.NewDateRangeSelector(mode, cfg.MinDate)
	if err != nil {
		return nil, err
	}

	renderer, err := templates.New(web.Fragments, web.FragmentsPattern)
	if err != nil {
		return nil, fmt.Errorf("loading fragment templates: %w", err)
	}

	be := cfg.Backend
	if be == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = service.DefaultTimeout
		}
		client := backend.NewClient(cfg.BackendURL,
			backend.WithLogger(cfg.Logger),
			backend.WithHTTPClient(&http.Client{Timeout: timeout}),
		)
		cfg.BackendURL = client.BaseURL()
		be = client
	}

	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("coastline-analysis API", api.Version)
	humaConfig.Info.Description = "Coastal erosion viewer: date-window analysis, study-area upload, change layers and export."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append([]huma.Transformer{api.LinkTransformer()}, humaConfig.Transformers...)

	humaAPI := humago.New(mux, humaConfig)

	store := service.NewStore()
	ccfg := service.ControllerConfig{Timeout: cfg.Timeout, Logger: cfg.Logger}
	services := &api.Services{
		Store:      store,
		Controller: service.NewController(store, be, selector, ccfg),
		Uploads:    service.NewUploadCoordinator(store, be, ccfg),
		Renderer:   render.New(cfg.Tolerance, render.WithLogger(cfg.Logger)),
		BackendURL: cfg.BackendURL,
	}

	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humaAPI,
		services: services,
		renderer: renderer,
		logger:   cfg.Logger,
	}
	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Services exposes the wired services for the CLI.
func (s *Server) Services() *api.Services {
	return s.services
}

// Start kicks off the one-time baseline load in the background.
func (s *Server) Start(ctx context.Context) {
	go func() {
		if err := s.services.Controller.LoadBaseline(ctx); err != nil {
			s.logger.Warn("starting without baseline", "err", err)
		}
	}()
}

// Close waits for background analyses to finish.
func (s *Server) Close() error {
	s.services.Controller.Wait()
	return nil
}

func (s *Server) routes() {
	// Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.services)
	api.NewInfoHandler(s.config.BackendURL, string(s.services.Controller.Selector().Mode)).RegisterRoutes(s.humaAPI)

	// Viewer SSE routes using Huma + Datastar SDK
	viewer.NewEventHandler(s.services.Store, s.renderer).RegisterRoutes(s.humaAPI)
	viewer.NewActionHandler(s.services.Store, s.services.Controller, s.renderer).RegisterRoutes(s.humaAPI)

	s.mux.HandleFunc("/viewer", s.handleViewer)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "coastline-analysis",
		"status":  "running",
	})
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, web.Pages, web.ViewerPage)
}
