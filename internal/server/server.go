package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/kartoza/stunting-predictor/internal/api"
	"github.com/kartoza/stunting-predictor/internal/config"
	"github.com/kartoza/stunting-predictor/internal/i18n"
	"github.com/kartoza/stunting-predictor/internal/predictor"
	"go.uber.org/zap"
)

//go:embed static/*
var staticFS embed.FS

//go:embed templates/*.html
var templateFS embed.FS

// Server holds all the components for the web application
type Server struct {
	cfg        config.Config
	httpServer *http.Server
	router     *mux.Router
	pred       *predictor.Predictor
	bundle     *i18n.Bundle
	page       *template.Template
	logger     *zap.Logger
}

// New creates a new Server with all components initialized
func New(cfg config.Config, pred *predictor.Predictor, logger *zap.Logger) (*Server, error) {
	if pred == nil {
		return nil, fmt.Errorf("predictor is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bundle, err := i18n.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load translations: %w", err)
	}

	page, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		pred:   pred,
		bundle: bundle,
		page:   page,
		logger: logger,
	}

	if err := s.setupRoutes(); err != nil {
		return nil, err
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() error {
	s.router.Use(recoveryMiddleware(s.logger), loggingMiddleware(s.logger))

	// API routes
	apiRouter := s.router.PathPrefix("/api").Subrouter()
	apiHandler := api.NewHandler(s.pred, s.cfg, s.logger)
	apiHandler.RegisterRoutes(apiRouter)

	// Static frontend files (embedded)
	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		return fmt.Errorf("failed to load embedded static files: %w", err)
	}
	fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticContent)))
	s.router.PathPrefix("/static/").Handler(fileServer).Methods("GET")

	// The form page
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.HandleFunc("/", s.handleSubmit).Methods("POST")

	return nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP connections
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("server listening", zap.String("url", fmt.Sprintf("http://localhost:%d", s.cfg.Server.Port)))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}
