// Package server serves the live view over HTTP: the dashboard and settings
// pages, a JSON API and WebSocket chart sessions.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/rewired-gh/btcview/internal/config"
	"github.com/rewired-gh/btcview/internal/dashboard"
	"github.com/rewired-gh/btcview/internal/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

// errRateLimited is returned when test notifications are requested too often.
var errRateLimited = errors.New("too many test notifications, try again later")

// Server is the dashboard HTTP server.
type Server struct {
	router    chi.Router
	cfg       config.ServerConfig
	view      *dashboard.View
	templates *template.Template
	notify    *rate.Limiter
	now       func() time.Time
}

// New creates a server for view.
func New(view *dashboard.View, cfg config.ServerConfig) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	every := cfg.TestNotifyEvery
	if every <= 0 {
		every = 10 * time.Second
	}
	s := &Server{
		cfg:       cfg,
		view:      view,
		templates: tmpl,
		notify:    rate.NewLimiter(rate.Every(every), 1),
		now:       time.Now,
	}
	s.router = s.buildRouter()
	return s, nil
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe serves on the configured address until ctx ends, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening on %s", s.cfg.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server...")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := []string{"*"}
	if len(s.cfg.CORSOrigins) > 0 {
		origins = s.cfg.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Get("/", s.handleDashboard)
	r.Get("/panel", s.handlePanel)
	r.Get("/settings", s.handleSettingsPage)
	r.Post("/settings", s.handleSettingsForm)
	r.Post("/notify-test", s.handleNotifyTestForm)

	r.Route("/api/view", func(r chi.Router) {
		r.Get("/", s.handleView)
		r.Post("/settings", s.handleUpdateSettings)
		r.Post("/notify-test", s.handleNotifyTest)
	})

	r.Get("/ws", s.handleWebSocket)

	return r
}

// requestLogger logs each request through the application logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("%s %s -> %d (%d bytes, %s) [%s]",
			r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start),
			middleware.GetReqID(r.Context()))
	})
}

// sendTestNotification applies the rate limit before asking the backend.
func (s *Server) sendTestNotification(ctx context.Context) error {
	if !s.notify.Allow() {
		return errRateLimited
	}
	return s.view.Controller().SendTestNotification(ctx)
}

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
