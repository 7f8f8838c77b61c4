// Package http serves registered resources over HTTP.
// It owns the chi router, the request middleware stack, per-request
// persistence sessions, and the health and metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vitalk/apistub/adapters/metrics"
	"github.com/vitalk/apistub/core/storage"
)

// Config holds optional configuration for the API.
type Config struct {
	Addr           string // Listen address for Start
	BasePath       string // Prefix of every resource route, e.g. /api
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration // Per-request deadline (default: 60s)
	Metrics        *metrics.Collector
	MetricsPath    string       // Default: /metrics
	MetricsHandler http.Handler // Optional exporter handler, promhttp.Handler() otherwise
}

// Route describes a registered resource endpoint.
type Route struct {
	Rule    string   `json:"rule"`
	Name    string   `json:"name"`
	Methods []string `json:"methods,omitempty"`
}

// methodLister is implemented by handlers that know their allowed verbs.
type methodLister interface {
	Methods() []string
}

// API is the HTTP front of the resource layer.
type API struct {
	router    chi.Router
	resources chi.Router
	db        *storage.DB
	logger    zerolog.Logger
	cfg       Config

	mu     sync.RWMutex
	routes map[string]Route

	server     *http.Server
	listenAddr string
}

// New creates an API serving sessions on db.
func New(db *storage.DB, logger zerolog.Logger, cfg Config) *API {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	a := &API{
		router: chi.NewRouter(),
		db:     db,
		logger: logger,
		cfg:    cfg,
		routes: make(map[string]Route),
	}

	r := a.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger, cfg.MetricsPath))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics, cfg.MetricsPath))
	}

	// Health endpoints
	r.Get("/health", a.liveness)
	r.Get("/health/live", a.liveness)
	r.Get("/health/ready", a.readiness)

	// Metrics endpoint (prefer exporter handler, fall back to promhttp)
	if cfg.MetricsHandler != nil {
		r.Handle(cfg.MetricsPath, cfg.MetricsHandler)
	} else if cfg.Metrics != nil {
		r.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	a.resources = r.With(a.sessionMiddleware)

	return a
}

// Handler returns the HTTP handler.
func (a *API) Handler() http.Handler {
	return a.router
}

// BasePath returns the prefix applied to resource routes.
func (a *API) BasePath() string {
	return a.cfg.BasePath
}

// AddRoute mounts h at the base path joined with rule.
// Every method is forwarded to h, which answers unsupported ones itself.
// Registering a name twice panics.
func (a *API) AddRoute(rule, name string, h http.Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.routes[name]; exists {
		panic(fmt.Sprintf("http: route name %q already registered", name))
	}

	full := a.cfg.BasePath + rule
	a.resources.Handle(full, h)
	route := Route{Rule: full, Name: name}
	if ml, ok := h.(methodLister); ok {
		route.Methods = ml.Methods()
	}
	a.routes[name] = route

	a.logger.Debug().
		Str("rule", full).
		Str("name", name).
		Msg("route registered")
}

// Routes returns the registered resource routes sorted by rule.
func (a *API) Routes() []Route {
	a.mu.RLock()
	defer a.mu.RUnlock()

	routes := make([]Route, 0, len(a.routes))
	for _, r := range a.routes {
		routes = append(routes, r)
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Rule == routes[j].Rule {
			return routes[i].Name < routes[j].Name
		}
		return routes[i].Rule < routes[j].Rule
	})
	return routes
}

// Start binds the listen address and serves in the background.
func (a *API) Start(ctx context.Context) error {
	// Only start if addr is set (standalone mode)
	if a.cfg.Addr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Addr, err)
	}

	a.server = &http.Server{
		Handler:      a.router,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}
	a.listenAddr = ln.Addr().String()

	go func() {
		a.logger.Info().Str("addr", a.listenAddr).Msg("http server listening")
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("http server error")
		}
	}()

	return nil
}

// Addr returns the address the server listens on, empty before Start.
func (a *API) Addr() string {
	return a.listenAddr
}

// Stop gracefully stops the HTTP server.
func (a *API) Stop(ctx context.Context) error {
	if a.server != nil {
		return a.server.Shutdown(ctx)
	}
	return nil
}

// sessionMiddleware attaches a fresh persistence session to every
// resource request and discards its uncommitted writes afterwards.
func (a *API) sessionMiddleware(next http.Handler) http.Handler {
	var opts []storage.SessionOption
	if a.cfg.Metrics != nil {
		opts = append(opts, storage.WithObserver(a.cfg.Metrics.ObserveWrite))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := a.db.NewSession(opts...)
		defer func() {
			if err := sess.Close(); err != nil {
				a.logger.Error().
					Err(err).
					Str("request_id", middleware.GetReqID(r.Context())).
					Msg("close session")
			}
		}()

		next.ServeHTTP(w, r.WithContext(storage.WithSession(r.Context(), sess)))
	})
}

func (a *API) liveness(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := a.db.PingContext(ctx); err != nil {
		writeStatus(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeStatus(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
