// Package bootstrap wires all dependencies and starts the application.
// Configuration comes from a YAML file with APISTUB_* environment overrides;
// see the config package.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vitalk/apistub/adapters/metrics"
	"github.com/vitalk/apistub/config"
	apihttp "github.com/vitalk/apistub/core/channel/http"
	"github.com/vitalk/apistub/core/resource"
	"github.com/vitalk/apistub/core/storage"
	"github.com/vitalk/apistub/domain/music"
)

// App represents the running application.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	DB       *storage.DB
	API      *apihttp.API
	Metrics  *metrics.Collector
	Registry *prometheus.Registry

	holder *config.Holder
}

// Option customizes application initialization.
type Option func(*options)

type options struct {
	logOutput io.Writer
	holder    *config.Holder
}

// WithLogOutput sends logs to w instead of stdout.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) {
		o.logOutput = w
	}
}

// WithHolder hot-reloads the reloadable settings from h.
func WithHolder(h *config.Holder) Option {
	return func(o *options) {
		o.holder = h
	}
}

// New creates and initializes the application from cfg.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := options{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	logger := NewLogger(cfg.Logging, o.logOutput)
	logger.Info().Msg("initializing apistub")

	a := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := a.initDatabase(); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	// Initialize metrics if enabled
	if cfg.Metrics.Enabled {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = metrics.New(a.Registry)
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	a.initAPI()

	if o.holder != nil {
		a.watch(o.holder)
	}

	return a, nil
}

func (a *App) initDatabase() error {
	dsn := a.Config.Database.DSN

	db, err := storage.Open(dsn)
	if err != nil {
		return err
	}

	if err := music.Migrate(context.Background(), db); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	a.DB = db
	a.Logger.Info().Str("dsn", dsn).Msg("database ready")
	return nil
}

func (a *App) initAPI() {
	cfg := a.Config

	apiCfg := apihttp.Config{
		Addr:           cfg.Server.Addr(),
		BasePath:       cfg.API.BasePath,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
		MetricsPath:    cfg.Metrics.Path,
	}
	if a.Metrics != nil {
		apiCfg.Metrics = a.Metrics
		apiCfg.MetricsHandler = promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
	}

	a.API = apihttp.New(a.DB, a.Logger, apiCfg)

	routes := resource.RegisterAll(a.API, music.Resources(music.Settings{
		PerPage:    cfg.API.PerPage,
		MaxPerPage: cfg.API.MaxPerPage,
		Logger:     a.Logger,
	})...)

	a.Logger.Info().
		Int("routes", len(routes)).
		Str("base_path", cfg.API.BasePath).
		Msg("resources registered")
}

// watch applies reloaded configuration. Only the log level takes effect
// without a restart; the holder warns about the rest.
func (a *App) watch(h *config.Holder) {
	a.holder = h

	h.OnChange(func(cfg *config.Config) {
		if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
		if a.Metrics != nil {
			a.Metrics.ObserveReload(nil)
		}
	})

	h.OnError(func(err error) {
		if a.Metrics != nil {
			a.Metrics.ObserveReload(err)
		}
	})
}

// Start starts serving HTTP requests in the background.
func (a *App) Start(ctx context.Context) error {
	if err := a.API.Start(ctx); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	return nil
}

// Run starts the server and blocks until ctx is done or the process
// receives SIGINT or SIGTERM, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	a.Logger.Info().Msg("shutting down")

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	timeout := a.Config.Server.ShutdownTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if a.holder != nil {
		a.holder.Stop()
	}

	// Shutdown HTTP server
	if a.API != nil {
		if err := a.API.Stop(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	// Close database
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// NewLogger builds the application logger and sets the global level.
func NewLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(out).With().Timestamp().Logger()
}

// Migrate creates the tables of every registered record type.
func Migrate(ctx context.Context, cfg *config.Config) error {
	db, err := storage.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	return music.Migrate(ctx, db)
}
