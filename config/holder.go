package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// settleDelay coalesces the burst of events an editor save produces.
const settleDelay = 100 * time.Millisecond

// field is one comparable config setting.
type field struct {
	name       string
	reloadable bool
	value      func(*Config) any
}

var fields = []field{
	{"server.host", false, func(c *Config) any { return c.Server.Host }},
	{"server.port", false, func(c *Config) any { return c.Server.Port }},
	{"server.read_timeout", false, func(c *Config) any { return c.Server.ReadTimeout }},
	{"server.write_timeout", false, func(c *Config) any { return c.Server.WriteTimeout }},
	{"server.request_timeout", false, func(c *Config) any { return c.Server.RequestTimeout }},
	{"database.dsn", false, func(c *Config) any { return c.Database.DSN }},
	{"api.base_path", false, func(c *Config) any { return c.API.BasePath }},
	{"api.per_page", false, func(c *Config) any { return c.API.PerPage }},
	{"api.max_per_page", false, func(c *Config) any { return c.API.MaxPerPage }},
	{"logging.level", true, func(c *Config) any { return c.Logging.Level }},
	{"logging.format", false, func(c *Config) any { return c.Logging.Format }},
	{"metrics", false, func(c *Config) any { return c.Metrics }},
}

// ReloadableFields names the settings a reload applies to a running server.
func ReloadableFields() []string { return fieldNames(true) }

// NonReloadableFields names the settings that only take effect on restart.
func NonReloadableFields() []string { return fieldNames(false) }

func fieldNames(reloadable bool) []string {
	var names []string
	for _, f := range fields {
		if f.reloadable == reloadable {
			names = append(names, f.name)
		}
	}
	return names
}

// Holder keeps the current Config and swaps it when the file changes.
// Get is safe for concurrent use.
type Holder struct {
	current atomic.Pointer[Config]
	path    string
	logger  zerolog.Logger

	reloadMu sync.Mutex // serializes reloads

	mu       sync.Mutex
	onChange []func(*Config)
	onError  []func(error)

	done     chan struct{}
	stopOnce sync.Once
}

// NewHolder loads path and returns a Holder for it.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	cfg, err := Load(abs)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	h := &Holder{
		path:   abs,
		logger: logger.With().Str("component", "config").Logger(),
		done:   make(chan struct{}),
	}
	h.current.Store(cfg)
	return h, nil
}

// Get returns the current configuration. Callers must not modify it.
func (h *Holder) Get() *Config {
	return h.current.Load()
}

// OnChange registers fn to run after every successful reload.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	h.onChange = append(h.onChange, fn)
	h.mu.Unlock()
}

// OnError registers fn to run when a reload fails.
func (h *Holder) OnError(fn func(error)) {
	h.mu.Lock()
	h.onError = append(h.onError, fn)
	h.mu.Unlock()
}

// Reload reads the file again. On failure the current config stays in place.
func (h *Holder) Reload() error {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	next, err := Load(h.path)
	if err != nil {
		err = fmt.Errorf("reload config: %w", err)
		h.logger.Error().Err(err).Msg("keeping previous configuration")
		for _, fn := range h.listeners().onError {
			fn(err)
		}
		return err
	}

	prev := h.current.Swap(next)
	for _, f := range fields {
		before, after := f.value(prev), f.value(next)
		if before == after {
			continue
		}
		ev := h.logger.Info()
		if !f.reloadable {
			ev = h.logger.Warn()
		}
		ev.Str("field", f.name).
			Interface("old", before).
			Interface("new", after).
			Bool("restart_required", !f.reloadable).
			Msg("configuration changed")
	}

	for _, fn := range h.listeners().onChange {
		fn(next)
	}
	return nil
}

type callbacks struct {
	onChange []func(*Config)
	onError  []func(error)
}

func (h *Holder) listeners() callbacks {
	h.mu.Lock()
	defer h.mu.Unlock()
	return callbacks{onChange: h.onChange, onError: h.onError}
}

// WatchFile reloads whenever the file is written or replaced. The parent
// directory is watched so that rename-on-save editors are noticed too.
func (h *Holder) WatchFile() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(h.path), err)
	}

	go h.watch(w)
	h.logger.Info().Str("path", h.path).Msg("watching configuration file")
	return nil
}

func (h *Holder) watch(w *fsnotify.Watcher) {
	defer w.Close()

	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != h.path || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(settleDelay, func() { _ = h.Reload() })

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("watcher failed")

		case <-h.done:
			return
		}
	}
}

// WatchSignals reloads on SIGHUP.
func (h *Holder) WatchSignals() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sig)
		for {
			select {
			case <-sig:
				h.logger.Info().Msg("SIGHUP received")
				_ = h.Reload()
			case <-h.done:
				return
			}
		}
	}()
}

// Stop ends file and signal watching. It is safe to call more than once.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}
