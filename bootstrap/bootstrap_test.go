package bootstrap_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/vitalk/apistub/bootstrap"
	"github.com/vitalk/apistub/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apistub.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func loadConfig(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := config.Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	cfg := loadConfig(t, `
database:
  dsn: "`+dsn+`"
api:
  base_path: /api
logging:
  level: warn
`)
	// Pick a free port
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	return cfg
}

func newApp(t *testing.T, cfg *config.Config, opts ...bootstrap.Option) *bootstrap.App {
	t.Helper()

	opts = append([]bootstrap.Option{bootstrap.WithLogOutput(io.Discard)}, opts...)
	app, err := bootstrap.New(cfg, opts...)
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	t.Cleanup(func() {
		app.Shutdown()
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	})
	return app
}

func TestNew(t *testing.T) {
	app := newApp(t, testConfig(t))

	if app.DB == nil {
		t.Error("DB should not be nil")
	}
	if app.API == nil {
		t.Fatal("API should not be nil")
	}
	if app.Metrics == nil || app.Registry == nil {
		t.Error("metrics should be enabled by default")
	}

	var rules []string
	for _, r := range app.API.Routes() {
		rules = append(rules, r.Rule)
	}
	want := []string{
		"/api/albums",
		"/api/albums/{pk:[0-9]+}",
		"/api/artists",
		"/api/artists/{pk:[0-9]+}",
		"/api/artists/{pk:[0-9]+}/albums",
	}
	if strings.Join(rules, " ") != strings.Join(want, " ") {
		t.Errorf("routes = %v, want %v", rules, want)
	}

	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Errorf("global level = %v, want warn", zerolog.GlobalLevel())
	}
}

func TestNew_OpenDatabaseFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.DSN = filepath.Join(t.TempDir(), "missing", "dir", "test.db")

	if _, err := bootstrap.New(cfg, bootstrap.WithLogOutput(io.Discard)); err == nil {
		t.Error("New should fail when the database cannot be opened")
	}
}

func TestApp_ServesResources(t *testing.T) {
	app := newApp(t, testConfig(t))

	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	base := "http://" + app.API.Addr()

	resp, err := http.Post(base+"/api/artists", "application/json", strings.NewReader(`{"name":"Artist A"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var created map[string]any
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if created["name"] != "Artist A" {
		t.Errorf("name = %v, want Artist A", created["name"])
	}

	resp, err = http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if !strings.Contains(string(body), `apistub_records_written_total{op="insert",table="artists"} 1`) {
		t.Errorf("metrics missing records written:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("metrics missing runtime collectors")
	}
}

func TestApp_PersistsAcrossRestarts(t *testing.T) {
	cfg := testConfig(t)

	first := newApp(t, cfg)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	resp, err := http.Post("http://"+first.API.Addr()+"/api/artists", "application/json", strings.NewReader(`{"name":"Kept"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if err := first.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	second := newApp(t, cfg)
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	resp, err = http.Get("http://" + second.API.Addr() + "/api/artists/1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestNew_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false

	app := newApp(t, cfg)
	if app.Metrics != nil || app.Registry != nil {
		t.Error("metrics should be disabled")
	}
	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	resp, err := http.Get("http://" + app.API.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRun_StopsWhenContextDone(t *testing.T) {
	app := newApp(t, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestHolder_ReloadsLogLevel(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "test.db")
	content := func(level string) string {
		return "database:\n  dsn: \"" + dsn + "\"\nlogging:\n  level: " + level + "\n"
	}
	path := writeConfig(t, content("info"))

	holder, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	app := newApp(t, holder.Get(), bootstrap.WithHolder(holder))

	if err := os.WriteFile(path, []byte(content("debug")), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := holder.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("global level = %v, want debug", zerolog.GlobalLevel())
	}
	if got := testutil.ToFloat64(app.Metrics.ConfigReloads); got != 1 {
		t.Errorf("config reloads = %v, want 1", got)
	}

	if err := os.WriteFile(path, []byte(content("chatty")), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := holder.Reload(); err == nil {
		t.Fatal("Reload should fail")
	}
	if got := testutil.ToFloat64(app.Metrics.ConfigReloadErrors); got != 1 {
		t.Errorf("config reload errors = %v, want 1", got)
	}
}

func TestNewLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.DebugLevel)

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := bootstrap.NewLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
		logger.Debug().Msg("hidden")
		logger.Info().Msg("shown")

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("log is not a single json line: %v\n%s", err, buf.String())
		}
		if entry["message"] != "shown" {
			t.Errorf("message = %v, want shown", entry["message"])
		}
		if _, ok := entry["time"]; !ok {
			t.Error("log entry has no timestamp")
		}
	})

	t.Run("console", func(t *testing.T) {
		var buf bytes.Buffer
		logger := bootstrap.NewLogger(config.LoggingConfig{Level: "debug", Format: "console"}, &buf)
		logger.Debug().Msg("readable")

		if !strings.Contains(buf.String(), "readable") || strings.HasPrefix(buf.String(), "{") {
			t.Errorf("unexpected console output: %q", buf.String())
		}
	})
}

func TestMigrate(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "migrate.db")
	cfg := loadConfig(t, "database:\n  dsn: \""+dsn+"\"\n")

	if err := bootstrap.Migrate(context.Background(), cfg); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// Idempotent
	if err := bootstrap.Migrate(context.Background(), cfg); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"artists", "albums"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not created: %v", table, err)
		}
	}
}
