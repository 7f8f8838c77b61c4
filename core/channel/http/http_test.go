package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalk/apistub/adapters/metrics"
	apihttp "github.com/vitalk/apistub/core/channel/http"
	"github.com/vitalk/apistub/core/storage"
)

func openDB(t *testing.T) *storage.DB {
	t.Helper()

	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)")
	require.NoError(t, err)
	return db
}

func serve(api *apihttp.API, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	api.Handler().ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

// insertNote writes a note in the request session, committing when asked.
func insertNote(commit bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := storage.SessionFrom(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if _, err := sess.Exec(r.Context(), "notes", "insert", "INSERT INTO notes (body) VALUES (?)", chi.URLParam(r, "body")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if commit {
			if err := sess.Commit(); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
		w.WriteHeader(http.StatusCreated)
	})
}

func countNotes(t *testing.T, db *storage.DB) int {
	t.Helper()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM notes").Scan(&n))
	return n
}

func TestHealth(t *testing.T) {
	api := apihttp.New(openDB(t), zerolog.Nop(), apihttp.Config{})

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		t.Run(path, func(t *testing.T) {
			w := serve(api, http.MethodGet, path)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
		})
	}
}

func TestReadiness_DatabaseClosed(t *testing.T) {
	db := openDB(t)
	api := apihttp.New(db, zerolog.Nop(), apihttp.Config{})
	require.NoError(t, db.Close())

	w := serve(api, http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body["status"])
	assert.NotEmpty(t, body["error"])

	// liveness does not touch the database
	assert.Equal(t, http.StatusOK, serve(api, http.MethodGet, "/health").Code)
}

func TestAddRoute_BasePath(t *testing.T) {
	db := openDB(t)
	api := apihttp.New(db, zerolog.Nop(), apihttp.Config{BasePath: "/api"})
	api.AddRoute("/notes/{body}", "notes", insertNote(true))

	assert.Equal(t, "/api", api.BasePath())
	assert.Equal(t, http.StatusCreated, serve(api, http.MethodPost, "/api/notes/hello").Code)
	assert.Equal(t, http.StatusNotFound, serve(api, http.MethodPost, "/notes/hello").Code)
	assert.Equal(t, 1, countNotes(t, db))
}

func TestAddRoute_ForwardsEveryMethod(t *testing.T) {
	api := apihttp.New(openDB(t), zerolog.Nop(), apihttp.Config{})

	var seen []string
	api.AddRoute("/echo", "echo", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method)
	}))

	for _, m := range []string{http.MethodGet, http.MethodPatch, http.MethodOptions} {
		serve(api, m, "/echo")
	}
	assert.Equal(t, []string{http.MethodGet, http.MethodPatch, http.MethodOptions}, seen)
}

func TestAddRoute_DuplicateNamePanics(t *testing.T) {
	api := apihttp.New(openDB(t), zerolog.Nop(), apihttp.Config{})
	api.AddRoute("/a", "notes", http.NotFoundHandler())

	assert.Panics(t, func() {
		api.AddRoute("/b", "notes", http.NotFoundHandler())
	})
}

func TestRoutes(t *testing.T) {
	api := apihttp.New(openDB(t), zerolog.Nop(), apihttp.Config{BasePath: "/v1"})
	api.AddRoute("/notes/{pk}", "note", http.NotFoundHandler())
	api.AddRoute("/authors", "authors", http.NotFoundHandler())
	api.AddRoute("/notes", "notes", http.NotFoundHandler())

	assert.Equal(t, []apihttp.Route{
		{Rule: "/v1/authors", Name: "authors"},
		{Rule: "/v1/notes", Name: "notes"},
		{Rule: "/v1/notes/{pk}", Name: "note"},
	}, api.Routes())
}

func TestSession_UncommittedWritesAreDiscarded(t *testing.T) {
	db := openDB(t)
	api := apihttp.New(db, zerolog.Nop(), apihttp.Config{})
	api.AddRoute("/draft/{body}", "draft", insertNote(false))

	assert.Equal(t, http.StatusCreated, serve(api, http.MethodPost, "/draft/hello").Code)
	assert.Equal(t, 0, countNotes(t, db))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	db := openDB(t)
	api := apihttp.New(db, zerolog.Nop(), apihttp.Config{
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	api.AddRoute("/notes/{body}", "notes", insertNote(true))
	api.AddRoute("/drafts/{body}", "drafts", insertNote(false))

	serve(api, http.MethodPost, "/notes/one")
	serve(api, http.MethodPost, "/notes/two")
	serve(api, http.MethodPost, "/drafts/three")
	serve(api, http.MethodGet, "/missing")
	serve(api, http.MethodGet, "/health")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/notes/{body}", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/drafts/{body}", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/missing", "4xx")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RequestsInFlight))

	// only committed writes are observed
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsWritten.WithLabelValues("notes", "insert")))

	w := serve(api, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `apistub_records_written_total{op="insert",table="notes"} 2`)
	assert.NotContains(t, w.Body.String(), `route="/health"`)
}

func TestMetrics_CustomPath(t *testing.T) {
	reg := prometheus.NewRegistry()
	api := apihttp.New(openDB(t), zerolog.Nop(), apihttp.Config{
		Metrics:        metrics.New(reg),
		MetricsPath:    "/internal/metrics",
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	assert.Equal(t, http.StatusOK, serve(api, http.MethodGet, "/internal/metrics").Code)
	assert.Equal(t, http.StatusNotFound, serve(api, http.MethodGet, "/metrics").Code)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	api := apihttp.New(openDB(t), logger, apihttp.Config{})
	api.AddRoute("/notes/{body}", "notes", insertNote(true))
	buf.Reset()

	serve(api, http.MethodPost, "/notes/hello")
	serve(api, http.MethodGet, "/health")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, buf.String())

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "http request", entry["message"])
	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, "/notes/hello", entry["path"])
	assert.EqualValues(t, http.StatusCreated, entry["status"])
	assert.NotEmpty(t, entry["request_id"])
}

func TestRecoverer(t *testing.T) {
	api := apihttp.New(openDB(t), zerolog.Nop(), apihttp.Config{})
	api.AddRoute("/boom", "boom", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	assert.Equal(t, http.StatusInternalServerError, serve(api, http.MethodGet, "/boom").Code)
}

func TestStartStop(t *testing.T) {
	api := apihttp.New(openDB(t), zerolog.Nop(), apihttp.Config{Addr: "127.0.0.1:0"})

	require.NoError(t, api.Start(context.Background()))
	require.NotEmpty(t, api.Addr())

	resp, err := http.Get("http://" + api.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, api.Stop(ctx))
}

func TestStart_WithoutAddr(t *testing.T) {
	api := apihttp.New(openDB(t), zerolog.Nop(), apihttp.Config{})

	assert.NoError(t, api.Start(context.Background()))
	assert.Empty(t, api.Addr())
	assert.NoError(t, api.Stop(context.Background()))
}

func TestStart_AddressInUse(t *testing.T) {
	first := apihttp.New(openDB(t), zerolog.Nop(), apihttp.Config{Addr: "127.0.0.1:0"})
	require.NoError(t, first.Start(context.Background()))
	defer first.Stop(context.Background())

	second := apihttp.New(openDB(t), zerolog.Nop(), apihttp.Config{Addr: first.Addr()})
	assert.Error(t, second.Start(context.Background()))
}
