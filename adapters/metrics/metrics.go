// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "apistub"

// maxPathLabel bounds the route label of requests that matched no route.
const maxPathLabel = 50

var requestLabels = []string{"method", "route", "status"}

// Collector owns every apistub metric. Fields are exported for tests.
type Collector struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	RecordsWritten *prometheus.CounterVec

	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New registers the collector's metrics with reg, or with the default
// registerer when reg is nil.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Collector{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP requests served, by method, route pattern and status class.",
		}, requestLabels),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10),
		}, requestLabels),
		RequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "HTTP requests being served.",
		}),
		RecordsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Committed inserts, updates and deletes per table.",
		}, []string{"table", "op"}),
		ConfigReloads: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Successful configuration reloads.",
		}),
		ConfigReloadErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reload_errors_total",
			Help:      "Configuration reloads rejected as invalid.",
		}),
		ConfigLastReload: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "config_last_reload_timestamp_seconds",
			Help:      "Unix time of the last successful configuration reload.",
		}),
	}
}

// TrackInFlight counts a request as in flight until the returned func runs.
func (c *Collector) TrackInFlight() (done func()) {
	c.RequestsInFlight.Inc()
	return c.RequestsInFlight.Dec
}

// ObserveRequest records one finished request.
func (c *Collector) ObserveRequest(method, route, status string, elapsed time.Duration) {
	c.RequestsTotal.WithLabelValues(method, route, status).Inc()
	c.RequestDuration.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}

// ObserveWrite counts one committed write. It satisfies storage.WriteObserver.
func (c *Collector) ObserveWrite(table, op string) {
	c.RecordsWritten.WithLabelValues(table, op).Inc()
}

// ObserveReload records the outcome of a configuration reload.
func (c *Collector) ObserveReload(err error) {
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.SetToCurrentTime()
}

// NormalizePath replaces numeric segments with {pk} and truncates long
// paths, e.g. /artists/123 becomes /artists/{pk}.
func NormalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if s != "" && strings.Trim(s, "0123456789") == "" {
			segments[i] = "{pk}"
		}
	}
	path = strings.Join(segments, "/")
	if len(path) > maxPathLabel {
		return path[:maxPathLabel] + "..."
	}
	return path
}
