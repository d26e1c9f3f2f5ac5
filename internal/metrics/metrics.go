package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlestate_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tlestate_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	propagationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlestate_propagations_total",
			Help: "SGP4 propagations by outcome.",
		},
		[]string{"outcome"},
	)

	propagationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tlestate_propagation_duration_seconds",
			Help:    "Time spent producing a state vector or series.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		},
	)

	tleDatasetCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tlestate_tle_dataset_satellites",
			Help: "Number of satellites in the current TLE dataset.",
		},
	)

	tleDatasetAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tlestate_tle_dataset_age_seconds",
			Help: "Seconds since the current TLE dataset was fetched.",
		},
	)

	tleRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlestate_tle_rejected_total",
			Help: "Catalog entries skipped during parsing, by reason.",
		},
		[]string{"reason"},
	)

	tleFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlestate_tle_fetches_total",
			Help: "Remote TLE fetches by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		propagationsTotal,
		propagationDurationSeconds,
		tleDatasetCount,
		tleDatasetAgeSeconds,
		tleRejectedTotal,
		tleFetchesTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPropagation records one propagation request.
// outcome is "success", "malformed", "failed", "not_found" or "error".
func RecordPropagation(d time.Duration, outcome string) {
	propagationsTotal.WithLabelValues(outcome).Inc()
	propagationDurationSeconds.Observe(d.Seconds())
}

// PropagationCount returns the number of propagations recorded with outcome.
func PropagationCount(outcome string) float64 {
	var m dto.Metric
	if err := propagationsTotal.WithLabelValues(outcome).Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// SetTLEDatasetCount sets the current dataset size.
func SetTLEDatasetCount(n int) {
	tleDatasetCount.Set(float64(n))
}

// SetTLEDatasetAge sets the current dataset age.
func SetTLEDatasetAge(seconds float64) {
	tleDatasetAgeSeconds.Set(seconds)
}

// IncTLERejected counts a skipped catalog entry.
func IncTLERejected(reason string) {
	tleRejectedTotal.WithLabelValues(reason).Inc()
}

// IncTLEFetch counts a remote fetch attempt.
func IncTLEFetch(outcome string) {
	tleFetchesTotal.WithLabelValues(outcome).Inc()
}

// knownRoutes are recorded verbatim; everything else is collapsed so that
// scanners and NORAD IDs cannot explode label cardinality.
var knownRoutes = map[string]bool{
	"/healthz":             true,
	"/readyz":              true,
	"/metrics":             true,
	"/api/v1/tle/metadata": true,
	"/api/v1/tle/fetch":    true,
	"/api/v1/propagate":    true,
}

// parameterized maps a path prefix to the label used for it.
var parameterized = []struct {
	prefix string
	label  string
}{
	{"/api/v1/propagate/", "/api/v1/propagate/{norad_id}"},
	{"/api/v1/tle/", "/api/v1/tle/{norad_id}"},
}

func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	for _, p := range parameterized {
		if rest, ok := strings.CutPrefix(path, p.prefix); ok && isDigits(rest) {
			return p.label
		}
	}
	return "other"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := normalizeRoute(r.URL.Path)
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
