package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records per-request Prometheus series labeled by method,
// normalized path, and status.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
	respSize *prometheus.HistogramVec
}

// NewMetrics registers the HTTP collectors under the given namespace with the
// default registry. Call once per process.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "embla"
	}

	labels := []string{"method", "path", "status"}

	return &Metrics{
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, labels),
		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, labels),
		inFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		}),
		respSize: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   []float64{100, 1000, 10000, 100000, 1000000},
		}, labels),
	}
}

// Middleware instruments the wrapped handler.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		m.inFlight.Inc()
		defer m.inFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		method := r.Method
		path := normalizePath(r.URL.Path)
		status := strconv.Itoa(rec.status)

		m.requests.WithLabelValues(method, path, status).Inc()
		m.duration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		m.respSize.WithLabelValues(method, path, status).Observe(float64(rec.bytes))
	})
}

// Handler exposes the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// normalizePath collapses dynamic segments so label cardinality stays
// bounded. The cart API itself has fixed paths; only checkout redirects and
// product lookups carry ids.
func normalizePath(path string) string {
	if strings.HasPrefix(path, "/checkout/success") {
		return "/checkout/success"
	}
	if strings.HasPrefix(path, "/products/") && path != "/products/" {
		return "/products/:id"
	}
	return path
}
