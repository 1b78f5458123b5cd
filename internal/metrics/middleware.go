package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	adminRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docindex",
			Name:      "admin_http_request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "route", "status"},
	)

	adminRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docindex",
			Name:      "admin_http_requests_total",
			Help:      "Total number of admin HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)

var adminMetricsRegistered bool

// RegisterAdminMetrics registers the admin listener metrics. Must be called once from main.
func RegisterAdminMetrics() {
	if adminMetricsRegistered {
		return
	}
	prometheus.MustRegister(adminRequestDuration)
	prometheus.MustRegister(adminRequestsTotal)
	adminMetricsRegistered = true
}

// Middleware records admin HTTP request duration and count per chi route.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			route := routeLabel(chi.RouteContext(r.Context()))
			status := strconv.Itoa(ww.status)

			adminRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
			adminRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		})
	}
}

// routeLabel uses the matched route pattern to keep label cardinality bounded.
func routeLabel(rctx *chi.Context) string {
	if rctx == nil {
		return "unknown"
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return "unknown"
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b) //nolint:wrapcheck // delegating to underlying ResponseWriter
}
