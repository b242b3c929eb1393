package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	applogger "github.com/lingxiaolyu191231/crypto-watcher/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInFlight        *prometheus.GaugeVec
	httpResponseSize    *prometheus.HistogramVec

	httpMetricsOnce sync.Once
)

func registerHTTPMetrics() {
	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cryptowatcher_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"path", "method", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cryptowatcher_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"route", "method", "status", "class"})

	httpInFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cryptowatcher_http_in_flight_requests",
		Help: "Current number of in-flight HTTP requests",
	}, []string{"route", "method"})

	httpResponseSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cryptowatcher_http_response_size_bytes",
		Help:    "HTTP response size in bytes",
		Buckets: []float64{200, 500, 1_000, 2_000, 5_000, 10_000, 50_000, 100_000, 500_000, 1_000_000},
	}, []string{"route", "method", "status", "class"})

	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInFlight, httpResponseSize)
}

// Metrics is a net/http middleware that records request metrics with low
// cardinality labels. Route templates should be preferred over raw URLs
// where the mux provides them.
func Metrics(l *applogger.Logger, slowThreshold time.Duration) func(http.Handler) http.Handler {
	httpMetricsOnce.Do(registerHTTPMetrics)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, method := routeLabel(r), r.Method

			httpInFlight.WithLabelValues(route, method).Inc()
			start := time.Now()

			rw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			dur := time.Since(start)
			status := strconv.Itoa(rw.status)
			class := statusClass(rw.status)

			httpRequestsTotal.WithLabelValues(route, method, status).Inc()
			httpRequestDuration.WithLabelValues(route, method, status, class).Observe(dur.Seconds())
			httpResponseSize.WithLabelValues(route, method, status, class).Observe(float64(rw.written))
			httpInFlight.WithLabelValues(route, method).Dec()

			logOutcome(l, slowThreshold, route, method, status, dur, rw)
		})
	}
}

// logOutcome emits structured log lines for 5xx responses and slow requests.
func logOutcome(l *applogger.Logger, slowThreshold time.Duration, route, method, status string, dur time.Duration, rw *metricsResponseWriter) {
	if l == nil {
		return
	}
	fields := []applogger.Field{
		applogger.String("route", route),
		applogger.String("method", method),
		applogger.String("status", status),
		applogger.Duration("duration_ms", dur),
		applogger.Int("bytes", rw.written),
	}
	switch {
	case rw.status >= 500:
		l.Error("http request failed", fields...)
	case slowThreshold > 0 && dur >= slowThreshold:
		l.Warn("http request slow", fields...)
	}
}

type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

// routeLabel prefers a route template set by the mux to keep cardinality low.
func routeLabel(r *http.Request) string {
	if s, ok := r.Context().Value("route").(string); ok && s != "" {
		return s
	}
	return r.URL.Path
}

func statusClass(code int) string {
	if code < 100 || code >= 600 {
		return "5xx"
	}
	return strconv.Itoa(code/100) + "xx"
}
