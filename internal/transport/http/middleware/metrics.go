package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics — счётчик запросов и гистограмма латентности по шаблону маршрута.
type HTTPMetrics struct {
	total   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewHTTPMetrics создаёт и регистрирует метрики в reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "http_requests_total", Help: "Count of HTTP requests"},
			[]string{"path", "method", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Latency of HTTP requests",
				Buckets: prometheus.DefBuckets,
			}, []string{"path", "method"},
		),
	}
	reg.MustRegister(m.total, m.latency)

	return m
}

// Metrics считает запросы. Путь берётся из шаблона chi ("/profiles/{id}"),
// чтобы id не раздували кардинальность; без маршрута — "unmatched".
func Metrics(m *HTTPMetrics) Middleware {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			start := time.Now()

			next.ServeHTTP(sw, r)

			path := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					path = p
				}
			}

			m.total.WithLabelValues(path, r.Method, strconv.Itoa(sw.code())).Inc()
			m.latency.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}
