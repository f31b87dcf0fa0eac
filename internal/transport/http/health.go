package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger — внешняя зависимость, доступность которой проверяет /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health — служебный mux: /livez, /healthz, /metrics.
type Health struct {
	ready   atomic.Bool
	timeout time.Duration
	pingers map[string]Pinger
	log     *slog.Logger
}

// NewHealth создаёт health-обработчик. pingers — имя зависимости -> проверка.
func NewHealth(log *slog.Logger, timeout time.Duration, pingers map[string]Pinger) *Health {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &Health{timeout: timeout, pingers: pingers, log: log}
}

// SetReady переключает готовность принимать трафик.
func (h *Health) SetReady(v bool) { h.ready.Store(v) }

// Handler собирает mux; метрики берутся из g.
func (h *Health) Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/healthz", h.healthz)
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	return mux
}

// healthz: не готов, пока не выставлен ready или пока не отвечает хоть одна зависимость.
func (h *Health) healthz(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	for name, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			if h.log != nil {
				h.log.Warn("healthz dependency down", "dependency", name, "err", err)
			}
			http.Error(w, name+" unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
