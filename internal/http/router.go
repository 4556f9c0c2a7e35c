// Package httpapi composes the HTTP surface: platform middleware, feature
// routes, and the operational endpoints.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	platformmetrics "keohams/internal/platform/metrics"
	platformmw "keohams/internal/platform/middleware"
)

// Registrar is implemented by every feature handler. Handlers own their own
// auth requirements; the router only supplies the shared middleware stack.
type Registrar interface {
	Register(r chi.Router)
}

const requestTimeout = 30 * time.Second

// NewRouter assembles the middleware chain and mounts every feature handler
// plus /healthz and /metrics.
func NewRouter(logger *slog.Logger, metrics *platformmetrics.Metrics, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()

	r.Use(platformmw.RequestID)
	r.Use(platformmw.RequestMeta)
	r.Use(platformmw.Recovery(logger))
	r.Use(platformmw.Logger(logger))
	r.Use(metrics.Latency)
	r.Use(platformmw.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}
