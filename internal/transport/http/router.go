package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"fieldcomply/internal/platform/metrics"
	"fieldcomply/internal/platform/middleware"
	"fieldcomply/pkg/platform/httputil"
	"fieldcomply/pkg/platform/middleware/requesttime"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

const healthTimeout = 2 * time.Second

// RouterConfig collects what NewRouter needs besides the handler.
type RouterConfig struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	HealthChecks   map[string]HealthCheck
}

// NewRouter builds the process router: middleware chain, /healthz, /metrics and
// the API routes registered by h.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(logger, cfg.Metrics))
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}

	r.Get("/healthz", healthHandler(cfg.HealthChecks))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	h.Register(r)
	return r
}

// healthHandler runs every check concurrently and reports 503 if any fails.
func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		results := make([]string, len(names))
		var g errgroup.Group
		for i, name := range names {
			g.Go(func() error {
				if err := checks[name](ctx); err != nil {
					results[i] = err.Error()
					return err
				}
				results[i] = "ok"
				return nil
			})
		}
		status, code := "ok", http.StatusOK
		if err := g.Wait(); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}

		resp := HealthResponse{Status: status}
		if len(names) > 0 {
			resp.Checks = make(map[string]string, len(names))
			for i, name := range names {
				resp.Checks[name] = results[i]
			}
		}
		httputil.WriteJSON(w, code, resp)
	}
}
