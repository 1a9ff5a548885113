// Package kernel assembles the HTTP handler: global middleware, the
// operational endpoints and the application routes.
package kernel

import (
	"context"
	"net/http"
	"time"

	"github.com/shashiranjanraj/orderly/pkg/logger"
	"github.com/shashiranjanraj/orderly/pkg/metrics"
	"github.com/shashiranjanraj/orderly/pkg/middleware"
	"github.com/shashiranjanraj/orderly/pkg/reqid"
	"github.com/shashiranjanraj/orderly/pkg/response"
	"github.com/shashiranjanraj/orderly/pkg/router"
)

// Options configures the kernel. Nil fields disable what they control.
type Options struct {
	Limiter *middleware.RateLimiter
	CORS    middleware.CORSOptions
	// Health reports whether the backing stores are reachable.
	Health func(ctx context.Context) error
	// Routes mounts the application endpoints.
	Routes func(r *router.Router)
}

// NewHTTPKernel builds the router. The returned router is also what
// route:list inspects.
func NewHTTPKernel(opts Options) *router.Router {
	r := router.New()

	// Outermost first: metrics see total latency, recovery catches panics
	// before anything else runs, the request id exists before the first log.
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(opts.CORS))
	if opts.Limiter != nil {
		r.Use(opts.Limiter.Middleware)
	}

	r.Get("/metrics", "metrics", metrics.Handler())
	r.Get("/healthz", "health", healthz(opts.Health))

	if opts.Routes != nil {
		opts.Routes(r)
	}
	return r
}

func healthz(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				logger.WithCtx(r.Context()).Warn("health: check failed", "error", err)
				response.Error(w, http.StatusServiceUnavailable, "unavailable")
				return
			}
		}
		response.Message(w, "ok")
	}
}
