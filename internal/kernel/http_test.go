package kernel_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/orderly/internal/kernel"
	"github.com/shashiranjanraj/orderly/pkg/middleware"
	"github.com/shashiranjanraj/orderly/pkg/reqid"
	"github.com/shashiranjanraj/orderly/pkg/response"
	"github.com/shashiranjanraj/orderly/pkg/router"
	"github.com/shashiranjanraj/orderly/pkg/testkit"
)

func TestHealthz(t *testing.T) {
	var healthy error
	h := kernel.NewHTTPKernel(kernel.Options{
		CORS:   middleware.DefaultCORSOptions(),
		Health: func(context.Context) error { return healthy },
	}).Handler()

	res := testkit.Call(t, h, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "ok", res.Envelope(t).Message)
	assert.NotEmpty(t, res.Header().Get(reqid.Header))

	healthy = errors.New("db down")
	res = testkit.Call(t, h, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func TestMetricsAndRoutes(t *testing.T) {
	r := kernel.NewHTTPKernel(kernel.Options{
		CORS: middleware.DefaultCORSOptions(),
		Routes: func(r *router.Router) {
			r.Get("/ping", "ping", func(w http.ResponseWriter, _ *http.Request) { response.Message(w, "pong") })
			r.Get("/panic", "panic", func(http.ResponseWriter, *http.Request) { panic("boom") })
		},
	})
	h := r.Handler()

	assert.Equal(t, http.StatusOK, testkit.Call(t, h, http.MethodGet, "/ping", nil, "").Code)
	assert.Equal(t, http.StatusInternalServerError, testkit.Call(t, h, http.MethodGet, "/panic", nil, "").Code)

	res := testkit.Call(t, h, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "orderly_http_requests_total")

	names := map[string]bool{}
	for _, ri := range r.Routes() {
		names[ri.Name] = true
	}
	assert.True(t, names["ping"])
	assert.True(t, names["health"])
	assert.True(t, names["metrics"])
}

func TestRateLimitIsGlobal(t *testing.T) {
	h := kernel.NewHTTPKernel(kernel.Options{
		Limiter: middleware.NewRateLimiter(1, time.Minute),
		CORS:    middleware.DefaultCORSOptions(),
	}).Handler()

	call := func() int {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, call())
	assert.Equal(t, http.StatusTooManyRequests, call())
}
