package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/dittocache/internal/logger"
	"github.com/marmos91/dittocache/pkg/cache"
	"github.com/marmos91/dittocache/pkg/metrics"
)

// NewRouter creates the chi router with all middleware and routes.
//
// Routes:
//   - GET    /healthz                 - liveness probe
//   - GET    /metrics                 - Prometheus exposition (when enabled)
//   - GET    /v1/objects/{key}        - read a payload
//   - HEAD   /v1/objects/{key}        - existence check
//   - PUT    /v1/objects/{key}        - store a payload
//   - DELETE /v1/objects/{key}        - remove a payload
//   - DELETE /v1/objects              - clear the cache
//   - GET    /v1/keys                 - list live keys
//   - GET    /v1/stats                - cache statistics
//   - POST   /v1/trim                 - run a trim pass
func NewRouter(c *cache.Cache) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	h := newHandler(c)

	r.Get("/healthz", h.Health)

	if mh := metrics.Handler(); mh != nil {
		r.Method(http.MethodGet, "/metrics", mh)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/objects", func(r chi.Router) {
			r.Get("/{key}", h.GetObject)
			r.Head("/{key}", h.HeadObject)
			r.Put("/{key}", h.PutObject)
			r.Delete("/{key}", h.DeleteObject)
			r.Delete("/", h.DeleteAll)
		})
		r.Get("/keys", h.Keys)
		r.Get("/stats", h.Stats)
		r.Post("/trim", h.Trim)
	})

	return r
}

// requestLogger logs requests through the internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Debug("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
