// Package httpapi exposes the engine over HTTP: catalog and
// rotation queries, participant state, gameplay event
// ingestion, selection, and administrative commands.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"digital.vasic.challengeboard/pkg/engine"
	"digital.vasic.challengeboard/pkg/logging"
	"digital.vasic.challengeboard/pkg/metrics"
)

const (
	requestTimeout  = 30 * time.Second
	maxPayloadBytes = 1 << 20
)

type handler struct {
	engine  *engine.Engine
	metrics *metrics.InMemoryMetrics
	reload  func(context.Context) error
	logger  logging.Logger
}

// Option configures the router.
type Option func(*handler)

// WithLogger sets the request logger.
func WithLogger(l logging.Logger) Option {
	return func(h *handler) { h.logger = l }
}

// WithMetrics exposes m under /v1/metrics.
func WithMetrics(m *metrics.InMemoryMetrics) Option {
	return func(h *handler) { h.metrics = m }
}

// WithReloader enables POST /v1/reload, which calls fn.
func WithReloader(fn func(context.Context) error) Option {
	return func(h *handler) { h.reload = fn }
}

// NewRouter returns a chi router serving e.
func NewRouter(e *engine.Engine, opts ...Option) *chi.Mux {
	h := &handler{engine: e, logger: logging.NullLogger{}}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/mode", h.getMode)
		r.Put("/mode", h.putMode)
		r.Get("/metrics", h.getMetrics)
		r.Get("/report", h.getReport)
		r.Post("/rotate", h.rotateAll)
		r.Post("/reload", h.reloadCatalog)

		r.Route("/lists", func(r chi.Router) {
			r.Get("/", h.listLists)
			r.Route("/{list}", func(r chi.Router) {
				r.Get("/", h.getList)
				r.Get("/visible", h.getVisible)
				r.Get("/rotation", h.getRotation)
				r.Post("/rotate", h.forceRotate)
			})
		})

		r.Route("/participants/{participant}", func(r chi.Router) {
			r.Get("/", h.getParticipant)
			r.Post("/join", h.join)
			r.Post("/events", h.postEvent)
			r.Post("/complete", h.forceComplete)
			r.Post("/reset", h.reset)
			r.Post("/replacement/confirm", h.confirmReplacement)
			r.Post("/replacement/cancel", h.cancelReplacement)
			r.Route("/lists/{list}/challenges/{challenge}", func(r chi.Router) {
				r.Post("/", h.selectChallenge)
				r.Delete("/", h.abandon)
			})
		})
	})
	return r
}

// requestLogger logs each request through the engine logger.
func requestLogger(l logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			l.Debug("http request",
				logging.StringField("method", r.Method),
				logging.StringField("path", r.URL.Path),
				logging.IntField("status", ww.Status()),
				logging.DurationField("took", time.Since(start)),
				logging.StringField("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
