package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/agentdesk/queue-scheduler/internal/api/handler"
	apimw "github.com/agentdesk/queue-scheduler/internal/api/middleware"
	"github.com/agentdesk/queue-scheduler/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	svc *service.QueueService,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	qh := handler.NewQueueHandler(svc, logger)
	ch := handler.NewConfigHandler(svc, logger)
	sh := handler.NewStatsHandler(svc)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apimw.RequireUser)

		// Queue items — literal segments (/bulk, /run, ...) must be
		// registered before /{id} so chi does not treat them as IDs.
		r.Post("/queue/bulk", qh.BulkImport)
		r.Post("/queue/run", qh.Run)
		r.Get("/queue/config", ch.Get)
		r.Put("/queue/config", ch.Update)
		r.Get("/queue/stats", sh.Get)
		r.Delete("/queue/completed", qh.ClearCompleted)

		r.Post("/queue", qh.Enqueue)
		r.Get("/queue", qh.List)
		r.Get("/queue/{id}", qh.Get)
		r.Delete("/queue/{id}", qh.Delete)
		r.Post("/queue/{id}/execute", qh.Execute)
		r.Post("/queue/{id}/move", qh.Move)
		r.Post("/queue/{id}/cancel", qh.Cancel)
	})

	return r
}
