package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/purchasing-console/api/controllers"
	"github.com/angelmondragon/purchasing-console/api/middleware"
	"github.com/angelmondragon/purchasing-console/internal/drafts"
	"github.com/angelmondragon/purchasing-console/pkg/config"
	"github.com/angelmondragon/purchasing-console/pkg/logger"
	"github.com/angelmondragon/purchasing-console/pkg/redis"
)

// RedisStore is the redis surface the router needs for readiness and idempotency.
type RedisStore interface {
	redis.IdempotencyStore
	redis.Pinger
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient RedisStore,
	gatherer prometheus.Gatherer,
	draftService drafts.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{"redis": redisClient}))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	idempotent := middleware.Idempotency(redisClient, logg, cfg.Purchasing)

	r.Route("/api/v1/purchasing/drafts", func(r chi.Router) {
		r.Use(middleware.ScopeContext(logg))

		r.Post("/", controllers.OpenDraft(draftService, logg))
		r.Route("/{draftId}", func(r chi.Router) {
			r.Get("/", controllers.GetDraft(draftService, logg))
			r.Delete("/", controllers.CloseDraft(draftService, logg))
			r.Put("/supplier", controllers.SelectSupplier(draftService, logg))
			r.Get("/variants", controllers.SearchVariants(draftService, logg))
			r.Get("/variants/{variantId}/last-cost", controllers.LastCost(draftService, logg))

			r.With(idempotent).Post("/lines", controllers.AddLine(draftService, logg))
			r.Patch("/lines/{index}", controllers.UpdateLine(draftService, logg))
			r.Delete("/lines/{index}", controllers.RemoveLine(draftService, logg))

			r.With(idempotent).Post("/overrides", controllers.CreateOverride(draftService, logg))
			r.Patch("/overrides/{overrideId}", controllers.UpdateOverride(draftService, logg))

			r.With(idempotent).Post("/submit", controllers.SubmitDraft(draftService, logg))
		})
	})

	return r
}
