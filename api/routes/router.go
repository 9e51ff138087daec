package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voltmidia/ytops-backend/api/controllers"
	"github.com/voltmidia/ytops-backend/api/middleware"
	"github.com/voltmidia/ytops-backend/internal/ledger"
	"github.com/voltmidia/ytops-backend/pkg/config"
	"github.com/voltmidia/ytops-backend/pkg/db"
	"github.com/voltmidia/ytops-backend/pkg/logger"
	"github.com/voltmidia/ytops-backend/pkg/redis"
)

// NewRouter assembles the dashboard API surface.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	forceService controllers.ForceUploader,
	ledgerService ledger.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/yt-upload/force/{channel_id}", controllers.ForceUpload(forceService, logg))
		r.Get("/status", controllers.StatusToday(ledgerService, logg))
		r.Get("/canais/{channel_id}/historico-uploads", controllers.ChannelHistory(ledgerService, logg))
		r.Get("/historico-completo", controllers.FullHistory(ledgerService, logg))
	})

	return r
}
