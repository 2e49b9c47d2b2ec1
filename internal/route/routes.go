package route

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zonewatch/internal/config"
	"zonewatch/internal/handler"
	"zonewatch/internal/logger"
	"zonewatch/internal/middleware"
	"zonewatch/internal/repository"
	ws "zonewatch/internal/service/websocket"
)

// Deps are the services the HTTP surface reads from.
type Deps struct {
	Stats    handler.StatsSource
	Recorder handler.RecorderSource
	Hub      *ws.Hub
	Alerts   repository.AlertRepository
	Clips    repository.ClipRepository
}

// SetupRoutes registers health, metrics, status, clip, event and log
// endpoints behind the token middleware.
func SetupRoutes(cfg *config.Config, deps Deps, logger *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TokenAuth(cfg.HTTP.Token))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// The websocket feed is long lived and must not get a request timeout.
		if deps.Hub != nil {
			r.Get("/events", handler.EventsWebsocketHandler(deps.Hub, logger))
		}

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(30 * time.Second))
			r.Get("/status", handler.StatusHandler(deps.Stats, deps.Recorder, deps.Hub, logger))
			r.Get("/alerts", handler.RecentAlertsHandler(deps.Alerts, logger))
			r.Get("/clips", handler.ListClipsHandler(cfg.Output.ClipsDir, logger))
			r.Get("/clips/{name}", handler.ViewClipHandler(cfg.Output.ClipsDir))
			r.Delete("/clips/{name}", handler.DeleteClipHandler(cfg.Output.ClipsDir, deps.Clips, logger))
		})
	})

	r.Get("/logs/{level}", handler.ShowLogsHandler(cfg.LogDirectory))
	r.Post("/logs/{level}/clear", handler.ClearLogsHandler(logger))

	return r
}
