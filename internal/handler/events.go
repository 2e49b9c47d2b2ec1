package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"zonewatch/internal/logger"
	"zonewatch/internal/model"
	"zonewatch/internal/repository"
	"zonewatch/internal/service/pipeline"
	"zonewatch/internal/service/recorder"
	ws "zonewatch/internal/service/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventsWebsocketHandler registers viewers with the hub so they receive
// alert events as they happen.
func EventsWebsocketHandler(hub *ws.Hub, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		hub.Register(connection)
		defer hub.Unregister(connection)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("Viewer disconnected with error: %v", err)
				}
				return
			}
		}
	}
}

// RecentAlertsHandler returns the latest alerts from the catalog.
func RecentAlertsHandler(alerts repository.AlertRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if alerts == nil {
			writeJSON(w, logger, []model.Alert{})
			return
		}
		list, err := alerts.Recent(atoiDefault(r.URL.Query().Get("limit"), 20))
		if err != nil {
			logger.Error("Error querying alerts: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []model.Alert{}
		}
		writeJSON(w, logger, list)
	}
}

// StatsSource exposes pipeline counters. *pipeline.Pipeline satisfies it.
type StatsSource interface {
	Stats() pipeline.Stats
}

// RecorderSource exposes the recorder state. *recorder.Recorder satisfies it.
type RecorderSource interface {
	Status() recorder.Status
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Pipeline pipeline.Stats  `json:"pipeline"`
	Recorder recorder.Status `json:"recorder"`
	Viewers  int             `json:"viewers"`
}

// StatusHandler reports pipeline, recorder and viewer state.
func StatusHandler(stats StatsSource, rec RecorderSource, hub *ws.Hub, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Pipeline: stats.Stats(),
			Recorder: rec.Status(),
		}
		if hub != nil {
			resp.Viewers = hub.ClientCount()
		}
		writeJSON(w, logger, resp)
	}
}
