package handler

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"zonewatch/internal/clips"
	"zonewatch/internal/dto"
	"zonewatch/internal/logger"
	"zonewatch/internal/repository"
)

// ClipsResponse is the body of GET /api/clips.
type ClipsResponse struct {
	Clips   []dto.ClipInfo  `json:"clips"`
	Summary dto.ClipSummary `json:"summary"`
}

// ListClipsHandler returns the recorded clips, newest first. It accepts
// dateAfter/dateBefore (YYYY-MM-DD) and limit query parameters.
func ListClipsHandler(clipsDir string, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filters := dto.ClipFilters{
			After: parseDate(q.Get("dateAfter")),
			Limit: atoiDefault(q.Get("limit"), 50),
		}
		if before := parseDate(q.Get("dateBefore")); !before.IsZero() {
			filters.Before = before.Add(24*time.Hour - time.Nanosecond)
		}

		list, err := clips.List(clipsDir, filters)
		if err != nil {
			logger.Error("Error listing clips: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		summary, err := clips.Summary(clipsDir)
		if err != nil {
			logger.Error("Error summarizing clips: %v", err)
		}
		if list == nil {
			list = []dto.ClipInfo{}
		}

		writeJSON(w, logger, ClipsResponse{Clips: list, Summary: summary})
	}
}

// ViewClipHandler serves the clip named by the {name} path parameter.
func ViewClipHandler(clipsDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(chi.URLParam(r, "name"))
		if _, err := clips.Parse(name); err != nil {
			http.Error(w, "Unknown clip", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "video/x-msvideo")
		http.ServeFile(w, r, filepath.Join(clipsDir, name))
	}
}

// DeleteClipHandler removes a clip from disk and from the catalog.
func DeleteClipHandler(clipsDir string, clipRepo repository.ClipRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(chi.URLParam(r, "name"))
		if _, err := clips.Parse(name); err != nil {
			http.Error(w, "Unknown clip", http.StatusNotFound)
			return
		}

		filePath := filepath.Join(clipsDir, name)
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			logger.Error("Failed to delete file %s: %v", filePath, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if clipRepo != nil {
			if err := clipRepo.DeleteByFilename(name); err != nil {
				logger.Error("Failed to delete from database: %v", err)
			}
		}

		logger.Info("Deleted clip: %s", name)
		writeJSON(w, logger, map[string]string{"status": "deleted", "filename": name})
	}
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// atoiDefault converts s to int or returns def when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a "2006-01-02" query value in local time.
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
