package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kwv/armslam/slam"
	"go.uber.org/zap"
)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(stateTracker *slam.StateTracker, log *zap.SugaredLogger) http.Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		log.Debugw("[HTTP] /health", "remote", r.RemoteAddr)
		snap, ok := stateTracker.Get()
		status := struct {
			Status      string    `json:"status"`
			Timestamp   time.Time `json:"timestamp"`
			HasSnapshot bool      `json:"hasSnapshot"`
			Tick        int       `json:"tick"`
			Mode        slam.Mode `json:"mode,omitempty"`
		}{
			Status:      "ok",
			Timestamp:   time.Now(),
			HasSnapshot: ok,
			Tick:        snap.Tick,
			Mode:        snap.Mode,
		}
		writeJSON(w, log, status)
	})

	// Latest fused field render
	mux.HandleFunc("/field.png", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := stateTracker.Get()
		if !ok || len(snap.FieldPNG) == 0 {
			http.Error(w, "No field available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(snap.FieldPNG); err != nil {
			log.Warnw("[HTTP] Writing field image", "error", err)
		}
	})

	// Metrics history and live poses
	mux.HandleFunc("/metrics.json", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := stateTracker.Get()
		if !ok {
			http.Error(w, "No metrics available", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, log, snap)
	})

	mux.HandleFunc("/poses.json", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := stateTracker.Get()
		if !ok {
			http.Error(w, "No poses available", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, log, struct {
			Tick  int             `json:"tick"`
			Poses []slam.LivePose `json:"poses"`
		}{Tick: snap.Tick, Poses: snap.Poses})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, log *zap.SugaredLogger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnw("[HTTP] Encoding response", "error", err)
	}
}
