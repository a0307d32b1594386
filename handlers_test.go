package main

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kwv/armslam/slam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// boxWorld returns a 200x200 ground truth with a one-cell wall around the edge.
func boxWorld(t *testing.T) *slam.OccupancyField {
	t.Helper()
	ground, err := slam.NewOccupancyField(200, 200)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		ground.SetOccupied(i, 0, true)
		ground.SetOccupied(i, 199, true)
		ground.SetOccupied(0, i, true)
		ground.SetOccupied(199, i, true)
	}
	return ground
}

// populatedTracker returns a StateTracker holding a snapshot after ticks ticks.
func populatedTracker(t *testing.T, ticks int) *slam.StateTracker {
	t.Helper()
	cfg := slam.DefaultConfig()
	cfg.Arm.LinkLengths = []float64{30, 20, 10}
	s, err := slam.NewSession(cfg, boxWorld(t), nil)
	require.NoError(t, err)

	st := slam.NewStateTracker(1)
	for i := 0; i < ticks; i++ {
		m, err := s.Tick()
		require.NoError(t, err)
		require.NoError(t, st.Update(s, m))
	}
	return st
}

// emptyTracker returns a StateTracker with no snapshot yet.
func emptyTracker() *slam.StateTracker {
	return slam.NewStateTracker(1)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ---------------------------------------------------------------------------
// /health
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name        string
		tracker     *slam.StateTracker
		hasSnapshot bool
		tick        int
	}{
		{"before first tick", emptyTracker(), false, 0},
		{"after ticks", populatedTracker(t, 3), true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newHTTPServer(tt.tracker, nil), "/health")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body struct {
				Status      string `json:"status"`
				HasSnapshot bool   `json:"hasSnapshot"`
				Tick        int    `json:"tick"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "ok", body.Status)
			assert.Equal(t, tt.hasSnapshot, body.HasSnapshot)
			assert.Equal(t, tt.tick, body.Tick)
		})
	}
}

// ---------------------------------------------------------------------------
// /field.png
// ---------------------------------------------------------------------------

func TestFieldEndpoint_NoSnapshot(t *testing.T) {
	rec := get(t, newHTTPServer(emptyTracker(), nil), "/field.png")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFieldEndpoint_ServesPNG(t *testing.T) {
	rec := get(t, newHTTPServer(populatedTracker(t, 1), nil), "/field.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 200, "rendered at more than one pixel per cell")
}

// ---------------------------------------------------------------------------
// /metrics.json and /poses.json
// ---------------------------------------------------------------------------

func TestMetricsEndpoint(t *testing.T) {
	t.Run("no snapshot", func(t *testing.T) {
		rec := get(t, newHTTPServer(emptyTracker(), nil), "/metrics.json")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("history", func(t *testing.T) {
		rec := get(t, newHTTPServer(populatedTracker(t, 4), nil), "/metrics.json")
		require.Equal(t, http.StatusOK, rec.Code)

		var snap slam.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		assert.Equal(t, slam.ModeGroundTruth, snap.Mode)
		assert.Equal(t, 4, snap.Tick)
		require.Len(t, snap.History, 4)
		assert.Equal(t, 3, snap.Latest.Tick)
		assert.Len(t, snap.Latest.TrueQ, 3)
		assert.Nil(t, snap.FieldPNG, "image bytes stay out of the JSON")
	})
}

func TestPosesEndpoint(t *testing.T) {
	rec := get(t, newHTTPServer(populatedTracker(t, 1), nil), "/poses.json")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tick  int             `json:"tick"`
		Poses []slam.LivePose `json:"poses"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Poses, 4)
	assert.Equal(t, "freeSensor", body.Poses[3].Name)
	assert.Equal(t, "truth", body.Poses[0].Name)
	// Default base is the map centre and the arm lies along +x at q = 0.
	assert.InDelta(t, 160, body.Poses[0].X, 1e-9)
	assert.InDelta(t, 100, body.Poses[0].Y, 1e-9)
	assert.Regexp(t, `^#[0-9A-F]{6}$`, body.Poses[0].Color)
}

func TestUnknownPath(t *testing.T) {
	rec := get(t, newHTTPServer(emptyTracker(), nil), "/composite-map.png")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
