package slam

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// LivePose is one body's end-effector position in the latest snapshot.
type LivePose struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
}

// Snapshot is an immutable copy of a session's state after a completed tick.
type Snapshot struct {
	Mode          Mode               `json:"mode"`
	Tick          int                `json:"tick"`
	Latest        TickMetrics        `json:"latest"`
	History       []TickMetrics      `json:"history"`
	Poses         []LivePose         `json:"poses"`
	ObservedCells int                `json:"observedCells"`
	TrailLengths  map[string]float64 `json:"trailLengths"`
	UpdatedAt     time.Time          `json:"updatedAt"`
	FieldPNG      []byte             `json:"-"`
}

// StateTracker holds the latest snapshot for the HTTP endpoints. The session
// publishes into it after each tick; handlers only ever read copies.
type StateTracker struct {
	mu          sync.RWMutex
	snapshot    *Snapshot
	renderEvery int
	cachePath   string // path to a JSON snapshot cache; empty disables persistence
}

// NewStateTracker creates a tracker that re-renders the field image every
// renderEvery ticks (at least 1).
func NewStateTracker(renderEvery int) *StateTracker {
	if renderEvery < 1 {
		renderEvery = 1
	}
	return &StateTracker{renderEvery: renderEvery}
}

// NewStateTrackerWithCache creates a tracker that persists each snapshot to
// cachePath. If the file exists, the cached snapshot is loaded on creation.
func NewStateTrackerWithCache(renderEvery int, cachePath string) *StateTracker {
	st := NewStateTracker(renderEvery)
	st.cachePath = cachePath
	if cachePath != "" {
		if snap, err := LoadSnapshot(cachePath); err == nil {
			st.snapshot = snap
		}
	}
	return st
}

const freeSensorPose = "freeSensor"

var freeSensorStyle = ArmStyle{Name: freeSensorPose, Color: color.RGBA{200, 160, 0, 255}}

func colorHex(s ArmStyle) string {
	return fmt.Sprintf("#%02X%02X%02X", s.Color.R, s.Color.G, s.Color.B)
}

// Update captures the session state. It runs on the session goroutine.
func (st *StateTracker) Update(s *Session, m TickMetrics) error {
	styles := DefaultArmStyles()
	arms := []*Arm{s.Rig.Truth, s.Rig.Tracking, s.Rig.Odometry}
	poses := make([]LivePose, len(arms))
	for i, arm := range arms {
		ee := arm.EEPos()
		poses[i] = LivePose{Name: styles[i].Name, X: ee.X, Y: ee.Y, Color: colorHex(styles[i])}
	}
	free := s.Rig.Free.Pose().Translation
	poses = append(poses, LivePose{Name: freeSensorPose, X: free.X, Y: free.Y, Color: colorHex(freeSensorStyle)})

	snap := &Snapshot{
		Mode:          s.Mode(),
		Tick:          s.Ticks(),
		Latest:        m,
		History:       s.History().Records(),
		Poses:         poses,
		ObservedCells: s.Field.ObservedCells(),
		TrailLengths:  s.Trails().Lengths(),
		UpdatedAt:     time.Now(),
	}

	st.mu.RLock()
	prev := st.snapshot
	st.mu.RUnlock()

	if prev == nil || prev.FieldPNG == nil || s.Ticks()%st.renderEvery == 0 {
		var buf bytes.Buffer
		if err := NewSessionRenderer(s).EncodePNG(&buf); err != nil {
			return errors.Wrap(err, "rendering field snapshot")
		}
		snap.FieldPNG = buf.Bytes()
	} else {
		snap.FieldPNG = prev.FieldPNG
	}

	st.mu.Lock()
	st.snapshot = snap
	cachePath := st.cachePath
	st.mu.Unlock()

	if cachePath != "" {
		return SaveSnapshot(snap, cachePath)
	}
	return nil
}

// Get returns a copy of the latest snapshot.
func (st *StateTracker) Get() (Snapshot, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.snapshot == nil {
		return Snapshot{}, false
	}
	snap := *st.snapshot
	snap.History = append([]TickMetrics(nil), st.snapshot.History...)
	snap.Poses = append([]LivePose(nil), st.snapshot.Poses...)
	return snap, true
}

// HasSnapshot returns true once any tick has been captured
func (st *StateTracker) HasSnapshot() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.snapshot != nil
}

// SaveSnapshot writes a snapshot to disk as JSON. The rendered image is not persisted.
func SaveSnapshot(snap *Snapshot, path string) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create cache directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "write snapshot cache")
	}
	return nil
}

// LoadSnapshot reads a snapshot from a JSON file on disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot cache")
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, "unmarshal snapshot cache")
	}
	return &snap, nil
}
