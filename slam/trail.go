package slam

import (
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
	"github.com/pkg/errors"
)

// Trail names used as the "name" property of exported features.
const (
	TrailTruth    = "truth"
	TrailOdometry = "odometry"
	TrailEstimate = "estimate"
)

// Trails records the end-effector path of the truth arm, the odometry arm and
// the running estimate, one vertex per tick.
type Trails struct {
	Truth    orb.LineString
	Odometry orb.LineString
	Estimate orb.LineString
}

// NewTrails returns empty trails.
func NewTrails() *Trails {
	return &Trails{}
}

func toOrb(p Point) orb.Point { return orb.Point{p.X, p.Y} }

// Add appends one vertex to each trail.
func (t *Trails) Add(truth, odometry, estimate Point) {
	t.Truth = append(t.Truth, toOrb(truth))
	t.Odometry = append(t.Odometry, toOrb(odometry))
	t.Estimate = append(t.Estimate, toOrb(estimate))
}

// Len returns the number of recorded ticks.
func (t *Trails) Len() int { return len(t.Truth) }

// named returns the trails in export order.
func (t *Trails) named() []struct {
	name string
	line orb.LineString
} {
	return []struct {
		name string
		line orb.LineString
	}{
		{TrailTruth, t.Truth},
		{TrailOdometry, t.Odometry},
		{TrailEstimate, t.Estimate},
	}
}

// Lengths returns the planar path length of every trail keyed by name.
func (t *Trails) Lengths() map[string]float64 {
	out := make(map[string]float64, 3)
	for _, tr := range t.named() {
		out[tr.name] = planar.Length(tr.line)
	}
	return out
}

// simplifyTrail applies Douglas-Peucker simplification; tolerance <= 0 keeps
// every vertex.
func simplifyTrail(ls orb.LineString, tolerance float64) orb.LineString {
	if tolerance <= 0 || len(ls) < 3 {
		return ls.Clone()
	}
	simplified := simplify.DouglasPeucker(tolerance).Simplify(ls.Clone())
	result, ok := simplified.(orb.LineString)
	if !ok {
		return ls.Clone()
	}
	return result
}

// FeatureCollection exports the trails as LineString features carrying their
// name, unsimplified length and vertex count. Trails with fewer than two
// vertices are skipped.
func (t *Trails) FeatureCollection(tolerance float64) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, tr := range t.named() {
		if len(tr.line) < 2 {
			continue
		}
		f := geojson.NewFeature(simplifyTrail(tr.line, tolerance))
		f.Properties["name"] = tr.name
		f.Properties["length"] = planar.Length(tr.line)
		f.Properties["ticks"] = len(tr.line)
		fc.Append(f)
	}
	return fc
}

// SaveTrails writes the trails as a GeoJSON FeatureCollection.
func SaveTrails(path string, t *Trails, tolerance float64) error {
	data, err := t.FeatureCollection(tolerance).MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "marshaling trails")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "writing trails")
	}
	return nil
}
