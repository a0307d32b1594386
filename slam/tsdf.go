package slam

import (
	"math"

	"github.com/pkg/errors"
)

// FieldParams tunes the fused distance field.
type FieldParams struct {
	CellsPerUnit    float64 // field cells per map unit
	Truncation      float64 // half-width of the trusted band around a surface, map units
	MaxRange        float64 // samples farther than this from the sensor are never integrated
	MaxWeight       float64 // cap on accumulated weight
	FreeSpaceWeight float64 // weight of a free-space sample
	MinIncidence    float64 // floor for the ray/surface cosine used to weight band samples
}

// DefaultFieldParams returns the parameters used when none are configured.
func DefaultFieldParams() FieldParams {
	return FieldParams{
		CellsPerUnit:    1,
		Truncation:      5,
		MaxRange:        400,
		MaxWeight:       50,
		FreeSpaceWeight: 0.5,
		MinIncidence:    0.2,
	}
}

// Validate reports the first unusable parameter.
func (p FieldParams) Validate() error {
	switch {
	case p.CellsPerUnit <= 0:
		return errors.Errorf("cellsPerUnit must be positive, got %g", p.CellsPerUnit)
	case p.Truncation <= 0:
		return errors.Errorf("truncation must be positive, got %g", p.Truncation)
	case p.MaxRange <= 0:
		return errors.Errorf("maxRange must be positive, got %g", p.MaxRange)
	case p.MaxWeight <= 0:
		return errors.Errorf("maxWeight must be positive, got %g", p.MaxWeight)
	case p.FreeSpaceWeight <= 0:
		return errors.Errorf("freeSpaceWeight must be positive, got %g", p.FreeSpaceWeight)
	case p.MinIncidence <= 0 || p.MinIncidence > 1:
		return errors.Errorf("minIncidence must be in (0, 1], got %g", p.MinIncidence)
	}
	return nil
}

// FusionStats counts the cell updates made by one FuseRayCloud call.
type FusionStats struct {
	Rays           int
	FreeUpdates    int
	SurfaceUpdates int
}

// FusedDistanceField is an online truncated signed distance field. Distances
// are positive in observed free space (capped at +Truncation), zero at
// surfaces and negative behind them. Unknown cells hold +Truncation with zero
// weight. Only FuseRayCloud mutates it.
type FusedDistanceField struct {
	Width  int
	Height int
	params FieldParams
	dist   []float64
	weight []float64
}

// NewFusedDistanceField allocates a field over the ground truth's extent.
func NewFusedDistanceField(ground *OccupancyField, params FieldParams) (*FusedDistanceField, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	f := &FusedDistanceField{params: params}
	f.Initialize(float64(ground.Width), float64(ground.Height), params.CellsPerUnit)
	return f, nil
}

// Initialize (re)allocates a grid covering width x height map units at
// cellsPerUnit resolution, every cell unknown.
func (f *FusedDistanceField) Initialize(width, height, cellsPerUnit float64) {
	f.params.CellsPerUnit = cellsPerUnit
	f.Width = int(math.Ceil(width * cellsPerUnit))
	f.Height = int(math.Ceil(height * cellsPerUnit))
	n := f.Width * f.Height
	f.dist = make([]float64, n)
	f.weight = make([]float64, n)
	for i := range f.dist {
		f.dist[i] = f.params.Truncation
	}
}

// Params returns the field parameters.
func (f *FusedDistanceField) Params() FieldParams { return f.params }

// IsValid reports whether field cell (i, j) exists.
func (f *FusedDistanceField) IsValid(i, j int) bool {
	return i >= 0 && i < f.Width && j >= 0 && j < f.Height
}

// Cell returns the distance and weight of field cell (i, j).
func (f *FusedDistanceField) Cell(i, j int) (float64, float64) {
	idx := i + j*f.Width
	return f.dist[idx], f.weight[idx]
}

// ObservedCells returns the number of cells with non-zero weight.
func (f *FusedDistanceField) ObservedCells() int {
	n := 0
	for _, w := range f.weight {
		if w > 0 {
			n++
		}
	}
	return n
}

// CellAt returns the field cell containing world point p.
func (f *FusedDistanceField) CellAt(p Point) (int, int) {
	return CellOf(p.Scale(f.params.CellsPerUnit))
}

// CellCenter returns the world position of the center of field cell (i, j).
func (f *FusedDistanceField) CellCenter(i, j int) Point {
	s := 1 / f.params.CellsPerUnit
	return Point{X: (float64(i) + 0.5) * s, Y: (float64(j) + 0.5) * s}
}

// FuseRayCloud integrates one scan taken from (origin, rotation). Hits are in
// the sensor frame; gradients, when they pair one-to-one with hits, weight
// band samples by the incidence angle between ray and surface.
func (f *FusedDistanceField) FuseRayCloud(origin Point, rotation float64, hits, gradients []Point) FusionStats {
	var stats FusionStats
	pose := Transform2D{Rotation: rotation, Translation: origin}
	trunc := f.params.Truncation
	step := 0.5 / f.params.CellsPerUnit
	useGradients := len(gradients) == len(hits)

	for k, hit := range hits {
		rng := hit.Norm()
		if rng <= 0 {
			continue
		}
		stats.Rays++
		dir := pose.Apply(hit).Sub(origin).Scale(1 / rng)

		incidence := 1.0
		if useGradients {
			if g := gradients[k]; g.Norm() > 1e-12 {
				incidence = math.Max(math.Abs(dir.Dot(g))/g.Norm(), f.params.MinIncidence)
			}
		}

		limit := math.Min(rng+trunc, f.params.MaxRange)
		surfaceInRange := rng <= f.params.MaxRange
		lastI, lastJ := -1, -1
		for s := 0.0; s <= limit; s += step {
			i, j := f.CellAt(origin.Add(dir.Scale(s)))
			if !f.IsValid(i, j) {
				break
			}
			if i == lastI && j == lastJ {
				continue
			}
			lastI, lastJ = i, j

			along := f.CellCenter(i, j).Sub(origin).Dot(dir)
			sdf := rng - along
			if sdf > trunc {
				f.integrate(i, j, trunc, f.params.FreeSpaceWeight)
				stats.FreeUpdates++
				continue
			}
			if !surfaceInRange || sdf < -trunc {
				break
			}
			f.integrate(i, j, sdf*incidence, incidence)
			stats.SurfaceUpdates++
		}
	}
	return stats
}

// integrate folds one sample into cell (i, j) as a running weighted average.
func (f *FusedDistanceField) integrate(i, j int, sample, w float64) {
	if w <= 0 {
		return
	}
	idx := i + j*f.Width
	w0 := f.weight[idx]
	f.dist[idx] = (f.dist[idx]*w0 + sample*w) / (w0 + w)
	f.weight[idx] = math.Min(w0+w, f.params.MaxWeight)
}

func (f *FusedDistanceField) clampedDist(i, j int) float64 {
	i = min(max(i, 0), f.Width-1)
	j = min(max(j, 0), f.Height-1)
	return f.dist[i+j*f.Width]
}

// GradientAtCell is the central difference of fused distance at field cell
// (i, j), negated so it points toward surfaces like the occupancy gradient.
// Neighbours past the edge reuse the edge value.
func (f *FusedDistanceField) GradientAtCell(i, j int) Point {
	if !f.IsValid(i, j) {
		return Point{}
	}
	return Point{
		X: 0.5 * (f.clampedDist(i-1, j) - f.clampedDist(i+1, j)),
		Y: 0.5 * (f.clampedDist(i, j-1) - f.clampedDist(i, j+1)),
	}
}

// Gradient answers a query in map-unit cell coordinates, the same grid the
// sensor rounds its hits onto.
func (f *FusedDistanceField) Gradient(x, y int) Point {
	i, j := f.CellAt(Point{X: float64(x) + 0.5, Y: float64(y) + 0.5})
	return f.GradientAtCell(i, j)
}

// ComputeError compares the field against the ground truth. The
// classification error is the fraction of cells whose thresholded sign
// (observed and d <= 0 means occupied) disagrees with ground-truth occupancy;
// the distance error is the mean absolute deviation from the truncated
// ground-truth distance over observed cells.
func (f *FusedDistanceField) ComputeError(ground *OccupancyField) (classificationError, distanceError float64) {
	trunc := f.params.Truncation
	var total, mismatched, observed int
	var deviation float64

	for j := 0; j < f.Height; j++ {
		for i := 0; i < f.Width; i++ {
			x, y := CellOf(f.CellCenter(i, j))
			if !ground.IsValid(x, y) {
				continue
			}
			d, w := f.Cell(i, j)
			total++
			if ground.Collides(x, y) != (w > 0 && d <= 0) {
				mismatched++
			}
			if w > 0 {
				truth := math.Max(-trunc, math.Min(trunc, -ground.Distance(x, y)))
				deviation += math.Abs(d - truth)
				observed++
			}
		}
	}

	if total > 0 {
		classificationError = float64(mismatched) / float64(total)
	}
	if observed > 0 {
		distanceError = deviation / float64(observed)
	}
	return classificationError, distanceError
}
