package slam

import (
	"math"

	"github.com/pkg/errors"
)

// GradientSource answers per-cell gradient queries. Gradients point toward
// occupied space; queries outside the grid return the zero vector.
type GradientSource interface {
	Gradient(x, y int) Point
}

// OccupancyField is the ground-truth raster: binary occupancy plus a seed
// signed distance per cell (positive inside obstacles). It is read-only once loaded.
type OccupancyField struct {
	Width    int
	Height   int
	occupied []bool
	dist     []float64
}

// NewOccupancyField returns an all-free field of the given size.
func NewOccupancyField(width, height int) (*OccupancyField, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrMalformedMapInput, "map size %dx%d", width, height)
	}
	return &OccupancyField{
		Width:    width,
		Height:   height,
		occupied: make([]bool, width*height),
		dist:     make([]float64, width*height),
	}, nil
}

func (f *OccupancyField) index(x, y int) int {
	return x + y*f.Width
}

// IsValid reports whether (x, y) lies inside the grid.
func (f *OccupancyField) IsValid(x, y int) bool {
	return x >= 0 && x < f.Width && y >= 0 && y < f.Height
}

// Collides reports whether (x, y) is occupied. Cells outside the grid count as occupied.
func (f *OccupancyField) Collides(x, y int) bool {
	if f.IsValid(x, y) {
		return f.occupied[f.index(x, y)]
	}
	return true
}

// Distance returns the seed signed distance at (x, y), or 0 outside the grid.
func (f *OccupancyField) Distance(x, y int) float64 {
	if f.IsValid(x, y) {
		return f.dist[f.index(x, y)]
	}
	return 0
}

// SetOccupied marks (x, y). Used while loading; out-of-range cells are ignored.
func (f *OccupancyField) SetOccupied(x, y int, occupied bool) {
	if f.IsValid(x, y) {
		f.occupied[f.index(x, y)] = occupied
	}
}

// SetDistance stores the seed distance at (x, y). Used while loading.
func (f *OccupancyField) SetDistance(x, y int, d float64) {
	if f.IsValid(x, y) {
		f.dist[f.index(x, y)] = d
	}
}

// OccupiedCount returns the number of occupied cells.
func (f *OccupancyField) OccupiedCount() int {
	n := 0
	for _, occ := range f.occupied {
		if occ {
			n++
		}
	}
	return n
}

// Gradient is the central difference of the occupied indicator along each axis.
func (f *OccupancyField) Gradient(x, y int) Point {
	if !f.IsValid(x, y) {
		return Point{}
	}
	xPlus := boolToFloat(f.Collides(x+1, y))
	xMinus := boolToFloat(f.Collides(x-1, y))
	yPlus := boolToFloat(f.Collides(x, y+1))
	yMinus := boolToFloat(f.Collides(x, y-1))
	return Point{X: 0.5 * (xPlus - xMinus), Y: 0.5 * (yPlus - yMinus)}
}

// CellOf returns the grid cell containing the world point p.
func CellOf(p Point) (int, int) {
	return int(math.Floor(p.X)), int(math.Floor(p.Y))
}

// NearestCell returns the grid cell whose index is nearest to p.
func NearestCell(p Point) (int, int) {
	return int(math.Round(p.X)), int(math.Round(p.Y))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
