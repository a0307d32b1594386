package slam

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wallWorld returns a width x height field whose cells with x >= wallX are occupied.
func wallWorld(t *testing.T, width, height, wallX int) *OccupancyField {
	t.Helper()
	f, err := NewOccupancyField(width, height)
	require.NoError(t, err)
	for y := 0; y < height; y++ {
		for x := wallX; x < width; x++ {
			f.SetOccupied(x, y, true)
		}
	}
	return f
}

func TestNewOccupancyFieldRejectsEmpty(t *testing.T) {
	for _, size := range [][2]int{{0, 5}, {5, 0}, {-1, 3}} {
		_, err := NewOccupancyField(size[0], size[1])
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformedMapInput))
	}
}

func TestOccupancyFieldCells(t *testing.T) {
	f, err := NewOccupancyField(4, 3)
	require.NoError(t, err)
	assert.Zero(t, f.OccupiedCount())

	f.SetOccupied(1, 2, true)
	f.SetDistance(1, 2, 3.5)
	f.SetOccupied(9, 9, true) // ignored

	assert.True(t, f.Collides(1, 2))
	assert.False(t, f.Collides(2, 1))
	assert.Equal(t, 3.5, f.Distance(1, 2))
	assert.Equal(t, 1, f.OccupiedCount())

	assert.True(t, f.Collides(-1, 0), "outside the grid counts as occupied")
	assert.True(t, f.Collides(4, 0))
	assert.Zero(t, f.Distance(10, 10))
	assert.False(t, f.IsValid(4, 0))
	assert.True(t, f.IsValid(3, 2))
}

func TestOccupancyGradientPointsTowardObstacle(t *testing.T) {
	f := wallWorld(t, 20, 20, 10)

	tests := []struct {
		name string
		x, y int
		want Point
	}{
		{"free cell beside the wall", 9, 10, Point{X: 0.5}},
		{"first wall cell", 10, 10, Point{X: 0.5}},
		{"deep free space", 3, 10, Point{}},
		{"deep inside the wall", 15, 10, Point{}},
		{"outside the grid", -3, 10, Point{}},
		{"top edge sees the outside as occupied", 3, 0, Point{Y: -0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Gradient(tt.x, tt.y))
		})
	}
}

func TestCellRounding(t *testing.T) {
	x, y := CellOf(Point{X: 2.9, Y: -0.1})
	assert.Equal(t, 2, x)
	assert.Equal(t, -1, y)

	x, y = NearestCell(Point{X: 2.5, Y: 3.49})
	assert.Equal(t, 3, x)
	assert.Equal(t, 3, y)
}
