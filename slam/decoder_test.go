package slam

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// occupancyImage draws a white w x h raster with black cells at occupied.
func occupancyImage(w, h int, occupied ...image.Point) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	for _, p := range occupied {
		img.Set(p.X, p.Y, color.NRGBA{A: 255})
	}
	return img
}

func TestIsPNG(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected bool
	}{
		{
			name:     "valid PNG header",
			data:     []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'},
			expected: true,
		},
		{
			name:     "invalid header",
			data:     []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			expected: false,
		},
		{
			name:     "too short",
			data:     []byte{0x89, 'P', 'N'},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPNG(tt.data); got != tt.expected {
				t.Errorf("IsPNG() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDecodeMapData_Occupancy(t *testing.T) {
	occ := occupancyImage(4, 3, image.Pt(1, 2), image.Pt(3, 0))
	// Red 0 with other channels set still counts as occupied.
	occ.Set(0, 0, color.NRGBA{R: 0, G: 200, B: 200, A: 255})

	field, err := DecodeMapData(encodePNG(t, occ), nil)
	require.NoError(t, err)

	assert.Equal(t, 4, field.Width)
	assert.Equal(t, 3, field.Height)
	assert.Equal(t, 3, field.OccupiedCount())
	assert.True(t, field.Collides(1, 2))
	assert.True(t, field.Collides(3, 0))
	assert.True(t, field.Collides(0, 0))
	assert.False(t, field.Collides(2, 1))
	assert.Equal(t, 0.0, field.Distance(1, 2))
}

func TestDecodeMapData_DistanceSeed(t *testing.T) {
	occ := occupancyImage(2, 2)
	dist := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	dist.Set(0, 0, color.NRGBA{R: 10, G: 3, A: 255})
	dist.Set(1, 1, color.NRGBA{R: 0, G: 20, A: 255})

	field, err := DecodeMapData(encodePNG(t, occ), encodePNG(t, dist))
	require.NoError(t, err)

	assert.Equal(t, 7.0, field.Distance(0, 0))
	assert.Equal(t, -20.0, field.Distance(1, 1))
	assert.Equal(t, 0.0, field.Distance(1, 0))
}

func TestDecodeMapData_DimensionMismatch(t *testing.T) {
	occ := encodePNG(t, occupancyImage(4, 4))
	dist := encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 4, 5)))

	_, err := DecodeMapData(occ, dist)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedMapInput))
}

func TestDecodeMapData_Garbage(t *testing.T) {
	_, err := DecodeMapData([]byte("not an image"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedMapInput))

	_, err = DecodeMapData(nil, nil)
	assert.Error(t, err)
}

func TestDecodeMapData_TruncatedPNG(t *testing.T) {
	data := encodePNG(t, occupancyImage(4, 4))
	_, err := DecodeMapData(data[:20], nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedMapInput))
	assert.Contains(t, err.Error(), "decoding png")
}

func TestLoadMapFiles(t *testing.T) {
	dir := t.TempDir()
	occPath := filepath.Join(dir, "world.png")
	require.NoError(t, os.WriteFile(occPath, encodePNG(t, occupancyImage(5, 5, image.Pt(2, 2))), 0o644))

	field, err := LoadMapFiles(occPath, "")
	require.NoError(t, err)
	assert.True(t, field.Collides(2, 2))

	_, err = LoadMapFiles(filepath.Join(dir, "missing.png"), "")
	assert.Error(t, err)
}
