package slam

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// IsPNG checks if data starts with PNG magic bytes
func IsPNG(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	// PNG magic bytes: 0x89 'P' 'N' 'G' '\r' '\n' 0x1a '\n'
	return data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G'
}

// decodeRaster decodes any registered raster format (png, bmp, tiff, webp).
func decodeRaster(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty data")
	}
	if IsPNG(data) {
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "decoding png")
		}
		return img, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decoding raster")
	}
	return img, nil
}

// channels8 returns the 8-bit red and green channels of c.
func channels8(c color.Color) (r, g uint8) {
	nc := color.NRGBAModel.Convert(c).(color.NRGBA)
	return nc.R, nc.G
}

// BuildOccupancyField combines an occupancy raster (red == 0 marks an
// occupied cell) with a distance raster whose red minus green difference
// seeds the signed distance. A nil distance image seeds zero everywhere.
// Mismatched dimensions wrap ErrMalformedMapInput.
func BuildOccupancyField(occupancy, distance image.Image) (*OccupancyField, error) {
	ob := occupancy.Bounds()
	if distance != nil {
		db := distance.Bounds()
		if db.Dx() != ob.Dx() || db.Dy() != ob.Dy() {
			return nil, errors.Wrapf(ErrMalformedMapInput,
				"occupancy is %dx%d but distance is %dx%d", ob.Dx(), ob.Dy(), db.Dx(), db.Dy())
		}
	}

	field, err := NewOccupancyField(ob.Dx(), ob.Dy())
	if err != nil {
		return nil, err
	}
	for y := 0; y < ob.Dy(); y++ {
		for x := 0; x < ob.Dx(); x++ {
			r, _ := channels8(occupancy.At(ob.Min.X+x, ob.Min.Y+y))
			field.SetOccupied(x, y, r == 0)
			if distance != nil {
				db := distance.Bounds()
				dr, dg := channels8(distance.At(db.Min.X+x, db.Min.Y+y))
				field.SetDistance(x, y, float64(dr)-float64(dg))
			}
		}
	}
	return field, nil
}

// DecodeMapData decodes the two raster payloads into a ground-truth field.
// An empty distance payload seeds zero distances.
func DecodeMapData(occupancy, distance []byte) (*OccupancyField, error) {
	occ, err := decodeRaster(occupancy)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedMapInput, "occupancy: %v", err)
	}
	var dist image.Image
	if len(distance) > 0 {
		dist, err = decodeRaster(distance)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedMapInput, "distance: %v", err)
		}
	}
	return BuildOccupancyField(occ, dist)
}

// LoadMapFiles reads and decodes the occupancy and distance rasters. The
// distance path may be empty.
func LoadMapFiles(occupancyPath, distancePath string) (*OccupancyField, error) {
	occ, err := os.ReadFile(occupancyPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading occupancy raster")
	}
	var dist []byte
	if distancePath != "" {
		dist, err = os.ReadFile(distancePath)
		if err != nil {
			return nil, errors.Wrap(err, "reading distance raster")
		}
	}
	return DecodeMapData(occ, dist)
}
