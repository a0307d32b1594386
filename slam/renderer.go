package slam

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ArmStyle is how one body is drawn.
type ArmStyle struct {
	Name  string
	Color color.RGBA
}

// DefaultArmStyles returns the truth, tracking and odometry colours.
func DefaultArmStyles() []ArmStyle {
	return []ArmStyle{
		{Name: "truth", Color: color.RGBA{200, 10, 10, 255}},
		{Name: "tracking", Color: color.RGBA{100, 100, 200, 255}},
		{Name: "odometry", Color: color.RGBA{100, 200, 100, 255}},
	}
}

// FieldRenderer draws the fused field over the ground truth with arm overlays.
type FieldRenderer struct {
	Ground  *OccupancyField
	Field   *FusedDistanceField
	Arms    []*Arm
	Styles  []ArmStyle
	Rays    []Point // world-frame hit points drawn as small marks
	Scale   float64 // pixels per map unit
	Padding int
	Caption string
}

// NewFieldRenderer returns a renderer at 2 pixels per map unit.
func NewFieldRenderer(ground *OccupancyField, field *FusedDistanceField) *FieldRenderer {
	return &FieldRenderer{
		Ground:  ground,
		Field:   field,
		Styles:  DefaultArmStyles(),
		Scale:   2,
		Padding: 10,
	}
}

// NewSessionRenderer prepares a renderer showing a session's current state.
func NewSessionRenderer(s *Session) *FieldRenderer {
	r := NewFieldRenderer(s.Ground, s.Field)
	r.Arms = []*Arm{s.Rig.Truth, s.Rig.Tracking, s.Rig.Odometry}
	r.Rays = s.Rig.Truth.Sensor().WorldPoints(true)
	r.Caption = fmt.Sprintf("%s  tick %d", s.Mode(), s.Ticks())
	return r
}

// fieldColor maps a fused distance to a diverging colour: red behind
// surfaces, blue in free space, fading with weight.
func fieldColor(d, w, trunc, maxWeight float64) color.NRGBA {
	if w <= 0 {
		return color.NRGBA{}
	}
	t := math.Max(-1, math.Min(1, d/trunc))
	alpha := uint8(80 + 175*math.Min(1, w/maxWeight))
	if t <= 0 {
		return color.NRGBA{R: 220, G: uint8(200 * (1 + t)), B: uint8(200 * (1 + t)), A: alpha}
	}
	return color.NRGBA{R: uint8(200 * (1 - t)), G: uint8(200 * (1 - t)), B: 220, A: alpha}
}

// Render draws the scene.
func (r *FieldRenderer) Render() *image.RGBA {
	if r.Scale <= 0 {
		r.Scale = 1
	}
	width := int(float64(r.Ground.Width)*r.Scale) + 2*r.Padding
	height := int(float64(r.Ground.Height)*r.Scale) + 2*r.Padding

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{240, 240, 240, 255})
		}
	}

	toImage := func(p Point) (int, int) {
		return int(p.X*r.Scale) + r.Padding, int(p.Y*r.Scale) + r.Padding
	}

	// Ground truth occupancy
	for gy := 0; gy < r.Ground.Height; gy++ {
		for gx := 0; gx < r.Ground.Width; gx++ {
			if !r.Ground.Collides(gx, gy) {
				continue
			}
			x0, y0 := toImage(Point{X: float64(gx), Y: float64(gy)})
			x1, y1 := toImage(Point{X: float64(gx + 1), Y: float64(gy + 1)})
			fillRect(img, x0, y0, x1, y1, color.RGBA{90, 90, 90, 255})
		}
	}

	// Fused field, blended over the ground truth
	if r.Field != nil {
		params := r.Field.Params()
		cell := 1 / params.CellsPerUnit
		for j := 0; j < r.Field.Height; j++ {
			for i := 0; i < r.Field.Width; i++ {
				d, w := r.Field.Cell(i, j)
				c := fieldColor(d, w, params.Truncation, params.MaxWeight)
				if c.A == 0 {
					continue
				}
				x0, y0 := toImage(Point{X: float64(i) * cell, Y: float64(j) * cell})
				x1, y1 := toImage(Point{X: float64(i+1) * cell, Y: float64(j+1) * cell})
				for y := y0; y < max(y1, y0+1); y++ {
					for x := x0; x < max(x1, x0+1); x++ {
						if image.Pt(x, y).In(img.Bounds()) {
							img.Set(x, y, blendColors(img.RGBAAt(x, y), c))
						}
					}
				}
			}
		}
	}

	// Sensor hits
	for _, p := range r.Rays {
		x, y := toImage(p)
		drawSquare(img, x, y, 2, color.RGBA{0, 0, 0, 255})
	}

	// Arms: links as lines, joints as circles, end effector as a triangle
	for idx, arm := range r.Arms {
		style := r.style(idx)
		prev := arm.Base()
		for i := 0; i <= arm.DOF(); i++ {
			end := arm.LinkEnd(i)
			x0, y0 := toImage(prev)
			x1, y1 := toImage(end)
			drawLine(img, x0, y0, x1, y1, style.Color)
			prev = end
		}
		for i := 0; i < arm.DOF(); i++ {
			x, y := toImage(arm.JointPosition(i))
			drawCircle(img, x, y, 3, style.Color)
		}
		x, y := toImage(arm.EEPos())
		drawTriangle(img, x, y, 8, style.Color)
	}

	r.drawLegend(img)
	return img
}

func (r *FieldRenderer) style(i int) ArmStyle {
	if i < len(r.Styles) {
		return r.Styles[i]
	}
	return ArmStyle{Name: fmt.Sprintf("arm %d", i), Color: color.RGBA{0, 0, 0, 255}}
}

// EncodePNG writes the rendered scene as PNG.
func (r *FieldRenderer) EncodePNG(w io.Writer) error {
	return png.Encode(w, r.Render())
}

// SavePNG saves the rendered scene to a file
func (r *FieldRenderer) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating image")
	}
	defer func() { _ = f.Close() }()

	return r.EncodePNG(f)
}

func blendColors(bg color.RGBA, fg color.NRGBA) color.NRGBA {
	// The canvas is always opaque, so bg needs no un-premultiplying.
	alpha := float64(fg.A) / 255.0
	invAlpha := 1.0 - alpha

	return color.NRGBA{
		R: uint8(float64(fg.R)*alpha + float64(bg.R)*invAlpha),
		G: uint8(float64(fg.G)*alpha + float64(bg.G)*invAlpha),
		B: uint8(float64(fg.B)*alpha + float64(bg.B)*invAlpha),
		A: 255,
	}
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	for y := y0; y < max(y1, y0+1); y++ {
		for x := x0; x < max(x1, x0+1); x++ {
			if image.Pt(x, y).In(img.Bounds()) {
				img.Set(x, y, c)
			}
		}
	}
}

// drawLine draws a 1px line with Bresenham's algorithm
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		if image.Pt(x0, y0).In(img.Bounds()) {
			img.Set(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// drawCircle draws a filled circle
func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				x, y := cx+dx, cy+dy
				if x >= 0 && x < img.Bounds().Max.X && y >= 0 && y < img.Bounds().Max.Y {
					img.Set(x, y, c)
				}
			}
		}
	}
}

// drawSquare draws a filled square
func drawSquare(img *image.RGBA, cx, cy, size int, c color.RGBA) {
	half := size / 2
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			x, y := cx+dx, cy+dy
			if x >= 0 && x < img.Bounds().Max.X && y >= 0 && y < img.Bounds().Max.Y {
				img.Set(x, y, c)
			}
		}
	}
}

// drawTriangle draws a filled triangle pointing up
func drawTriangle(img *image.RGBA, cx, cy, size int, c color.RGBA) {
	half := size / 2
	for dy := -half; dy <= half; dy++ {
		// Width of triangle at this row
		progress := float64(dy+half) / float64(size)
		width := int(progress * float64(half))
		for dx := -width; dx <= width; dx++ {
			x, y := cx+dx, cy+dy
			if x >= 0 && x < img.Bounds().Max.X && y >= 0 && y < img.Bounds().Max.Y {
				img.Set(x, y, c)
			}
		}
	}
}

// drawLegend lists the arm colours in the top-left corner and the caption below them
func (r *FieldRenderer) drawLegend(img *image.RGBA) {
	y := 15
	for i := range r.Arms {
		style := r.style(i)
		for dy := 0; dy < 12; dy++ {
			for dx := 0; dx < 12; dx++ {
				img.Set(10+dx, y+dy-6, style.Color)
			}
		}
		drawText(img, 28, y+4, style.Name, color.RGBA{0, 0, 0, 255})
		y += 18
	}
	if r.Caption != "" {
		drawText(img, 10, y+4, r.Caption, color.RGBA{0, 0, 0, 255})
	}
}

// drawText renders text onto an image at the specified position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
