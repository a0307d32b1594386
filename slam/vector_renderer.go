package slam

import (
	"image/color"
	"image/png"
	"io"
	"os"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// nrgbaToRGBA converts color.NRGBA to color.RGBA by premultiplying alpha
// This is needed for the canvas library which expects premultiplied RGBA
func nrgbaToRGBA(c color.NRGBA) color.RGBA {
	if c.A == 0 {
		return color.RGBA{0, 0, 0, 0}
	}
	if c.A == 255 {
		return color.RGBA{c.R, c.G, c.B, 255}
	}
	alpha32 := uint32(c.A)
	return color.RGBA{
		R: uint8((uint32(c.R) * alpha32) / 255),
		G: uint8((uint32(c.G) * alpha32) / 255),
		B: uint8((uint32(c.B) * alpha32) / 255),
		A: c.A,
	}
}

// VectorRenderer draws the scene as vector graphics: ground-truth obstacles,
// the fused surface, end-effector trails and the arms.
type VectorRenderer struct {
	Ground      *OccupancyField
	Field       *FusedDistanceField
	Arms        []*Arm
	Styles      []ArmStyle
	Trails      *Trails
	Padding     float64           // Padding in map units
	GridSpacing float64           // Grid line spacing in map units; 0 disables
	Resolution  canvas.Resolution // Resolution for PNG output
}

// NewVectorRenderer creates a vector renderer with default settings
func NewVectorRenderer(ground *OccupancyField, field *FusedDistanceField) *VectorRenderer {
	return &VectorRenderer{
		Ground:      ground,
		Field:       field,
		Styles:      DefaultArmStyles(),
		Padding:     10,
		GridSpacing: 50,
		Resolution:  canvas.DPI(100),
	}
}

// NewSessionVectorRenderer prepares a vector renderer for a session's current state.
func NewSessionVectorRenderer(s *Session) *VectorRenderer {
	r := NewVectorRenderer(s.Ground, s.Field)
	r.Arms = []*Arm{s.Rig.Truth, s.Rig.Tracking, s.Rig.Odometry}
	r.Trails = s.Trails()
	return r
}

// canvasRenderer is an interface that both svg and rasterizer renderers implement
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

func (r *VectorRenderer) size() (float64, float64) {
	return float64(r.Ground.Width) + 2*r.Padding, float64(r.Ground.Height) + 2*r.Padding
}

// RenderToSVG writes the scene as an SVG to the provided writer
func (r *VectorRenderer) RenderToSVG(w io.Writer) error {
	width, height := r.size()
	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, width, height)
	return svgRenderer.Close()
}

// RenderToPNG writes the scene as a PNG to the provided writer
func (r *VectorRenderer) RenderToPNG(w io.Writer) error {
	width, height := r.size()
	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, width, height)
	return png.Encode(w, rast)
}

// SaveSVG writes the scene to path.
func (r *VectorRenderer) SaveSVG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating svg")
	}
	if err := r.RenderToSVG(f); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "rendering svg")
	}
	return f.Close()
}

// renderToCanvas renders the scene to a canvas renderer (shared logic for SVG and PNG)
func (r *VectorRenderer) renderToCanvas(renderer canvasRenderer, width, height float64) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	// Map y grows downward; canvas y grows upward.
	toCanvas := func(p Point) (float64, float64) {
		return p.X + r.Padding, height - (p.Y + r.Padding)
	}

	// Ground-truth obstacles, one rectangle per horizontal run of occupied cells
	obstacleStyle := canvas.DefaultStyle
	obstacleStyle.Fill = canvas.Paint{Color: color.RGBA{90, 90, 90, 255}}
	obstacleStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
	for y := 0; y < r.Ground.Height; y++ {
		for _, run := range occupiedRuns(r.Ground.Width, func(x int) bool { return r.Ground.Collides(x, y) }) {
			cx, cy := toCanvas(Point{X: float64(run[0]), Y: float64(y + 1)})
			rect := canvas.Rectangle(float64(run[1]-run[0]), 1).Translate(cx, cy)
			renderer.RenderPath(rect, obstacleStyle, canvas.Identity)
		}
	}

	// Fused surface: observed cells at or behind the zero crossing
	if r.Field != nil {
		cell := 1 / r.Field.Params().CellsPerUnit
		surfaceStyle := canvas.DefaultStyle
		surfaceStyle.Fill = canvas.Paint{Color: nrgbaToRGBA(color.NRGBA{220, 40, 40, 200})}
		surfaceStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
		for j := 0; j < r.Field.Height; j++ {
			runs := occupiedRuns(r.Field.Width, func(i int) bool {
				d, w := r.Field.Cell(i, j)
				return w > 0 && d <= 0
			})
			for _, run := range runs {
				cx, cy := toCanvas(Point{X: float64(run[0]) * cell, Y: float64(j+1) * cell})
				rect := canvas.Rectangle(float64(run[1]-run[0])*cell, cell).Translate(cx, cy)
				renderer.RenderPath(rect, surfaceStyle, canvas.Identity)
			}
		}
	}

	if r.GridSpacing > 0 {
		gridStyle := canvas.DefaultStyle
		gridStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		gridStyle.Stroke = canvas.Paint{Color: canvas.Gray}
		gridStyle.StrokeWidth = 0.3
		gridStyle.Dashes = []float64{2.0, 2.0}

		w, h := float64(r.Ground.Width), float64(r.Ground.Height)
		for x := 0.0; x <= w; x += r.GridSpacing {
			gridPath := &canvas.Path{}
			gridPath.MoveTo(toCanvas(Point{X: x, Y: 0}))
			gridPath.LineTo(toCanvas(Point{X: x, Y: h}))
			renderer.RenderPath(gridPath, gridStyle, canvas.Identity)
		}
		for y := 0.0; y <= h; y += r.GridSpacing {
			gridPath := &canvas.Path{}
			gridPath.MoveTo(toCanvas(Point{X: 0, Y: y}))
			gridPath.LineTo(toCanvas(Point{X: w, Y: y}))
			renderer.RenderPath(gridPath, gridStyle, canvas.Identity)
		}
	}

	if r.Trails != nil {
		trails := []orb.LineString{r.Trails.Truth, r.Trails.Estimate, r.Trails.Odometry}
		for i, ls := range trails {
			if len(ls) < 2 {
				continue
			}
			trailStyle := canvas.DefaultStyle
			trailStyle.Fill = canvas.Paint{Color: canvas.Transparent}
			trailStyle.Stroke = canvas.Paint{Color: r.style(i).Color}
			trailStyle.StrokeWidth = 0.5
			trailStyle.Dashes = []float64{1.5, 1.0}
			renderer.RenderPath(polyline(ls, toCanvas), trailStyle, canvas.Identity)
		}
	}

	for i, arm := range r.Arms {
		c := r.style(i).Color
		points := make(orb.LineString, 0, arm.DOF()+2)
		points = append(points, toOrb(arm.Base()))
		for l := 0; l <= arm.DOF(); l++ {
			points = append(points, toOrb(arm.LinkEnd(l)))
		}

		linkStyle := canvas.DefaultStyle
		linkStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		linkStyle.Stroke = canvas.Paint{Color: c}
		linkStyle.StrokeWidth = 2.0
		renderer.RenderPath(polyline(points, toCanvas), linkStyle, canvas.Identity)

		jointStyle := canvas.DefaultStyle
		jointStyle.Fill = canvas.Paint{Color: canvas.White}
		jointStyle.Stroke = canvas.Paint{Color: c}
		jointStyle.StrokeWidth = 0.5
		for j := 0; j < arm.DOF(); j++ {
			cx, cy := toCanvas(arm.JointPosition(j))
			renderer.RenderPath(canvas.Circle(2.0).Translate(cx, cy), jointStyle, canvas.Identity)
		}
	}
}

func (r *VectorRenderer) style(i int) ArmStyle {
	if i < len(r.Styles) {
		return r.Styles[i]
	}
	return ArmStyle{Color: color.RGBA{0, 0, 0, 255}}
}

func polyline(ls orb.LineString, toCanvas func(Point) (float64, float64)) *canvas.Path {
	p := &canvas.Path{}
	for i, pt := range ls {
		cx, cy := toCanvas(Point{X: pt[0], Y: pt[1]})
		if i == 0 {
			p.MoveTo(cx, cy)
		} else {
			p.LineTo(cx, cy)
		}
	}
	return p
}

// occupiedRuns returns [start, end) index ranges where set holds.
func occupiedRuns(n int, set func(int) bool) [][2]int {
	var runs [][2]int
	start := -1
	for i := 0; i < n; i++ {
		switch {
		case set(i) && start < 0:
			start = i
		case !set(i) && start >= 0:
			runs = append(runs, [2]int{start, i})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, [2]int{start, n})
	}
	return runs
}
