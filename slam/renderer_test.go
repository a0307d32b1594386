package slam

import (
	"bytes"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"
	"testing"
)

func TestFieldColor(t *testing.T) {
	tests := []struct {
		name string
		d, w float64
		want color.NRGBA
	}{
		{"unobserved", 2, 0, color.NRGBA{}},
		{"deep behind surface", -10, 50, color.NRGBA{R: 220, G: 0, B: 0, A: 255}},
		{"far in free space", 10, 50, color.NRGBA{R: 0, G: 0, B: 220, A: 255}},
		{"on the surface", 0, 50, color.NRGBA{R: 220, G: 200, B: 200, A: 255}},
		{"light weight", 5, 0, color.NRGBA{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fieldColor(tt.d, tt.w, 5, 50); got != tt.want {
				t.Errorf("fieldColor(%v, %v) = %v, want %v", tt.d, tt.w, got, tt.want)
			}
		})
	}

	faint := fieldColor(5, 1, 5, 50)
	if faint.A <= 80 || faint.A >= 90 {
		t.Errorf("alpha for weight 1 = %d, want just above 80", faint.A)
	}
}

func TestFieldRenderer_Render(t *testing.T) {
	ground := boxField(t, 50)
	r := NewFieldRenderer(ground, nil)

	img := r.Render()
	if got := img.Bounds().Dx(); got != 120 {
		t.Errorf("width = %d, want 120", got)
	}
	if got := img.Bounds().Dy(); got != 120 {
		t.Errorf("height = %d, want 120", got)
	}

	// Bottom-right wall cell (49, 49) starts at pixel 10 + 49*2.
	if got := img.RGBAAt(108, 108); got != (color.RGBA{90, 90, 90, 255}) {
		t.Errorf("wall pixel = %v, want obstacle gray", got)
	}
	if got := img.RGBAAt(60, 60); got != (color.RGBA{240, 240, 240, 255}) {
		t.Errorf("free pixel = %v, want background", got)
	}
	if got := img.RGBAAt(2, 2); got != (color.RGBA{240, 240, 240, 255}) {
		t.Errorf("padding pixel = %v, want background", got)
	}
}

func TestFieldRenderer_BlendsField(t *testing.T) {
	ground := boxField(t, 50)
	field, err := NewFusedDistanceField(ground, DefaultFieldParams())
	if err != nil {
		t.Fatalf("NewFusedDistanceField: %v", err)
	}
	field.FuseRayCloud(Point{X: 25.5, Y: 25.5}, 0, []Point{{X: 20}}, nil)

	r := NewFieldRenderer(ground, field)
	img := r.Render()
	// Cell (45, 25) sits on the fused surface: blended toward the surface colour.
	got := img.RGBAAt(10+45*2, 10+25*2)
	if got.R <= got.B {
		t.Errorf("surface pixel = %v, want red-dominant", got)
	}
}

func TestNewSessionRenderer(t *testing.T) {
	s := newTestSession(t, testSessionConfig(ModeOdometry, 2))
	if _, err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	r := NewSessionRenderer(s)
	if len(r.Arms) != 3 {
		t.Fatalf("len(Arms) = %d, want 3", len(r.Arms))
	}
	if r.Arms[0] != s.Rig.Truth {
		t.Error("first arm should be the truth arm")
	}
	if len(r.Rays) == 0 {
		t.Error("expected sensor hits to draw")
	}
	if !strings.Contains(r.Caption, "Odometry") || !strings.Contains(r.Caption, "tick 1") {
		t.Errorf("Caption = %q", r.Caption)
	}

	var buf bytes.Buffer
	if err := r.EncodePNG(&buf); err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 420 {
		t.Errorf("width = %d, want 420", img.Bounds().Dx())
	}

	// Truth end effector at (160, 100) is drawn in the truth colour.
	ee := img.At(10+160*2, 10+100*2+2)
	if c := color.RGBAModel.Convert(ee).(color.RGBA); c != DefaultArmStyles()[0].Color &&
		c != DefaultArmStyles()[1].Color && c != DefaultArmStyles()[2].Color {
		t.Errorf("end effector pixel = %v, want an arm colour", c)
	}
}

func TestFieldRenderer_SavePNG(t *testing.T) {
	r := NewFieldRenderer(boxField(t, 20), nil)
	if err := r.SavePNG(filepath.Join(t.TempDir(), "field.png")); err != nil {
		t.Fatalf("SavePNG: %v", err)
	}
	if err := r.SavePNG(filepath.Join(t.TempDir(), "missing", "field.png")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestBlendColors(t *testing.T) {
	bg := color.RGBA{200, 200, 200, 255}
	if got := blendColors(bg, color.NRGBA{0, 0, 0, 255}); got != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("opaque blend = %v", got)
	}
	if got := blendColors(bg, color.NRGBA{0, 0, 0, 0}); got != (color.NRGBA{200, 200, 200, 255}) {
		t.Errorf("transparent blend = %v", got)
	}
}
