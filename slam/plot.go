package slam

import (
	"image/color"
	"io"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// metricSeries picks one value per record for a plot line.
type metricSeries struct {
	label string
	color color.Color
	value func(TickMetrics) float64
}

var plottedMetrics = []metricSeries{
	{"tsdf error", color.RGBA{R: 200, G: 30, B: 30, A: 255}, func(m TickMetrics) float64 { return m.FieldError }},
	{"classification error", color.RGBA{R: 30, G: 120, B: 200, A: 255}, func(m TickMetrics) float64 { return m.ClassificationError }},
	{"ee position error", color.RGBA{R: 40, G: 160, B: 60, A: 255}, func(m TickMetrics) float64 { return m.EEPosError }},
	{"|q track - q true|^2", color.RGBA{R: 120, G: 60, B: 160, A: 255}, TickMetrics.SquaredConfigError},
}

// NewMetricsPlot charts every error series against the tick index.
func NewMetricsPlot(records []TickMetrics, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Tick"
	p.Y.Label.Text = "Error"

	for _, series := range plottedMetrics {
		pts := make(plotter.XYs, 0, len(records))
		for _, m := range records {
			pts = append(pts, plotter.XY{X: float64(m.Tick), Y: series.value(m)})
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, errors.Wrapf(err, "plotting %s", series.label)
		}
		line.Color = series.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(series.label, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WriteMetricsPlot renders the metrics chart as PNG onto w.
func WriteMetricsPlot(w io.Writer, records []TickMetrics, title string) error {
	p, err := NewMetricsPlot(records, title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return errors.Wrap(err, "creating plot writer")
	}
	_, err = wt.WriteTo(w)
	return errors.Wrap(err, "writing plot")
}

// SaveMetricsPlot renders the metrics chart to path; the extension picks the format.
func SaveMetricsPlot(path string, records []TickMetrics, title string) error {
	p, err := NewMetricsPlot(records, title)
	if err != nil {
		return err
	}
	return errors.Wrap(p.Save(10*vg.Inch, 5*vg.Inch, path), "saving plot")
}
