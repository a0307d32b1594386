package slam

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plotRecords(n int) []TickMetrics {
	out := make([]TickMetrics, n)
	for i := range out {
		out[i] = sampleMetrics(i)
		out[i].FieldError = 5 / float64(i+1)
	}
	return out
}

func TestNewMetricsPlot(t *testing.T) {
	p, err := NewMetricsPlot(plotRecords(20), "ConstrainedDescent")
	require.NoError(t, err)
	assert.Equal(t, "ConstrainedDescent", p.Title.Text)
	assert.Equal(t, "Tick", p.X.Label.Text)

	empty, err := NewMetricsPlot(nil, "empty")
	require.NoError(t, err)
	assert.NotNil(t, empty)
}

func TestWriteMetricsPlot(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMetricsPlot(&buf, plotRecords(10), "GroundTruth"))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())
}

func TestSaveMetricsPlot(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"metrics.png", "metrics.svg"} {
		path := filepath.Join(dir, name)
		require.NoError(t, SaveMetricsPlot(path, plotRecords(5), "Odometry"), name)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
	assert.Error(t, SaveMetricsPlot(filepath.Join(dir, "metrics.unknown"), plotRecords(5), "x"))
}
