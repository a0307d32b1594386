package slam

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configValues(configs []Mat) [][]float64 {
	out := make([][]float64, len(configs))
	for i, q := range configs {
		out[i] = q.Values()
	}
	return out
}

func TestTrajectoryRoundTrip(t *testing.T) {
	want := []Mat{
		NewVec(0, 0.1, -0.2),
		NewVec(1.0/3, -2.5e-7, 3.14159),
		NewVec(-1, 0, 1),
	}
	var buf bytes.Buffer
	require.NoError(t, WriteTrajectory(&buf, want))
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))

	got, err := ReadTrajectory(&buf, 3)
	require.NoError(t, err)
	if diff := cmp.Diff(configValues(want), configValues(got), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("trajectory mismatch (-want +got):\n%s", diff)
	}
}

func TestTrajectoryReaderSkipsBlankLines(t *testing.T) {
	tr := NewTrajectoryReader(strings.NewReader("\n0.1 0.2\n   \n0.3\t0.4\n"), 2)
	first, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, first.Values())

	second, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3, 0.4}, second.Values())

	_, err = tr.Next()
	assert.True(t, errors.Is(err, ErrExhaustedTrajectory))
	assert.NoError(t, tr.Close())
}

func TestTrajectoryReaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"wrong joint count", "0.1 0.2 0.3\n", "want 2 angles, got 3"},
		{"not a number", "0.1 abc\n", "trajectory line 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTrajectoryReader(strings.NewReader(tt.input), 2).Next()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.False(t, errors.Is(err, ErrExhaustedTrajectory))
		})
	}
}

func TestSaveAndOpenTrajectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traj.txt")
	require.NoError(t, SaveTrajectory(path, []Mat{NewVec(0.5, -0.5)}))

	tr, err := OpenTrajectory(path, 2)
	require.NoError(t, err)
	defer tr.Close()
	q, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -0.5}, q.Values())

	_, err = OpenTrajectory(filepath.Join(t.TempDir(), "missing.txt"), 2)
	assert.Error(t, err)
}
