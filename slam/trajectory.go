package slam

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// TrajectoryReader yields recorded configurations in file order. Each
// non-blank line holds whitespace-separated joint angles in radians.
type TrajectoryReader struct {
	scanner *bufio.Scanner
	dof     int
	line    int
	closer  io.Closer
}

// NewTrajectoryReader reads configurations of dof joints from r.
func NewTrajectoryReader(r io.Reader, dof int) *TrajectoryReader {
	tr := &TrajectoryReader{scanner: bufio.NewScanner(r), dof: dof}
	if c, ok := r.(io.Closer); ok {
		tr.closer = c
	}
	return tr
}

// OpenTrajectory opens a trajectory file for reading.
func OpenTrajectory(path string, dof int) (*TrajectoryReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening trajectory")
	}
	return NewTrajectoryReader(f, dof), nil
}

// Next returns the next configuration, or ErrExhaustedTrajectory once the
// input is consumed.
func (tr *TrajectoryReader) Next() (Mat, error) {
	for tr.scanner.Scan() {
		tr.line++
		fields := strings.Fields(tr.scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != tr.dof {
			return Mat{}, errors.Errorf("trajectory line %d: want %d angles, got %d", tr.line, tr.dof, len(fields))
		}
		q := NewMat(tr.dof, 1)
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return Mat{}, errors.Wrapf(err, "trajectory line %d", tr.line)
			}
			q.SetIndex(i, v)
		}
		return q, nil
	}
	if err := tr.scanner.Err(); err != nil {
		return Mat{}, errors.Wrap(err, "reading trajectory")
	}
	return Mat{}, ErrExhaustedTrajectory
}

// Close releases the underlying file, if any.
func (tr *TrajectoryReader) Close() error {
	if tr.closer == nil {
		return nil
	}
	return tr.closer.Close()
}

// ReadTrajectory loads every configuration from r.
func ReadTrajectory(r io.Reader, dof int) ([]Mat, error) {
	tr := NewTrajectoryReader(r, dof)
	var out []Mat
	for {
		q, err := tr.Next()
		if errors.Is(err, ErrExhaustedTrajectory) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
}

// WriteTrajectory writes one configuration per line.
func WriteTrajectory(w io.Writer, configs []Mat) error {
	bw := bufio.NewWriter(w)
	for _, q := range configs {
		if err := writeFloats(bw, q.Values()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveTrajectory writes configs to path.
func SaveTrajectory(path string, configs []Mat) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating trajectory")
	}
	if err := WriteTrajectory(f, configs); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "writing trajectory")
	}
	return f.Close()
}

// writeFloats writes values space-separated on one line with full precision.
func writeFloats(w io.Writer, values []float64) error {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	_, err := fmt.Fprintln(w, strings.Join(parts, " "))
	return err
}
