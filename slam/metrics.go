package slam

import (
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Values flattens a record into the metrics line layout:
// tsdfError classificationError eePosError odomQ... trackQ... trueQ...
func (m TickMetrics) Values() []float64 {
	out := make([]float64, 0, 3+len(m.OdomQ)+len(m.TrackQ)+len(m.TrueQ))
	out = append(out, m.FieldError, m.ClassificationError, m.EEPosError)
	out = append(out, m.OdomQ...)
	out = append(out, m.TrackQ...)
	out = append(out, m.TrueQ...)
	return out
}

// SquaredConfigError returns |trackQ - trueQ|^2.
func (m TickMetrics) SquaredConfigError() float64 {
	var sum float64
	for i := range m.TrueQ {
		if i >= len(m.TrackQ) {
			break
		}
		d := m.TrackQ[i] - m.TrueQ[i]
		sum += d * d
	}
	return sum
}

// MetricsWriter appends one line per tick to an experiment metrics file.
type MetricsWriter struct {
	w      *bufio.Writer
	closer io.Closer
}

// NewMetricsWriter buffers records onto w.
func NewMetricsWriter(w io.Writer) *MetricsWriter {
	mw := &MetricsWriter{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		mw.closer = c
	}
	return mw
}

// CreateMetricsFile truncates path and returns a writer for it.
func CreateMetricsFile(path string) (*MetricsWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "creating metrics file")
	}
	return NewMetricsWriter(f), nil
}

// Write appends one record.
func (mw *MetricsWriter) Write(m TickMetrics) error {
	return writeFloats(mw.w, m.Values())
}

// Flush pushes buffered records to the underlying writer.
func (mw *MetricsWriter) Flush() error {
	return mw.w.Flush()
}

// Close flushes and releases the underlying file, if any.
func (mw *MetricsWriter) Close() error {
	err := mw.Flush()
	if mw.closer != nil {
		if cerr := mw.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// MetricsHistory keeps the most recent records for plots and snapshots.
type MetricsHistory struct {
	limit   int
	records []TickMetrics
}

// NewMetricsHistory keeps at most limit records; limit <= 0 keeps everything.
func NewMetricsHistory(limit int) *MetricsHistory {
	return &MetricsHistory{limit: limit}
}

// Add appends a record, dropping the oldest beyond the limit.
func (h *MetricsHistory) Add(m TickMetrics) {
	h.records = append(h.records, m)
	if h.limit > 0 && len(h.records) > h.limit {
		h.records = h.records[len(h.records)-h.limit:]
	}
}

// Records returns a copy of the retained records, oldest first.
func (h *MetricsHistory) Records() []TickMetrics {
	return append([]TickMetrics(nil), h.records...)
}

// Len returns the number of retained records.
func (h *MetricsHistory) Len() int { return len(h.records) }

// Last returns the newest record.
func (h *MetricsHistory) Last() (TickMetrics, bool) {
	if len(h.records) == 0 {
		return TickMetrics{}, false
	}
	return h.records[len(h.records)-1], true
}
