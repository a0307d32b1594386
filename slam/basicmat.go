package slam

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Mat is a small dense matrix with a shape fixed at construction.
// Operations return new values and never alias their operands. Shape
// mismatches are caller bugs and panic with mat.ErrShape.
type Mat struct {
	d *mat.Dense
}

// NewMat returns a zeroed rows x cols matrix.
func NewMat(rows, cols int) Mat {
	return Mat{d: mat.NewDense(rows, cols, nil)}
}

// NewMatFrom returns a rows x cols matrix holding a copy of data in row-major order.
func NewMatFrom(rows, cols int, data []float64) Mat {
	buf := make([]float64, len(data))
	copy(buf, data)
	return Mat{d: mat.NewDense(rows, cols, buf)}
}

// NewVec returns a column vector holding a copy of values.
func NewVec(values ...float64) Mat {
	return NewMatFrom(len(values), 1, values)
}

// MatFromPoint returns p as a 2x1 column vector.
func MatFromPoint(p Point) Mat {
	return NewVec(p.X, p.Y)
}

// Rows returns the number of rows
func (m Mat) Rows() int {
	r, _ := m.d.Dims()
	return r
}

// Cols returns the number of columns
func (m Mat) Cols() int {
	_, c := m.d.Dims()
	return c
}

// At returns the element at (r, c).
func (m Mat) At(r, c int) float64 {
	return m.d.At(r, c)
}

// Set stores v at (r, c).
func (m Mat) Set(r, c int, v float64) {
	m.d.Set(r, c, v)
}

// Index returns the element at row-major flat index i.
func (m Mat) Index(i int) float64 {
	cols := m.Cols()
	return m.d.At(i/cols, i%cols)
}

// SetIndex stores v at row-major flat index i.
func (m Mat) SetIndex(i int, v float64) {
	cols := m.Cols()
	m.d.Set(i/cols, i%cols, v)
}

// Len returns rows*cols.
func (m Mat) Len() int {
	r, c := m.d.Dims()
	return r * c
}

// Clone returns a deep copy.
func (m Mat) Clone() Mat {
	return Mat{d: mat.DenseCopyOf(m.d)}
}

// Add returns m + other.
func (m Mat) Add(other Mat) Mat {
	var out mat.Dense
	out.Add(m.d, other.d)
	return Mat{d: &out}
}

// Sub returns m - other.
func (m Mat) Sub(other Mat) Mat {
	var out mat.Dense
	out.Sub(m.d, other.d)
	return Mat{d: &out}
}

// Scale returns m multiplied by s.
func (m Mat) Scale(s float64) Mat {
	var out mat.Dense
	out.Scale(s, m.d)
	return Mat{d: &out}
}

// Mul returns m * rhs (post-multiplication).
func (m Mat) Mul(rhs Mat) Mat {
	var out mat.Dense
	out.Mul(m.d, rhs.d)
	return Mat{d: &out}
}

// PreMul returns lhs * m.
func (m Mat) PreMul(lhs Mat) Mat {
	return lhs.Mul(m)
}

// T returns the transpose of m as a new matrix.
func (m Mat) T() Mat {
	return Mat{d: mat.DenseCopyOf(m.d.T())}
}

// Values returns a copy of the elements in row-major order.
func (m Mat) Values() []float64 {
	r, c := m.d.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.d.At(i, j))
		}
	}
	return out
}

// SquaredNorm returns the sum of squared elements.
func (m Mat) SquaredNorm() float64 {
	n := mat.Norm(m.d, 2) // Frobenius for general matrices
	return n * n
}

// String formats the matrix one row per line.
func (m Mat) String() string {
	var sb strings.Builder
	r, c := m.d.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			fmt.Fprintf(&sb, "%g ", m.d.At(i, j))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
