// Package tensor provides the dense row-major matrix the graph autoencoder
// computes with. Unlike gonum's mat.Dense it allows zero rows and zero
// columns, which the per-type assembly relies on for empty blocks.
package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Matrix is a dense rows x cols matrix of float64 in row-major order
type Matrix struct {
	rows int
	cols int
	data []float64
}

// New returns a zero-filled rows x cols matrix
func New(rows, cols int) *Matrix {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("tensor: negative dimension %dx%d", rows, cols))
	}
	return &Matrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// Full returns a rows x cols matrix with every element set to v
func Full(rows, cols int, v float64) *Matrix {
	m := New(rows, cols)
	for i := range m.data {
		m.data[i] = v
	}
	return m
}

// FromRows copies rows into a new matrix. Every row must have cols elements.
func FromRows(cols int, rows [][]float64) *Matrix {
	m := New(len(rows), cols)
	for i, row := range rows {
		if len(row) != cols {
			panic(fmt.Sprintf("tensor: row %d has %d columns, expected %d", i, len(row), cols))
		}
		copy(m.Row(i), row)
	}
	return m
}

func (m *Matrix) Rows() int { return m.rows }
func (m *Matrix) Cols() int { return m.cols }

// Row returns row i as a slice sharing the matrix storage
func (m *Matrix) Row(i int) []float64 {
	return m.data[i*m.cols : (i+1)*m.cols : (i+1)*m.cols]
}

func (m *Matrix) At(i, j int) float64 { return m.data[i*m.cols+j] }

func (m *Matrix) Set(i, j int, v float64) { m.data[i*m.cols+j] = v }

// RawData returns the backing slice
func (m *Matrix) RawData() []float64 { return m.data }

func (m *Matrix) Clone() *Matrix {
	c := New(m.rows, m.cols)
	copy(c.data, m.data)
	return c
}

// Gather returns the rows at indices, in order
func (m *Matrix) Gather(indices []int) *Matrix {
	out := New(len(indices), m.cols)
	for i, idx := range indices {
		copy(out.Row(i), m.Row(idx))
	}
	return out
}

// Scatter writes row i of src into row indices[i] of m
func (m *Matrix) Scatter(indices []int, src *Matrix) {
	if src.rows != len(indices) || src.cols != m.cols {
		panic(fmt.Sprintf("tensor: scatter of %dx%d into %d rows of width %d", src.rows, src.cols, len(indices), m.cols))
	}
	for i, idx := range indices {
		copy(m.Row(idx), src.Row(i))
	}
}

// Narrow returns a copy of the columns [start, start+width)
func (m *Matrix) Narrow(start, width int) *Matrix {
	if start < 0 || width < 0 || start+width > m.cols {
		panic(fmt.Sprintf("tensor: narrow [%d,%d) of width %d", start, start+width, m.cols))
	}
	out := New(m.rows, width)
	for i := 0; i < m.rows; i++ {
		copy(out.Row(i), m.Row(i)[start:start+width])
	}
	return out
}

// HConcat concatenates blocks column-wise. rows fixes the height so that an
// empty block list still yields a rows x 0 matrix.
func HConcat(rows int, blocks ...*Matrix) *Matrix {
	cols := 0
	for _, b := range blocks {
		if b.rows != rows {
			panic(fmt.Sprintf("tensor: concat block with %d rows, expected %d", b.rows, rows))
		}
		cols += b.cols
	}
	out := New(rows, cols)
	for i := 0; i < rows; i++ {
		row := out.Row(i)
		offset := 0
		for _, b := range blocks {
			copy(row[offset:offset+b.cols], b.Row(i))
			offset += b.cols
		}
	}
	return out
}

// Apply replaces every element x with fn(x)
func (m *Matrix) Apply(fn func(float64) float64) {
	for i, v := range m.data {
		m.data[i] = fn(v)
	}
}

// IsZero reports whether every element is exactly zero
func (m *Matrix) IsZero() bool {
	for _, v := range m.data {
		if v != 0 {
			return false
		}
	}
	return true
}

// HasNaN reports whether any element is NaN
func (m *Matrix) HasNaN() bool {
	return floats.HasNaN(m.data)
}

// RowHasNaN reports whether row i reduces to NaN
func (m *Matrix) RowHasNaN(i int) bool {
	return math.IsNaN(floats.Sum(m.Row(i)))
}

// Equal reports exact element-wise equality including shape
func (m *Matrix) Equal(o *Matrix) bool {
	if m.rows != o.rows || m.cols != o.cols {
		return false
	}
	return floats.Equal(m.data, o.data)
}

// EqualApprox reports element-wise equality within tol
func (m *Matrix) EqualApprox(o *Matrix, tol float64) bool {
	if m.rows != o.rows || m.cols != o.cols {
		return false
	}
	return floats.EqualApprox(m.data, o.data, tol)
}

func (m *Matrix) String() string {
	return fmt.Sprintf("Matrix(%dx%d)", m.rows, m.cols)
}
