package graph

import (
	"fmt"
)

// Incidence is an N x N boolean matrix: (i, j) is set when entity i relates
// to entity j.
type Incidence struct {
	n    int
	bits []bool
}

func NewIncidence(n int) *Incidence {
	return &Incidence{n: n, bits: make([]bool, n*n)}
}

// IncidenceFromEdges builds an incidence from (source, target) row pairs
func IncidenceFromEdges(n int, edges [][2]int) *Incidence {
	m := NewIncidence(n)
	for _, e := range edges {
		m.Set(e[0], e[1], true)
	}
	return m
}

func (m *Incidence) Size() int { return m.n }

func (m *Incidence) Set(i, j int, v bool) {
	if i < 0 || j < 0 || i >= m.n || j >= m.n {
		panic(fmt.Sprintf("graph: incidence index (%d,%d) out of range %d", i, j, m.n))
	}
	m.bits[i*m.n+j] = v
}

func (m *Incidence) Has(i, j int) bool {
	return m.bits[i*m.n+j]
}

// Transpose returns the reverse relation
func (m *Incidence) Transpose() *Incidence {
	t := NewIncidence(m.n)
	for i := 0; i < m.n; i++ {
		for j := 0; j < m.n; j++ {
			t.bits[j*m.n+i] = m.bits[i*m.n+j]
		}
	}
	return t
}

// Neighbors returns the column indices set in row i, ascending
func (m *Incidence) Neighbors(i int) []int {
	var out []int
	for j, set := range m.bits[i*m.n : (i+1)*m.n] {
		if set {
			out = append(out, j)
		}
	}
	return out
}

// Segments returns the neighbour list of every row in rows, in order
func (m *Incidence) Segments(rows []int) [][]int {
	segments := make([][]int, len(rows))
	for k, i := range rows {
		segments[k] = m.Neighbors(i)
	}
	return segments
}

// EdgeCount is the number of set entries
func (m *Incidence) EdgeCount() int {
	count := 0
	for _, set := range m.bits {
		if set {
			count++
		}
	}
	return count
}

// Adjacency maps relation names to their incidence matrices. A relation
// missing from the map has no edges.
type Adjacency map[string]*Incidence

// Reversed returns the transposed incidence of every relation
func (a Adjacency) Reversed() Adjacency {
	r := make(Adjacency, len(a))
	for name, m := range a {
		r[name] = m.Transpose()
	}
	return r
}
