// Package graph holds the batch and adjacency inputs of a forward pass and
// the traversal used to collect a receptive field from stored entities.
package graph

import (
	"github.com/siherrmann/graphae/core/tensor"
)

// Batch is N entities in column form. Columns maps a data field name to its
// N x width encoded column; a field without a column is absent on every row.
type Batch struct {
	IDs         []string
	EntityTypes []string
	Columns     map[string]*tensor.Matrix
}

// Len is the number of entities N
func (b *Batch) Len() int {
	return len(b.IDs)
}

// Column returns the encoded column of a field
func (b *Batch) Column(name string) (*tensor.Matrix, bool) {
	if b.Columns == nil {
		return nil, false
	}
	c, ok := b.Columns[name]
	return c, ok
}

// Position maps external ids to row indices
func (b *Batch) Position() map[string]int {
	position := make(map[string]int, len(b.IDs))
	for i, id := range b.IDs {
		position[id] = i
	}
	return position
}
