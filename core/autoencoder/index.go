package autoencoder

import (
	"log/slog"

	"github.com/siherrmann/graphae/core/graph"
	"github.com/siherrmann/graphae/helper"
)

// EntityFieldKey identifies a declared (entity type, data field) pair by id
type EntityFieldKey struct {
	EntityType int
	Field      int
}

// Index holds the row index sets of one batch. EntityField[(t, f)] is the
// intersection of Entity[t] and Field[f] for every field declared by t.
type Index struct {
	Entity      [][]int // by entity type id
	Field       [][]int // by data field id, rows where the field is present
	EntityField map[EntityFieldKey][]int
	Untyped     []int // rows whose type tag matches no entity type
}

// validate checks the batch and adjacency against the schema
func (g *GraphAutoencoder) validate(batch *graph.Batch, adjacency graph.Adjacency) error {
	if batch == nil {
		return helper.ShapeError("batch is nil")
	}
	n := len(batch.IDs)
	if len(batch.EntityTypes) != n {
		return helper.ShapeError("batch has %d ids but %d entity types", n, len(batch.EntityTypes))
	}
	for name, column := range batch.Columns {
		codec, ok := g.schema.DataField(name)
		if !ok {
			return helper.ShapeError("batch column '%s' is not a data field", name)
		}
		if column.Rows() != n || column.Cols() != codec.Width() {
			return helper.ShapeError("column '%s' is %dx%d, expected %dx%d", name, column.Rows(), column.Cols(), n, codec.Width())
		}
	}
	for name, incidence := range adjacency {
		if _, ok := g.schema.Relation(name); !ok {
			return helper.ShapeError("adjacency relation '%s' is not declared", name)
		}
		if incidence == nil || incidence.Size() != n {
			size := 0
			if incidence != nil {
				size = incidence.Size()
			}
			return helper.ShapeError("adjacency '%s' is %dx%d, batch has %d entities", name, size, size, n)
		}
	}
	return nil
}

// buildIndex computes presence and membership index sets
func (g *GraphAutoencoder) buildIndex(batch *graph.Batch) *Index {
	s := g.schema
	ix := &Index{
		Entity:      make([][]int, len(s.EntityTypes)),
		Field:       make([][]int, len(s.DataFields)),
		EntityField: map[EntityFieldKey][]int{},
	}

	present := make([][]bool, len(s.DataFields))
	for id, codec := range s.DataFields {
		present[id] = make([]bool, batch.Len())
		column, ok := batch.Column(codec.Name())
		if !ok {
			continue
		}
		for i := 0; i < batch.Len(); i++ {
			if codec.IsPresent(column.Row(i)) {
				present[id][i] = true
				ix.Field[id] = append(ix.Field[id], i)
			}
		}
	}

	for i, typeName := range batch.EntityTypes {
		et, ok := s.EntityType(typeName)
		if !ok {
			ix.Untyped = append(ix.Untyped, i)
			continue
		}
		ix.Entity[et.ID] = append(ix.Entity[et.ID], i)
	}
	if len(ix.Untyped) > 0 {
		g.logger.Debug("Rows with unknown entity type belong to no autoencoder", slog.Int("count", len(ix.Untyped)))
	}

	for _, et := range s.EntityTypes {
		for _, f := range et.DataFields {
			key := EntityFieldKey{EntityType: et.ID, Field: f}
			rows := []int{}
			for _, i := range ix.Entity[et.ID] {
				if present[f][i] {
					rows = append(rows, i)
				}
			}
			ix.EntityField[key] = rows
		}
	}
	return ix
}
