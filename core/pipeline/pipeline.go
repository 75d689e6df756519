// Package pipeline turns stored entities and edges into forward pass inputs
// and forward pass outputs back into entities.
package pipeline

import (
	"github.com/siherrmann/graphae/core/autoencoder"
	"github.com/siherrmann/graphae/core/field"
	"github.com/siherrmann/graphae/core/graph"
	"github.com/siherrmann/graphae/core/schema"
	"github.com/siherrmann/graphae/core/tensor"
	"github.com/siherrmann/graphae/helper"
	"github.com/siherrmann/graphae/model"
)

// Observe runs the observe pass over the declared fields of every entity.
// Entities of unknown type and fields their type does not declare are skipped.
func Observe(s *schema.Schema, entities []*model.Entity) error {
	for _, entity := range entities {
		et, ok := s.EntityType(entity.Type)
		if !ok {
			continue
		}
		for _, f := range et.DataFields {
			name := s.DataFields[f].Name()
			if err := s.Observe(name, entity.Fields[name]); err != nil {
				return helper.NewError("observe entity "+entity.ExternalID, err)
			}
		}
	}
	return nil
}

// Assemble encodes entities into a batch and edges into one incidence matrix
// per relation. Rows follow the order of entities. Edges with an end outside
// the entities are dropped.
func Assemble(s *schema.Schema, entities []*model.Entity, edges []*model.Edge) (*graph.Batch, graph.Adjacency, error) {
	if err := s.RequireFrozen("assemble"); err != nil {
		return nil, nil, err
	}
	n := len(entities)
	batch := &graph.Batch{
		IDs:         make([]string, n),
		EntityTypes: make([]string, n),
		Columns:     make(map[string]*tensor.Matrix, len(s.DataFields)),
	}
	for _, codec := range s.DataFields {
		column := tensor.New(n, codec.Width())
		missing := codec.Missing()
		for i := 0; i < n; i++ {
			copy(column.Row(i), missing)
		}
		batch.Columns[codec.Name()] = column
	}

	position := make(map[string]int, n)
	for i, entity := range entities {
		if _, ok := position[entity.ExternalID]; ok {
			return nil, nil, helper.NewError("assemble", helper.ShapeError("duplicate entity id '%s'", entity.ExternalID))
		}
		position[entity.ExternalID] = i
		batch.IDs[i] = entity.ExternalID
		batch.EntityTypes[i] = entity.Type

		et, ok := s.EntityType(entity.Type)
		if !ok {
			continue
		}
		for _, f := range et.DataFields {
			codec := s.DataFields[f]
			encoded, err := s.Encode(codec.Name(), entity.Fields[codec.Name()])
			if err != nil {
				return nil, nil, helper.NewError("assemble entity "+entity.ExternalID, err)
			}
			copy(batch.Columns[codec.Name()].Row(i), encoded)
		}
	}

	adjacency := make(graph.Adjacency, len(s.Relations))
	for _, r := range s.Relations {
		adjacency[r.Name] = graph.NewIncidence(n)
	}
	for _, edge := range edges {
		relation, ok := s.Relation(edge.Relation)
		if !ok {
			return nil, nil, helper.NewError("assemble", helper.ShapeError("edge relation '%s' is not declared", edge.Relation))
		}
		source, okSource := position[edge.SourceID]
		target, okTarget := position[edge.TargetID]
		if !okSource || !okTarget {
			continue
		}
		if entities[source].Type != s.EntityTypes[relation.Source].Name || entities[target].Type != s.EntityTypes[relation.Target].Name {
			return nil, nil, helper.NewError("assemble", helper.ShapeError(
				"edge '%s' connects %s to %s, relation declares %s to %s",
				edge.Relation, entities[source].Type, entities[target].Type,
				s.EntityTypes[relation.Source].Name, s.EntityTypes[relation.Target].Name,
			))
		}
		adjacency[relation.Name].Set(source, target, true)
	}

	return batch, adjacency, nil
}

// DecodeEntities turns reconstructions back into entities with raw field
// values and the final bottleneck as embedding. Fields absent from the input
// decode to nil unless impute is set, in which case the reconstruction fills
// them in.
func DecodeEntities(s *schema.Schema, batch *graph.Batch, out *autoencoder.Output, impute bool) ([]*model.Entity, error) {
	if batch.Len() != len(out.IDs) {
		return nil, helper.NewError("decode entities", helper.ShapeError("batch has %d rows, output %d", batch.Len(), len(out.IDs)))
	}

	entities := make([]*model.Entity, batch.Len())
	for i := range entities {
		entity := &model.Entity{
			ExternalID: out.IDs[i],
			Type:       out.EntityTypes[i],
			Fields:     model.Values{},
			Embedding:  toFloat32(out.Bottlenecks.Row(i)),
		}
		entities[i] = entity

		et, ok := s.EntityType(entity.Type)
		if !ok {
			continue
		}
		for _, f := range et.DataFields {
			codec := s.DataFields[f]
			column, hasColumn := batch.Column(codec.Name())
			present := hasColumn && codec.IsPresent(column.Row(i))
			if !present && !impute {
				entity.Fields[codec.Name()] = nil
				continue
			}
			value, err := field.DecodeReconstruction(codec, out.Reconstructions[codec.Name()].Row(i))
			if err != nil {
				return nil, helper.NewError("decode entity "+entity.ExternalID, err)
			}
			entity.Fields[codec.Name()] = value
		}
	}
	return entities, nil
}

func toFloat32(row []float64) []float32 {
	out := make([]float32, len(row))
	for i, v := range row {
		out[i] = float32(v)
	}
	return out
}
