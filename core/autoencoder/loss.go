package autoencoder

import (
	"math"

	"github.com/siherrmann/graphae/core/graph"
	"github.com/siherrmann/graphae/helper"
)

// Loss holds reconstruction losses restricted to the (entity type, field)
// pairs the schema declares and the rows where the field is present.
// Reconstructions of undeclared or absent fields never contribute.
type Loss struct {
	// Mean loss per data field, only fields with at least one scored row
	Fields map[string]float64
	// Mean loss over the scored fields of each row, NaN if none was scored
	Entities []float64
}

// ReconstructionLoss scores a forward output against the batch it was computed from
func (g *GraphAutoencoder) ReconstructionLoss(batch *graph.Batch, out *Output) (*Loss, error) {
	if out == nil || out.Index == nil {
		return nil, helper.NewError("reconstruction loss", helper.ShapeError("output without index"))
	}
	if batch == nil || batch.Len() != len(out.IDs) {
		return nil, helper.NewError("reconstruction loss", helper.ShapeError("batch does not match the output"))
	}

	s := g.schema
	fieldSums := make([]float64, len(s.DataFields))
	fieldCounts := make([]int, len(s.DataFields))
	entitySums := make([]float64, batch.Len())
	entityCounts := make([]int, batch.Len())

	for _, et := range s.EntityTypes {
		for _, f := range et.DataFields {
			rows := out.Index.EntityField[EntityFieldKey{EntityType: et.ID, Field: f}]
			if len(rows) == 0 {
				continue
			}
			name := s.DataFields[f].Name()
			target, _ := batch.Column(name)
			losses := g.fieldLosses[f](out.Reconstructions[name], target, rows)
			for k, l := range losses {
				if math.IsNaN(l) {
					continue
				}
				fieldSums[f] += l
				fieldCounts[f]++
				entitySums[rows[k]] += l
				entityCounts[rows[k]]++
			}
		}
	}

	loss := &Loss{Fields: map[string]float64{}, Entities: make([]float64, batch.Len())}
	for f, codec := range s.DataFields {
		if fieldCounts[f] > 0 {
			loss.Fields[codec.Name()] = fieldSums[f] / float64(fieldCounts[f])
		}
	}
	for i := range loss.Entities {
		if entityCounts[i] == 0 {
			loss.Entities[i] = math.NaN()
			continue
		}
		loss.Entities[i] = entitySums[i] / float64(entityCounts[i])
	}
	return loss, nil
}
