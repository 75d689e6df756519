package autoencoder

import (
	"context"
	"log/slog"

	"github.com/siherrmann/graphae/core/graph"
	"github.com/siherrmann/graphae/core/nn"
	"github.com/siherrmann/graphae/core/schema"
	"github.com/siherrmann/graphae/core/tensor"
	"github.com/siherrmann/graphae/helper"
	"golang.org/x/sync/errgroup"
)

// BoundaryPair records one entity autoencoder call for diagnostics
type BoundaryPair struct {
	Depth      int
	EntityType string
	Rows       []int
	Input      *tensor.Matrix
	Output     *tensor.Matrix
	Bottleneck *tensor.Matrix // nil without a bottleneck
	Loss       float64
}

// Output of a forward pass. IDs and EntityTypes are passed through from the
// batch unchanged. Reconstructions has an N-row matrix for every data field.
type Output struct {
	IDs             []string
	EntityTypes     []string
	Reconstructions map[string]*tensor.Matrix
	Bottlenecks     *tensor.Matrix
	Projected       *tensor.Matrix
	BoundaryPairs   []BoundaryPair
	Index           *Index
}

// Forward runs the configured number of propagation depths
func (g *GraphAutoencoder) Forward(ctx context.Context, batch *graph.Batch, adjacency graph.Adjacency) (*Output, error) {
	return g.ForwardDepth(ctx, batch, adjacency, g.config.Depth)
}

// ForwardDepth runs depth propagation rounds. Depths past the constructed
// autoencoders reuse the last one.
func (g *GraphAutoencoder) ForwardDepth(ctx context.Context, batch *graph.Batch, adjacency graph.Adjacency, depth int) (*Output, error) {
	if err := g.schema.RequireFrozen("forward"); err != nil {
		return nil, err
	}
	if depth < 0 || (depth > 0) != (g.config.Depth > 0) {
		return nil, helper.NewError("forward", helper.ShapeError("depth %d is incompatible with a model constructed for depth %d", depth, g.config.Depth))
	}
	if err := g.validate(batch, adjacency); err != nil {
		return nil, helper.NewError("forward", err)
	}
	n := batch.Len()
	s := g.schema

	g.logger.Debug("Assembling entity, field and (entity, field) indices", slog.Int("entities", n))
	ix := g.buildIndex(batch)

	g.logger.Debug("Encoding each input field to a fixed-length representation")
	encodings, err := g.encodeFields(ctx, batch, ix)
	if err != nil {
		return nil, helper.NewError("forward", err)
	}

	out := &Output{
		IDs:         batch.IDs,
		EntityTypes: batch.EntityTypes,
		Bottlenecks: tensor.New(n, g.bottleneck),
		Index:       ix,
	}

	g.logger.Debug("Running autoencoder", slog.Int("depth", 0))
	outputs := make([]*tensor.Matrix, len(s.EntityTypes))
	for _, et := range s.EntityTypes {
		rows := ix.Entity[et.ID]
		blocks := []*tensor.Matrix{tensor.New(len(rows), g.config.BaseEntityRepresentationSize)}
		for _, f := range et.DataFields {
			blocks = append(blocks, encodings[f].Gather(rows))
		}
		blocks = append(blocks, tensor.New(len(rows), 0))
		input := tensor.HConcat(len(rows), blocks...)

		reconstruction, bottleneck, loss := g.autoencoders[et.ID][0].Forward(input)
		outputs[et.ID] = reconstruction
		if bottleneck != nil {
			out.Bottlenecks.Scatter(rows, bottleneck)
		}
		g.collect(out, 0, et, rows, input, reconstruction, bottleneck, loss)
	}

	var reversed graph.Adjacency
	if g.config.ReverseRelations && depth > 0 {
		reversed = adjacency.Reversed()
	}
	for d := 1; d <= depth; d++ {
		if err := ctx.Err(); err != nil {
			return nil, helper.NewError("forward", err)
		}
		g.logger.Debug("Running autoencoder", slog.Int("depth", d))

		// read-only for the whole depth
		prev := out.Bottlenecks.Clone()
		for _, et := range s.EntityTypes {
			rows := ix.Entity[et.ID]
			stack := g.autoencoders[et.ID]
			if d > len(stack)-1 {
				g.logger.Debug("Reusing final autoencoder", slog.Int("depth", d), slog.Int("constructed", len(stack)-1), slog.String("entity_type", et.Name))
			}
			ae := stack[min(d, len(stack)-1)]

			blocks := []*tensor.Matrix{outputs[et.ID].Narrow(0, stack[0].OutputSize())}
			for _, r := range et.OutgoingRelations {
				blocks = append(blocks, g.summarize(prev, rows, adjacency[s.Relations[r].Name], g.sourceSummarizers[r]))
			}
			if g.config.ReverseRelations {
				for _, r := range et.IncomingRelations {
					blocks = append(blocks, g.summarize(prev, rows, reversed[s.Relations[r].Name], g.targetSummarizers[r]))
				}
			}
			input := tensor.HConcat(len(rows), blocks...)

			reconstruction, bottleneck, loss := ae.Forward(input)
			outputs[et.ID] = reconstruction
			if ae.OutputSize() != 0 && bottleneck != nil {
				out.Bottlenecks.Scatter(rows, bottleneck)
			}
			g.collect(out, d, et, rows, input, reconstruction, bottleneck, loss)
		}
	}

	g.logger.Debug("Projecting autoencoder outputs to the shared representation size")
	out.Projected = tensor.New(n, g.projectedSize)
	for _, et := range s.EntityTypes {
		out.Projected.Scatter(ix.Entity[et.ID], g.projectors[et.ID].Forward(outputs[et.ID]))
	}

	g.logger.Debug("Reconstructing every field from the projected representation")
	out.Reconstructions, err = g.decodeFields(ctx, out.Projected)
	if err != nil {
		return nil, helper.NewError("forward", err)
	}

	return out, nil
}

// summarize pools the previous bottlenecks of each row's neighbours. A
// relation absent from the adjacency has no edges.
func (g *GraphAutoencoder) summarize(prev *tensor.Matrix, rows []int, incidence *graph.Incidence, summarizer *nn.Summarizer) *tensor.Matrix {
	if incidence == nil {
		return tensor.New(len(rows), g.bottleneck)
	}
	return summarizer.Summarize(prev, incidence.Segments(rows))
}

// encodeFields runs every field encoder on its present rows. Absent rows stay zero.
func (g *GraphAutoencoder) encodeFields(ctx context.Context, batch *graph.Batch, ix *Index) ([]*tensor.Matrix, error) {
	encodings := make([]*tensor.Matrix, len(g.schema.DataFields))
	eg, gctx := errgroup.WithContext(ctx)
	for id, codec := range g.schema.DataFields {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			encoder := g.fieldEncoders[id]
			encoding := tensor.New(batch.Len(), encoder.OutputSize())
			rows := ix.Field[id]
			if len(rows) > 0 {
				column, _ := batch.Column(codec.Name())
				encoded, err := encoder.Encode(column.Gather(rows))
				if err != nil {
					return helper.NewError("encode field "+codec.Name(), err)
				}
				encoding.Scatter(rows, encoded)
			}
			encodings[id] = encoding
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return encodings, nil
}

// decodeFields runs every field decoder on all rows
func (g *GraphAutoencoder) decodeFields(ctx context.Context, projected *tensor.Matrix) (map[string]*tensor.Matrix, error) {
	decoded := make([]*tensor.Matrix, len(g.schema.DataFields))
	eg, gctx := errgroup.WithContext(ctx)
	for id := range g.schema.DataFields {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			decoded[id] = g.fieldDecoders[id].Decode(projected)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	reconstructions := make(map[string]*tensor.Matrix, len(decoded))
	for id, codec := range g.schema.DataFields {
		reconstructions[codec.Name()] = decoded[id]
	}
	return reconstructions, nil
}

func (g *GraphAutoencoder) collect(out *Output, depth int, et *schema.EntityType, rows []int, input, output, bottleneck *tensor.Matrix, loss float64) {
	if !g.config.CollectBoundaryPairs {
		return
	}
	out.BoundaryPairs = append(out.BoundaryPairs, BoundaryPair{
		Depth:      depth,
		EntityType: et.Name,
		Rows:       rows,
		Input:      input,
		Output:     output,
		Bottleneck: bottleneck,
		Loss:       loss,
	})
}
