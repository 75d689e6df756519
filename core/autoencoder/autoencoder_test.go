package autoencoder

import (
	"context"
	"math"
	"testing"

	"github.com/siherrmann/graphae/core/graph"
	"github.com/siherrmann/graphae/core/schema"
	"github.com/siherrmann/graphae/core/tensor"
	"github.com/siherrmann/graphae/helper"
	"github.com/siherrmann/graphae/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row map[string]any

func authoredSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(&model.SchemaConfig{
		DataFields: []model.DataFieldConfig{
			{Name: "name", Type: model.FieldKindCategorical},
			{Name: "title", Type: model.FieldKindSequential},
		},
		RelationFields: []model.RelationFieldConfig{
			{Name: "authored", SourceEntityType: "Person", TargetEntityType: "Doc"},
		},
		EntityTypes: []model.EntityTypeConfig{
			{Name: "Person", DataFields: []string{"name"}},
			{Name: "Doc", DataFields: []string{"title"}},
		},
	})
	require.NoError(t, err)
	for _, v := range []any{"alice", "bob", "carol"} {
		require.NoError(t, s.Observe("name", v))
	}
	for _, v := range []any{"ab", "ba", "abc"} {
		require.NoError(t, s.Observe("title", v))
	}
	s.Freeze()
	return s
}

// encodeBatch builds a batch the way the pipeline does, from raw rows
func encodeBatch(t *testing.T, s *schema.Schema, rows []row) *graph.Batch {
	t.Helper()
	batch := &graph.Batch{Columns: map[string]*tensor.Matrix{}}
	for _, r := range rows {
		batch.IDs = append(batch.IDs, r[s.IDField].(string))
		batch.EntityTypes = append(batch.EntityTypes, r[s.EntityTypeField].(string))
	}
	for _, codec := range s.DataFields {
		column := tensor.New(len(rows), codec.Width())
		for i, r := range rows {
			encoded, err := s.Encode(codec.Name(), r[codec.Name()])
			require.NoError(t, err)
			copy(column.Row(i), encoded)
		}
		batch.Columns[codec.Name()] = column
	}
	return batch
}

func authoredBatch(t *testing.T, s *schema.Schema) *graph.Batch {
	return encodeBatch(t, s, []row{
		{"id": "p0", "entity_type": "Person", "name": "alice"},
		{"id": "p1", "entity_type": "Person", "name": "bob"},
		{"id": "d2", "entity_type": "Doc", "title": "ab"},
	})
}

func authoredAdjacency() graph.Adjacency {
	return graph.Adjacency{"authored": graph.IncidenceFromEdges(3, [][2]int{{0, 2}})}
}

func testConfig(depth int) model.ModelConfig {
	config := model.DefaultModelConfig()
	config.Depth = depth
	config.AutoencoderShapes = []int{6, 4}
	config.Activation = model.ActivationTanh
	config.CollectBoundaryPairs = true
	return config
}

func pair(t *testing.T, out *Output, depth int, entityType string) BoundaryPair {
	t.Helper()
	for _, p := range out.BoundaryPairs {
		if p.Depth == depth && p.EntityType == entityType {
			return p
		}
	}
	require.Failf(t, "missing boundary pair", "depth %d type %s", depth, entityType)
	return BoundaryPair{}
}

func TestNewGraphAutoencoder(t *testing.T) {
	s := authoredSchema(t)

	t.Run("Sizes boundaries and projection", func(t *testing.T) {
		g, err := NewGraphAutoencoder(s, testConfig(1), nil)
		require.NoError(t, err)

		person0, err := g.BoundarySize("Person", 0)
		require.NoError(t, err)
		person1, err := g.BoundarySize("Person", 1)
		require.NoError(t, err)
		doc1, err := g.BoundarySize("Doc", 1)
		require.NoError(t, err)

		assert.Equal(t, 8+8, person0, "Expected base plus categorical encoding")
		assert.Equal(t, 16+4, person1, "Expected one outgoing relation block")
		assert.Equal(t, 16+4, doc1, "Expected one incoming relation block in reverse mode")
		assert.Equal(t, 16, g.ProjectedSize(), "Expected the largest depth-0 boundary")
		assert.Positive(t, g.ParameterCount())
	})

	t.Run("Without reverse relations incoming blocks are dropped", func(t *testing.T) {
		config := testConfig(1)
		config.ReverseRelations = false
		g, err := NewGraphAutoencoder(s, config, nil)
		require.NoError(t, err)

		doc1, err := g.BoundarySize("Doc", 1)
		require.NoError(t, err)
		assert.Equal(t, 16, doc1)
	})

	t.Run("Explicit projected size", func(t *testing.T) {
		config := testConfig(0)
		config.ProjectedSize = 5
		g, err := NewGraphAutoencoder(s, config, nil)
		require.NoError(t, err)
		assert.Equal(t, 5, g.ProjectedSize())
	})

	t.Run("Depth without bottleneck is a configuration error", func(t *testing.T) {
		config := testConfig(1)
		config.AutoencoderShapes = nil
		_, err := NewGraphAutoencoder(s, config, nil)
		assert.ErrorIs(t, err, helper.ErrConfiguration)
	})

	t.Run("Unsupported device is a configuration error", func(t *testing.T) {
		config := testConfig(0)
		config.Device = "cuda:0"
		_, err := NewGraphAutoencoder(s, config, nil)
		assert.ErrorIs(t, err, helper.ErrConfiguration)
	})

	t.Run("Unknown summarizer is a configuration error", func(t *testing.T) {
		config := testConfig(1)
		config.Summarizer = "median"
		_, err := NewGraphAutoencoder(s, config, nil)
		assert.ErrorIs(t, err, helper.ErrConfiguration)
	})

	t.Run("Schema must be frozen", func(t *testing.T) {
		unfrozen, err := schema.New(&model.SchemaConfig{
			DataFields:  []model.DataFieldConfig{{Name: "x", Type: model.FieldKindNumeric}},
			EntityTypes: []model.EntityTypeConfig{{Name: "A", DataFields: []string{"x"}}},
		})
		require.NoError(t, err)
		_, err = NewGraphAutoencoder(unfrozen, testConfig(0), nil)
		assert.ErrorIs(t, err, helper.ErrConfiguration)
	})
}

func TestForwardAuthoredScenario(t *testing.T) {
	s := authoredSchema(t)
	g, err := NewGraphAutoencoder(s, testConfig(1), nil)
	require.NoError(t, err)
	ctx := context.Background()

	out, err := g.Forward(ctx, authoredBatch(t, s), authoredAdjacency())
	require.NoError(t, err)

	t.Run("Output shapes", func(t *testing.T) {
		assert.Equal(t, []string{"p0", "p1", "d2"}, out.IDs)
		assert.Equal(t, []string{"Person", "Person", "Doc"}, out.EntityTypes)
		assert.Equal(t, 3, out.Bottlenecks.Rows())
		assert.Equal(t, 4, out.Bottlenecks.Cols())
		require.Contains(t, out.Reconstructions, "name")
		require.Contains(t, out.Reconstructions, "title")
		assert.Equal(t, 3, out.Reconstructions["name"].Rows(), "Expected reconstructions for every row")
		assert.Equal(t, 4, out.Reconstructions["name"].Cols())
		assert.Equal(t, 3*4, out.Reconstructions["title"].Cols())
		assert.Len(t, out.BoundaryPairs, 4)
	})

	t.Run("Index sets", func(t *testing.T) {
		assert.Equal(t, [][]int{{0, 1}, {2}}, out.Index.Entity)
		assert.Equal(t, [][]int{{0, 1}, {2}}, out.Index.Field)
		assert.Equal(t, []int{0, 1}, out.Index.EntityField[EntityFieldKey{EntityType: 0, Field: 0}])
		assert.Equal(t, []int{2}, out.Index.EntityField[EntityFieldKey{EntityType: 1, Field: 1}])
		assert.Empty(t, out.Index.Untyped)
	})

	t.Run("Doc receives a summary only from Person 0", func(t *testing.T) {
		doc := pair(t, out, 1, "Doc")
		require.Equal(t, 20, doc.Input.Cols())
		summary := doc.Input.Narrow(16, 4)
		assert.False(t, summary.IsZero(), "Expected a non-zero target summary")

		// Changing Person 1 leaves the Doc input untouched, changing Person 0 does not
		changedP1 := encodeBatch(t, s, []row{
			{"id": "p0", "entity_type": "Person", "name": "alice"},
			{"id": "p1", "entity_type": "Person", "name": "carol"},
			{"id": "d2", "entity_type": "Doc", "title": "ab"},
		})
		other, err := g.Forward(ctx, changedP1, authoredAdjacency())
		require.NoError(t, err)
		assert.True(t, pair(t, other, 1, "Doc").Input.Equal(doc.Input))

		changedP0 := encodeBatch(t, s, []row{
			{"id": "p0", "entity_type": "Person", "name": "carol"},
			{"id": "p1", "entity_type": "Person", "name": "bob"},
			{"id": "d2", "entity_type": "Doc", "title": "ab"},
		})
		other, err = g.Forward(ctx, changedP0, authoredAdjacency())
		require.NoError(t, err)
		assert.False(t, pair(t, other, 1, "Doc").Input.Narrow(16, 4).Equal(summary))
	})

	t.Run("Person 1 has an empty outgoing summary", func(t *testing.T) {
		person := pair(t, out, 1, "Person")
		require.Equal(t, 20, person.Input.Cols())
		summary := person.Input.Narrow(16, 4)

		assert.False(t, summary.Gather([]int{0}).IsZero(), "Expected Person 0 to summarise its authored doc")
		assert.True(t, summary.Gather([]int{1}).IsZero(), "Expected Person 1 to have no authored docs")
	})

	t.Run("Depth-1 input starts with the narrowed depth-0 output", func(t *testing.T) {
		depth0 := pair(t, out, 0, "Doc")
		depth1 := pair(t, out, 1, "Doc")
		assert.True(t, depth1.Input.Narrow(0, 16).Equal(depth0.Output))
	})
}

func TestForwardProperties(t *testing.T) {
	s := authoredSchema(t)
	ctx := context.Background()
	batch := authoredBatch(t, s)

	t.Run("Depth 0 ignores adjacency", func(t *testing.T) {
		g, err := NewGraphAutoencoder(s, testConfig(0), nil)
		require.NoError(t, err)

		withEdges, err := g.Forward(ctx, batch, authoredAdjacency())
		require.NoError(t, err)
		dense := graph.IncidenceFromEdges(3, [][2]int{{0, 2}, {1, 2}, {0, 0}})
		withOtherEdges, err := g.Forward(ctx, batch, graph.Adjacency{"authored": dense})
		require.NoError(t, err)
		withoutEdges, err := g.Forward(ctx, batch, nil)
		require.NoError(t, err)

		for _, other := range []*Output{withOtherEdges, withoutEdges} {
			assert.True(t, other.Bottlenecks.Equal(withEdges.Bottlenecks))
			for name, m := range withEdges.Reconstructions {
				assert.True(t, other.Reconstructions[name].Equal(m), "Expected %s reconstruction to ignore adjacency", name)
			}
		}
	})

	t.Run("Relation without edges contributes a zero block of bottleneck width", func(t *testing.T) {
		g, err := NewGraphAutoencoder(s, testConfig(1), nil)
		require.NoError(t, err)

		for _, adjacency := range []graph.Adjacency{
			{"authored": graph.NewIncidence(3)},
			{},
		} {
			out, err := g.Forward(ctx, batch, adjacency)
			require.NoError(t, err)

			for _, entityType := range []string{"Person", "Doc"} {
				p := pair(t, out, 1, entityType)
				require.Equal(t, 20, p.Input.Cols())
				assert.True(t, p.Input.Narrow(16, 4).IsZero(), "Expected zero %s relation block", entityType)
			}
		}
	})

	t.Run("Depth past the constructed autoencoders reuses the last", func(t *testing.T) {
		g, err := NewGraphAutoencoder(s, testConfig(1), nil)
		require.NoError(t, err)

		first, err := g.ForwardDepth(ctx, batch, authoredAdjacency(), 3)
		require.NoError(t, err)
		second, err := g.ForwardDepth(ctx, batch, authoredAdjacency(), 3)
		require.NoError(t, err)

		assert.True(t, first.Bottlenecks.Equal(second.Bottlenecks), "Expected deterministic output under reuse")
		for name, m := range first.Reconstructions {
			assert.True(t, second.Reconstructions[name].Equal(m))
		}
		assert.Len(t, first.BoundaryPairs, 2*4)
	})

	t.Run("Same seed gives the same model", func(t *testing.T) {
		a, err := NewGraphAutoencoder(s, testConfig(1), nil)
		require.NoError(t, err)
		b, err := NewGraphAutoencoder(s, testConfig(1), nil)
		require.NoError(t, err)

		outA, err := a.Forward(ctx, batch, authoredAdjacency())
		require.NoError(t, err)
		outB, err := b.Forward(ctx, batch, authoredAdjacency())
		require.NoError(t, err)
		assert.True(t, outA.Projected.Equal(outB.Projected))
	})

	t.Run("Depth on a depth-0 model is a shape error", func(t *testing.T) {
		g, err := NewGraphAutoencoder(s, testConfig(0), nil)
		require.NoError(t, err)

		_, err = g.ForwardDepth(ctx, batch, nil, 1)
		assert.ErrorIs(t, err, helper.ErrShape)
	})

	t.Run("Unknown type tags belong to no entity type", func(t *testing.T) {
		g, err := NewGraphAutoencoder(s, testConfig(1), nil)
		require.NoError(t, err)
		mixed := encodeBatch(t, s, []row{
			{"id": "p0", "entity_type": "Person", "name": "alice"},
			{"id": "x1", "entity_type": "Alien", "name": "bob"},
		})

		out, err := g.Forward(ctx, mixed, nil)
		require.NoError(t, err)
		assert.Equal(t, []int{1}, out.Index.Untyped)
		assert.True(t, out.Projected.Gather([]int{1}).IsZero())
		assert.True(t, out.Bottlenecks.Gather([]int{1}).IsZero())
	})
}

func TestForwardAllMissingNumeric(t *testing.T) {
	s, err := schema.New(&model.SchemaConfig{
		DataFields:  []model.DataFieldConfig{{Name: "weight", Type: model.FieldKindNumeric}, {Name: "kind", Type: model.FieldKindCategorical}},
		EntityTypes: []model.EntityTypeConfig{{Name: "Item", DataFields: []string{"weight", "kind"}}},
	})
	require.NoError(t, err)
	require.NoError(t, s.Observe("weight", 2.5))
	require.NoError(t, s.Observe("weight", 7.5))
	require.NoError(t, s.Observe("kind", "box"))
	s.Freeze()

	g, err := NewGraphAutoencoder(s, testConfig(0), nil)
	require.NoError(t, err)
	batch := encodeBatch(t, s, []row{
		{"id": "i0", "entity_type": "Item", "weight": nil, "kind": "box"},
		{"id": "i1", "entity_type": "Item", "weight": nil},
	})

	out, err := g.Forward(context.Background(), batch, nil)
	require.NoError(t, err)

	assert.Empty(t, out.Index.Field[0], "Expected no present weight rows")
	input := pair(t, out, 0, "Item").Input
	assert.True(t, input.Narrow(8, 4).IsZero(), "Expected absent rows to encode as exact zeros")
	assert.False(t, input.HasNaN())

	weight := out.Reconstructions["weight"]
	require.Equal(t, 2, weight.Rows())
	assert.False(t, weight.HasNaN(), "Expected a number for every row")

	loss, err := g.ReconstructionLoss(batch, out)
	require.NoError(t, err)
	assert.NotContains(t, loss.Fields, "weight")
	assert.Contains(t, loss.Fields, "kind")
	assert.False(t, math.IsNaN(loss.Entities[0]))
	assert.True(t, math.IsNaN(loss.Entities[1]), "Expected no score without present fields")
}

func TestForwardValidation(t *testing.T) {
	s := authoredSchema(t)
	g, err := NewGraphAutoencoder(s, testConfig(1), nil)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("Mismatched id and type columns", func(t *testing.T) {
		batch := authoredBatch(t, s)
		batch.EntityTypes = batch.EntityTypes[:2]
		_, err := g.Forward(ctx, batch, nil)
		assert.ErrorIs(t, err, helper.ErrShape)
	})

	t.Run("Column of the wrong width", func(t *testing.T) {
		batch := authoredBatch(t, s)
		batch.Columns["title"] = tensor.New(3, 2)
		_, err := g.Forward(ctx, batch, nil)
		assert.ErrorIs(t, err, helper.ErrShape)
	})

	t.Run("Unknown column", func(t *testing.T) {
		batch := authoredBatch(t, s)
		batch.Columns["height"] = tensor.New(3, 1)
		_, err := g.Forward(ctx, batch, nil)
		assert.ErrorIs(t, err, helper.ErrShape)
	})

	t.Run("Adjacency of the wrong size", func(t *testing.T) {
		_, err := g.Forward(ctx, authoredBatch(t, s), graph.Adjacency{"authored": graph.NewIncidence(4)})
		assert.ErrorIs(t, err, helper.ErrShape)
	})

	t.Run("Undeclared relation", func(t *testing.T) {
		_, err := g.Forward(ctx, authoredBatch(t, s), graph.Adjacency{"cites": graph.NewIncidence(3)})
		assert.ErrorIs(t, err, helper.ErrShape)
	})

	t.Run("Missing column means absent everywhere", func(t *testing.T) {
		batch := authoredBatch(t, s)
		delete(batch.Columns, "title")
		out, err := g.Forward(ctx, batch, nil)
		require.NoError(t, err)
		assert.Empty(t, out.Index.Field[1])
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := g.Forward(cancelled, authoredBatch(t, s), nil)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Cancelled context without propagation depths", func(t *testing.T) {
		flat, err := NewGraphAutoencoder(s, testConfig(0), nil)
		require.NoError(t, err)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err = flat.Forward(cancelled, authoredBatch(t, s), nil)
		assert.ErrorIs(t, err, context.Canceled, "Expected field encoders to observe cancellation")
	})
}

func TestReconstructionLoss(t *testing.T) {
	s := authoredSchema(t)
	g, err := NewGraphAutoencoder(s, testConfig(1), nil)
	require.NoError(t, err)
	ctx := context.Background()

	plain := authoredBatch(t, s)
	out, err := g.Forward(ctx, plain, authoredAdjacency())
	require.NoError(t, err)
	loss, err := g.ReconstructionLoss(plain, out)
	require.NoError(t, err)

	t.Run("Every declared field is scored", func(t *testing.T) {
		assert.Len(t, loss.Fields, 2)
		for _, l := range loss.Entities {
			assert.False(t, math.IsNaN(l))
			assert.GreaterOrEqual(t, l, 0.0)
		}
	})

	t.Run("Undeclared fields are masked", func(t *testing.T) {
		withExtra := encodeBatch(t, s, []row{
			{"id": "p0", "entity_type": "Person", "name": "alice", "title": "ba"},
			{"id": "p1", "entity_type": "Person", "name": "bob"},
			{"id": "d2", "entity_type": "Doc", "title": "ab"},
		})
		extraOut, err := g.Forward(ctx, withExtra, authoredAdjacency())
		require.NoError(t, err)
		extraLoss, err := g.ReconstructionLoss(withExtra, extraOut)
		require.NoError(t, err)

		assert.Equal(t, []int{0, 2}, extraOut.Index.Field[1], "Expected the title to be present on the Person row")
		assert.Equal(t, loss.Fields, extraLoss.Fields, "Expected the Person title to be ignored")
		assert.Equal(t, loss.Entities, extraLoss.Entities)
	})

	t.Run("Mismatched batch", func(t *testing.T) {
		_, err := g.ReconstructionLoss(&graph.Batch{}, out)
		assert.ErrorIs(t, err, helper.ErrShape)
	})
}
