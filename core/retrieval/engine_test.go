package retrieval

import (
	"context"
	"math"
	"testing"

	"github.com/siherrmann/graphae/core/graph"
	"github.com/siherrmann/graphae/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ graph.GraphDB = (*Engine)(nil)

func TestEngineGraphDB(t *testing.T) {
	engine := seedGraph(t, "gdb-")
	ctx := context.Background()

	t.Run("Get entity", func(t *testing.T) {
		entity, err := engine.GetEntity(ctx, "gdb-a")
		require.NoError(t, err)
		assert.Equal(t, "gdb-Person", entity.Type)
	})

	t.Run("Outgoing edges only", func(t *testing.T) {
		edges, err := engine.GetEdgesFromEntity(ctx, "gdb-b", nil, false)
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, "gdb-c", edges[0].TargetID)
	})

	t.Run("Incoming edges follow outgoing ones", func(t *testing.T) {
		edges, err := engine.GetEdgesFromEntity(ctx, "gdb-b", nil, true)
		require.NoError(t, err)
		require.Len(t, edges, 2)
		assert.Equal(t, "cites", edges[0].Relation)
		assert.Equal(t, "authored", edges[1].Relation)
	})

	t.Run("Relation filter", func(t *testing.T) {
		edges, err := engine.GetEdgesFromEntity(ctx, "gdb-b", []string{"authored"}, true)
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, "gdb-a", edges[0].SourceID)
	})

	t.Run("Receptive field over the database", func(t *testing.T) {
		entities, edges, err := graph.ReceptiveField(ctx, engine, []string{"gdb-c"}, 2, true)
		require.NoError(t, err)
		assert.Len(t, entities, 3, "Expected c, b and a")
		assert.Len(t, edges, 2)
	})
}

func TestEngineNeighbors(t *testing.T) {
	engine := seedGraph(t, "nb-")
	ctx := context.Background()

	t.Run("Outgoing neighbors", func(t *testing.T) {
		results, err := engine.Neighbors(ctx, "nb-a", nil, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"nb-b", "nb-d"}, externalIDs(results))
		assert.Equal(t, model.RetrievalMethodNeighbor, results[0].RetrievalMethod)
	})

	t.Run("Incoming neighbors", func(t *testing.T) {
		results, err := engine.Neighbors(ctx, "nb-c", nil, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"nb-b"}, externalIDs(results))

		results, err = engine.Neighbors(ctx, "nb-c", nil, false)
		require.NoError(t, err)
		assert.Empty(t, results, "Expected no neighbors without incoming edges")
	})

	t.Run("Unknown entity", func(t *testing.T) {
		_, err := engine.Neighbors(ctx, "nb-missing", nil, true)
		assert.Error(t, err)
	})
}

func TestEngineSimilarEntities(t *testing.T) {
	engine := seedGraph(t, "sim-")
	ctx := context.Background()

	t.Run("Nearest stored embeddings of one type", func(t *testing.T) {
		config := model.DefaultQueryConfig()
		config.EntityType = "sim-Doc"

		results, err := engine.SimilarEntities(ctx, "sim-a", &config)
		require.NoError(t, err)
		require.Len(t, results, 3, "Expected every embedded Doc")
		assert.Equal(t, "sim-b", results[0].Entity.ExternalID)
		assert.InDelta(t, 0.9/math.Sqrt(0.82), results[0].Score, 1e-5)
	})

	t.Run("Query entity is excluded", func(t *testing.T) {
		config := model.DefaultQueryConfig()
		config.EntityType = "sim-Doc"

		results, err := engine.SimilarEntities(ctx, "sim-b", &config)
		require.NoError(t, err)
		assert.NotContains(t, externalIDs(results), "sim-b")
	})

	t.Run("Threshold", func(t *testing.T) {
		config := model.DefaultQueryConfig()
		config.EntityType = "sim-Doc"
		config.SimilarityThreshold = 0.5

		results, err := engine.SimilarEntities(ctx, "sim-a", &config)
		require.NoError(t, err)
		assert.Equal(t, []string{"sim-b"}, externalIDs(results))
	})

	t.Run("Entity without embedding", func(t *testing.T) {
		config := model.DefaultQueryConfig()

		_, err := engine.SimilarEntities(ctx, "sim-e", &config)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "has no embedding")
	})

	t.Run("Similar to embedding", func(t *testing.T) {
		config := model.DefaultQueryConfig()
		config.EntityType = "sim-Doc"
		config.TopK = 1

		results, err := engine.SimilarToEmbedding(ctx, []float32{0, 0.2, 0}, &config)
		require.NoError(t, err)
		assert.Equal(t, []string{"sim-c"}, externalIDs(results))
	})
}

func TestEngineAnomalies(t *testing.T) {
	engine := seedGraph(t, "an-")
	ctx := context.Background()

	config := model.DefaultQueryConfig()
	config.EntityType = "an-Doc"
	config.TopK = 5

	results, err := engine.Anomalies(ctx, &config)
	require.NoError(t, err)
	assert.Equal(t, []string{"an-b", "an-c"}, externalIDs(results), "Expected descending loss and no unscored entities")
	assert.Equal(t, 1.5, results[0].Score)
}

func TestSortResults(t *testing.T) {
	resultMap := map[string]*model.EntityResult{}
	for id, score := range map[string]float64{"x": 0.5, "y": 0.9, "a": 0.5, "z": 0.1} {
		resultMap[id] = &model.EntityResult{Entity: &model.Entity{ExternalID: id}, Score: score}
	}

	assert.Equal(t, []string{"y", "a", "x", "z"}, externalIDs(sortResults(resultMap, 0)), "Expected ties ordered by id")
	assert.Equal(t, []string{"y", "a"}, externalIDs(sortResults(resultMap, 2)))
}
