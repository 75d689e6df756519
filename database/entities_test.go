package database

import (
	"context"
	"testing"
	"time"

	"github.com/siherrmann/graphae/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntitiesNewEntitiesDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewEntitiesDBHandler", func(t *testing.T) {
		entitiesDbHandler, err := NewEntitiesDBHandler(database, true)
		assert.NoError(t, err, "Expected NewEntitiesDBHandler to not return an error")
		require.NotNil(t, entitiesDbHandler, "Expected NewEntitiesDBHandler to return a non-nil instance")
		require.NotNil(t, entitiesDbHandler.db, "Expected NewEntitiesDBHandler to have a non-nil database instance")
		require.NotNil(t, entitiesDbHandler.db.Instance, "Expected NewEntitiesDBHandler to have a non-nil database connection instance")
	})

	t.Run("Invalid call NewEntitiesDBHandler with nil database", func(t *testing.T) {
		_, err := NewEntitiesDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating EntitiesDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})
}

func TestEntitiesInsert(t *testing.T) {
	database := initDB(t)
	ctx := context.Background()

	entitiesDbHandler, err := NewEntitiesDBHandler(database, true)
	require.NoError(t, err, "Expected NewEntitiesDBHandler to not return an error")

	t.Run("Insert entity", func(t *testing.T) {
		entity := &model.Entity{
			ExternalID: "insert-person-1",
			Type:       "Person",
			Fields:     model.Values{"name": "alice", "age": 31},
		}

		err := entitiesDbHandler.InsertEntity(ctx, entity)
		assert.NoError(t, err, "Expected Insert to not return an error")
		assert.NotEmpty(t, entity.ID, "Expected inserted entity to have an ID")
		assert.NotEmpty(t, entity.RID, "Expected inserted entity to have a RID")
		assert.Equal(t, "alice", entity.Fields["name"])
		assert.Equal(t, float64(31), entity.Fields["age"], "Expected JSON numbers to come back as float64")
		assert.Nil(t, entity.Embedding)
		assert.Nil(t, entity.AnomalyScore)
		assert.WithinDuration(t, time.Now(), entity.CreatedAt, 2*time.Second, "Expected CreatedAt to be set")

		require.NoError(t, entitiesDbHandler.DeleteEntity(ctx, entity.ExternalID))
	})

	t.Run("Insert duplicate external id replaces fields and embedding", func(t *testing.T) {
		entity := &model.Entity{ExternalID: "insert-person-2", Type: "Person", Fields: model.Values{"age": 30}}
		require.NoError(t, entitiesDbHandler.InsertEntity(ctx, entity))
		score := 0.5
		require.NoError(t, entitiesDbHandler.UpdateEntityEmbedding(ctx, entity.ExternalID, []float32{1, 0, 0}, &score))

		replacement := &model.Entity{ExternalID: "insert-person-2", Type: "Person", Fields: model.Values{"age": 31}}
		err := entitiesDbHandler.InsertEntity(ctx, replacement)
		assert.NoError(t, err, "Expected Insert to not return an error for duplicate")
		assert.Equal(t, entity.ID, replacement.ID, "Expected upsert to keep the row")
		assert.Equal(t, float64(31), replacement.Fields["age"])
		assert.Nil(t, replacement.Embedding, "Expected stale embedding to be cleared")

		require.NoError(t, entitiesDbHandler.DeleteEntity(ctx, entity.ExternalID))
	})
}

func TestEntitiesSelect(t *testing.T) {
	database := initDB(t)
	ctx := context.Background()

	entitiesDbHandler, err := NewEntitiesDBHandler(database, true)
	require.NoError(t, err)

	entities := []*model.Entity{
		{ExternalID: "select-doc-1", Type: "SelectDoc", Fields: model.Values{"title": "ab"}},
		{ExternalID: "select-doc-2", Type: "SelectDoc", Fields: model.Values{"title": "ba"}},
		{ExternalID: "select-person-1", Type: "SelectPerson", Fields: model.Values{}},
	}
	for _, entity := range entities {
		require.NoError(t, entitiesDbHandler.InsertEntity(ctx, entity))
	}
	defer func() {
		for _, entity := range entities {
			_ = entitiesDbHandler.DeleteEntity(ctx, entity.ExternalID)
		}
	}()

	t.Run("Select entity by external id", func(t *testing.T) {
		retrieved, err := entitiesDbHandler.SelectEntity(ctx, "select-doc-1")
		assert.NoError(t, err, "Expected Select to not return an error")
		require.NotNil(t, retrieved)
		assert.Equal(t, entities[0].ID, retrieved.ID, "Expected entity IDs to match")
		assert.Equal(t, "SelectDoc", retrieved.Type)
		assert.Equal(t, "ab", retrieved.Fields["title"])
	})

	t.Run("Select unknown entity", func(t *testing.T) {
		_, err := entitiesDbHandler.SelectEntity(ctx, "select-missing")
		assert.Error(t, err, "Expected error for unknown external id")
	})

	t.Run("Select entities by type", func(t *testing.T) {
		docs, err := entitiesDbHandler.SelectEntitiesByType(ctx, "SelectDoc", 10)
		assert.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "select-doc-1", docs[0].ExternalID)
		assert.Equal(t, "select-doc-2", docs[1].ExternalID)

		limited, err := entitiesDbHandler.SelectEntitiesByType(ctx, "SelectDoc", 1)
		assert.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("Select all entities", func(t *testing.T) {
		all, err := entitiesDbHandler.SelectAllEntities(ctx)
		assert.NoError(t, err)

		ids := map[string]bool{}
		for _, entity := range all {
			ids[entity.ExternalID] = true
		}
		for _, entity := range entities {
			assert.True(t, ids[entity.ExternalID], "Expected %s in all entities", entity.ExternalID)
		}
	})
}

func TestEntitiesEmbedding(t *testing.T) {
	database := initDB(t)
	ctx := context.Background()

	entitiesDbHandler, err := NewEntitiesDBHandler(database, true)
	require.NoError(t, err)

	embeddings := map[string][]float32{
		"embed-1": {1, 0, 0},
		"embed-2": {0.9, 0.1, 0},
		"embed-3": {0, 1, 0},
		"embed-4": {0, 0, 1},
	}
	scores := map[string]float64{"embed-1": 0.1, "embed-2": 0.4, "embed-3": 2.5}
	for _, id := range []string{"embed-1", "embed-2", "embed-3", "embed-4"} {
		entityType := "EmbedDoc"
		if id == "embed-4" {
			entityType = "EmbedPerson"
		}
		require.NoError(t, entitiesDbHandler.InsertEntity(ctx, &model.Entity{ExternalID: id, Type: entityType}))

		var score *float64
		if s, ok := scores[id]; ok {
			score = &s
		}
		require.NoError(t, entitiesDbHandler.UpdateEntityEmbedding(ctx, id, embeddings[id], score))
	}
	defer func() {
		for id := range embeddings {
			_ = entitiesDbHandler.DeleteEntity(ctx, id)
		}
	}()

	t.Run("Embedding round trip", func(t *testing.T) {
		entity, err := entitiesDbHandler.SelectEntity(ctx, "embed-2")
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float32{0.9, 0.1, 0}, entity.Embedding, 1e-6)
		require.NotNil(t, entity.AnomalyScore)
		assert.InDelta(t, 0.4, *entity.AnomalyScore, 1e-9)
	})

	t.Run("Select by similarity", func(t *testing.T) {
		docType := "EmbedDoc"
		exclude := "embed-1"
		results, err := entitiesDbHandler.SelectEntitiesBySimilarity(ctx, []float32{1, 0, 0}, 5, 0.0, &docType, &exclude)
		assert.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "embed-2", results[0].Entity.ExternalID, "Expected nearest neighbour first")
		assert.Greater(t, results[0].Score, results[1].Score)
		assert.Equal(t, model.RetrievalMethodSimilarity, results[0].RetrievalMethod)
	})

	t.Run("Select by similarity with threshold", func(t *testing.T) {
		docType := "EmbedDoc"
		results, err := entitiesDbHandler.SelectEntitiesBySimilarity(ctx, []float32{1, 0, 0}, 5, 0.5, &docType, nil)
		assert.NoError(t, err)
		assert.Len(t, results, 2, "Expected only embed-1 and embed-2 above the threshold")
	})

	t.Run("Select by anomaly", func(t *testing.T) {
		docType := "EmbedDoc"
		results, err := entitiesDbHandler.SelectEntitiesByAnomaly(ctx, 2, &docType)
		assert.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "embed-3", results[0].Entity.ExternalID)
		assert.Equal(t, 2.5, results[0].Score)
		assert.Equal(t, "embed-2", results[1].Entity.ExternalID)
		assert.Equal(t, model.RetrievalMethodAnomaly, results[1].RetrievalMethod)
	})

	t.Run("Entities without score are not anomalies", func(t *testing.T) {
		personType := "EmbedPerson"
		results, err := entitiesDbHandler.SelectEntitiesByAnomaly(ctx, 5, &personType)
		assert.NoError(t, err)
		assert.Empty(t, results)
	})
}
