package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/siherrmann/graphae/core/graph"
	"github.com/siherrmann/graphae/database"
	"github.com/siherrmann/graphae/helper"
	"github.com/siherrmann/graphae/model"
)

// Engine answers queries over stored entities, their embeddings and edges.
// It implements graph.GraphDB so traversals run directly against the database.
type Engine struct {
	entities database.EntitiesDBHandlerFunctions
	edges    database.EdgesDBHandlerFunctions
}

// NewEngine creates a new retrieval engine
func NewEngine(entities database.EntitiesDBHandlerFunctions, edges database.EdgesDBHandlerFunctions) *Engine {
	return &Engine{
		entities: entities,
		edges:    edges,
	}
}

// GetEntity loads one entity by external id
func (e *Engine) GetEntity(ctx context.Context, externalID string) (*model.Entity, error) {
	return e.entities.SelectEntity(ctx, externalID)
}

// GetEdgesFromEntity returns the outgoing edges of an entity and, with
// followIncoming, its incoming edges after them.
func (e *Engine) GetEdgesFromEntity(ctx context.Context, externalID string, relations []string, followIncoming bool) ([]*model.Edge, error) {
	edges, err := e.edges.SelectEdgesFromEntity(ctx, externalID, relations)
	if err != nil {
		return nil, err
	}
	if !followIncoming {
		return edges, nil
	}

	incoming, err := e.edges.SelectEdgesToEntity(ctx, externalID, relations)
	if err != nil {
		return nil, err
	}
	return append(edges, incoming...), nil
}

// SimilarEntities returns the stored entities whose embeddings are closest to
// the embedding of externalID, excluding the entity itself.
func (e *Engine) SimilarEntities(ctx context.Context, externalID string, config *model.QueryConfig) ([]*model.EntityResult, error) {
	entity, err := e.entities.SelectEntity(ctx, externalID)
	if err != nil {
		return nil, helper.NewError("select entity "+externalID, err)
	}
	if len(entity.Embedding) == 0 {
		return nil, helper.NewError("similar entities", fmt.Errorf("entity '%s' has no embedding", externalID))
	}

	return e.entities.SelectEntitiesBySimilarity(ctx, entity.Embedding, config.TopK, config.SimilarityThreshold, typeFilter(config), &externalID)
}

// SimilarToEmbedding performs pure vector similarity search
func (e *Engine) SimilarToEmbedding(ctx context.Context, embedding []float32, config *model.QueryConfig) ([]*model.EntityResult, error) {
	return e.entities.SelectEntitiesBySimilarity(ctx, embedding, config.TopK, config.SimilarityThreshold, typeFilter(config), nil)
}

// Anomalies returns the entities with the highest reconstruction loss
func (e *Engine) Anomalies(ctx context.Context, config *model.QueryConfig) ([]*model.EntityResult, error) {
	return e.entities.SelectEntitiesByAnomaly(ctx, config.TopK, typeFilter(config))
}

// Neighbors retrieves the entities one edge away, in both directions when
// followIncoming is set.
func (e *Engine) Neighbors(ctx context.Context, externalID string, relations []string, followIncoming bool) ([]*model.EntityResult, error) {
	neighbors, err := graph.GetNeighbors(ctx, e, externalID, relations, followIncoming)
	if err != nil {
		return nil, helper.NewError("neighbors of "+externalID, err)
	}

	results := make([]*model.EntityResult, len(neighbors))
	for i, n := range neighbors {
		results[i] = &model.EntityResult{
			Entity:          n.Entity,
			Score:           1,
			RetrievalMethod: model.RetrievalMethodNeighbor,
		}
	}
	return results, nil
}

func typeFilter(config *model.QueryConfig) *string {
	if config.EntityType == "" {
		return nil
	}
	return &config.EntityType
}

// sortResults orders results by descending score, ties by external id, and
// keeps at most topK of them. topK <= 0 keeps all.
func sortResults(resultMap map[string]*model.EntityResult, topK int) []*model.EntityResult {
	results := make([]*model.EntityResult, 0, len(resultMap))
	for _, result := range resultMap {
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entity.ExternalID < results[j].Entity.ExternalID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
