package retrieval

import (
	"context"

	"github.com/siherrmann/graphae/core/graph"
	"github.com/siherrmann/graphae/model"
)

// Strategy defines a retrieval strategy around one query entity
type Strategy interface {
	Retrieve(ctx context.Context, externalID string, config *model.QueryConfig) ([]*model.EntityResult, error)
}

// SimilarityStrategy performs pure embedding similarity search
type SimilarityStrategy struct {
	engine *Engine
}

// NewSimilarityStrategy creates a new similarity strategy
func NewSimilarityStrategy(engine *Engine) *SimilarityStrategy {
	return &SimilarityStrategy{engine: engine}
}

// Retrieve performs similarity retrieval
func (s *SimilarityStrategy) Retrieve(ctx context.Context, externalID string, config *model.QueryConfig) ([]*model.EntityResult, error) {
	return s.engine.SimilarEntities(ctx, externalID, config)
}

// MultiHopStrategy returns the entities reachable within config.MaxHops,
// scored by inverse graph distance.
type MultiHopStrategy struct {
	engine *Engine
}

// NewMultiHopStrategy creates a new multi-hop strategy
func NewMultiHopStrategy(engine *Engine) *MultiHopStrategy {
	return &MultiHopStrategy{
		engine: engine,
	}
}

// Retrieve performs multi-hop retrieval
func (s *MultiHopStrategy) Retrieve(ctx context.Context, externalID string, config *model.QueryConfig) ([]*model.EntityResult, error) {
	resultMap, err := s.engine.reachable(ctx, externalID, config, 1.0, model.RetrievalMethodMultiHop)
	if err != nil {
		return nil, err
	}
	return sortResults(resultMap, config.TopK), nil
}

// HybridStrategy combines embedding similarity and graph proximity with
// config.VectorWeight and config.GraphWeight.
type HybridStrategy struct {
	engine *Engine
}

// NewHybridStrategy creates a new hybrid strategy
func NewHybridStrategy(engine *Engine) *HybridStrategy {
	return &HybridStrategy{
		engine: engine,
	}
}

// Retrieve performs hybrid retrieval with weighted combination
func (s *HybridStrategy) Retrieve(ctx context.Context, externalID string, config *model.QueryConfig) ([]*model.EntityResult, error) {
	resultMap, err := s.engine.reachable(ctx, externalID, config, config.GraphWeight, model.RetrievalMethodHybrid)
	if err != nil {
		return nil, err
	}

	similar, err := s.engine.SimilarEntities(ctx, externalID, config)
	if err != nil {
		return nil, err
	}
	for _, result := range similar {
		score := config.VectorWeight * result.Score
		if existing, ok := resultMap[result.Entity.ExternalID]; ok {
			existing.Score += score
			continue
		}
		resultMap[result.Entity.ExternalID] = &model.EntityResult{
			Entity:          result.Entity,
			Score:           score,
			RetrievalMethod: model.RetrievalMethodHybrid,
		}
	}

	return sortResults(resultMap, config.TopK), nil
}

// reachable runs a breadth-first search from externalID and scores every
// reached entity except the source with weight/distance.
func (e *Engine) reachable(ctx context.Context, externalID string, config *model.QueryConfig, weight float64, method model.RetrievalMethod) (map[string]*model.EntityResult, error) {
	traversal, err := graph.BFS(ctx, e, externalID, config.MaxHops, config.Relations, config.FollowIncoming)
	if err != nil {
		return nil, err
	}

	resultMap := make(map[string]*model.EntityResult)
	for _, r := range traversal {
		if r.Distance == 0 {
			continue
		}
		if config.EntityType != "" && r.Entity.Type != config.EntityType {
			continue
		}
		resultMap[r.Entity.ExternalID] = &model.EntityResult{
			Entity:          r.Entity,
			Score:           weight / float64(r.Distance),
			RetrievalMethod: method,
		}
	}
	return resultMap, nil
}
