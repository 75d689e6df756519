package graph

import (
	"context"
	"slices"

	"github.com/siherrmann/graphae/model"
)

// GraphDB defines the interface for graph operations
type GraphDB interface {
	GetEntity(ctx context.Context, externalID string) (*model.Entity, error)
	GetEdgesFromEntity(ctx context.Context, externalID string, relations []string, followIncoming bool) ([]*model.Edge, error)
}

// TraversalResult contains an entity and its distance from the source
type TraversalResult struct {
	Entity   *model.Entity
	Distance int
	Path     []string // External ids from source to this entity
	Via      *model.Edge
}

// BFS performs breadth-first search from a source entity. With followIncoming
// edges are also walked from target to source, which is how relation
// summaries reach an entity when reverse relations are enabled.
func BFS(ctx context.Context, db GraphDB, sourceID string, maxHops int, relations []string, followIncoming bool) ([]*TraversalResult, error) {
	visited := make(map[string]bool)

	// Get source entity
	source, err := db.GetEntity(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	queue := []TraversalResult{{
		Entity:   source,
		Distance: 0,
		Path:     []string{sourceID},
	}}
	var results []*TraversalResult
	visited[sourceID] = true

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := queue[0]
		queue = queue[1:]

		results = append(results, &current)

		// Stop if we've reached max hops
		if current.Distance >= maxHops {
			continue
		}

		edges, err := db.GetEdgesFromEntity(ctx, current.Entity.ExternalID, relations, followIncoming)
		if err != nil {
			return nil, err
		}

		for _, edge := range edges {
			var nextID string

			// Determine the other end based on edge direction
			if edge.SourceID == current.Entity.ExternalID {
				nextID = edge.TargetID
			} else if followIncoming && edge.TargetID == current.Entity.ExternalID {
				nextID = edge.SourceID
			} else {
				continue
			}

			if visited[nextID] {
				continue
			}

			next, err := db.GetEntity(ctx, nextID)
			if err != nil {
				continue // Skip dangling edges
			}

			visited[nextID] = true

			queue = append(queue, TraversalResult{
				Entity:   next,
				Distance: current.Distance + 1,
				Path:     append(slices.Clone(current.Path), nextID),
				Via:      edge,
			})
		}
	}

	return results, nil
}

// GetNeighbors retrieves immediate neighbors (1-hop) of an entity
func GetNeighbors(ctx context.Context, db GraphDB, externalID string, relations []string, followIncoming bool) ([]*TraversalResult, error) {
	results, err := BFS(ctx, db, externalID, 1, relations, followIncoming)
	if err != nil {
		return nil, err
	}

	// Skip the source entity itself (first result)
	return results[1:], nil
}

// ReceptiveField returns the entities within depth hops of the sources and
// the edges among them. With followIncoming matching the model's reverse
// relation mode, a forward pass of the given depth over this subgraph yields
// the same source bottlenecks as one over the whole graph.
func ReceptiveField(ctx context.Context, db GraphDB, sourceIDs []string, depth int, followIncoming bool) ([]*model.Entity, []*model.Edge, error) {
	seen := map[string]bool{}
	var entities []*model.Entity
	for _, sourceID := range sourceIDs {
		results, err := BFS(ctx, db, sourceID, depth, nil, followIncoming)
		if err != nil {
			return nil, nil, err
		}
		for _, r := range results {
			if seen[r.Entity.ExternalID] {
				continue
			}
			seen[r.Entity.ExternalID] = true
			entities = append(entities, r.Entity)
		}
	}

	type edgeKey struct{ relation, source, target string }
	edgeSeen := map[edgeKey]bool{}
	var edges []*model.Edge
	for _, entity := range entities {
		outgoing, err := db.GetEdgesFromEntity(ctx, entity.ExternalID, nil, false)
		if err != nil {
			return nil, nil, err
		}
		for _, edge := range outgoing {
			key := edgeKey{edge.Relation, edge.SourceID, edge.TargetID}
			if edge.SourceID != entity.ExternalID || !seen[edge.TargetID] || edgeSeen[key] {
				continue
			}
			edgeSeen[key] = true
			edges = append(edges, edge)
		}
	}
	return entities, edges, nil
}
