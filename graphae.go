package graphae

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/siherrmann/graphae/core/autoencoder"
	"github.com/siherrmann/graphae/core/graph"
	"github.com/siherrmann/graphae/core/pipeline"
	"github.com/siherrmann/graphae/core/retrieval"
	"github.com/siherrmann/graphae/core/schema"
	"github.com/siherrmann/graphae/database"
	"github.com/siherrmann/graphae/helper"
	"github.com/siherrmann/graphae/model"
	loadSql "github.com/siherrmann/graphae/sql"
)

// GraphAE stores a typed graph in postgres, trains nothing and embeds
// entities with a graph autoencoder built from the observed data.
type GraphAE struct {
	DB       *helper.Database
	Entities *database.EntitiesDBHandler
	Edges    *database.EdgesDBHandler
	Engine   *retrieval.Engine
	Schema   *schema.Schema
	// Model is nil until Observe has run
	Model *autoencoder.GraphAutoencoder

	modelConfig model.ModelConfig
	log         *slog.Logger
}

// NewGraphAE connects to the database, loads the SQL functions and builds the
// schema. The autoencoder itself is built by Observe once field vocabularies
// and ranges are known.
func NewGraphAE(dbConfig *helper.DatabaseConfiguration, schemaConfig *model.SchemaConfig, modelConfig model.ModelConfig, opts ...schema.Option) (*GraphAE, error) {
	// Logger
	handlerOpts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, handlerOpts))

	s, err := schema.New(schemaConfig, append([]schema.Option{schema.WithLogger(logger)}, opts...)...)
	if err != nil {
		return nil, helper.NewError("create schema", err)
	}

	db := helper.NewDatabase("graphae", dbConfig, logger)
	err = loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// force=false to not reload if functions already exist
	entities, err := database.NewEntitiesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	edges, err := database.NewEdgesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create edges handler", err)
	}

	return &GraphAE{
		DB:          db,
		Entities:    entities,
		Edges:       edges,
		Engine:      retrieval.NewEngine(entities, edges),
		Schema:      s,
		modelConfig: modelConfig,
		log:         logger,
	}, nil
}

// Close closes the database connection
func (g *GraphAE) Close() error {
	if g.DB != nil {
		return g.DB.Close()
	}
	return nil
}

// InsertEntities stores entities, replacing stored ones with the same external id
func (g *GraphAE) InsertEntities(ctx context.Context, entities []*model.Entity) error {
	for _, entity := range entities {
		if entity.ExternalID == "" {
			return helper.NewError("insert entities", fmt.Errorf("entity without external id"))
		}
		if err := g.Entities.InsertEntity(ctx, entity); err != nil {
			return helper.NewError("insert entity "+entity.ExternalID, err)
		}
	}
	g.log.Info("Inserted entities", slog.Int("count", len(entities)))
	return nil
}

// InsertEdges stores edges. Edges of relations the schema does not declare are rejected.
func (g *GraphAE) InsertEdges(ctx context.Context, edges []*model.Edge) error {
	for _, edge := range edges {
		if _, ok := g.Schema.Relation(edge.Relation); !ok {
			return helper.NewError("insert edges", helper.ConfigurationError("relation '%s' is not declared", edge.Relation))
		}
		if err := g.Edges.InsertEdge(ctx, edge); err != nil {
			return helper.NewError("insert edge", err)
		}
	}
	g.log.Info("Inserted edges", slog.Int("count", len(edges)))
	return nil
}

// Observe runs the observe pass over every stored entity, freezes the schema
// and builds the autoencoder. It can only run once.
func (g *GraphAE) Observe(ctx context.Context) error {
	if g.Schema.Frozen() {
		return helper.NewError("observe", helper.ConfigurationError("schema is already frozen"))
	}

	entities, err := g.Entities.SelectAllEntities(ctx)
	if err != nil {
		return helper.NewError("select entities", err)
	}
	if err := pipeline.Observe(g.Schema, entities); err != nil {
		return err
	}
	g.Schema.Freeze()

	m, err := autoencoder.NewGraphAutoencoder(g.Schema, g.modelConfig, g.log)
	if err != nil {
		return err
	}
	g.Model = m

	g.log.Info("Observed entities", slog.Int("count", len(entities)), slog.Int("parameters", m.ParameterCount()))
	return nil
}

// subgraph loads the entities and edges a forward pass over externalIDs needs.
// No ids selects the whole stored graph.
func (g *GraphAE) subgraph(ctx context.Context, externalIDs []string) ([]*model.Entity, []*model.Edge, error) {
	if len(externalIDs) > 0 {
		return graph.ReceptiveField(ctx, g.Engine, externalIDs, g.modelConfig.Depth, g.modelConfig.ReverseRelations)
	}

	entities, err := g.Entities.SelectAllEntities(ctx)
	if err != nil {
		return nil, nil, helper.NewError("select entities", err)
	}
	edges, err := g.Edges.SelectAllEdges(ctx)
	if err != nil {
		return nil, nil, helper.NewError("select edges", err)
	}
	return entities, edges, nil
}

// forward assembles the subgraph around externalIDs and runs the autoencoder on it
func (g *GraphAE) forward(ctx context.Context, externalIDs []string) (*graph.Batch, *autoencoder.Output, error) {
	if g.Model == nil {
		return nil, nil, helper.NewError("forward", helper.ConfigurationError("model not built, run Observe first"))
	}

	entities, edges, err := g.subgraph(ctx, externalIDs)
	if err != nil {
		return nil, nil, helper.NewError("load subgraph", err)
	}
	batch, adjacency, err := pipeline.Assemble(g.Schema, entities, edges)
	if err != nil {
		return nil, nil, err
	}
	out, err := g.Model.Forward(ctx, batch, adjacency)
	if err != nil {
		return nil, nil, err
	}
	return batch, out, nil
}

// targets returns the rows of externalIDs in the batch, or all rows if none are given
func targets(batch *graph.Batch, externalIDs []string) []int {
	if len(externalIDs) == 0 {
		rows := make([]int, batch.Len())
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	position := batch.Position()
	var rows []int
	for _, id := range externalIDs {
		if i, ok := position[id]; ok {
			rows = append(rows, i)
		}
	}
	return rows
}

// Embed runs the forward pass and stores the final bottleneck of every
// target entity as its embedding and its reconstruction loss as its anomaly
// score. No ids embeds the whole graph. Entities of undeclared types are
// skipped. Returns the number of entities updated.
func (g *GraphAE) Embed(ctx context.Context, externalIDs ...string) (int, error) {
	batch, out, err := g.forward(ctx, externalIDs)
	if err != nil {
		return 0, err
	}
	loss, err := g.Model.ReconstructionLoss(batch, out)
	if err != nil {
		return 0, err
	}

	untyped := make(map[int]bool, len(out.Index.Untyped))
	for _, i := range out.Index.Untyped {
		untyped[i] = true
	}

	updated := 0
	for _, i := range targets(batch, externalIDs) {
		if untyped[i] {
			continue
		}
		var score *float64
		if v := loss.Entities[i]; !math.IsNaN(v) {
			score = &v
		}

		embedding := make([]float32, out.Bottlenecks.Cols())
		for j, v := range out.Bottlenecks.Row(i) {
			embedding[j] = float32(v)
		}
		if err := g.Entities.UpdateEntityEmbedding(ctx, batch.IDs[i], embedding, score); err != nil {
			return updated, helper.NewError("update embedding "+batch.IDs[i], err)
		}
		updated++
	}

	g.log.Info("Embedded entities", slog.Int("count", updated), slog.Int("batch", batch.Len()))
	return updated, nil
}

// Reconstruct decodes the autoencoder's reconstruction of the given entities,
// or of all entities if none are given. With impute, absent fields are filled
// from the reconstruction instead of staying nil.
func (g *GraphAE) Reconstruct(ctx context.Context, impute bool, externalIDs ...string) ([]*model.Entity, error) {
	batch, out, err := g.forward(ctx, externalIDs)
	if err != nil {
		return nil, err
	}
	decoded, err := pipeline.DecodeEntities(g.Schema, batch, out, impute)
	if err != nil {
		return nil, err
	}

	rows := targets(batch, externalIDs)
	entities := make([]*model.Entity, len(rows))
	for k, i := range rows {
		entities[k] = decoded[i]
	}
	return entities, nil
}

// SimilarEntities returns the entities whose stored embeddings are closest to externalID's
func (g *GraphAE) SimilarEntities(ctx context.Context, externalID string, config *model.QueryConfig) ([]*model.EntityResult, error) {
	return g.Engine.SimilarEntities(ctx, externalID, config)
}

// Anomalies returns the entities with the highest stored reconstruction loss
func (g *GraphAE) Anomalies(ctx context.Context, config *model.QueryConfig) ([]*model.EntityResult, error) {
	return g.Engine.Anomalies(ctx, config)
}

// Neighbors returns the entities one edge away from externalID
func (g *GraphAE) Neighbors(ctx context.Context, externalID string, relations []string, followIncoming bool) ([]*model.EntityResult, error) {
	return g.Engine.Neighbors(ctx, externalID, relations, followIncoming)
}

// MultiHopSearch returns entities within config.MaxHops scored by distance
func (g *GraphAE) MultiHopSearch(ctx context.Context, externalID string, config *model.QueryConfig) ([]*model.EntityResult, error) {
	return retrieval.NewMultiHopStrategy(g.Engine).Retrieve(ctx, externalID, config)
}

// HybridSearch combines embedding similarity with graph proximity
func (g *GraphAE) HybridSearch(ctx context.Context, externalID string, config *model.QueryConfig) ([]*model.EntityResult, error) {
	return retrieval.NewHybridStrategy(g.Engine).Retrieve(ctx, externalID, config)
}

// ChangeIndexType builds a vector index over the stored embeddings, sized to
// the model's bottleneck.
func (g *GraphAE) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	if g.Model == nil {
		return helper.NewError("change index type", helper.ConfigurationError("model not built, run Observe first"))
	}
	dim, ok := g.Model.BottleneckSize()
	if !ok {
		return helper.NewError("change index type", helper.ConfigurationError("model has no bottleneck to index"))
	}
	return g.Entities.ChangeIndexType(ctx, indexType, dim, params)
}
