package main

import (
	"context"
	_ "embed"
	"fmt"
	"log"

	"github.com/siherrmann/graphae"
	"github.com/siherrmann/graphae/helper"
	"github.com/siherrmann/graphae/model"
)

//go:embed schema.yaml
var paymentsSchema []byte

func main() {
	ctx := context.Background()

	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(ctx)

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	schemaConfig, err := model.ParseSchemaConfig(paymentsSchema)
	if err != nil {
		log.Fatalf("Failed to parse schema: %v", err)
	}

	// Two rounds of message passing over outgoing relations only, pooled with max
	modelConfig := model.DefaultModelConfig()
	modelConfig.Depth = 2
	modelConfig.AutoencoderShapes = []int{24, 12, 6}
	modelConfig.ReverseRelations = false
	modelConfig.Summarizer = model.SummarizerMax
	modelConfig.Activation = model.ActivationTanh
	modelConfig.Seed = 7

	g, err := graphae.NewGraphAE(dbConfig, schemaConfig, modelConfig)
	if err != nil {
		log.Fatalf("Failed to create graphae: %v", err)
	}
	defer g.Close()

	var entities []*model.Entity
	var edges []*model.Edge
	merchants := []struct {
		id, country string
		tags        []string
	}{
		{"grocer", "DE", []string{"food", "daily"}},
		{"airline", "FR", []string{"travel"}},
		{"casino", "MT", []string{"gaming", "night", "cash"}},
	}
	for _, m := range merchants {
		entities = append(entities, &model.Entity{ExternalID: m.id, Type: "Merchant", Fields: model.Values{"country": m.country, "tags": m.tags}})
	}
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("acc-%02d", i)
		fields := model.Values{
			"country": []string{"DE", "FR"}[i%2],
			"balance": 1000 + 150*float64(i),
			"spend":   map[string]any{"food": 0.6, "travel": 0.4},
			"opened":  fmt.Sprintf("%d-Mar-2019", i+1),
		}
		entities = append(entities, &model.Entity{ExternalID: id, Type: "Account", Fields: fields})
		edges = append(edges, &model.Edge{Relation: "paid", SourceID: id, TargetID: "grocer"})
		if i%3 == 0 {
			edges = append(edges, &model.Edge{Relation: "paid", SourceID: id, TargetID: "airline"})
		}
		if i > 0 {
			edges = append(edges, &model.Edge{Relation: "refers", SourceID: fmt.Sprintf("acc-%02d", i-1), TargetID: id})
		}
	}

	// An account that looks nothing like the others
	entities = append(entities, &model.Entity{ExternalID: "acc-odd", Type: "Account", Fields: model.Values{
		"country": "MT",
		"balance": 250000.0,
		"spend":   map[string]any{"gaming": 0.95, "food": 0.05},
	}})
	edges = append(edges, &model.Edge{Relation: "paid", SourceID: "acc-odd", TargetID: "casino"})

	if err := g.InsertEntities(ctx, entities); err != nil {
		log.Fatalf("Failed to insert entities: %v", err)
	}
	if err := g.InsertEdges(ctx, edges); err != nil {
		log.Fatalf("Failed to insert edges: %v", err)
	}
	if err := g.Observe(ctx); err != nil {
		log.Fatalf("Failed to observe entities: %v", err)
	}
	fmt.Println(g.Schema)

	updated, err := g.Embed(ctx)
	if err != nil {
		log.Fatalf("Failed to embed entities: %v", err)
	}
	fmt.Printf("Embedded %d entities with %d parameters\n", updated, g.Model.ParameterCount())

	// Newly changed accounts only need their receptive field recomputed
	updated, err = g.Embed(ctx, "acc-03", "acc-odd")
	if err != nil {
		log.Fatalf("Failed to re-embed accounts: %v", err)
	}
	fmt.Printf("Re-embedded %d accounts\n", updated)

	if err := g.ChangeIndexType(ctx, "hnsw", map[string]interface{}{"m": 8}); err != nil {
		log.Fatalf("Failed to build vector index: %v", err)
	}

	anomalyConfig := model.DefaultQueryConfig()
	anomalyConfig.EntityType = "Account"
	anomalyConfig.TopK = 3
	printResults("Anomalous accounts", g.Anomalies)(ctx, &anomalyConfig)

	multiHopConfig := model.DefaultQueryConfig()
	multiHopConfig.FollowIncoming = true
	multiHopConfig.MaxHops = 2
	multiHopConfig.TopK = 5
	printResults("Within two hops of acc-03", func(ctx context.Context, config *model.QueryConfig) ([]*model.EntityResult, error) {
		return g.MultiHopSearch(ctx, "acc-03", config)
	})(ctx, &multiHopConfig)

	hybridConfig := model.DefaultQueryConfig()
	hybridConfig.EntityType = "Account"
	hybridConfig.VectorWeight = 0.5
	hybridConfig.GraphWeight = 0.5
	printResults("Hybrid neighbours of acc-03", func(ctx context.Context, config *model.QueryConfig) ([]*model.EntityResult, error) {
		return g.HybridSearch(ctx, "acc-03", config)
	})(ctx, &hybridConfig)

	fmt.Println("\nAdvanced example completed successfully!")
}

func printResults(title string, query func(context.Context, *model.QueryConfig) ([]*model.EntityResult, error)) func(context.Context, *model.QueryConfig) {
	return func(ctx context.Context, config *model.QueryConfig) {
		results, err := query(ctx, config)
		if err != nil {
			log.Fatalf("%s failed: %v", title, err)
		}
		fmt.Printf("\n%s:\n", title)
		for _, result := range results {
			fmt.Printf("  %-8s %-9s %-10s %.4f\n", result.Entity.ExternalID, result.Entity.Type, result.RetrievalMethod, result.Score)
		}
	}
}
