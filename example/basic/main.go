package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/graphae"
	"github.com/siherrmann/graphae/core/pipeline"
	"github.com/siherrmann/graphae/core/schema"
	"github.com/siherrmann/graphae/helper"
	"github.com/siherrmann/graphae/model"
)

const librarySchema = `
data_fields:
  - {name: name, type: categorical}
  - {name: born, type: date}
  - {name: title, type: character}
  - {name: abstract, type: text}
  - {name: pages, type: integer}
relation_fields:
  - {name: authored, source_entity_type: Person, target_entity_type: Book}
  - {name: cites, source_entity_type: Book, target_entity_type: Book}
entity_types:
  - {name: Person, data_fields: [name, born]}
  - {name: Book, data_fields: [title, abstract, pages]}
`

func main() {
	ctx := context.Background()

	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(ctx)

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	schemaConfig, err := model.ParseSchemaConfig([]byte(librarySchema))
	if err != nil {
		log.Fatalf("Failed to parse schema: %v", err)
	}

	// Text fields are embedded with all-MiniLM-L6-v2
	embedder, err := pipeline.DefaultEmbedder()
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}

	g, err := graphae.NewGraphAE(dbConfig, schemaConfig, model.DefaultModelConfig(), schema.WithEmbedder(pipeline.CachedEmbedder(embedder)))
	if err != nil {
		log.Fatalf("Failed to create graphae: %v", err)
	}
	defer g.Close()

	entities := []*model.Entity{
		{ExternalID: "ada", Type: "Person", Fields: model.Values{"name": "Ada Lovelace", "born": "10-Dec-1815"}},
		{ExternalID: "alan", Type: "Person", Fields: model.Values{"name": "Alan Turing", "born": "23-Jun-1912"}},
		{ExternalID: "notes", Type: "Book", Fields: model.Values{
			"title":    "Notes on the Analytical Engine",
			"abstract": "A description of a general purpose mechanical computer and its first program.",
			"pages":    66,
		}},
		{ExternalID: "computable", Type: "Book", Fields: model.Values{
			"title":    "On Computable Numbers",
			"abstract": "Defines an abstract machine and shows the limits of mechanical computation.",
			"pages":    36,
		}},
		{ExternalID: "imitation", Type: "Book", Fields: model.Values{
			"title":    "Computing Machinery and Intelligence",
			"abstract": "Asks whether machines can think and proposes the imitation game.",
		}},
	}
	edges := []*model.Edge{
		{Relation: "authored", SourceID: "ada", TargetID: "notes"},
		{Relation: "authored", SourceID: "alan", TargetID: "computable"},
		{Relation: "authored", SourceID: "alan", TargetID: "imitation"},
		{Relation: "cites", SourceID: "computable", TargetID: "notes"},
	}

	fmt.Println("Inserting graph...")
	if err := g.InsertEntities(ctx, entities); err != nil {
		log.Fatalf("Failed to insert entities: %v", err)
	}
	if err := g.InsertEdges(ctx, edges); err != nil {
		log.Fatalf("Failed to insert edges: %v", err)
	}

	// Vocabularies and ranges come from the stored data
	if err := g.Observe(ctx); err != nil {
		log.Fatalf("Failed to observe entities: %v", err)
	}
	fmt.Println(g.Model)

	updated, err := g.Embed(ctx)
	if err != nil {
		log.Fatalf("Failed to embed entities: %v", err)
	}
	fmt.Printf("Embedded %d entities\n", updated)

	config := model.DefaultQueryConfig()
	config.TopK = 3

	similar, err := g.SimilarEntities(ctx, "computable", &config)
	if err != nil {
		log.Fatalf("Failed to search similar entities: %v", err)
	}
	fmt.Println("\nMost similar to 'computable':")
	for _, result := range similar {
		fmt.Printf("  %-12s %-8s %.4f\n", result.Entity.ExternalID, result.Entity.Type, result.Score)
	}

	anomalies, err := g.Anomalies(ctx, &config)
	if err != nil {
		log.Fatalf("Failed to search anomalies: %v", err)
	}
	fmt.Println("\nHighest reconstruction loss:")
	for _, result := range anomalies {
		fmt.Printf("  %-12s %-8s %.4f\n", result.Entity.ExternalID, result.Entity.Type, result.Score)
	}

	// The missing page count of 'imitation' is filled in from the reconstruction
	reconstructed, err := g.Reconstruct(ctx, true, "imitation")
	if err != nil {
		log.Fatalf("Failed to reconstruct: %v", err)
	}
	fmt.Printf("\nReconstructed 'imitation': %v\n", reconstructed[0].Fields)

	fmt.Println("\nBasic example completed successfully!")
}
