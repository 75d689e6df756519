package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/graphae/helper"
	"github.com/siherrmann/graphae/model"
	"github.com/siherrmann/graphae/sql"
)

// EntitiesDBHandlerFunctions defines the interface for Entities database operations.
type EntitiesDBHandlerFunctions interface {
	InsertEntity(ctx context.Context, entity *model.Entity) error
	UpdateEntityEmbedding(ctx context.Context, externalID string, embedding []float32, anomalyScore *float64) error
	DeleteEntity(ctx context.Context, externalID string) error
	SelectEntity(ctx context.Context, externalID string) (*model.Entity, error)
	SelectAllEntities(ctx context.Context) ([]*model.Entity, error)
	SelectEntitiesByType(ctx context.Context, entityType string, limit int) ([]*model.Entity, error)
	SelectEntitiesBySimilarity(ctx context.Context, embedding []float32, limit int, threshold float64, entityType *string, excludeExternalID *string) ([]*model.EntityResult, error)
	SelectEntitiesByAnomaly(ctx context.Context, limit int, entityType *string) ([]*model.EntityResult, error)
}

// EntitiesDBHandler handles entity-related database operations
type EntitiesDBHandler struct {
	db *helper.Database
}

// NewEntitiesDBHandler creates a new entities database handler.
// It initializes the database connection and loads entity-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
	}

	err := sql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the 'entities' table in the database.
// If the table already exists, it does not create it again.
func (h *EntitiesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities();`)
	if err != nil {
		log.Panicf("error initializing entities table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table entities")

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner, extra ...any) (*model.Entity, error) {
	entity := &model.Entity{}
	dest := append([]any{
		&entity.ID,
		&entity.RID,
		&entity.ExternalID,
		&entity.Type,
		&entity.Fields,
		pq.Array(&entity.Embedding),
		&entity.AnomalyScore,
		&entity.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return entity, nil
}

// InsertEntity inserts a new entity or replaces the type and fields of the
// entity with the same external id. A replaced entity loses its embedding.
func (h *EntitiesDBHandler) InsertEntity(ctx context.Context, entity *model.Entity) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_entity($1, $2, $3)`,
		entity.ExternalID,
		entity.Type,
		entity.Fields,
	)

	inserted, err := scanEntity(row)
	if err != nil {
		return helper.NewError("scan", err)
	}
	*entity = *inserted

	return nil
}

// UpdateEntityEmbedding stores the final bottleneck and reconstruction loss
// of an entity. An empty embedding is stored as NULL.
func (h *EntitiesDBHandler) UpdateEntityEmbedding(ctx context.Context, externalID string, embedding []float32, anomalyScore *float64) error {
	var vector any
	if len(embedding) > 0 {
		vector = pgvector.NewVector(embedding)
	}

	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT update_entity_embedding($1, $2, $3)`,
		externalID,
		vector,
		anomalyScore,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// DeleteEntity deletes an entity by external id
func (h *EntitiesDBHandler) DeleteEntity(ctx context.Context, externalID string) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_entity($1)`,
		externalID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectEntity retrieves an entity by external id
func (h *EntitiesDBHandler) SelectEntity(ctx context.Context, externalID string) (*model.Entity, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_entity($1)`,
		externalID,
	)

	entity, err := scanEntity(row)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SelectAllEntities retrieves every entity in insertion order
func (h *EntitiesDBHandler) SelectAllEntities(ctx context.Context) ([]*model.Entity, error) {
	return h.selectEntities(ctx, `SELECT * FROM select_all_entities()`)
}

// SelectEntitiesByType retrieves entities by type
func (h *EntitiesDBHandler) SelectEntitiesByType(ctx context.Context, entityType string, limit int) ([]*model.Entity, error) {
	return h.selectEntities(ctx, `SELECT * FROM select_entities_by_type($1, $2)`, entityType, limit)
}

func (h *EntitiesDBHandler) selectEntities(ctx context.Context, query string, args ...any) ([]*model.Entity, error) {
	rows, err := h.db.Instance.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}

// SelectEntitiesBySimilarity performs a cosine similarity search over stored
// embeddings. entityType restricts the result to one type and excludeExternalID
// drops the query entity itself, both are optional.
func (h *EntitiesDBHandler) SelectEntitiesBySimilarity(ctx context.Context, embedding []float32, limit int, threshold float64, entityType *string, excludeExternalID *string) ([]*model.EntityResult, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_entities_by_similarity($1, $2, $3, $4, $5)`,
		pgvector.NewVector(embedding),
		limit,
		threshold,
		entityType,
		excludeExternalID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []*model.EntityResult
	for rows.Next() {
		var similarity float64
		entity, err := scanEntity(rows, &similarity)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		results = append(results, &model.EntityResult{
			Entity:          entity,
			Score:           similarity,
			RetrievalMethod: model.RetrievalMethodSimilarity,
		})
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

// SelectEntitiesByAnomaly retrieves the entities with the highest anomaly score
func (h *EntitiesDBHandler) SelectEntitiesByAnomaly(ctx context.Context, limit int, entityType *string) ([]*model.EntityResult, error) {
	entities, err := h.selectEntities(ctx, `SELECT * FROM select_entities_by_anomaly($1, $2)`, limit, entityType)
	if err != nil {
		return nil, err
	}

	results := make([]*model.EntityResult, len(entities))
	for i, entity := range entities {
		results[i] = &model.EntityResult{
			Entity:          entity,
			Score:           *entity.AnomalyScore,
			RetrievalMethod: model.RetrievalMethodAnomaly,
		}
	}
	return results, nil
}
