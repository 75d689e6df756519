package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/siherrmann/graphae/helper"
	"github.com/siherrmann/graphae/model"
	loadSql "github.com/siherrmann/graphae/sql"
)

// EdgesDBHandlerFunctions defines the interface for Edges database operations.
type EdgesDBHandlerFunctions interface {
	InsertEdge(ctx context.Context, edge *model.Edge) error
	SelectAllEdges(ctx context.Context) ([]*model.Edge, error)
	SelectEdgesFromEntity(ctx context.Context, externalID string, relations []string) ([]*model.Edge, error)
	SelectEdgesToEntity(ctx context.Context, externalID string, relations []string) ([]*model.Edge, error)
	SelectEdgesConnectedToEntity(ctx context.Context, externalID string, relations []string) ([]*model.EdgeConnection, error)
	DeleteEdge(ctx context.Context, id int) error
}

// EdgesDBHandler handles edge-related database operations
type EdgesDBHandler struct {
	db *helper.Database
}

// NewEdgesDBHandler creates a new edges database handler.
// It initializes the database connection and loads edge-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEdgesDBHandler(db *helper.Database, force bool) (*EdgesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	edgesDbHandler := &EdgesDBHandler{
		db: db,
	}

	err := loadSql.LoadEdgesSql(edgesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load edges sql", err)
	}

	err = edgesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EdgesDBHandler")

	return edgesDbHandler, nil
}

// CreateTable creates the 'edges' table in the database.
// If the table already exists, it does not create it again.
func (h *EdgesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_edges();`)
	if err != nil {
		log.Panicf("error initializing edges table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table edges")

	return nil
}

// InsertEdge inserts a new edge. Inserting the same relation between the
// same entities again returns the existing edge.
func (h *EdgesDBHandler) InsertEdge(ctx context.Context, edge *model.Edge) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_edge($1, $2, $3)`,
		edge.Relation,
		edge.SourceID,
		edge.TargetID,
	)

	err := row.Scan(
		&edge.ID,
		&edge.Relation,
		&edge.SourceID,
		&edge.TargetID,
		&edge.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectAllEdges retrieves every edge in insertion order
func (h *EdgesDBHandler) SelectAllEdges(ctx context.Context) ([]*model.Edge, error) {
	return h.selectEdges(ctx, `SELECT * FROM select_all_edges()`)
}

// SelectEdgesFromEntity retrieves edges originating from an entity.
// An empty relations filter matches every relation.
func (h *EdgesDBHandler) SelectEdgesFromEntity(ctx context.Context, externalID string, relations []string) ([]*model.Edge, error) {
	return h.selectEdges(ctx, `SELECT * FROM select_edges_from_entity($1, $2)`, externalID, relationsParam(relations))
}

// SelectEdgesToEntity retrieves edges targeting an entity
func (h *EdgesDBHandler) SelectEdgesToEntity(ctx context.Context, externalID string, relations []string) ([]*model.Edge, error) {
	return h.selectEdges(ctx, `SELECT * FROM select_edges_to_entity($1, $2)`, externalID, relationsParam(relations))
}

// SelectEdgesConnectedToEntity retrieves outgoing edges followed by incoming ones
func (h *EdgesDBHandler) SelectEdgesConnectedToEntity(ctx context.Context, externalID string, relations []string) ([]*model.EdgeConnection, error) {
	outgoing, err := h.SelectEdgesFromEntity(ctx, externalID, relations)
	if err != nil {
		return nil, err
	}
	incoming, err := h.SelectEdgesToEntity(ctx, externalID, relations)
	if err != nil {
		return nil, err
	}

	connections := make([]*model.EdgeConnection, 0, len(outgoing)+len(incoming))
	for _, edge := range outgoing {
		connections = append(connections, &model.EdgeConnection{Edge: edge, IsOutgoing: true})
	}
	for _, edge := range incoming {
		connections = append(connections, &model.EdgeConnection{Edge: edge, IsOutgoing: false})
	}
	return connections, nil
}

// DeleteEdge deletes an edge by ID
func (h *EdgesDBHandler) DeleteEdge(ctx context.Context, id int) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_edge($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func relationsParam(relations []string) any {
	if len(relations) == 0 {
		return nil
	}
	return pq.Array(relations)
}

func (h *EdgesDBHandler) selectEdges(ctx context.Context, query string, args ...any) ([]*model.Edge, error) {
	rows, err := h.db.Instance.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var edges []*model.Edge
	for rows.Next() {
		edge := &model.Edge{}
		err := rows.Scan(
			&edge.ID,
			&edge.Relation,
			&edge.SourceID,
			&edge.TargetID,
			&edge.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		edges = append(edges, edge)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return edges, nil
}
