package database

import (
	"context"
	"fmt"
	"time"

	"github.com/siherrmann/graphae/helper"
)

// ChangeIndexType fixes the embedding column to dim dimensions and replaces
// the vector index. Stored embeddings must already have dim dimensions.
// indexType: "hnsw" or "ivfflat"
// params: optional parameters for index creation
//   - For HNSW: "m" (int, default 16), "ef_construction" (int, default 64)
//   - For IVFFlat: "lists" (int, default 100)
func (h *EntitiesDBHandler) ChangeIndexType(ctx context.Context, indexType string, dim int, params map[string]interface{}) error {
	if dim <= 0 {
		return helper.NewError("change index type", fmt.Errorf("embedding dimension must be positive, got %d", dim))
	}

	var createIndexSQL string
	switch indexType {
	case "hnsw":
		m := 16
		efConstruction := 64

		if mVal, ok := params["m"].(int); ok {
			m = mVal
		}
		if efVal, ok := params["ef_construction"].(int); ok {
			efConstruction = efVal
		}

		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX idx_entities_embedding ON entities USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			m, efConstruction,
		)

	case "ivfflat":
		lists := 100
		if listsVal, ok := params["lists"].(int); ok {
			lists = listsVal
		}

		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX idx_entities_embedding ON entities USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			lists,
		)

	default:
		return helper.NewError("change index type", fmt.Errorf("unsupported index type: %s (use 'hnsw' or 'ivfflat')", indexType))
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `DROP INDEX IF EXISTS idx_entities_embedding;`)
	if err != nil {
		return helper.NewError("drop index", err)
	}

	h.db.Logger.Info("Dropped existing vector index")

	_, err = h.db.Instance.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE entities ALTER COLUMN embedding TYPE vector(%d);`, dim))
	if err != nil {
		return helper.NewError("alter embedding dimension", err)
	}

	_, err = h.db.Instance.ExecContext(ctx, createIndexSQL)
	if err != nil {
		return helper.NewError("create index", err)
	}

	h.db.Logger.Info(fmt.Sprintf("Created %s index with params: %v", indexType, params))

	return nil
}
