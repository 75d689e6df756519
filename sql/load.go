package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed entities.sql
var entitiesSQL string

//go:embed edges.sql
var edgesSQL string

// Function lists for verification
var EntitiesFunctions = []string{
	"init_entities",
	"insert_entity",
	"select_entity",
	"select_all_entities",
	"select_entities_by_type",
	"update_entity_embedding",
	"select_entities_by_similarity",
	"select_entities_by_anomaly",
	"delete_entity",
}

var EdgesFunctions = []string{
	"init_edges",
	"insert_edge",
	"select_all_edges",
	"select_edges_from_entity",
	"select_edges_to_entity",
	"delete_edge",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadEntitiesSql loads entity-related SQL functions
func LoadEntitiesSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "entities", entitiesSQL, EntitiesFunctions, force)
}

// LoadEdgesSql loads edge-related SQL functions
func LoadEdgesSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "edges", edgesSQL, EdgesFunctions, force)
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadEntitiesSql(db, force); err != nil {
		return err
	}
	return LoadEdgesSql(db, force)
}

// loadFunctions executes script unless force is false and every function in
// sqlFunctions already exists, then checks that all of them were created.
func loadFunctions(db *sql.DB, name string, script string, sqlFunctions []string, force bool) error {
	if !force {
		exist, err := checkFunctions(db, sqlFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(script)
	if err != nil {
		return fmt.Errorf("error executing %s SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, sqlFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Printf("SQL %s functions loaded successfully", name)
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
