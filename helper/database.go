package helper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// DatabaseConfiguration holds the postgres connection parameters
type DatabaseConfiguration struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Schema   string
	SSLMode  string
}

// Environment variables read by NewDatabaseConfiguration
const (
	EnvDatabaseHost     = "GRAPHAE_DB_HOST"
	EnvDatabasePort     = "GRAPHAE_DB_PORT"
	EnvDatabaseName     = "GRAPHAE_DB_DATABASE"
	EnvDatabaseUsername = "GRAPHAE_DB_USERNAME"
	EnvDatabasePassword = "GRAPHAE_DB_PASSWORD"
	EnvDatabaseSchema   = "GRAPHAE_DB_SCHEMA"
	EnvDatabaseSSLMode  = "GRAPHAE_DB_SSLMODE"
)

// NewDatabaseConfiguration reads the connection parameters from the environment.
// A .env file in the working directory is loaded first if present.
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, NewError("load .env", err)
	}

	config := &DatabaseConfiguration{
		Host:     os.Getenv(EnvDatabaseHost),
		Port:     os.Getenv(EnvDatabasePort),
		Database: os.Getenv(EnvDatabaseName),
		Username: os.Getenv(EnvDatabaseUsername),
		Password: os.Getenv(EnvDatabasePassword),
		Schema:   os.Getenv(EnvDatabaseSchema),
		SSLMode:  os.Getenv(EnvDatabaseSSLMode),
	}

	if config.Host == "" || config.Port == "" || config.Database == "" || config.Username == "" {
		return nil, NewError("database configuration", fmt.Errorf("host, port, database and username are required"))
	}
	if config.Schema == "" {
		config.Schema = "public"
	}
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	return config, nil
}

// DSN returns the lib/pq connection string
func (c *DatabaseConfiguration) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode, c.Schema,
	)
}

// Database bundles the connection pool with the logger used by all handlers
type Database struct {
	Name     string
	Instance *sql.DB
	Logger   *slog.Logger
}

// NewDatabase opens and pings the connection. It panics if the database is unreachable.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) *Database {
	instance, err := sql.Open("postgres", config.DSN())
	if err != nil {
		log.Panicf("error opening database %s: %v", name, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := instance.PingContext(ctx); err != nil {
		log.Panicf("error connecting to database %s: %v", name, err)
	}

	logger.Info("Connected to database", slog.String("name", name), slog.String("host", config.Host))

	return &Database{
		Name:     name,
		Instance: instance,
		Logger:   logger,
	}
}

// NewTestDatabase connects with a logger that only reports warnings
func NewTestDatabase(config *DatabaseConfiguration) *Database {
	opts := PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelWarn,
		},
	}
	logger := slog.New(NewPrettyHandler(os.Stdout, opts))
	return NewDatabase("test", config, logger)
}

// Close closes the connection pool
func (d *Database) Close() error {
	if d.Instance == nil {
		return nil
	}
	return d.Instance.Close()
}
