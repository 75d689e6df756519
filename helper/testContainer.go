package helper

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testDatabaseImage    = "pgvector/pgvector:pg17"
	testDatabaseName     = "database"
	testDatabaseUser     = "user"
	testDatabasePassword = "password"
)

// MustStartPostgresContainer starts a pgvector enabled postgres container and
// returns its teardown function and mapped port.
func MustStartPostgresContainer() (func(ctx context.Context, opts ...testcontainers.TerminateOption) error, string, error) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(
		ctx,
		testDatabaseImage,
		postgres.WithDatabase(testDatabaseName),
		postgres.WithUsername(testDatabaseUser),
		postgres.WithPassword(testDatabasePassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, "", NewError("start postgres container", err)
	}

	dbPort, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return pgContainer.Terminate, "", NewError("mapped port", err)
	}

	return pgContainer.Terminate, dbPort.Port(), nil
}

// SetTestDatabaseConfigEnvs points NewDatabaseConfiguration at the test container
func SetTestDatabaseConfigEnvs(t *testing.T, dbPort string) {
	t.Setenv(EnvDatabaseHost, "localhost")
	t.Setenv(EnvDatabasePort, dbPort)
	t.Setenv(EnvDatabaseName, testDatabaseName)
	t.Setenv(EnvDatabaseUsername, testDatabaseUser)
	t.Setenv(EnvDatabasePassword, testDatabasePassword)
	t.Setenv(EnvDatabaseSchema, "public")
	t.Setenv(EnvDatabaseSSLMode, "disable")
}
