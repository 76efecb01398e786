package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lab-analysis-engine/internal/domain"
)

func TestDSN(t *testing.T) {
	dsn := DSN(domain.DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		Database: "lab_analysis",
		Username: "lab",
		Password: "secret",
		SSLMode:  "require",
	})

	assert.Equal(t, "host=db.internal port=5433 dbname=lab_analysis user=lab password=secret sslmode=require", dsn)
}

func TestNewMigrationRunner_BadURL(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	_, err := NewMigrationRunner("notascheme://nowhere", "../../migrations", logger)
	assert.Error(t, err)
}

func TestDatabaseConnection(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	config := domain.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		Database:        "testdb",
		Username:        "testuser",
		Password:        "testpass",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := NewConnection(ctx, config, logger)
	require.NoError(t, err, "Failed to create database connection")
	defer db.Close()

	require.NoError(t, db.Health(ctx))

	stats := db.Stats()
	assert.NotZero(t, stats.TotalConns(), "Expected at least one connection in pool")

	// Migrations apply cleanly and are idempotent
	databaseURL := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())
	require.NoError(t, RunMigrations(ctx, databaseURL, "../../migrations", logger))
	require.NoError(t, RunMigrations(ctx, databaseURL, "../../migrations", logger))

	for _, table := range []string{"category_feedback", "analysis_audits"} {
		var exists bool
		err := db.Pool.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)", table,
		).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "table %s should exist", table)
	}

	runner, err := NewMigrationRunner(databaseURL, "../../migrations", logger)
	require.NoError(t, err)
	defer runner.Close()

	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	require.NoError(t, runner.Down(ctx))
	version, _, err = runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}
