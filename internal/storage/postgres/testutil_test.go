package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/storage/migrations"
	"orderflow-edge-lab/internal/storage/postgres"
)

// setupTestDB creates a PostgreSQL container for testing and applies migrations.
// Returns a cleanup function that must be called after tests complete.
func setupTestDB(t *testing.T) (*postgres.Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	applied, err := migrations.RunPostgresMigrations(ctx, pool)
	require.NoError(t, err, "failed to apply migrations")
	require.Equal(t, []string{"001_evaluation_runs.sql", "002_condition_stats.sql"}, applied)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

func testRun(id string, startedAt int64) *domain.EvaluationRun {
	return &domain.EvaluationRun{
		RunID:       id,
		StartedAt:   startedAt,
		Source:      "data/daily_2026-10-18.csv",
		RowCount:    86400,
		Conditions:  12,
		Failed:      1,
		Records:     30,
		DataVersion: "abc123",
	}
}

func testStat(runID, condition string, h domain.Horizon) *domain.RunStat {
	return &domain.RunStat{
		RunID: runID,
		ConditionStatRecord: domain.ConditionStatRecord{
			Condition:        condition,
			Horizon:          h,
			SampleCount:      120,
			WinRate:          0.55,
			MeanBps:          3.2,
			MedianBps:        2.5,
			StdBps:           12.0,
			AvgWin:           9.0,
			AvgLoss:          4.0,
			Expectancy:       3.15,
			NetExpectancy:    -0.8,
			KellyFraction:    0.1,
			Sharpe:           0.27,
			TStat:            2.9,
			PValue:           0.0037,
			IsSignificant:    true,
			ConsistencyScore: 0.8,
			Regime:           domain.RegimeTrending,
		},
	}
}
