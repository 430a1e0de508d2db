package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow-edge-lab/internal/config"
	"orderflow-edge-lab/internal/pipeline"
)

func writeCSV(t *testing.T, rows int) string {
	t.Helper()

	var sb strings.Builder
	sb.WriteString("timestamp,price,oi_delta,delta_1s,cvd\n")
	price := 100.0
	for i := 0; i < rows; i++ {
		if i > 0 {
			price *= 1.0001
		}
		fmt.Fprintf(&sb, "%d,%.6f,5,1,%d\n", 1700000000000+int64(i)*1000, price, i)
	}

	path := filepath.Join(t.TempDir(), "2026-10-18.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0644))
	return path
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv(config.EnvPostgresDSN, "")
	t.Setenv(config.EnvClickhouseDSN, "")

	root := newRootCmd(context.Background())
	root.SetArgs(args)
	return root.Execute()
}

func TestClassifyCommand_WritesStatesCSV(t *testing.T) {
	csvPath := writeCSV(t, 20)
	out := t.TempDir()

	err := run(t, "classify", csvPath, "--output-dir", out, "--log-level", "error")
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(out, pipeline.StatesFile))
	require.NoError(t, err)
	assert.Equal(t, 21, strings.Count(string(b), "\n"))
}

func TestEdgeCommand_WritesReports(t *testing.T) {
	csvPath := writeCSV(t, 200)
	out := t.TempDir()

	err := run(t, "edge", csvPath, "--output-dir", out, "--log-level", "error")
	require.NoError(t, err)

	for _, name := range []string{pipeline.EdgeReportFile, pipeline.StateReportFile, pipeline.ConditionStatsFile} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}
}

func TestRootFlags_OverrideConfigFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "edgecheck.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output:\n  dir: from-file\nlogging:\n  level: debug\n"), 0644))

	root := newRootCmd(context.Background())
	cmd, _, err := root.Find([]string{"states"})
	require.NoError(t, err)
	require.NoError(t, cmd.ParseFlags([]string{"--config", cfgPath, "--output-dir", "from-flag"}))

	opts := &rootOptions{configPath: cfgPath, outputDir: "from-flag"}
	cfg, err := loadConfig(cmd, opts)
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.Output.Dir)
	assert.Equal(t, "debug", cfg.Logging.Level, "unset flags keep file values")
}

func TestInvalidStoreFlag(t *testing.T) {
	err := run(t, "classify", writeCSV(t, 5), "--store", "redis", "--output-dir", t.TempDir())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestIngestRequiresClickhouseDSN(t *testing.T) {
	err := run(t, "ingest", writeCSV(t, 5), "--output-dir", t.TempDir(), "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clickhouse_dsn")
}

func TestHistoryRequiresCondition(t *testing.T) {
	err := run(t, "history")
	assert.Error(t, err)
}
