package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"orderflow-edge-lab/internal/config"
	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/logging"
	"orderflow-edge-lab/internal/observability"
	"orderflow-edge-lab/internal/pipeline"
	"orderflow-edge-lab/internal/storage"
	chstore "orderflow-edge-lab/internal/storage/clickhouse"
	"orderflow-edge-lab/internal/storage/memory"
	"orderflow-edge-lab/internal/storage/migrations"
	pgstore "orderflow-edge-lab/internal/storage/postgres"
)

const metricsNamespace = "edgecheck"

// rootOptions holds the persistent flags. Flags that were set override the config file.
type rootOptions struct {
	configPath  string
	logLevel    string
	logFormat   string
	outputDir   string
	store       string
	metricsAddr string
	source      string
	series      string
	fromMs      int64
	toMs        int64
}

// Execute builds the command tree and runs it.
func Execute(ctx context.Context) error {
	return newRootCmd(ctx).Execute()
}

func newRootCmd(ctx context.Context) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "edgecheck",
		Short:         "Orderflow state classifier and condition edge evaluator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file (defaults apply when empty)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (trace|debug|info|warn|error)")
	flags.StringVar(&opts.logFormat, "log-format", "console", "log format (console|json)")
	flags.StringVar(&opts.outputDir, "output-dir", ".", "directory for generated reports")
	flags.StringVar(&opts.store, "store", config.BackendMemory, "result store (memory|postgres|clickhouse)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	flags.StringVar(&opts.source, "source", config.SourceCSV, "feature source (csv|clickhouse)")
	flags.StringVar(&opts.series, "series", "default", "feature series when --source clickhouse")
	flags.Int64Var(&opts.fromMs, "from", 0, "start of the time range in Unix ms when --source clickhouse")
	flags.Int64Var(&opts.toMs, "to", 0, "end of the time range in Unix ms when --source clickhouse (0 = no limit)")

	root.AddCommand(edgeCmd(ctx, opts))
	root.AddCommand(statesCmd(ctx, opts))
	root.AddCommand(classifyCmd(ctx, opts))
	root.AddCommand(historyCmd(ctx, opts))
	root.AddCommand(ingestCmd(ctx, opts))

	return root
}

func edgeCmd(ctx context.Context, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "edge [csv]",
		Short: "Evaluate every condition and write edge_report.md, state_report.md and condition_stats.csv",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(ctx, cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.pipeline.Run(ctx, optionalArg(args))
			if err != nil {
				return err
			}

			fmt.Printf("Edge report generated (run %s, %d records, %d failed conditions):\n",
				report.Run.RunID, report.Run.Records, report.Run.Failed)
			printArtifacts(a.cfg.Output.Dir, pipeline.EdgeReportFile, pipeline.StateReportFile, pipeline.ConditionStatsFile)
			return nil
		},
	}
}

func statesCmd(ctx context.Context, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "states [csv]",
		Short: "Classify rows and write the orderflow state report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(ctx, cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.pipeline.RunStates(ctx, optionalArg(args))
			if err != nil {
				return err
			}

			fmt.Printf("State report generated (%d rows):\n", report.RowCount)
			printArtifacts(a.cfg.Output.Dir, pipeline.StateReportFile)
			return nil
		},
	}
}

func classifyCmd(ctx context.Context, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify [csv]",
		Short: "Label every row with its orderflow state and write states.csv",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(ctx, cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.close()

			dist, err := a.pipeline.RunClassify(ctx, optionalArg(args))
			if err != nil {
				return err
			}

			printDistribution(dist)
			printArtifacts(a.cfg.Output.Dir, pipeline.StatesFile)
			return nil
		},
	}
}

func historyCmd(ctx context.Context, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <condition>",
		Short: "Print a condition's stored records across runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(ctx, cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.Storage.Backend == config.BackendMemory {
				a.logger.Warn().Msg("memory store holds no previous runs; use --store postgres or clickhouse")
			}

			md, err := a.pipeline.History(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Print(md)
			return nil
		},
	}
}

func ingestCmd(ctx context.Context, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [csv]",
		Short: "Load a CSV into the ClickHouse feature_rows table under --series",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(ctx, cmd, opts, true)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.pipeline.Ingest(ctx, optionalArg(args), a.cfg.Loader.Series)
			if err != nil {
				return err
			}
			fmt.Printf("Ingested %d rows into series %q\n", n, a.cfg.Loader.Series)
			return nil
		},
	}
}

// app is the wired pipeline of one command invocation.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	pipeline *pipeline.Pipeline
	closers  []func()
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp loads the configuration, connects the configured stores and builds the pipeline.
// needFeatures forces a ClickHouse feature row store even for the csv source.
func newApp(ctx context.Context, cmd *cobra.Command, opts *rootOptions, needFeatures bool) (*app, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	logger = logger.With().Str("service", "edgecheck").Logger()

	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = closeLog() })
	ready := false
	defer func() {
		if !ready {
			a.close()
		}
	}()

	p, err := pipeline.New(*cfg, logger)
	if err != nil {
		return nil, err
	}
	a.pipeline = p

	if err := a.wireStores(ctx, needFeatures); err != nil {
		return nil, err
	}

	if cfg.Metrics.Addr != "" {
		a.serveMetrics(cfg.Metrics.Addr)
	}

	ready = true
	return a, nil
}

// loadConfig reads the config file and applies the flags that were set explicitly.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = opts.logFormat
	}
	if flags.Changed("output-dir") {
		cfg.Output.Dir = opts.outputDir
	}
	if flags.Changed("store") {
		cfg.Storage.Backend = opts.store
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if flags.Changed("source") {
		cfg.Loader.Source = opts.source
	}
	if flags.Changed("series") {
		cfg.Loader.Series = opts.series
	}
	if flags.Changed("from") {
		cfg.Loader.FromMs = opts.fromMs
	}
	if flags.Changed("to") {
		cfg.Loader.ToMs = opts.toMs
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// wireStores connects the result stores and, when needed, the feature row store.
// Migrations run on every connect and are idempotent.
func (a *app) wireStores(ctx context.Context, needFeatures bool) error {
	var (
		cfg    = a.cfg
		chConn *chstore.Conn
	)

	clickhouseConn := func() (*chstore.Conn, error) {
		if chConn != nil {
			return chConn, nil
		}
		conn, applied, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		a.logger.Debug().Strs("files", applied).Msg("clickhouse migrations applied")
		a.closers = append(a.closers, func() { _ = conn.Close() })
		chConn = conn
		return conn, nil
	}

	postgresPool := func() (*pgstore.Pool, error) {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		a.logger.Debug().Strs("files", applied).Msg("postgres migrations applied")
		return pool, nil
	}

	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		pool, err := postgresPool()
		if err != nil {
			return err
		}
		a.pipeline.WithStores(pgstore.NewRunStore(pool), pgstore.NewConditionStatStore(pool))

	case config.BackendClickhouse:
		conn, err := clickhouseConn()
		if err != nil {
			return err
		}
		// Run metadata is relational; without a Postgres DSN it stays in memory.
		var runs storage.RunStore = memory.NewRunStore()
		if cfg.Storage.PostgresDSN != "" {
			pool, err := postgresPool()
			if err != nil {
				return err
			}
			runs = pgstore.NewRunStore(pool)
		}
		a.pipeline.WithStores(runs, chstore.NewConditionStatStore(conn))
	}

	if needFeatures || cfg.Loader.Source == config.SourceClickhouse {
		if cfg.Storage.ClickhouseDSN == "" {
			return errors.New("clickhouse_dsn is required for the feature row store")
		}
		conn, err := clickhouseConn()
		if err != nil {
			return err
		}
		a.pipeline.WithFeatureSource(chstore.NewFeatureRowStore(conn))
	}

	return nil
}

// serveMetrics exposes /metrics and /health until the command returns.
func (a *app) serveMetrics(addr string) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.pipeline.WithMetrics(observability.NewMetrics(metricsNamespace, reg))

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(reg))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
}

func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func printArtifacts(dir string, names ...string) {
	for _, name := range names {
		fmt.Printf("  - %s/%s\n", dir, name)
	}
}

func printDistribution(dist map[domain.OrderflowState]int) {
	total := 0
	for _, n := range dist {
		total += n
	}

	states := domain.AllStates()
	sort.SliceStable(states, func(i, j int) bool { return dist[states[i]] > dist[states[j]] })

	fmt.Fprintf(os.Stdout, "Classified %d rows:\n", total)
	for _, s := range states {
		if total == 0 {
			break
		}
		fmt.Fprintf(os.Stdout, "  %-18s %7d  %5.1f%%\n", s, dist[s], float64(dist[s])/float64(total)*100)
	}
}
