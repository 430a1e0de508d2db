package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"orderflow-edge-lab/internal/classifier"
	"orderflow-edge-lab/internal/conditions"
	"orderflow-edge-lab/internal/config"
	"orderflow-edge-lab/internal/decision"
	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/edge"
	"orderflow-edge-lab/internal/features"
	"orderflow-edge-lab/internal/loader"
	"orderflow-edge-lab/internal/observability"
	"orderflow-edge-lab/internal/reporting"
	"orderflow-edge-lab/internal/storage"
	"orderflow-edge-lab/internal/storage/memory"
)

// Artifact file names written to the output directory.
const (
	EdgeReportFile     = "edge_report.md"
	StateReportFile    = "state_report.md"
	ConditionStatsFile = "condition_stats.csv"
	StatesFile         = "states.csv"
)

// Command names used for run metrics.
const (
	CommandEdge     = "edge"
	CommandStates   = "states"
	CommandClassify = "classify"
	CommandIngest   = "ingest"
)

// Store labels used for query metrics.
const (
	storeResults  = "results"
	storeFeatures = "features"
)

// ErrNoFeatureSource is returned when the clickhouse source is selected without a feature row store.
var ErrNoFeatureSource = errors.New("no feature row store configured")

// Pipeline orchestrates one run: load, classify, evaluate, persist, report.
type Pipeline struct {
	cfg        config.Config
	loader     *loader.Loader
	classifier *classifier.Classifier
	evaluator  *edge.Evaluator
	decisions  *decision.Evaluator

	signals        []edge.Condition
	stateConds     []edge.Condition
	compileFailure []edge.ConditionFailure // user definitions that did not compile

	runs     storage.RunStore
	stats    storage.ConditionStatStore
	features storage.FeatureRowStore

	metrics   *observability.Metrics
	logger    zerolog.Logger
	outputDir string
	clock     func() time.Time // Injectable clock for deterministic output
}

// Analysis is everything computed from one feature table.
type Analysis struct {
	Run  domain.EvaluationRun
	Load *loader.Result

	Labels []domain.OrderflowState
	Rules  []string // matched rule per row

	Signals   []*domain.ConditionResult // evaluated at the edge horizons
	States    []*domain.ConditionResult // evaluated at the state horizons
	Failures  []edge.ConditionFailure
	Reversals []edge.ReversalResult

	// Flattened records of Signals then States
	Records []*domain.ConditionStatRecord

	Quality *SufficiencyResult
}

// New creates a pipeline from a validated configuration.
// Results go to fresh in-memory stores unless WithStores is used.
// Condition names must be unique; a user definition that does not compile is
// logged and reported as a failed condition of every run.
func New(cfg config.Config, logger zerolog.Logger) (*Pipeline, error) {
	evaluator, err := edge.NewEvaluator(cfg.Edge, logger)
	if err != nil {
		return nil, err
	}

	signals, compileFailures, err := conditions.Signals(cfg.Conditions)
	if err != nil {
		return nil, fmt.Errorf("compile conditions: %w", err)
	}
	for _, f := range compileFailures {
		logger.Warn().
			Str("condition", f.Condition).
			Err(f.Err).
			Msg("condition definition rejected")
	}
	stateConds, err := conditions.States()
	if err != nil {
		return nil, fmt.Errorf("compile state conditions: %w", err)
	}

	return &Pipeline{
		cfg:            cfg,
		loader:         loader.New(loader.Options{Resample: cfg.Loader.Resample}, logger),
		classifier:     classifier.New(cfg.Classifier),
		evaluator:      evaluator,
		decisions:      decision.NewEvaluator(cfg.Edge.EdgeThreshold),
		signals:        signals,
		stateConds:     stateConds,
		compileFailure: compileFailures,
		runs:           memory.NewRunStore(),
		stats:          memory.NewConditionStatStore(),
		logger:         logger,
		outputDir:      cfg.Output.Dir,
		clock:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithStores sets where runs and condition stats are persisted.
func (p *Pipeline) WithStores(runs storage.RunStore, stats storage.ConditionStatStore) *Pipeline {
	p.runs = runs
	p.stats = stats
	return p
}

// WithFeatureSource sets the store feature tables are read from when the loader source is clickhouse.
func (p *Pipeline) WithFeatureSource(store storage.FeatureRowStore) *Pipeline {
	p.features = store
	return p
}

// WithMetrics enables Prometheus metrics.
func (p *Pipeline) WithMetrics(m *observability.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// WithClock sets a custom clock function for deterministic output.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	return p
}

// LoadTable loads the feature table. For the csv source an empty path selects
// the latest CSV in the logs directory.
func (p *Pipeline) LoadTable(ctx context.Context, path string) (*loader.Result, error) {
	start := time.Now()

	var (
		res *loader.Result
		err error
	)
	if p.cfg.Loader.Source == config.SourceClickhouse {
		res, err = p.loadFromStore(ctx)
	} else {
		res, err = p.loadFromCSV(path)
	}
	if err != nil {
		return nil, err
	}

	p.stage("load", start)
	if p.metrics != nil {
		p.metrics.RecordLoad(res.Table.Len(), res.Dropped)
	}
	p.logger.Info().
		Str("source", res.Table.Source).
		Int("rows", res.Table.Len()).
		Int("dropped", res.Dropped).
		Int("filled", res.Filled).
		Bool("synthetic", res.Table.Synthetic).
		Msg("feature table loaded")

	return res, nil
}

func (p *Pipeline) loadFromCSV(path string) (*loader.Result, error) {
	if path == "" {
		latest, err := loader.LatestCSV(p.cfg.Loader.LogsDir)
		if err != nil {
			return nil, err
		}
		path = latest
	}
	return p.loader.LoadFile(path)
}

func (p *Pipeline) loadFromStore(ctx context.Context) (*loader.Result, error) {
	if p.features == nil {
		return nil, ErrNoFeatureSource
	}

	to := p.cfg.Loader.ToMs
	if to == 0 {
		to = math.MaxInt64
	}
	series := p.cfg.Loader.Series

	q := time.Now()
	rows, err := p.features.GetByTimeRange(ctx, series, p.cfg.Loader.FromMs, to)
	p.recordQuery(storeFeatures, "select_feature_rows", q, err)
	if err != nil {
		return nil, fmt.Errorf("load feature rows of %q: %w", series, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("series %q: %w", series, loader.ErrEmptyTable)
	}

	table := &domain.FeatureTable{
		Rows:   make([]domain.FeatureRow, len(rows)),
		Source: "clickhouse:" + series,
	}
	for i, r := range rows {
		table.Rows[i] = *r
	}

	res := &loader.Result{Table: table, Read: len(rows)}
	if p.cfg.Loader.Resample {
		res.Table, res.Filled = loader.Resample1s(table)
	}
	return res, nil
}

// Analyze classifies the table and evaluates every signal and state condition.
func (p *Pipeline) Analyze(ctx context.Context, res *loader.Result) (*Analysis, error) {
	table := res.Table
	edgeHorizons := p.cfg.Horizons.Edge
	stateHorizons := p.cfg.Horizons.States

	signals, stateConds := p.signals, p.stateConds

	frame, rules := p.buildFrame(table, unionHorizons(edgeHorizons, stateHorizons))

	start := time.Now()
	signalResults, failures := p.evaluator.EvaluateAll(ctx, frame, signals, edgeHorizons)
	stateResults, stateFailures := p.evaluator.EvaluateAll(ctx, frame, stateConds, stateHorizons)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	failures = append(append(append([]edge.ConditionFailure(nil), p.compileFailure...), failures...), stateFailures...)
	reversals := p.evaluator.AnalyzeReversals(frame, edge.DefaultReversalTargets, stateHorizons)
	p.stage("evaluate", start)

	records := append(edge.Flatten(signalResults), edge.Flatten(stateResults)...)

	absent := absentRecords(signalResults, len(edgeHorizons)) + absentRecords(stateResults, len(stateHorizons))
	if p.metrics != nil {
		p.metrics.RecordEvaluation(len(signals)+len(stateConds)+len(p.compileFailure), len(failures), len(records), absent)
	}
	p.logger.Info().
		Int("conditions", len(signals)+len(stateConds)+len(p.compileFailure)).
		Int("failed", len(failures)).
		Int("records", len(records)).
		Int("absent", absent).
		Msg("conditions evaluated")

	quality := CheckSufficiency(res, frame.States, unionHorizons(edgeHorizons, stateHorizons), p.cfg.Edge.MinSampleSize)
	if !quality.AllPass {
		for _, c := range quality.Checks {
			if !c.Pass {
				p.logger.Warn().
					Str("check", c.Name).
					Str("threshold", c.Threshold).
					Str("actual", c.Actual).
					Msg("sufficiency check failed")
			}
		}
	}

	now := p.clock()
	dataVersion := computeDataVersion(table, records)

	return &Analysis{
		Run: domain.EvaluationRun{
			RunID:       runID(now, dataVersion),
			StartedAt:   now.UnixMilli(),
			Source:      table.Source,
			RowCount:    table.Len(),
			Synthetic:   table.Synthetic,
			Conditions:  withRecords(signalResults) + withRecords(stateResults),
			Failed:      len(failures),
			Records:     len(records),
			DataVersion: dataVersion,
		},
		Load:      res,
		Labels:    frame.States,
		Rules:     rules,
		Signals:   signalResults,
		States:    stateResults,
		Failures:  failures,
		Reversals: reversals,
		Records:   records,
		Quality:   quality,
	}, nil
}

// Run executes a full edge run and writes edge_report.md, state_report.md and condition_stats.csv.
// An empty path selects the latest CSV in the logs directory.
func (p *Pipeline) Run(ctx context.Context, path string) (report *reporting.EdgeReport, err error) {
	defer p.finish(CommandEdge, &err)

	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return nil, err
	}

	res, err := p.LoadTable(ctx, path)
	if err != nil {
		return nil, err
	}

	a, err := p.Analyze(ctx, res)
	if err != nil {
		return nil, err
	}

	if err := p.persist(ctx, a); err != nil {
		return nil, err
	}

	start := time.Now()
	report, err = reporting.NewGenerator(p.runs, p.stats, p.decisions).
		WithClock(p.clock).
		Generate(ctx, a.Run.RunID)
	if err != nil {
		return nil, err
	}
	report.WithFailures(a.Failures)
	report.WithMatchCounts(append(append([]*domain.ConditionResult(nil), a.Signals...), a.States...))
	report.DataQuality = a.Quality.DataQuality()

	stateReport := reporting.BuildStateReport(res.Table, a.Labels, a.States, a.Reversals, p.cfg.Horizons.States, p.clock())

	statsCSV, err := reporting.RenderConditionStatsCSV(a.Records)
	if err != nil {
		return nil, err
	}

	if err := p.write(EdgeReportFile, reporting.RenderEdgeMarkdown(report)); err != nil {
		return nil, err
	}
	if err := p.write(StateReportFile, reporting.RenderStateMarkdown(stateReport)); err != nil {
		return nil, err
	}
	if err := p.write(ConditionStatsFile, statsCSV); err != nil {
		return nil, err
	}
	p.stage("report", start)

	p.logger.Info().
		Str("run_id", a.Run.RunID).
		Str("data_version", a.Run.DataVersion).
		Str("output_dir", p.outputDir).
		Msg("edge report written")

	return report, nil
}

// RunStates classifies the table, evaluates the per-state conditions and reversals,
// and writes state_report.md.
func (p *Pipeline) RunStates(ctx context.Context, path string) (report *reporting.StateReport, err error) {
	defer p.finish(CommandStates, &err)

	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return nil, err
	}

	res, err := p.LoadTable(ctx, path)
	if err != nil {
		return nil, err
	}

	horizons := p.cfg.Horizons.States
	frame, _ := p.buildFrame(res.Table, horizons)

	start := time.Now()
	states, _ := p.evaluator.EvaluateAll(ctx, frame, p.stateConds, horizons)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reversals := p.evaluator.AnalyzeReversals(frame, edge.DefaultReversalTargets, horizons)
	p.stage("evaluate", start)

	report = reporting.BuildStateReport(res.Table, frame.States, states, reversals, horizons, p.clock())
	if err := p.write(StateReportFile, reporting.RenderStateMarkdown(report)); err != nil {
		return nil, err
	}

	p.logger.Info().Str("output_dir", p.outputDir).Msg("state report written")
	return report, nil
}

// RunClassify labels every row and writes states.csv. It returns the label distribution.
func (p *Pipeline) RunClassify(ctx context.Context, path string) (dist map[domain.OrderflowState]int, err error) {
	defer p.finish(CommandClassify, &err)

	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return nil, err
	}

	res, err := p.LoadTable(ctx, path)
	if err != nil {
		return nil, err
	}

	frame, rules := p.buildFrame(res.Table, nil)

	out, err := reporting.RenderStatesCSV(res.Table, frame.States, rules)
	if err != nil {
		return nil, err
	}
	if err := p.write(StatesFile, out); err != nil {
		return nil, err
	}

	return classifier.Distribution(frame.States), nil
}

// Ingest loads a CSV and appends its rows to the feature row store under series.
// It returns the number of rows stored.
func (p *Pipeline) Ingest(ctx context.Context, path, series string) (n int, err error) {
	defer p.finish(CommandIngest, &err)

	if p.features == nil {
		return 0, ErrNoFeatureSource
	}

	res, err := p.loadFromCSV(path)
	if err != nil {
		return 0, err
	}

	rows := make([]*domain.FeatureRow, res.Table.Len())
	for i := range res.Table.Rows {
		rows[i] = &res.Table.Rows[i]
	}

	q := time.Now()
	err = p.features.InsertBulk(ctx, series, rows)
	p.recordQuery(storeFeatures, "insert_feature_rows", q, err)
	if err != nil {
		return 0, fmt.Errorf("ingest into series %q: %w", series, err)
	}

	p.logger.Info().
		Str("source", res.Table.Source).
		Str("series", series).
		Int("rows", len(rows)).
		Msg("feature rows ingested")
	return len(rows), nil
}

// History renders a condition's records across all stored runs as Markdown.
func (p *Pipeline) History(ctx context.Context, condition string) (string, error) {
	rows, err := reporting.NewGenerator(p.runs, p.stats, p.decisions).History(ctx, condition)
	if err != nil {
		return "", err
	}
	return reporting.RenderHistoryMarkdown(condition, rows), nil
}

// buildFrame computes forward returns and labels every row.
func (p *Pipeline) buildFrame(table *domain.FeatureTable, horizons []domain.Horizon) (*edge.Frame, []string) {
	start := time.Now()

	inputs := classifier.Inputs(table)
	labels := p.classifier.ClassifyInputs(inputs)
	rules := make([]string, len(inputs))
	for i, in := range inputs {
		rules[i] = p.classifier.MatchedRule(in)
	}
	p.stage("classify", start)

	if p.metrics != nil {
		p.metrics.RecordClassification(classifier.Distribution(labels))
	}

	return &edge.Frame{
		Table:   table,
		Returns: features.ForwardReturns(table.Prices(), horizons),
		States:  labels,
	}, rules
}

// persist stores the run first so stats never reference an unknown run.
func (p *Pipeline) persist(ctx context.Context, a *Analysis) error {
	start := time.Now()
	defer p.stage("persist", start)

	run := a.Run
	q := time.Now()
	err := p.runs.Insert(ctx, &run)
	p.recordQuery(storeResults, "insert_run", q, err)
	if err != nil {
		return fmt.Errorf("store run %s: %w", run.RunID, err)
	}

	stats := runStats(run.RunID, a.Records)
	if len(stats) == 0 {
		return nil
	}
	q = time.Now()
	err = p.stats.InsertBulk(ctx, stats)
	p.recordQuery(storeResults, "insert_condition_stats", q, err)
	if err != nil {
		return fmt.Errorf("store condition stats of %s: %w", run.RunID, err)
	}
	return nil
}

func (p *Pipeline) recordQuery(store, operation string, start time.Time, err error) {
	if p.metrics != nil {
		p.metrics.RecordDBQuery(store, operation, time.Since(start).Seconds(), err)
	}
}

func (p *Pipeline) write(name, content string) error {
	if err := os.WriteFile(filepath.Join(p.outputDir, name), []byte(content), 0644); err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.ReportsGenerated.Inc()
	}
	return nil
}

func (p *Pipeline) stage(name string, start time.Time) {
	elapsed := time.Since(start)
	if p.metrics != nil {
		p.metrics.RecordStage(name, elapsed.Seconds())
	}
	p.logger.Debug().Str("stage", name).Dur("elapsed", elapsed).Msg("stage done")
}

func (p *Pipeline) finish(command string, err *error) {
	status := "success"
	if *err != nil {
		status = "error"
		p.logger.Error().Str("command", command).Err(*err).Msg("run failed")
	}
	if p.metrics != nil {
		p.metrics.RecordRun(command, status, float64(p.clock().Unix()))
	}
}

// computeDataVersion creates a short hash over the input prices and the computed records.
func computeDataVersion(table *domain.FeatureTable, records []*domain.ConditionStatRecord) string {
	h := sha256.New()

	// Part 1: input timeline and prices
	h.Write([]byte("ROWS\n"))
	for _, r := range table.Rows {
		fmt.Fprintf(h, "%d|%.8f\n", r.TimestampMs, r.Price)
	}

	// Part 2: records (condition, horizon, sample, mean)
	parts := make([]string, 0, len(records))
	for _, rec := range records {
		parts = append(parts, fmt.Sprintf("%s|%d|%d|%.6f|%.6f",
			rec.Condition, rec.Horizon, rec.SampleCount, rec.MeanBps, rec.NetExpectancy))
	}
	sort.Strings(parts)
	h.Write([]byte("RECORDS\n"))
	h.Write([]byte(strings.Join(parts, "\n")))

	return hex.EncodeToString(h.Sum(nil))[:12] // short hash
}

// runID is the UTC start time followed by the data version prefix.
func runID(now time.Time, dataVersion string) string {
	return now.UTC().Format("20060102T150405Z") + "-" + dataVersion[:8]
}

func runStats(runID string, records []*domain.ConditionStatRecord) []*domain.RunStat {
	stats := make([]*domain.RunStat, len(records))
	for i, rec := range records {
		stats[i] = &domain.RunStat{RunID: runID, ConditionStatRecord: *rec}
	}
	return stats
}

// unionHorizons merges horizon lists, ascending and without duplicates.
func unionHorizons(lists ...[]domain.Horizon) []domain.Horizon {
	seen := make(map[domain.Horizon]struct{})
	var out []domain.Horizon
	for _, list := range lists {
		for _, h := range list {
			if _, ok := seen[h]; !ok {
				seen[h] = struct{}{}
				out = append(out, h)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func withRecords(results []*domain.ConditionResult) int {
	n := 0
	for _, r := range results {
		if len(r.Records) > 0 {
			n++
		}
	}
	return n
}

func absentRecords(results []*domain.ConditionResult, horizons int) int {
	n := 0
	for _, r := range results {
		n += horizons - len(r.Records)
	}
	return n
}
