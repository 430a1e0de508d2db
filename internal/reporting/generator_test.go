package reporting

import (
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"orderflow-edge-lab/internal/decision"
	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/edge"
	"orderflow-edge-lab/internal/storage/memory"
)

var fixedClock = func() time.Time {
	return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
}

func stat(runID, condition string, h domain.Horizon, net float64) *domain.RunStat {
	return &domain.RunStat{
		RunID: runID,
		ConditionStatRecord: domain.ConditionStatRecord{
			Condition:        condition,
			Horizon:          h,
			SampleCount:      150,
			WinRate:          0.56,
			MeanBps:          net + 4,
			MedianBps:        net + 3,
			StdBps:           10,
			NetExpectancy:    net,
			TStat:            3,
			PValue:           0.003,
			IsSignificant:    true,
			ConsistencyScore: 0.9,
			Regime:           domain.RegimeTrending,
		},
	}
}

func setupTestData(t *testing.T) (*memory.RunStore, *memory.ConditionStatStore) {
	t.Helper()
	ctx := context.Background()

	runs := memory.NewRunStore()
	stats := memory.NewConditionStatStore()

	for _, r := range []*domain.EvaluationRun{
		{RunID: "run-1", StartedAt: 1000, Source: "a.csv", RowCount: 500, Conditions: 2, Records: 3, DataVersion: "v1"},
		{RunID: "run-2", StartedAt: 2000, Source: "b.csv", RowCount: 600, Conditions: 1, Records: 1, DataVersion: "v2"},
	} {
		if err := runs.Insert(ctx, r); err != nil {
			t.Fatalf("Insert run failed: %v", err)
		}
	}

	err := stats.InsertBulk(ctx, []*domain.RunStat{
		stat("run-1", "htf = BULLISH", 5, 1.5),
		stat("run-1", "htf = BULLISH", 60, 2.5),
		stat("run-1", "finalScore > +40", 15, -0.2),
		stat("run-2", "htf = BULLISH", 5, 0.7),
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	return runs, stats
}

func TestGenerate_GroupsRecordsByCondition(t *testing.T) {
	runs, stats := setupTestData(t)

	gen := NewGenerator(runs, stats, decision.NewEvaluator(0.5)).WithClock(fixedClock)
	report, err := gen.Generate(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !report.GeneratedAt.Equal(fixedClock()) {
		t.Errorf("expected fixed clock, got %v", report.GeneratedAt)
	}
	if len(report.Conditions) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(report.Conditions))
	}
	// Sorted by name
	if report.Conditions[0].Name != "finalScore > +40" || report.Conditions[1].Name != "htf = BULLISH" {
		t.Errorf("unexpected condition order: %s, %s", report.Conditions[0].Name, report.Conditions[1].Name)
	}
	if len(report.Conditions[1].Records) != 2 {
		t.Errorf("expected 2 records for htf = BULLISH, got %d", len(report.Conditions[1].Records))
	}
	if got := report.Horizons; len(got) != 3 || got[0] != 5 || got[1] != 15 || got[2] != 60 {
		t.Errorf("expected horizons [5 15 60], got %v", got)
	}
	if len(report.Assessments) != 3 {
		t.Errorf("expected 3 assessments, got %d", len(report.Assessments))
	}
}

func TestGenerate_UnknownRun(t *testing.T) {
	runs, stats := setupTestData(t)

	gen := NewGenerator(runs, stats, decision.NewEvaluator(0.5))
	if _, err := gen.Generate(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	runs, stats := setupTestData(t)

	var outputs []string
	for i := 0; i < 3; i++ {
		gen := NewGenerator(runs, stats, decision.NewEvaluator(0.5)).WithClock(fixedClock)
		report, err := gen.Generate(context.Background(), "run-1")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		outputs = append(outputs, RenderEdgeMarkdown(report))
	}

	for i := 1; i < len(outputs); i++ {
		if outputs[i] != outputs[0] {
			t.Fatalf("output %d differs from output 0", i)
		}
	}
}

func TestHistory_OrderedByRunStart(t *testing.T) {
	runs, stats := setupTestData(t)

	gen := NewGenerator(runs, stats, decision.NewEvaluator(0.5))
	rows, err := gen.History(context.Background(), "htf = BULLISH")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].RunID != "run-1" || rows[0].Record.Horizon != 5 {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Record.Horizon != 60 {
		t.Errorf("expected second row horizon 60, got %d", rows[1].Record.Horizon)
	}
	if rows[2].RunID != "run-2" || rows[2].StartedAt != 2000 {
		t.Errorf("unexpected last row: %+v", rows[2])
	}

	md := RenderHistoryMarkdown("htf = BULLISH", rows)
	if !strings.Contains(md, "run-2") {
		t.Errorf("history markdown missing run-2")
	}
}

func TestRenderEdgeMarkdown_Sections(t *testing.T) {
	runs, stats := setupTestData(t)

	gen := NewGenerator(runs, stats, decision.NewEvaluator(0.5)).WithClock(fixedClock)
	report, err := gen.Generate(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	report.WithFailures([]edge.ConditionFailure{
		{Condition: "broken", Err: errors.New("unknown field")},
	})

	md := RenderEdgeMarkdown(report)

	for _, section := range []string{
		"# Condition Edge Report",
		"## Data Summary",
		"## Condition Stats",
		"## Cross-Horizon Consistency",
		"## Failed Conditions",
		"## Verdicts",
		"2026-10-18T12:00:00Z",
	} {
		if !strings.Contains(md, section) {
			t.Errorf("missing %q", section)
		}
	}
	if !strings.Contains(md, "- broken: unknown field") {
		t.Errorf("missing failure line")
	}
}

func TestRenderConditionStatsCSV_Header(t *testing.T) {
	records := []*domain.ConditionStatRecord{
		&stat("run-1", "a, with comma", 5, 1).ConditionStatRecord,
		&stat("run-1", "b", 900, -1).ConditionStatRecord,
	}

	out, err := RenderConditionStatsCSV(records)
	if err != nil {
		t.Fatalf("RenderConditionStatsCSV failed: %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}

	want := "condition,horizon,sample_count,win_rate,mean_bps,median_bps,std_bps,net_expectancy,avg_win,avg_loss,kelly_fraction,t_stat,p_value,is_significant,low_sample_flag,consistency_score,regime"
	if got := strings.Join(rows[0], ","); got != want {
		t.Errorf("header mismatch:\n got %s\nwant %s", got, want)
	}
	if len(rows[0]) != 17 {
		t.Errorf("expected 17 columns, got %d", len(rows[0]))
	}

	if rows[1][0] != "a, with comma" || rows[1][1] != "5s" {
		t.Errorf("unexpected first row: %v", rows[1])
	}
	if rows[2][1] != "15m" {
		t.Errorf("expected horizon label 15m, got %s", rows[2][1])
	}
	if rows[1][13] != "true" || rows[1][16] != "TRENDING" {
		t.Errorf("unexpected flags: %v", rows[1])
	}
}

func TestRenderStatesCSV(t *testing.T) {
	table := &domain.FeatureTable{Rows: []domain.FeatureRow{
		{TimestampMs: 1000, Price: 100.5},
		{TimestampMs: 2000, Price: 101},
	}}
	labels := []domain.OrderflowState{domain.NeutralChop, domain.LongBuildup}
	rules := []string{"neutral_chop", "long_buildup"}

	out, err := RenderStatesCSV(table, labels, rules)
	if err != nil {
		t.Fatalf("RenderStatesCSV failed: %v", err)
	}

	want := "timestamp,price,state,rule\n1000,100.5,NEUTRAL_CHOP,neutral_chop\n2000,101,LONG_BUILDUP,long_buildup\n"
	if out != want {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestBuildStateReport(t *testing.T) {
	table := &domain.FeatureTable{
		Source: "x.csv",
		Rows: []domain.FeatureRow{
			{TimestampMs: 1000, Price: 1},
			{TimestampMs: 2000, Price: 1},
			{TimestampMs: 3000, Price: 1},
			{TimestampMs: 4000, Price: 1},
		},
	}
	labels := []domain.OrderflowState{
		domain.LongBuildup, domain.LongBuildup, domain.NeutralChop, domain.DistributionTop,
	}
	states := []*domain.ConditionResult{{
		Name:    "of_state = LONG_BUILDUP",
		Records: map[domain.Horizon]*domain.ConditionStatRecord{60: &stat("", "of_state = LONG_BUILDUP", 60, 1).ConditionStatRecord},
		Regime:  domain.RegimeNoise,
	}}
	reversals := []edge.ReversalResult{
		{Target: edge.ReversalTarget{State: domain.AbsorptionBottom, Direction: 1}, Insufficient: true},
		{Target: edge.ReversalTarget{State: domain.DistributionTop, Direction: -1}, Count: 40, Horizons: []edge.ReversalStat{
			{Horizon: 60, N: 40, Reversals: 30, ReversalPct: 75, MeanBps: 2, Edge: true},
		}},
	}

	r := BuildStateReport(table, labels, states, reversals, []domain.Horizon{60, 300}, fixedClock())

	if r.RowCount != 4 || r.StartMs != 1000 || r.EndMs != 4000 {
		t.Errorf("unexpected summary: %+v", r)
	}
	if len(r.Distribution) != len(domain.AllStates()) {
		t.Fatalf("expected every state in distribution, got %d", len(r.Distribution))
	}
	if r.Distribution[0].State != domain.LongBuildup || r.Distribution[0].Count != 2 || r.Distribution[0].Pct != 50 {
		t.Errorf("unexpected LONG_BUILDUP row: %+v", r.Distribution[0])
	}

	md := RenderStateMarkdown(r)
	for _, s := range []string{
		"## State Distribution",
		"## Forward Returns by State",
		"## Reversal Analysis",
		"| LONG_BUILDUP |",
		"Insufficient sample",
		"REVERSAL_EDGE",
		"1m N",
	} {
		if !strings.Contains(md, s) {
			t.Errorf("missing %q", s)
		}
	}
}

func TestHistory_UnknownRunSortsFirst(t *testing.T) {
	runs, stats := setupTestData(t)
	if err := stats.Insert(context.Background(), stat("run-0", "htf = BULLISH", 5, 1.0)); err != nil {
		t.Fatalf("insert stat: %v", err)
	}

	gen := NewGenerator(runs, stats, decision.NewEvaluator(0.5))
	rows, err := gen.History(context.Background(), "htf = BULLISH")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0].RunID != "run-0" || rows[0].StartedAt != 0 {
		t.Errorf("expected unknown run first with StartedAt 0, got %+v", rows[0])
	}
}

func TestRenderEdgeMarkdown_DataQuality(t *testing.T) {
	runs, stats := setupTestData(t)

	gen := NewGenerator(runs, stats, decision.NewEvaluator(0.5)).WithClock(fixedClock)
	report, err := gen.Generate(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if strings.Contains(RenderEdgeMarkdown(report), "## Data Quality") {
		t.Errorf("data quality section rendered without checks")
	}

	report.DataQuality = &DataQuality{
		Checks: []SufficiencyCheckRow{
			{Name: "Row count", Threshold: ">= 90", Actual: "40", Pass: false},
		},
		AllPass: false,
	}
	md := RenderEdgeMarkdown(report)
	if !strings.Contains(md, "| Row count | >= 90 | 40 | FAIL |") {
		t.Errorf("missing failed check row:\n%s", md)
	}
	if !strings.Contains(md, "**Warning:**") {
		t.Errorf("missing sufficiency warning")
	}
}

func TestEdgeReport_WithMatchCounts(t *testing.T) {
	runs, stats := setupTestData(t)

	gen := NewGenerator(runs, stats, decision.NewEvaluator(0.5)).WithClock(fixedClock)
	report, err := gen.Generate(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	report.WithMatchCounts([]*domain.ConditionResult{
		{Name: "htf = BULLISH", MatchCount: 480, Records: map[domain.Horizon]*domain.ConditionStatRecord{}},
		{Name: "htf = BEARISH", MatchCount: 12, Records: map[domain.Horizon]*domain.ConditionStatRecord{}},
	})

	if len(report.Insufficient) != 1 || report.Insufficient[0].Condition != "htf = BEARISH" || report.Insufficient[0].Matches != 12 {
		t.Fatalf("unexpected insufficient rows %+v", report.Insufficient)
	}
	for _, res := range report.Conditions {
		if res.Name == "htf = BULLISH" && res.MatchCount != 480 {
			t.Errorf("expected match count 480, got %d", res.MatchCount)
		}
	}

	md := RenderEdgeMarkdown(report)
	if !strings.Contains(md, "| htf = BEARISH | all | 12 | (insufficient data) |") {
		t.Errorf("missing insufficient row:\n%s", md)
	}
	if !strings.Contains(md, "| htf = BULLISH | 480 |") {
		t.Errorf("missing match count in consistency table:\n%s", md)
	}
}
