package decision

import (
	"strings"
	"testing"

	"orderflow-edge-lab/internal/domain"
)

func record(net float64, lowSample, significant bool, regime domain.Regime) *domain.ConditionStatRecord {
	return &domain.ConditionStatRecord{
		Condition:     "c",
		Horizon:       5,
		SampleCount:   150,
		NetExpectancy: net,
		LowSampleFlag: lowSample,
		IsSignificant: significant,
		Regime:        regime,
	}
}

func TestVerdict(t *testing.T) {
	e := NewEvaluator(0.5)

	tests := []struct {
		name string
		rec  *domain.ConditionStatRecord
		want Verdict
	}{
		{"edge", record(1.2, false, true, domain.RegimeNoise), VerdictEdge},
		{"negative", record(-3, false, false, domain.RegimeNoise), VerdictNegative},
		{"within threshold", record(0.5, false, true, domain.RegimeTrending), VerdictNone},
		{"low sample never edge", record(10, true, true, domain.RegimeTrending), VerdictNone},
		{"low sample never negative", record(-10, true, true, domain.RegimeFlip), VerdictNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Verdict(tt.rec); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestTier(t *testing.T) {
	e := NewEvaluator(0.5)

	tests := []struct {
		name string
		rec  *domain.ConditionStatRecord
		want Tier
	}{
		{"high", record(1, false, true, domain.RegimeTrending), TierHigh},
		{"medium", record(1, false, true, domain.RegimeNoise), TierMedium},
		{"low not significant", record(1, false, false, domain.RegimeTrending), TierLow},
		{"low sample", record(1, true, true, domain.RegimeTrending), TierLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Tier(tt.rec); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestEvaluate_DoesNotAlterRecord(t *testing.T) {
	e := NewEvaluator(0.5)
	rec := record(2, false, true, domain.RegimeTrending)
	before := *rec

	a := e.Evaluate(rec)

	if *rec != before {
		t.Errorf("record was modified: %+v", rec)
	}
	if a.Record != rec {
		t.Error("assessment should reference the record")
	}
	if len(a.Criteria) != 4 {
		t.Fatalf("expected 4 criteria, got %d", len(a.Criteria))
	}
	for _, c := range a.Criteria {
		if !c.Pass {
			t.Errorf("criterion %s should pass", c.Name)
		}
	}
}

func TestBuild_OrderAndRanking(t *testing.T) {
	e := NewEvaluator(0.5)
	results := []*domain.ConditionResult{
		{Name: "b", Records: map[domain.Horizon]*domain.ConditionStatRecord{
			60: {Condition: "b", Horizon: 60, NetExpectancy: -4},
			5:  {Condition: "b", Horizon: 5, NetExpectancy: 1},
		}},
		{Name: "a", Records: map[domain.Horizon]*domain.ConditionStatRecord{
			15: {Condition: "a", Horizon: 15, NetExpectancy: 0.1},
		}},
	}

	all := NewBuilder(e).Build(results)
	if len(all) != 3 {
		t.Fatalf("expected 3 assessments, got %d", len(all))
	}
	if all[0].Record.Horizon != 5 || all[1].Record.Horizon != 60 || all[2].Record.Condition != "a" {
		t.Errorf("unexpected build order")
	}

	ranked := Ranked(all)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked, got %d", len(ranked))
	}
	if ranked[0].Record.NetExpectancy != -4 {
		t.Errorf("expected |-4| first, got %f", ranked[0].Record.NetExpectancy)
	}

	s := Summarize(all)
	if s.Edge != 1 || s.Negative != 1 || s.None != 1 || s.Low != 3 {
		t.Errorf("unexpected summary %+v", s)
	}
}

func TestRenderMarkdown(t *testing.T) {
	e := NewEvaluator(0.5)
	all := []*Assessment{
		e.Evaluate(&domain.ConditionStatRecord{Condition: "htf = BULLISH", Horizon: 60, NetExpectancy: 2.5, IsSignificant: true, Regime: domain.RegimeTrending}),
	}

	md := RenderMarkdown(all)

	for _, want := range []string{"## Verdicts", "EDGE: 1", "| 1 | htf = BULLISH | 1m | EDGE | HIGH | +2.50 | - |"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}

	empty := RenderMarkdown(nil)
	if !strings.Contains(empty, "No condition cleared") {
		t.Errorf("expected empty message, got:\n%s", empty)
	}
}
