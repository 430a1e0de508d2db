package edge

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/metrics"
)

// Evaluator computes per-horizon statistics for conditions.
type Evaluator struct {
	cfg    Config
	logger zerolog.Logger
}

// NewEvaluator creates an evaluator. The config is validated and copied.
func NewEvaluator(cfg Config, logger zerolog.Logger) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{cfg: cfg, logger: logger}, nil
}

// Config returns the evaluator's configuration.
func (e *Evaluator) Config() Config {
	return e.cfg
}

// Match evaluates the predicate on every row. Any predicate error aborts the condition.
func (e *Evaluator) Match(frame *Frame, cond Condition) ([]bool, error) {
	if cond.Predicate == nil {
		return nil, fmt.Errorf("condition %q has no predicate", cond.Name)
	}
	mask := make([]bool, frame.Len())
	for i := range mask {
		ok, err := cond.Predicate(frame, i)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		mask[i] = ok
	}
	return mask, nil
}

// EvaluateHorizon computes the record of one condition at one horizon.
// Returns (nil, nil) when fewer than MinSampleSize rows match with a defined forward return.
func (e *Evaluator) EvaluateHorizon(frame *Frame, cond Condition, h domain.Horizon) (*domain.ConditionStatRecord, error) {
	mask, err := e.Match(frame, cond)
	if err != nil {
		return nil, err
	}
	return e.record(cond.Name, frame.Returns, mask, h), nil
}

// Evaluate computes records for every horizon, then consistency and regime.
// Horizons with too few samples have no record.
func (e *Evaluator) Evaluate(frame *Frame, cond Condition, horizons []domain.Horizon) (*domain.ConditionResult, error) {
	mask, err := e.Match(frame, cond)
	if err != nil {
		return nil, err
	}

	matched := 0
	for _, m := range mask {
		if m {
			matched++
		}
	}

	raw := make(map[domain.Horizon]*domain.ConditionStatRecord, len(horizons))
	for _, h := range horizons {
		if rec := e.record(cond.Name, frame.Returns, mask, h); rec != nil {
			raw[h] = rec
		}
	}

	consistency, regime := AnalyzeConsistency(raw, SlotsFor(horizons))

	// Records are rebuilt with the cross-horizon fields rather than mutated.
	records := make(map[domain.Horizon]*domain.ConditionStatRecord, len(raw))
	for h, rec := range raw {
		withRegime := *rec
		withRegime.ConsistencyScore = consistency
		withRegime.Regime = regime
		records[h] = &withRegime
	}

	return &domain.ConditionResult{
		Name:        cond.Name,
		MatchCount:  matched,
		Records:     records,
		Consistency: consistency,
		Regime:      regime,
	}, nil
}

// EvaluateAll evaluates every condition. A condition whose evaluation returns an
// error or panics is logged and omitted; the others are still evaluated.
// Results keep the order of conds.
func (e *Evaluator) EvaluateAll(ctx context.Context, frame *Frame, conds []Condition, horizons []domain.Horizon) ([]*domain.ConditionResult, []ConditionFailure) {
	results := make([]*domain.ConditionResult, len(conds))
	errs := make([]error, len(conds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	for i := range conds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = e.evaluateSafe(frame, conds[i], horizons)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*domain.ConditionResult, 0, len(conds))
	var failures []ConditionFailure
	for i, cond := range conds {
		if errs[i] != nil {
			e.logger.Warn().
				Str("condition", cond.Name).
				Err(errs[i]).
				Msg("condition evaluation failed, omitting")
			failures = append(failures, ConditionFailure{Condition: cond.Name, Err: errs[i]})
			continue
		}
		out = append(out, results[i])
	}
	return out, failures
}

func (e *Evaluator) evaluateSafe(frame *Frame, cond Condition, horizons []domain.Horizon) (res *domain.ConditionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.Evaluate(frame, cond, horizons)
}

// record builds the statistics for the rows selected by mask at horizon h.
func (e *Evaluator) record(name string, returns domain.ForwardReturnSet, mask []bool, h domain.Horizon) *domain.ConditionStatRecord {
	var sample []float64
	for i, m := range mask {
		if m && returns.Defined(h, i) {
			sample = append(sample, returns.At(h, i))
		}
	}

	n := len(sample)
	if n < e.cfg.MinSampleSize {
		return nil
	}

	s := metrics.ComputeReturnStats(sample)
	t := metrics.TStat(s.Mean, s.Stddev, n)
	p := metrics.PValue(t, n)

	return &domain.ConditionStatRecord{
		Condition:     name,
		Horizon:       h,
		SampleCount:   n,
		LowSampleFlag: n < e.cfg.LowNWarnThreshold,
		WinRate:       s.WinRate,
		MeanBps:       s.Mean,
		MedianBps:     s.Median,
		StdBps:        s.Stddev,
		AvgWin:        s.AvgWin,
		AvgLoss:       s.AvgLoss,
		Expectancy:    s.Expectancy(),
		NetExpectancy: s.Mean - e.cfg.RoundTripCostBps(),
		KellyFraction: metrics.KellyFraction(s.WinRate, s.AvgWin, s.AvgLoss),
		Sharpe:        metrics.Sharpe(s.Mean, s.Stddev),
		TStat:         t,
		PValue:        p,
		IsSignificant: p < e.cfg.Alpha(),
		Regime:        domain.RegimeNoise,
	}
}

// SortedHorizons returns the horizons of a result in ascending order.
func SortedHorizons(res *domain.ConditionResult) []domain.Horizon {
	hs := make([]domain.Horizon, 0, len(res.Records))
	for h := range res.Records {
		hs = append(hs, h)
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

// Flatten returns every record of every result, ordered by result then horizon.
func Flatten(results []*domain.ConditionResult) []*domain.ConditionStatRecord {
	var out []*domain.ConditionStatRecord
	for _, res := range results {
		for _, h := range SortedHorizons(res) {
			out = append(out, res.Records[h])
		}
	}
	return out
}
