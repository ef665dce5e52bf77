package validate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"quorum/internal/backtest"
	"quorum/internal/logger"
	"quorum/internal/market"
	"quorum/internal/strategy"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrRunInFlight 同一个 Runner 上已有验证在执行。
var ErrRunInFlight = errors.New("validation run already in flight")

// Runner 对整个策略池执行 walk-forward 验证，按策略并行。
type Runner struct {
	engine   *backtest.Engine
	spec     WindowSpec
	criteria Criteria
	workers  int

	inFlight atomic.Bool
}

func NewRunner(engine *backtest.Engine, spec WindowSpec, criteria Criteria, workers int) *Runner {
	if workers <= 0 {
		workers = 4
	}
	return &Runner{engine: engine, spec: spec, criteria: criteria, workers: workers}
}

// Running 报告当前是否有验证在执行。
func (r *Runner) Running() bool {
	return r.inFlight.Load()
}

// Run 执行一轮完整验证并产出新的 EligibleSet。
// 单个策略失败只剔除该策略，不拖垮整批。
func (r *Runner) Run(ctx context.Context, defs []strategy.Definition, candles []market.Candle) (*EligibleSet, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return nil, ErrRunInFlight
	}
	defer r.inFlight.Store(false)

	if len(defs) == 0 {
		return nil, fmt.Errorf("validation requires at least one strategy")
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("validation requires candle history")
	}
	if err := market.ValidateSeries(candles); err != nil {
		return nil, err
	}
	windows, oos, err := BuildWindows(candles[0].OpenTime, candles[len(candles)-1].CloseTime+1, r.spec)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	runID := uuid.NewString()
	logger.Infof("validation run %s started: %d strategies, %d rolling windows, oos %s..%s",
		runID, len(defs), len(windows), formatDay(oos.TestStart), formatDay(oos.TestEnd))

	verdicts := make([]Verdict, len(defs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	var mu sync.Mutex
	for i, def := range defs {
		i, def := i, def
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v := r.evaluateStrategy(def, candles, windows, oos)
			mu.Lock()
			verdicts[i] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := &EligibleSet{
		Version:   time.Now().UnixMilli(),
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		Verdicts:  make(map[string]Verdict, len(verdicts)),
	}
	for i, v := range verdicts {
		set.Verdicts[v.StrategyID] = v
		if v.Passed {
			set.Strategies = append(set.Strategies, defs[i])
		}
	}
	set.Index()

	logger.Infof("validation run %s finished in %s: %d/%d strategies eligible (version=%d)",
		runID, time.Since(started).Truncate(time.Millisecond), len(set.Strategies), len(defs), set.Version)
	return set, nil
}

func (r *Runner) evaluateStrategy(def strategy.Definition, candles []market.Candle, windows []Window, oos Window) Verdict {
	v := Verdict{StrategyID: def.ID, Windows: len(windows)}

	var trainWinRates []float64
	for _, w := range windows {
		trainResult, err := r.runSlice(def, candles, w.TrainStart, w.TrainEnd)
		if err != nil {
			return failed(v, fmt.Sprintf("train window %d: %v", w.Index, err))
		}
		testResult, err := r.runSlice(def, candles, w.TestStart, w.TestEnd)
		if err != nil {
			return failed(v, fmt.Sprintf("test window %d: %v", w.Index, err))
		}
		trainWinRates = append(trainWinRates, trainResult.Metrics.WinRate)
		v.TestWinRates = append(v.TestWinRates, testResult.Metrics.WinRate)
		v.WindowMetrics = append(v.WindowMetrics, testResult.Metrics)

		if testResult.Metrics.TradeCount < r.criteria.MinTrades {
			return failed(v, fmt.Sprintf("test window %d: %d trades below minimum %d",
				w.Index, testResult.Metrics.TradeCount, r.criteria.MinTrades))
		}
		if testResult.Metrics.WinRate < r.criteria.MinWinRate {
			return failed(v, fmt.Sprintf("test window %d: win rate %.3f below minimum %.3f",
				w.Index, testResult.Metrics.WinRate, r.criteria.MinWinRate))
		}
	}

	v.TrainWinRate = mean(trainWinRates)
	v.ConsistencyScore = consistency(v.TestWinRates)
	if v.ConsistencyScore < r.criteria.ConsistencyFloor {
		return failed(v, fmt.Sprintf("consistency %.3f below floor %.3f", v.ConsistencyScore, r.criteria.ConsistencyFloor))
	}

	oosResult, err := r.runSlice(def, candles, oos.TestStart, oos.TestEnd)
	if err != nil {
		return failed(v, fmt.Sprintf("oos holdout: %v", err))
	}
	v.OOSWinRate = oosResult.Metrics.WinRate
	v.OOSTrades = oosResult.Metrics.TradeCount
	v.OOSMetrics = oosResult.Metrics
	for _, t := range oosResult.Trades {
		v.OOSReturns = append(v.OOSReturns, t.PnLPct)
	}
	if v.OOSTrades < r.criteria.MinOOSTrades {
		return failed(v, fmt.Sprintf("oos holdout: %d trades below minimum %d", v.OOSTrades, r.criteria.MinOOSTrades))
	}
	if v.TrainWinRate <= 0 {
		return failed(v, "train win rate is zero, decay undefined")
	}
	v.DecayRatio = v.OOSWinRate / v.TrainWinRate
	if v.DecayRatio < r.criteria.DecayFloor {
		return failed(v, fmt.Sprintf("decay ratio %.3f below floor %.3f", v.DecayRatio, r.criteria.DecayFloor))
	}
	if v.DecayRatio > 1 {
		v.OutperformedTraining = true
		logger.Warnf("strategy %s: oos win rate %.3f exceeds train %.3f, holdout may be unusually favorable",
			def.ID, v.OOSWinRate, v.TrainWinRate)
	}

	v.Passed = true
	return v
}

func (r *Runner) runSlice(def strategy.Definition, candles []market.Candle, start, end int64) (backtest.Result, error) {
	slice := market.SliceBetween(candles, start, end)
	return r.engine.Run(def, slice)
}

func failed(v Verdict, reason string) Verdict {
	v.Passed = false
	v.Reason = reason
	return v
}

// consistency 1 − 变异系数。均值为零时记 0。
func consistency(winRates []float64) float64 {
	m := mean(winRates)
	if m <= 0 {
		return 0
	}
	var sq float64
	for _, w := range winRates {
		d := w - m
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(winRates)))
	c := 1 - std/m
	if c < 0 {
		return 0
	}
	return c
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
