package validate

import (
	"context"
	"math"
	"testing"
	"time"

	"quorum/internal/backtest"
	"quorum/internal/market"
	"quorum/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourlyHistory(t *testing.T, days int) []market.Candle {
	t.Helper()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	step := time.Hour.Milliseconds()
	n := days * 24
	out := make([]market.Candle, n)
	for i := range out {
		price := 100 + 10*math.Sin(float64(i)/10)
		open := base + int64(i)*step
		out[i] = market.Candle{
			OpenTime:  open,
			CloseTime: open + step - 1,
			Open:      price,
			High:      price + 1.2,
			Low:       price - 1.2,
			Close:     price,
			Volume:    100,
		}
	}
	return out
}

func testRunner(criteria Criteria) *Runner {
	engine := backtest.NewEngine(backtest.CostModel{}, 1)
	spec := WindowSpec{TrainDays: 5, TestDays: 4, OOSDays: 4, MinWindows: 3}
	return NewRunner(engine, spec, criteria, 2)
}

func TestRunProducesVerdictPerStrategy(t *testing.T) {
	r := testRunner(Criteria{MinWinRate: 0.01, MinTrades: 1, MinOOSTrades: 1, ConsistencyFloor: 0.01, DecayFloor: 0.01})
	defs := []strategy.Definition{
		{ID: "sma-1", Kind: strategy.KindSMAMomentum, Exit: strategy.Levels{StopLossPct: 0.02, RiskReward: 1.5}},
		{ID: "ema-1", Kind: strategy.KindEMACross, Exit: strategy.Levels{StopLossPct: 0.02, RiskReward: 1.5}},
	}
	candles := hourlyHistory(t, 26)

	set, err := r.Run(context.Background(), defs, candles)
	require.NoError(t, err)
	require.NotNil(t, set)

	assert.NotEmpty(t, set.RunID)
	assert.NotZero(t, set.Version)
	require.Len(t, set.Verdicts, 2)
	for _, def := range defs {
		v, ok := set.Verdicts[def.ID]
		require.True(t, ok, "verdict missing for %s", def.ID)
		if !v.Passed {
			assert.NotEmpty(t, v.Reason)
		}
	}
	// 准入集合与 verdict 必须一致。
	for _, def := range set.Strategies {
		assert.True(t, set.Verdicts[def.ID].Passed)
		got, ok := set.Lookup(def.ID)
		require.True(t, ok)
		assert.Equal(t, def.ID, got.ID)
	}
	assert.False(t, r.Running())
}

func TestRunPopulatesOOSBaselineData(t *testing.T) {
	r := testRunner(Criteria{MinWinRate: 0.01, MinTrades: 1, MinOOSTrades: 1, ConsistencyFloor: 0.01, DecayFloor: 0.01})
	defs := []strategy.Definition{
		{ID: "sma-1", Kind: strategy.KindSMAMomentum, Exit: strategy.Levels{StopLossPct: 0.02, RiskReward: 1.5}},
	}
	set, err := r.Run(context.Background(), defs, hourlyHistory(t, 26))
	require.NoError(t, err)

	v := set.Verdicts["sma-1"]
	if v.Passed {
		assert.Equal(t, v.OOSTrades, v.OOSMetrics.TradeCount)
		assert.Len(t, v.OOSReturns, v.OOSTrades)
	}
}

func TestRunRejectsWhenInFlight(t *testing.T) {
	r := testRunner(Criteria{})
	r.inFlight.Store(true)
	_, err := r.Run(context.Background(), []strategy.Definition{{ID: "x"}}, hourlyHistory(t, 26))
	assert.ErrorIs(t, err, ErrRunInFlight)
	assert.True(t, r.Running())
}

func TestRunRejectsEmptyInput(t *testing.T) {
	r := testRunner(Criteria{})
	_, err := r.Run(context.Background(), nil, hourlyHistory(t, 26))
	assert.Error(t, err)

	_, err = r.Run(context.Background(), []strategy.Definition{{ID: "x", Kind: strategy.KindSMAMomentum}}, nil)
	assert.Error(t, err)
}

func TestRunImpossibleCriteriaFailsAll(t *testing.T) {
	r := testRunner(Criteria{MinWinRate: 0.99, MinTrades: 1, MinOOSTrades: 1, ConsistencyFloor: 0.01, DecayFloor: 0.01})
	defs := []strategy.Definition{
		{ID: "sma-1", Kind: strategy.KindSMAMomentum, Exit: strategy.Levels{StopLossPct: 0.02, RiskReward: 1.5}},
	}
	set, err := r.Run(context.Background(), defs, hourlyHistory(t, 26))
	require.NoError(t, err)
	assert.Empty(t, set.Strategies)
	v := set.Verdicts["sma-1"]
	assert.False(t, v.Passed)
	assert.NotEmpty(t, v.Reason)
}

func TestSetHolderSwap(t *testing.T) {
	h := &SetHolder{}
	assert.Nil(t, h.Load())

	h.Swap(nil)
	assert.Nil(t, h.Load(), "nil set must never be installed")

	set := &EligibleSet{Version: 7}
	set.Index()
	h.Swap(set)
	require.NotNil(t, h.Load())
	assert.Equal(t, int64(7), h.Load().Version)
}

func TestEligibleSetIndexAfterRestore(t *testing.T) {
	set := &EligibleSet{
		Strategies: []strategy.Definition{{ID: "a"}, {ID: "b"}},
	}
	_, ok := set.Lookup("a")
	assert.False(t, ok, "lookup before Index finds nothing")

	set.Index()
	_, ok = set.Lookup("a")
	assert.True(t, ok)

	var nilSet *EligibleSet
	_, ok = nilSet.Lookup("a")
	assert.False(t, ok)
}
